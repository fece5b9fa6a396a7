package analysis

import "strings"

// Aggregation is the result of the single per-speaker counting pass.
type Aggregation struct {
	Speakers   map[string]*SpeakerMetrics
	Order      []string // speakers in order of first appearance
	TotalWords int
}

// Aggregate scans utterances left to right, counting words and turns per
// speaker. Every speaker change credits the incoming speaker with an
// interruption; the first utterance never counts.
func Aggregate(utts []Utterance) Aggregation {
	agg := Aggregation{Speakers: make(map[string]*SpeakerMetrics)}

	for i, u := range utts {
		m, ok := agg.Speakers[u.Speaker]
		if !ok {
			m = &SpeakerMetrics{}
			agg.Speakers[u.Speaker] = m
			agg.Order = append(agg.Order, u.Speaker)
		}

		words := WordCount(u.Text)
		m.WordCount += words
		m.TurnCount++
		agg.TotalWords += words

		if i > 0 && utts[i-1].Speaker != u.Speaker {
			m.Interruptions++
		}
	}

	return agg
}

// WordCount counts single-space separated tokens. Consecutive spaces yield
// empty tokens that are counted too, and an empty text counts as one word.
func WordCount(text string) int {
	return len(strings.Split(text, " "))
}

// Interruptions sums the interruption counters of all speakers.
func (a Aggregation) Interruptions() int {
	total := 0
	for _, m := range a.Speakers {
		total += m.Interruptions
	}
	return total
}
