package analysis

import "regexp"

const (
	fillerPenalty = 5
	maxClarity    = 100
	// ConfusingThreshold is the score below which a segment is confusing.
	ConfusingThreshold = 50
)

var fillerWordRe = regexp.MustCompile(`(?i)\b(?:uh|um|like|you know)\b`)

// CountFillerWords counts filler-word occurrences on word boundaries.
func CountFillerWords(text string) int {
	return len(fillerWordRe.FindAllStringIndex(text, -1))
}

// ScoreClarity rates one utterance text. The score loses five points per
// filler word and never drops below zero.
func ScoreClarity(text string) ClarityRecord {
	fillers := CountFillerWords(text)
	return ClarityRecord{
		Text:         text,
		FillerWords:  fillers,
		ClarityScore: max(0, maxClarity-fillerPenalty*fillers),
	}
}

// IsConfusing reports whether the record falls under ConfusingThreshold.
func (r ClarityRecord) IsConfusing() bool {
	return r.ClarityScore < ConfusingThreshold
}

// ClarityMetrics scores every utterance in order.
func ClarityMetrics(utts []Utterance) []ClarityRecord {
	out := make([]ClarityRecord, 0, len(utts))
	for i, u := range utts {
		rec := ScoreClarity(u.Text)
		rec.Index = i
		rec.Speaker = u.Speaker
		out = append(out, rec)
	}
	return out
}

// ConfusingSegments keeps the records with a score under ConfusingThreshold.
func ConfusingSegments(records []ClarityRecord) []ClarityRecord {
	out := make([]ClarityRecord, 0)
	for _, rec := range records {
		if rec.IsConfusing() {
			out = append(out, rec)
		}
	}
	return out
}
