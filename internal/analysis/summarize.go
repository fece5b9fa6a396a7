package analysis

import (
	"fmt"
	"math"
	"strings"
)

const (
	msPerHour   = 3_600_000
	msPerMinute = 60_000
	msPerSecond = 1_000

	// excerptLen is how many leading utterances feed keyTopics and mainPoints.
	excerptLen = 3
)

// SpeakerDistribution formats each speaker's share of all words as a
// percentage string with two decimals. An empty transcript yields an empty
// map instead of NaN values.
func SpeakerDistribution(agg Aggregation) map[string]string {
	dist := make(map[string]string, len(agg.Speakers))
	if agg.TotalWords == 0 {
		return dist
	}
	for speaker, m := range agg.Speakers {
		pct := float64(m.WordCount) / float64(agg.TotalWords) * 100
		dist[speaker] = fmt.Sprintf("%.2f%%", pct)
	}
	return dist
}

// SentimentTrend labels every utterance, keeping the original order.
func SentimentTrend(utts []Utterance) []TrendPoint {
	trend := make([]TrendPoint, 0, len(utts))
	for i, u := range utts {
		trend = append(trend, TrendPoint{Index: i, Sentiment: ClassifySentiment(u.Text)})
	}
	return trend
}

// OverallSentiment tallies the labels of all utterances. All three labels
// are always present.
func OverallSentiment(utts []Utterance) map[Sentiment]int {
	hist := map[Sentiment]int{
		SentimentPositive: 0,
		SentimentNegative: 0,
		SentimentNeutral:  0,
	}
	for _, u := range utts {
		hist[ClassifySentiment(u.Text)]++
	}
	return hist
}

func Dynamics(agg Aggregation, utts []Utterance) ConversationDynamics {
	return ConversationDynamics{
		Interruptions: agg.Interruptions(),
		TurnTaking:    len(utts),
	}
}

// MeetingDuration sums the individual utterance spans. Overlaps and gaps
// between utterances are not reconciled, so this is total speaking time
// rather than wall-clock length.
func MeetingDuration(utts []Utterance) (Duration, error) {
	var total int64
	for i, u := range utts {
		if u.Malformed() {
			return Duration{}, fmt.Errorf("%w: utterance %d has a non-integer timestamp", ErrMalformedTimestamps, i)
		}
		if u.Start < 0 || u.End < u.Start {
			return Duration{}, fmt.Errorf("%w: utterance %d spans [%d, %d]", ErrMalformedTimestamps, i, u.Start, u.End)
		}
		span := u.End - u.Start
		if total > math.MaxInt64-span {
			return Duration{}, fmt.Errorf("%w: total duration overflows", ErrMalformedTimestamps)
		}
		total += span
	}
	return Duration{
		Hours:   total / msPerHour,
		Minutes: (total % msPerHour) / msPerMinute,
		Seconds: (total % msPerMinute) / msPerSecond,
	}, nil
}

// MainPoints returns the texts of the first few utterances.
func MainPoints(utts []Utterance) []string {
	n := min(len(utts), excerptLen)
	points := make([]string, 0, n)
	for _, u := range utts[:n] {
		points = append(points, u.Text)
	}
	return points
}

// KeyTopics is MainPoints joined with single spaces.
func KeyTopics(utts []Utterance) string {
	return strings.Join(MainPoints(utts), " ")
}

// EngagementBySpeaker lists word counts in first-appearance order.
func EngagementBySpeaker(agg Aggregation) []Engagement {
	out := make([]Engagement, 0, len(agg.Order))
	for _, speaker := range agg.Order {
		out = append(out, Engagement{Speaker: speaker, Engagement: agg.Speakers[speaker].WordCount})
	}
	return out
}
