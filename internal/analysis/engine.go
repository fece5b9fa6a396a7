package analysis

import (
	"fmt"
	"strings"

	"github.com/amanullahtanweer/teamsync/internal/logger"
)

// Category names a filterable section of the analysis result.
type Category string

const (
	CategoryKeyTopics      Category = "keyTopics"
	CategorySpeakerMetrics Category = "speakerMetrics"
	CategorySentiment      Category = "sentiment"
	CategoryClarity        Category = "clarity"
)

// AllCategories lists every valid category.
var AllCategories = []Category{
	CategoryKeyTopics,
	CategorySpeakerMetrics,
	CategorySentiment,
	CategoryClarity,
}

// ParseCategories parses a comma separated list such as
// "speakerMetrics,clarity". Blank input yields no categories.
func ParseCategories(raw string) ([]Category, error) {
	var out []Category
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		c := Category(name)
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
		}
		out = append(out, c)
	}
	return out, nil
}

func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Result is the assembled analysis. Fields tagged omitzero are present only
// when their category was requested; the rest are always included.
type Result struct {
	KeyTopics            string                    `json:"keyTopics"`
	SpeakerMetrics       map[string]SpeakerMetrics `json:"speakerMetrics,omitzero"`
	OverallSentiment     map[Sentiment]int         `json:"overallSentiment,omitzero"`
	ClarityMetrics       []ClarityRecord           `json:"clarityMetrics,omitzero"`
	ConfusingSegments    []ClarityRecord           `json:"confusingSegments,omitzero"`
	SpeakerDistribution  map[string]string         `json:"speakerDistribution"`
	SentimentTrend       []TrendPoint              `json:"sentimentTrend"`
	ConversationDynamics ConversationDynamics      `json:"conversationDynamics"`
	ActionItems          []string                  `json:"actionItems"`
	MeetingPerformance   *MeetingPerformance       `json:"meetingPerformance,omitempty"`
	MainPoints           []string                  `json:"mainPoints"`
}

// Engine runs the analysis passes. It holds no state besides its logger
// and is safe for concurrent use.
type Engine struct {
	log *logger.Logger
}

func NewEngine(log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{log: log.With("component", "analysis")}
}

// Analyze normalizes t in place and derives the meeting metrics. With no
// categories every filterable section is included.
func (e *Engine) Analyze(t *Transcript, categories ...Category) (*Result, error) {
	want, err := selection(categories)
	if err != nil {
		return nil, err
	}
	if err := Normalize(t); err != nil {
		return nil, err
	}

	utts := t.Utterances
	agg := Aggregate(utts)

	res := &Result{
		KeyTopics:            KeyTopics(utts),
		SpeakerDistribution:  SpeakerDistribution(agg),
		SentimentTrend:       SentimentTrend(utts),
		ConversationDynamics: Dynamics(agg, utts),
		ActionItems:          ActionItems(utts),
		MainPoints:           MainPoints(utts),
	}

	if want[CategorySpeakerMetrics] {
		res.SpeakerMetrics = make(map[string]SpeakerMetrics, len(agg.Speakers))
		for speaker, m := range agg.Speakers {
			res.SpeakerMetrics[speaker] = *m
		}
	}
	if want[CategorySentiment] {
		res.OverallSentiment = OverallSentiment(utts)
	}
	if want[CategoryClarity] {
		res.ClarityMetrics = ClarityMetrics(utts)
		res.ConfusingSegments = ConfusingSegments(res.ClarityMetrics)
	}

	duration, err := MeetingDuration(utts)
	if err != nil {
		e.log.Warn("meeting duration unavailable, omitting meetingPerformance",
			"transcript_id", t.ID,
			"error", err,
		)
	} else {
		res.MeetingPerformance = &MeetingPerformance{
			Duration:   duration,
			Engagement: EngagementBySpeaker(agg),
		}
	}

	return res, nil
}

func selection(categories []Category) (map[Category]bool, error) {
	want := make(map[Category]bool, len(AllCategories))
	if len(categories) == 0 {
		for _, c := range AllCategories {
			want[c] = true
		}
		return want, nil
	}
	for _, c := range categories {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
		}
		want[c] = true
	}
	return want, nil
}
