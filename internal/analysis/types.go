package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Utterance is one contiguous, speaker-attributed speech segment.
// Start and End are millisecond offsets into the recording.
// A start or end that is not an integer decodes as 0 and marks the
// utterance Malformed; the raw token is kept so it survives re-encoding.
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`

	rawStart json.RawMessage
	rawEnd   json.RawMessage
}

func (u *Utterance) UnmarshalJSON(data []byte) error {
	var aux struct {
		Speaker string          `json:"speaker"`
		Text    string          `json:"text"`
		Start   json.RawMessage `json:"start"`
		End     json.RawMessage `json:"end"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*u = Utterance{Speaker: aux.Speaker, Text: aux.Text}
	u.Start, u.rawStart = parseTimestamp(aux.Start)
	u.End, u.rawEnd = parseTimestamp(aux.End)
	return nil
}

func (u Utterance) MarshalJSON() ([]byte, error) {
	out := struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
		Start   any    `json:"start"`
		End     any    `json:"end"`
	}{u.Speaker, u.Text, u.Start, u.End}
	if u.rawStart != nil {
		out.Start = u.rawStart
	}
	if u.rawEnd != nil {
		out.End = u.rawEnd
	}
	return json.Marshal(out)
}

// Malformed reports whether start or end was not an integer millisecond
// offset.
func (u Utterance) Malformed() bool {
	return u.rawStart != nil || u.rawEnd != nil
}

// parseTimestamp returns the offset, or 0 and the raw token when the value
// is not an integer. Missing and null count as 0.
func parseTimestamp(raw json.RawMessage) (int64, json.RawMessage) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return 0, append(json.RawMessage(nil), raw...)
	}
	return ms, nil
}

// Transcript is the persisted transcription of a single recording.
// A nil Utterances slice means the field was missing; an empty one is a
// valid transcript of nothing.
type Transcript struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename"`
	DisplayName string      `json:"displayName,omitempty"`
	UploadTime  time.Time   `json:"uploadTime,omitzero"`
	Utterances  []Utterance `json:"utterances"`
}

// UnmarshalJSON rejects documents whose utterances field is absent, null or
// not an array.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	type plain Transcript
	var aux struct {
		plain
		Utterances json.RawMessage `json:"utterances"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	raw := bytes.TrimSpace(aux.Utterances)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: utterances missing", ErrInvalidFormat)
	}
	if raw[0] != '[' {
		return fmt.Errorf("%w: utterances is not a list", ErrInvalidFormat)
	}

	utts := make([]Utterance, 0)
	if err := json.Unmarshal(raw, &utts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	*t = Transcript(aux.plain)
	t.Utterances = utts
	return nil
}

// DecodeTranscript reads a single transcript JSON document.
func DecodeTranscript(r io.Reader) (*Transcript, error) {
	var t Transcript
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		if errors.Is(err, ErrInvalidFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return &t, nil
}

// Clone returns a deep copy, for callers that need the raw text to survive
// normalization.
func (t *Transcript) Clone() *Transcript {
	if t == nil {
		return nil
	}
	c := *t
	if t.Utterances != nil {
		c.Utterances = append([]Utterance(nil), t.Utterances...)
		if c.Utterances == nil {
			c.Utterances = []Utterance{}
		}
	}
	return &c
}

// Sentiment is the naive keyword sentiment label of an utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// SpeakerMetrics holds per-speaker counters.
type SpeakerMetrics struct {
	WordCount     int `json:"wordCount"`
	TurnCount     int `json:"turnCount"`
	Interruptions int `json:"interruptions"`
}

// ClarityRecord scores a single utterance for filler-word usage.
type ClarityRecord struct {
	Index        int    `json:"index"`
	Speaker      string `json:"speaker"`
	Text         string `json:"text"`
	FillerWords  int    `json:"fillerWords"`
	ClarityScore int    `json:"clarityScore"`
}

// TrendPoint is one entry of the ordered sentiment trend.
type TrendPoint struct {
	Index     int       `json:"index"`
	Sentiment Sentiment `json:"sentiment"`
}

type ConversationDynamics struct {
	Interruptions int `json:"interruptions"`
	TurnTaking    int `json:"turnTaking"`
}

// Duration is a meeting length split into whole units.
type Duration struct {
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

type Engagement struct {
	Speaker    string `json:"speaker"`
	Engagement int    `json:"engagement"`
}

type MeetingPerformance struct {
	Duration   Duration     `json:"duration"`
	Engagement []Engagement `json:"engagement"`
}
