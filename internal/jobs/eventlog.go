package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// EventLog writes structured JSONL job logs to a file
type EventLog struct {
	mu   sync.Mutex
	file *os.File
	path string
}

type logRecord struct {
	Timestamp    string            `json:"ts"`
	Event        string            `json:"event"`
	JobID        string            `json:"job_id"`
	State        string            `json:"state,omitempty"`
	Filename     string            `json:"filename,omitempty"`
	TranscriptID string            `json:"transcript_id,omitempty"`
	Error        string            `json:"error,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
}

// NewEventLog creates a log under outputDir. Filename is timestamp + job id.
func NewEventLog(outputDir, jobID string, started time.Time) (*EventLog, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	shortID := jobID
	if len(jobID) > 8 {
		shortID = jobID[:8]
	}
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_job_%s.jsonl", started.Format("20060102_150405"), shortID))
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &EventLog{file: f, path: filename}, nil
}

func (el *EventLog) Path() string {
	if el == nil {
		return ""
	}
	return el.path
}

func (el *EventLog) Close() error {
	if el == nil {
		return nil
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file != nil {
		err := el.file.Close()
		el.file = nil
		return err
	}
	return nil
}

// write is a no-op on a nil or closed log so jobs run without one.
func (el *EventLog) write(rec logRecord) {
	if el == nil {
		return
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file == nil {
		return
	}
	rec.Error = strings.TrimSpace(rec.Error)
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().Format(time.RFC3339Nano)
	}
	_ = json.NewEncoder(el.file).Encode(rec)
}

func (el *EventLog) LogJobStart(jobID, filename, provider string, started time.Time) {
	el.write(logRecord{Timestamp: started.Format(time.RFC3339Nano), Event: "job_start", JobID: jobID, Filename: filename, Details: map[string]string{"provider": provider}})
}

func (el *EventLog) LogState(jobID string, state State) {
	el.write(logRecord{Event: "state", JobID: jobID, State: string(state)})
}

func (el *EventLog) LogStored(jobID, transcriptID string, utterances int) {
	el.write(logRecord{Event: "stored", JobID: jobID, TranscriptID: transcriptID, Details: map[string]string{"utterances": fmt.Sprint(utterances)}})
}

func (el *EventLog) LogJobEnd(jobID string, state State, err error) {
	rec := logRecord{Event: "job_end", JobID: jobID, State: string(state)}
	if err != nil {
		rec.Error = err.Error()
	}
	el.write(rec)
}
