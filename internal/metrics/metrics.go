package metrics

import (
	"fmt"
	"sync"
	"time"
)

// JobMetrics tracks one upload-to-transcript job.
type JobMetrics struct {
	Provider       string
	JobID          string
	Filename       string
	StartTime      time.Time
	EndTime        time.Time
	AudioBytes     int64
	UtteranceCount int
	StateChanges   int
	FinalState     string
	FirstStateTime *time.Time
	mu             sync.Mutex
}

func NewJobMetrics(provider, jobID, filename string) *JobMetrics {
	return &JobMetrics{
		Provider:  provider,
		JobID:     jobID,
		Filename:  filename,
		StartTime: time.Now(),
	}
}

func (m *JobMetrics) AddAudioBytes(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AudioBytes += n
}

func (m *JobMetrics) RecordState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FirstStateTime == nil {
		now := time.Now()
		m.FirstStateTime = &now
	}
	m.StateChanges++
	m.FinalState = state
}

func (m *JobMetrics) SetUtterances(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UtteranceCount = n
}

func (m *JobMetrics) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EndTime.IsZero() {
		m.EndTime = time.Now()
	}
}

// Duration is the wall time of the job, up to now if it is still running.
func (m *JobMetrics) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EndTime.IsZero() {
		return time.Since(m.StartTime)
	}
	return m.EndTime.Sub(m.StartTime)
}

func (m *JobMetrics) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := m.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	duration := end.Sub(m.StartTime)
	var latency time.Duration
	if m.FirstStateTime != nil {
		latency = m.FirstStateTime.Sub(m.StartTime)
	}

	return fmt.Sprintf(
		"Provider: %s\n"+
			"Job: %s\n"+
			"File: %s\n"+
			"Duration: %v\n"+
			"Audio Bytes: %d\n"+
			"Utterances: %d\n"+
			"First State Latency: %v\n"+
			"State Changes: %d\n"+
			"Final State: %s\n",
		m.Provider,
		m.JobID,
		m.Filename,
		duration.Round(time.Millisecond),
		m.AudioBytes,
		m.UtteranceCount,
		latency.Round(time.Millisecond),
		m.StateChanges,
		m.FinalState,
	)
}
