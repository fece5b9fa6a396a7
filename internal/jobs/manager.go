package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/logger"
	"github.com/amanullahtanweer/teamsync/internal/metrics"
	"github.com/amanullahtanweer/teamsync/internal/store"
	"github.com/amanullahtanweer/teamsync/internal/transcriber"
)

// State is the job lifecycle as seen by clients. It follows the
// transcriber's state machine.
type State = transcriber.JobState

var (
	ErrJobNotFound = errors.New("job not found")
	ErrShutdown    = errors.New("job manager is shutting down")
)

// Progress messages carried by Event.Status.
const (
	StatusStarted  = "Processing started"
	StatusHalfway  = "Processing 50%"
	StatusComplete = "Processing complete"
	StatusFailed   = "Processing failed"
)

// Job is a snapshot of one upload.
type Job struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	State        State     `json:"state"`
	Error        string    `json:"error,omitempty"`
	TranscriptID string    `json:"transcriptId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Event is pushed to progress subscribers on every state change.
type Event struct {
	JobID           string `json:"jobId"`
	State           State  `json:"state"`
	Status          string `json:"status"`
	TranscriptReady bool   `json:"transcriptReady"`
	Error           string `json:"error,omitempty"`
}

type Publisher interface {
	Publish(Event)
}

type Options struct {
	// UploadDir holds audio between the request and the transcriber.
	UploadDir   string
	EventLogDir string
	// JobTimeout bounds one transcription; zero means none.
	JobTimeout time.Duration
}

// Manager runs each upload in its own goroutine: spool audio to disk,
// transcribe, persist, and report progress.
type Manager struct {
	transcriber transcriber.Transcriber
	store       store.Store
	publisher   Publisher
	collectors  *metrics.Collectors
	log         *logger.Logger
	opts        Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*Job
	closed bool
}

func NewManager(tr transcriber.Transcriber, st store.Store, pub Publisher, collectors *metrics.Collectors, log *logger.Logger, opts Options) (*Manager, error) {
	if tr == nil || st == nil {
		return nil, fmt.Errorf("transcriber and store are required")
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	if err := os.MkdirAll(opts.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	if collectors == nil {
		collectors = metrics.NewCollectors()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		transcriber: tr,
		store:       st,
		publisher:   pub,
		collectors:  collectors,
		log:         log.With("component", "jobs"),
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		jobs:        make(map[string]*Job),
	}, nil
}

// Submit spools audio to the upload directory and starts transcription in
// the background. The returned job is already in the submitted state.
func (m *Manager) Submit(filename string, audio io.Reader) (Job, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return Job{}, ErrShutdown
	}

	id := uuid.NewString()
	path := filepath.Join(m.opts.UploadDir, id+filepath.Ext(filename))
	n, err := spool(path, audio)
	if err != nil {
		return Job{}, err
	}

	now := time.Now()
	job := &Job{ID: id, Filename: filename, State: transcriber.StateSubmitted, CreatedAt: now, UpdatedAt: now}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		os.Remove(path)
		return Job{}, ErrShutdown
	}
	m.jobs[id] = job
	m.wg.Add(1)
	m.mu.Unlock()

	jm := metrics.NewJobMetrics(m.transcriber.Name(), id, filename)
	jm.AddAudioBytes(n)
	m.collectors.JobStarted()

	m.publish(Event{JobID: id, State: transcriber.StateSubmitted, Status: StatusStarted})
	snapshot := *job
	go m.run(id, filename, path, jm)
	return snapshot, nil
}

func spool(path string, audio io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}
	n, err := io.Copy(f, audio)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("store upload: %w", err)
	}
	return n, nil
}

func (m *Manager) run(id, filename, path string, jm *metrics.JobMetrics) {
	defer m.wg.Done()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.log.Warn("failed to remove upload file", "job_id", id, "path", path, "error", err)
		}
	}()

	log := m.log.With("job_id", id, "filename", filename)
	started := time.Now()

	events, err := NewEventLog(m.opts.EventLogDir, id, started)
	if err != nil {
		log.Warn("job event log unavailable", "error", err)
		events = nil
	}
	defer events.Close()
	events.LogJobStart(id, filename, m.transcriber.Name(), started)
	events.LogState(id, transcriber.StateSubmitted)
	jm.RecordState(string(transcriber.StateSubmitted))

	ctx := m.ctx
	if m.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.JobTimeout)
		defer cancel()
	}

	transcript, err := m.transcribe(ctx, id, filename, path, events, jm)
	if err == nil {
		err = m.persist(ctx, transcript, filename)
	}

	if err != nil {
		log.Error("transcription job failed", "error", err)
		m.finish(id, transcriber.StateFailed, err, "")
		events.LogJobEnd(id, transcriber.StateFailed, err)
		jm.RecordState(string(transcriber.StateFailed))
		m.publish(Event{JobID: id, State: transcriber.StateFailed, Status: StatusFailed, Error: err.Error()})
	} else {
		jm.SetUtterances(len(transcript.Utterances))
		events.LogStored(id, transcript.ID, len(transcript.Utterances))
		m.finish(id, transcriber.StateCompleted, nil, transcript.ID)
		events.LogJobEnd(id, transcriber.StateCompleted, nil)
		jm.RecordState(string(transcriber.StateCompleted))
		m.publish(Event{JobID: id, State: transcriber.StateCompleted, Status: StatusComplete, TranscriptReady: true})
	}

	m.collectors.JobFinished(jm)
	log.Info("transcription job finished", "summary", jm.Summary())
}

func (m *Manager) transcribe(ctx context.Context, id, filename, path string, events *EventLog, jm *metrics.JobMetrics) (*analysis.Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return m.transcriber.Transcribe(ctx, transcriber.Request{
		Filename: filename,
		Audio:    f,
		OnState: func(state State) {
			// Terminal states are reported once the transcript is stored.
			if state.Terminal() || !m.advance(id, state) {
				return
			}
			events.LogState(id, state)
			jm.RecordState(string(state))
			if state == transcriber.StateProcessing {
				m.publish(Event{JobID: id, State: state, Status: StatusHalfway})
			}
		},
	})
}

func (m *Manager) persist(ctx context.Context, t *analysis.Transcript, filename string) error {
	if t == nil {
		return fmt.Errorf("transcriber returned no transcript")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Filename = filename
	if t.UploadTime.IsZero() {
		t.UploadTime = time.Now().UTC()
	}
	if t.Utterances == nil {
		t.Utterances = []analysis.Utterance{}
	}
	if err := m.store.Save(ctx, t); err != nil {
		return fmt.Errorf("persist transcript: %w", err)
	}
	return nil
}

// advance moves a job forward, reporting whether the state changed.
func (m *Manager) advance(id string, state State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return false
	}
	next, err := job.State.Next(state)
	if err != nil || next == job.State {
		return false
	}
	job.State = next
	job.UpdatedAt = time.Now()
	return true
}

func (m *Manager) finish(id string, state State, err error, transcriptID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	job.State = state
	job.TranscriptID = transcriptID
	if err != nil {
		job.Error = err.Error()
	}
	job.UpdatedAt = time.Now()
}

func (m *Manager) publish(ev Event) {
	if m.publisher != nil {
		m.publisher.Publish(ev)
	}
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// Shutdown stops accepting uploads, cancels running jobs and waits for them
// to unwind or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}
