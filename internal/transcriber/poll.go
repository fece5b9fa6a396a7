package transcriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
)

// JobState is the lifecycle of a transcription job at the provider.
type JobState string

const (
	StateSubmitted  JobState = "submitted"
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

var (
	ErrIllegalTransition   = errors.New("illegal job state transition")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrPollTimeout         = errors.New("transcription poll timed out")
)

func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Next validates the move from s to to. Jobs only move forward and never
// leave a terminal state.
func (s JobState) Next(to JobState) (JobState, error) {
	if s.Terminal() {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, to)
	}
	switch to {
	case StateSubmitted:
		if s == StateProcessing {
			return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, to)
		}
	case StateProcessing, StateCompleted, StateFailed:
	default:
		return s, fmt.Errorf("%w: unknown state %q", ErrIllegalTransition, to)
	}
	return to, nil
}

// Status is one observation of a remote job.
type Status struct {
	State      JobState
	Transcript *analysis.Transcript // set when State is completed
	Error      string               // set when State is failed
}

// FetchFunc retrieves the current status of a remote job.
type FetchFunc func(ctx context.Context) (Status, error)

type PollOptions struct {
	Interval time.Duration
	// Timeout bounds the whole poll; zero means no limit beyond ctx.
	Timeout time.Duration
}

// Poll calls fetch every opts.Interval until the job reaches a terminal
// state, the timeout expires or ctx is cancelled. The job is assumed to be
// submitted already; onState (optional) sees every later state change.
func Poll(ctx context.Context, opts PollOptions, fetch FetchFunc, onState func(JobState)) (*analysis.Transcript, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	state := StateSubmitted
	for {
		status, err := fetch(ctx)
		if err != nil {
			return nil, pollErr(ctx, err)
		}

		next, err := state.Next(status.State)
		if err != nil {
			return nil, err
		}
		if next != state && onState != nil {
			onState(next)
		}
		state = next

		switch state {
		case StateCompleted:
			if status.Transcript == nil {
				return nil, fmt.Errorf("%w: completed without transcript", ErrTranscriptionFailed)
			}
			return status.Transcript, nil
		case StateFailed:
			return nil, fmt.Errorf("%w: %s", ErrTranscriptionFailed, status.Error)
		}

		select {
		case <-ctx.Done():
			return nil, pollErr(ctx, ctx.Err())
		case <-ticker.C:
		}
	}
}

func pollErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrPollTimeout, err)
	}
	return err
}
