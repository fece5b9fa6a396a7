package transcriber

import (
	"context"
	"fmt"
	"io"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/config"
	"github.com/amanullahtanweer/teamsync/internal/logger"
)

// Transcriber is the common interface for all transcription providers
type Transcriber interface {
	Name() string
	// Transcribe blocks until the provider returns a speaker-labelled
	// transcript or fails.
	Transcribe(ctx context.Context, req Request) (*analysis.Transcript, error)
}

// Request is one recording to transcribe.
type Request struct {
	Filename string
	Audio    io.Reader
	// OnState, if set, is called on every job state change.
	OnState func(JobState)
}

func (r Request) notify(state JobState) {
	if r.OnState != nil {
		r.OnState(state)
	}
}

// New creates the transcriber selected by the configuration.
func New(cfg *config.Config, log *logger.Logger) (Transcriber, error) {
	switch cfg.Transcription.Provider {
	case config.ProviderAssemblyAI:
		return NewAssemblyAITranscriber(
			cfg.AssemblyAI.APIKey,
			cfg.AssemblyAI.BaseURL,
			PollOptions{
				Interval: cfg.Transcription.PollInterval,
				Timeout:  cfg.Transcription.PollTimeout,
			},
			log,
		)
	case config.ProviderVosk:
		return NewVoskTranscriber(cfg.Vosk.ServerURL, cfg.Vosk.SampleRate, log)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Transcription.Provider)
	}
}
