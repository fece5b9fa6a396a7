package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/logger"
)

const DefaultAssemblyAIBaseURL = "https://api.assemblyai.com/v2"

// AssemblyAITranscriber uploads a recording to AssemblyAI, submits a
// speaker-labelled transcription job and polls it to completion.
type AssemblyAITranscriber struct {
	apiKey  string
	baseURL string
	poll    PollOptions
	client  *http.Client
	log     *logger.Logger
}

// AssemblyAI REST payloads
type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
}

type assemblyAIUtterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
}

type transcriptResponse struct {
	ID         string                `json:"id"`
	Status     string                `json:"status"`
	Error      string                `json:"error"`
	Utterances []assemblyAIUtterance `json:"utterances"`
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

func NewAssemblyAITranscriber(apiKey, baseURL string, poll PollOptions, log *logger.Logger) (*AssemblyAITranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("AssemblyAI API key is required")
	}
	if baseURL == "" {
		baseURL = DefaultAssemblyAIBaseURL
	}
	if poll.Interval <= 0 {
		poll.Interval = 3 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	return &AssemblyAITranscriber{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		poll:    poll,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}, nil
}

func (at *AssemblyAITranscriber) Name() string {
	return "assemblyai"
}

func (at *AssemblyAITranscriber) Transcribe(ctx context.Context, req Request) (*analysis.Transcript, error) {
	uploadURL, err := at.Upload(ctx, req.Audio)
	if err != nil {
		return nil, err
	}

	jobID, err := at.Submit(ctx, uploadURL)
	if err != nil {
		return nil, err
	}
	req.notify(StateSubmitted)
	at.log.Info("transcription submitted", "provider", at.Name(), "job_id", jobID, "filename", req.Filename)

	transcript, err := Poll(ctx, at.poll, func(ctx context.Context) (Status, error) {
		return at.Fetch(ctx, jobID)
	}, req.OnState)
	if err != nil {
		at.log.Warn("transcription did not complete", "job_id", jobID, "error", err)
		return nil, err
	}

	transcript.Filename = req.Filename
	return transcript, nil
}

// Upload streams the raw audio to AssemblyAI and returns the URL the
// transcription job should reference.
func (at *AssemblyAITranscriber) Upload(ctx context.Context, audio io.Reader) (string, error) {
	var out uploadResponse
	if err := at.do(ctx, http.MethodPost, "/upload", "application/octet-stream", audio, &out); err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("upload audio: empty upload_url")
	}
	return out.UploadURL, nil
}

// Submit starts a speaker-labelled transcription job.
func (at *AssemblyAITranscriber) Submit(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(transcriptRequest{AudioURL: audioURL, SpeakerLabels: true})
	if err != nil {
		return "", err
	}

	var out transcriptResponse
	if err := at.do(ctx, http.MethodPost, "/transcript", "application/json", bytes.NewReader(body), &out); err != nil {
		return "", fmt.Errorf("submit transcript: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("submit transcript: empty job id")
	}
	return out.ID, nil
}

// Fetch reports the current state of a job.
func (at *AssemblyAITranscriber) Fetch(ctx context.Context, jobID string) (Status, error) {
	var out transcriptResponse
	if err := at.do(ctx, http.MethodGet, "/transcript/"+jobID, "", nil, &out); err != nil {
		return Status{}, fmt.Errorf("fetch transcript %s: %w", jobID, err)
	}

	state, err := StateFromStatus(out.Status)
	if err != nil {
		return Status{}, err
	}

	status := Status{State: state, Error: out.Error}
	if state == StateCompleted {
		status.Transcript = out.toTranscript()
	}
	return status, nil
}

// StateFromStatus maps AssemblyAI's status strings onto JobState.
func StateFromStatus(status string) (JobState, error) {
	switch status {
	case "queued":
		return StateSubmitted, nil
	case "processing":
		return StateProcessing, nil
	case "completed":
		return StateCompleted, nil
	case "error":
		return StateFailed, nil
	default:
		return "", fmt.Errorf("unknown AssemblyAI status %q", status)
	}
}

func (r transcriptResponse) toTranscript() *analysis.Transcript {
	utterances := make([]analysis.Utterance, 0, len(r.Utterances))
	for _, u := range r.Utterances {
		utterances = append(utterances, analysis.Utterance{
			Speaker: u.Speaker,
			Text:    u.Text,
			Start:   u.Start,
			End:     u.End,
		})
	}
	return &analysis.Transcript{Utterances: utterances}
}

func (at *AssemblyAITranscriber) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, at.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("authorization", at.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := at.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
