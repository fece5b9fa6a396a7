package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/logger"
)

// Vosk has no diarization, every utterance is attributed to one speaker.
const VoskSpeaker = "A"

const voskChunkSize = 8000

// VoskTranscriber streams a whole recording to a vosk-server websocket and
// collects the final results.
type VoskTranscriber struct {
	serverURL  string
	sampleRate int
	dialer     *websocket.Dialer
	log        *logger.Logger
}

type VoskWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

type VoskResult struct {
	Text    string     `json:"text"`
	Result  []VoskWord `json:"result"`
	Partial string     `json:"partial"`
}

type voskConfig struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
		Words      int `json:"words"`
	} `json:"config"`
}

func NewVoskTranscriber(serverURL string, sampleRate int, log *logger.Logger) (*VoskTranscriber, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("Vosk server URL is required")
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if log == nil {
		log = logger.Nop()
	}
	return &VoskTranscriber{
		serverURL:  strings.TrimRight(serverURL, "/"),
		sampleRate: sampleRate,
		dialer:     websocket.DefaultDialer,
		log:        log,
	}, nil
}

func (vt *VoskTranscriber) Name() string {
	return "vosk"
}

func (vt *VoskTranscriber) Transcribe(ctx context.Context, req Request) (*analysis.Transcript, error) {
	conn, _, err := vt.dialer.DialContext(ctx, vt.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Vosk server: %w", err)
	}
	defer conn.Close()

	var cfg voskConfig
	cfg.Config.SampleRate = vt.sampleRate
	cfg.Config.Words = 1
	if err := conn.WriteJSON(cfg); err != nil {
		return nil, fmt.Errorf("failed to send config to Vosk: %w", err)
	}
	req.notify(StateSubmitted)

	g, gctx := errgroup.WithContext(ctx)

	// Unblocks the reader when the caller gives up.
	var closeOnce sync.Once
	go func() {
		<-gctx.Done()
		closeOnce.Do(func() { conn.Close() })
	}()

	var eofSent atomic.Bool
	g.Go(func() error {
		defer eofSent.Store(true)
		buf := make([]byte, voskChunkSize)
		first := true
		for {
			n, err := req.Audio.Read(buf)
			if n > 0 {
				if err := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); err != nil {
					return fmt.Errorf("failed to send audio to Vosk: %w", err)
				}
				if first {
					req.notify(StateProcessing)
					first = false
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
			return fmt.Errorf("failed to send EOF to Vosk: %w", err)
		}
		return nil
	})

	var utterances []analysis.Utterance
	g.Go(func() error {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if eofSent.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}
				return fmt.Errorf("Vosk connection closed early: %w", err)
			}

			var result VoskResult
			if err := json.Unmarshal(message, &result); err != nil {
				vt.log.Warn("failed to parse Vosk result", "error", err)
				continue
			}
			if u, ok := result.utterance(); ok {
				utterances = append(utterances, u)
			}
		}
	})

	if err := g.Wait(); err != nil {
		req.notify(StateFailed)
		return nil, err
	}
	req.notify(StateCompleted)

	vt.log.Info("vosk transcription finished", "filename", req.Filename, "utterances", len(utterances))
	if utterances == nil {
		utterances = []analysis.Utterance{}
	}
	return &analysis.Transcript{Filename: req.Filename, Utterances: utterances}, nil
}

// utterance converts a final result; partials and empty results are skipped.
// Vosk reports seconds, utterances carry milliseconds.
func (r VoskResult) utterance() (analysis.Utterance, bool) {
	if r.Text == "" {
		return analysis.Utterance{}, false
	}
	u := analysis.Utterance{Speaker: VoskSpeaker, Text: r.Text}
	if len(r.Result) > 0 {
		u.Start = int64(math.Round(r.Result[0].Start * 1000))
		u.End = int64(math.Round(r.Result[len(r.Result)-1].End * 1000))
	}
	return u, true
}
