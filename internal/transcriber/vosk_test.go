package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanullahtanweer/teamsync/internal/config"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Bytes()
}

// fakeVosk answers every audio chunk with a partial and, after eof, emits the
// canned final results before closing.
func fakeVosk(t *testing.T, finals []VoskResult, received *lockedBuffer) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var cfg voskConfig
		if err := conn.ReadJSON(&cfg); err != nil || cfg.Config.SampleRate == 0 {
			return
		}
		for {
			kind, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				received.Write(msg)
				_ = conn.WriteJSON(VoskResult{Partial: "partial"})
				continue
			}
			if strings.Contains(string(msg), "eof") {
				break
			}
		}
		for _, f := range finals {
			_ = conn.WriteJSON(f)
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestVoskTranscribe(t *testing.T) {
	var received lockedBuffer
	url := fakeVosk(t, []VoskResult{
		{Text: "hello team", Result: []VoskWord{{Word: "hello", Start: 0.12, End: 0.5}, {Word: "team", Start: 0.5, End: 0.91}}},
		{Text: ""},
		{Text: "we need to ship", Result: []VoskWord{{Word: "we", Start: 1.5, End: 1.7}, {Word: "ship", Start: 2.2, End: 2.6}}},
	}, &received)

	vt, err := NewVoskTranscriber(url, 16000, nil)
	require.NoError(t, err)

	audio := bytes.Repeat([]byte{1, 2}, voskChunkSize) // two chunks
	var states []JobState
	transcript, err := vt.Transcribe(context.Background(), Request{
		Filename: "call.wav",
		Audio:    bytes.NewReader(audio),
		OnState:  func(s JobState) { states = append(states, s) },
	})
	require.NoError(t, err)

	assert.Equal(t, audio, received.Bytes())
	assert.Equal(t, "call.wav", transcript.Filename)
	require.Len(t, transcript.Utterances, 2)
	assert.Equal(t, VoskSpeaker, transcript.Utterances[0].Speaker)
	assert.Equal(t, int64(120), transcript.Utterances[0].Start)
	assert.Equal(t, int64(910), transcript.Utterances[0].End)
	assert.Equal(t, "we need to ship", transcript.Utterances[1].Text)
	assert.Equal(t, int64(2600), transcript.Utterances[1].End)
	assert.Equal(t, []JobState{StateSubmitted, StateProcessing, StateCompleted}, states)
}

func TestVoskDialFailure(t *testing.T) {
	vt, err := NewVoskTranscriber("ws://127.0.0.1:1", 16000, nil)
	require.NoError(t, err)

	_, err = vt.Transcribe(context.Background(), Request{Audio: strings.NewReader("x")})
	assert.Error(t, err)
}

func TestVoskResultUtterance(t *testing.T) {
	_, ok := VoskResult{Partial: "hel"}.utterance()
	assert.False(t, ok)

	u, ok := VoskResult{Text: "no words"}.utterance()
	require.True(t, ok)
	assert.Equal(t, int64(0), u.Start)

	raw := `{"result":[{"conf":1.0,"end":1.02,"start":0.3,"word":"okay"}],"text":"okay"}`
	var r VoskResult
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	u, ok = r.utterance()
	require.True(t, ok)
	assert.Equal(t, int64(300), u.Start)
	assert.Equal(t, int64(1020), u.End)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.AssemblyAI.APIKey = "k"
	tr, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "assemblyai", tr.Name())

	cfg.Transcription.Provider = config.ProviderVosk
	tr, err = New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "vosk", tr.Name())

	cfg.Transcription.Provider = "whisper"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}
