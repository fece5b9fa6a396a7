package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/config"
	"github.com/amanullahtanweer/teamsync/internal/jobs"
	"github.com/amanullahtanweer/teamsync/internal/store"
	"github.com/amanullahtanweer/teamsync/internal/transcriber"
)

const meetingJSON = `{
  "id": "meeting-1",
  "filename": "standup.wav",
  "uploadTime": "2026-03-01T09:00:00Z",
  "utterances": [
    {"speaker": "A", "text": "This is great", "start": 0, "end": 1000},
    {"speaker": "B", "text": "uh that seems bad", "start": 1000, "end": 3000}
  ]
}`

type stubTranscriber struct {
	release chan struct{}
}

func (s *stubTranscriber) Name() string { return "stub" }

func (s *stubTranscriber) Transcribe(ctx context.Context, req transcriber.Request) (*analysis.Transcript, error) {
	_, _ = io.Copy(io.Discard, req.Audio)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	req.OnState(transcriber.StateProcessing)
	return &analysis.Transcript{Utterances: []analysis.Utterance{
		{Speaker: "A", Text: "We need to ship", Start: 0, End: 2000},
	}}, nil
}

type testServer struct {
	*Server
	store store.Store
}

func newTestServer(t *testing.T, tr transcriber.Transcriber) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode

	st, err := store.NewFileStore(filepath.Join(root, "transcripts"), nil)
	require.NoError(t, err)

	hub := NewHub(nil)
	manager, err := jobs.NewManager(tr, st, hub, nil, nil, jobs.Options{
		UploadDir:   filepath.Join(root, "uploads"),
		EventLogDir: filepath.Join(root, "logs"),
	})
	require.NoError(t, err)

	srv, err := New(Deps{Config: cfg, Store: st, Jobs: manager, Hub: hub})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = manager.Shutdown(context.Background())
		_ = hub.Close()
	})
	return &testServer{Server: srv, store: st}
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) seed(t *testing.T) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/transcripts", strings.NewReader(meetingJSON), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error
}

func TestHealthcheck(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})
	rec := ts.do(t, http.MethodGet, "/healthcheck", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTranscriptLifecycle(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})
	ts.seed(t)

	rec := ts.do(t, http.MethodGet, "/api/transcripts/meeting-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got analysis.Transcript
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "This is great", got.Utterances[0].Text, "stored text is not normalized")

	rec = ts.do(t, http.MethodPatch, "/api/transcripts/meeting-1", strings.NewReader(`{"displayName":"  Weekly sync "}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Weekly sync", got.DisplayName)

	rec = ts.do(t, http.MethodGet, "/api/transcripts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []transcriptSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Weekly sync", list[0].DisplayName)
	assert.Equal(t, 2, list[0].Utterances)

	rec = ts.do(t, http.MethodDelete, "/api/transcripts/meeting-1", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/transcripts/meeting-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestListNewestFirst(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})
	for _, body := range []string{
		`{"id":"old","uploadTime":"2026-01-01T00:00:00Z","utterances":[]}`,
		`{"id":"new","uploadTime":"2026-02-01T00:00:00Z","utterances":[]}`,
	} {
		rec := ts.do(t, http.MethodPost, "/api/transcripts", strings.NewReader(body), "application/json")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/transcripts", nil, "")
	var list []transcriptSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestCreateTranscriptAssignsID(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})
	rec := ts.do(t, http.MethodPost, "/api/transcripts", strings.NewReader(`{"utterances":[]}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	var got analysis.Transcript
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.UploadTime.IsZero())
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})
	ts.seed(t)

	testCases := []struct {
		method      string
		path        string
		body        string
		status      int
		code        string
		description string
	}{
		{http.MethodPost, "/api/transcripts", `{"id":"x"}`, 400, "invalid_format", "Missing utterances"},
		{http.MethodPost, "/api/transcripts", `not json`, 400, "invalid_format", "Malformed JSON"},
		{http.MethodPost, "/api/transcripts", `{"id":"a/b","utterances":[]}`, 400, "invalid_id", "Bad id"},
		{http.MethodPost, "/api/analyze", `{"utterances":"hello"}`, 400, "invalid_format", "Analyze bad utterances"},
		{http.MethodPost, "/api/analyze?categories=mood", meetingJSON, 400, "unknown_category", "Unknown category"},
		{http.MethodGet, "/api/transcripts/meeting-1/analysis?categories=sentiment,vibes", "", 400, "unknown_category", "Unknown stored category"},
		{http.MethodGet, "/api/transcripts/missing/analysis", "", 404, "not_found", "Analyze missing transcript"},
		{http.MethodPatch, "/api/transcripts/meeting-1", `{"displayName":"   "}`, 400, "invalid_body", "Blank name"},
		{http.MethodPatch, "/api/transcripts/missing", `{"displayName":"x"}`, 404, "not_found", "Rename missing"},
		{http.MethodDelete, "/api/transcripts/missing", "", 404, "not_found", "Delete missing"},
		{http.MethodGet, "/api/jobs/missing", "", 404, "not_found", "Unknown job"},
		{http.MethodGet, "/api/nothing", "", 404, "not_found", "No route"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			rec := ts.do(t, tc.method, tc.path, body, "application/json")
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decodeError(t, rec).Code)
		})
	}
}

func TestAnalyzeStored(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})
	ts.seed(t)

	rec := ts.do(t, http.MethodGet, "/api/transcripts/meeting-1/analysis", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	for _, key := range []string{"speakerDistribution", "sentimentTrend", "conversationDynamics", "keyTopics", "meetingPerformance", "clarityMetrics"} {
		assert.Contains(t, result, key)
	}
	assert.JSONEq(t, `{"A":"42.86%","B":"57.14%"}`, string(result["speakerDistribution"]))
	assert.JSONEq(t, `{"hours":0,"minutes":0,"seconds":3}`, gjsonField(t, result["meetingPerformance"], "duration"))

	// The stored copy keeps its original casing.
	stored, err := ts.store.Get(context.Background(), "meeting-1")
	require.NoError(t, err)
	assert.Equal(t, "This is great", stored.Utterances[0].Text)
}

func gjsonField(t *testing.T, raw json.RawMessage, field string) string {
	t.Helper()
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &obj))
	return string(obj[field])
}

func TestAnalyzeWithCategories(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})

	rec := ts.do(t, http.MethodPost, "/api/analyze?categories=sentiment", strings.NewReader(meetingJSON), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result, "overallSentiment")
	assert.Contains(t, result, "keyTopics")
	assert.NotContains(t, result, "speakerMetrics")
	assert.NotContains(t, result, "clarityMetrics")
}

func TestAnalyzeMalformedTimestamps(t *testing.T) {
	const body = `{"id":"odd-1","utterances":[
		{"speaker":"A","text":"This is great","start":"abc","end":1000},
		{"speaker":"B","text":"We need to ship","start":1000,"end":2500.5}
	]}`

	testCases := []struct {
		method      string
		path        string
		body        string
		description string
	}{
		{http.MethodPost, "/api/analyze", body, "Inline transcript"},
		{http.MethodGet, "/api/transcripts/odd-1/analysis", "", "Stored transcript"},
	}

	ts := newTestServer(t, &stubTranscriber{})
	rec := ts.do(t, http.MethodPost, "/api/transcripts", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var reqBody io.Reader
			if tc.body != "" {
				reqBody = strings.NewReader(tc.body)
			}
			rec := ts.do(t, tc.method, tc.path, reqBody, "application/json")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var result map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
			assert.NotContains(t, result, "meetingPerformance")
			for _, key := range []string{"speakerDistribution", "sentimentTrend", "conversationDynamics", "keyTopics", "clarityMetrics"} {
				assert.Contains(t, result, key)
			}
		})
	}
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file here"))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadWithoutFile(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})
	body, ct := multipartBody(t, "", "", "")

	rec := ts.do(t, http.MethodPost, "/api/upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_file", decodeError(t, rec).Code)
}

func TestUploadStreamsProgress(t *testing.T) {
	tr := &stubTranscriber{release: make(chan struct{})}
	ts := newTestServer(t, tr)

	httpSrv := httptest.NewServer(ts.Handler())
	t.Cleanup(httpSrv.Close)

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	body, ct := multipartBody(t, "file", "standup.wav", "RIFF-audio")
	resp, err := http.Post(httpSrv.URL+"/api/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var accepted uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	assert.Equal(t, "submitted", accepted.Status)
	assert.NotEmpty(t, accepted.ID)

	close(tr.release)

	var statuses []string
	var last jobs.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for !last.State.Terminal() {
		require.NoError(t, conn.ReadJSON(&last))
		assert.Equal(t, accepted.ID, last.JobID)
		statuses = append(statuses, last.Status)
	}
	assert.Equal(t, []string{jobs.StatusStarted, jobs.StatusHalfway, jobs.StatusComplete}, statuses)
	assert.True(t, last.TranscriptReady)

	require.NoError(t, ts.jobs.Shutdown(context.Background()))
	rec := ts.do(t, http.MethodGet, "/api/jobs/"+accepted.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, transcriber.StateCompleted, job.State)

	rec = ts.do(t, http.MethodGet, "/api/transcripts/"+job.TranscriptID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "We need to ship")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})
	ts.do(t, http.MethodPost, "/api/analyze", strings.NewReader(meetingJSON), "application/json")

	rec := ts.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `teamsync_analyses_total{outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `teamsync_http_requests_total{method="POST",route="/api/analyze",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})

	req := httptest.NewRequest(http.MethodOptions, "/api/transcripts", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStop(t *testing.T) {
	ts := newTestServer(t, &stubTranscriber{})
	errCh := make(chan error, 1)

	listener, err := newLocalListener()
	require.NoError(t, err)
	go func() { errCh <- ts.Serve(listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthcheck")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ts.Stop(ctx))
	assert.NoError(t, <-errCh)
}

func newLocalListener() (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}
