package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/logger"
)

const transcriptJSON = `{"id":"m1","utterances":[
  {"speaker":"A","text":"This is great","start":0,"end":1000},
  {"speaker":"B","text":"uh that seems bad","start":1000,"end":3000}
]}`

func TestAnalyzeTo(t *testing.T) {
	testCases := []struct {
		categories  string
		present     []string
		absent      []string
		description string
	}{
		{"", []string{"speakerMetrics", "overallSentiment", "clarityMetrics", "meetingPerformance"}, nil, "All categories"},
		{"clarity", []string{"clarityMetrics", "keyTopics"}, []string{"speakerMetrics", "overallSentiment"}, "Clarity only"},
		{"speakerMetrics, sentiment", []string{"speakerMetrics", "overallSentiment"}, []string{"clarityMetrics"}, "Two categories"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, analyzeTo(&out, strings.NewReader(transcriptJSON), tc.categories, true, logger.Nop()))

			var result map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(out.Bytes(), &result))
			for _, key := range tc.present {
				assert.Contains(t, result, key)
			}
			for _, key := range tc.absent {
				assert.NotContains(t, result, key)
			}
		})
	}
}

func TestAnalyzeToErrors(t *testing.T) {
	var out bytes.Buffer
	err := analyzeTo(&out, strings.NewReader(transcriptJSON), "mood", false, logger.Nop())
	assert.ErrorIs(t, err, analysis.ErrUnknownCategory)

	err = analyzeTo(&out, strings.NewReader(`{"id":"x"}`), "", false, logger.Nop())
	assert.ErrorIs(t, err, analysis.ErrInvalidFormat)
	assert.Empty(t, out.String())
}

func TestAnalyzeCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meeting.json")
	require.NoError(t, os.WriteFile(path, []byte(transcriptJSON), 0644))

	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetArgs([]string{"analyze", path, "--categories", "sentiment", "--log-mode", "prod"})
	t.Cleanup(func() { Root.SetArgs(nil); Root.SetOut(nil) })

	require.NoError(t, Root.Execute())
	assert.Contains(t, out.String(), `"overallSentiment"`)
	assert.Contains(t, out.String(), "\n  \"keyTopics\"", "indented by default")
}
