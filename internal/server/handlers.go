package server

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
)

func (s *Server) healthcheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

type uploadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", errors.New("no file uploaded"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	job, err := s.jobs.Submit(fh.Filename, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, uploadResponse{ID: job.ID, Status: string(job.State)})
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.jobs.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

type transcriptSummary struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	DisplayName string    `json:"displayName,omitempty"`
	UploadTime  time.Time `json:"uploadTime,omitzero"`
	Utterances  int       `json:"utterances"`
}

// listTranscripts returns metadata only, newest upload first.
func (s *Server) listTranscripts(c *gin.Context) {
	transcripts, err := s.store.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]transcriptSummary, 0, len(transcripts))
	for _, t := range slices.Backward(transcripts) {
		out = append(out, transcriptSummary{
			ID:          t.ID,
			Filename:    t.Filename,
			DisplayName: t.DisplayName,
			UploadTime:  t.UploadTime,
			Utterances:  len(t.Utterances),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createTranscript(c *gin.Context) {
	t, err := analysis.DecodeTranscript(c.Request.Body)
	if err != nil {
		s.fail(c, err)
		return
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.UploadTime.IsZero() {
		t.UploadTime = time.Now().UTC()
	}

	if err := s.store.Save(c.Request.Context(), t); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *Server) getTranscript(c *gin.Context) {
	t, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type renameRequest struct {
	DisplayName string `json:"displayName"`
}

func (s *Server) renameTranscript(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("displayName is required"))
		return
	}

	t, err := s.store.Rename(c.Request.Context(), c.Param("id"), name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) deleteTranscript(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) analyzeStored(c *gin.Context) {
	categories, err := analysis.ParseCategories(c.Query("categories"))
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondAnalysis(c, t, categories)
}

// analyze runs the engine on a transcript in the request body without
// storing it.
func (s *Server) analyze(c *gin.Context) {
	categories, err := analysis.ParseCategories(c.Query("categories"))
	if err != nil {
		s.fail(c, err)
		return
	}
	t, err := analysis.DecodeTranscript(c.Request.Body)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondAnalysis(c, t, categories)
}

func (s *Server) respondAnalysis(c *gin.Context, t *analysis.Transcript, categories []analysis.Category) {
	start := time.Now()
	result, err := s.engine.Analyze(t, categories...)
	s.collectors.ObserveAnalysis(err, time.Since(start))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
