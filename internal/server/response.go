package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/jobs"
	"github.com/amanullahtanweer/teamsync/internal/store"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// classify maps domain errors onto an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_format"
	case errors.Is(err, analysis.ErrUnknownCategory):
		return http.StatusBadRequest, "unknown_category"
	case errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest, "invalid_id"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, jobs.ErrShutdown):
		return http.StatusServiceUnavailable, "shutting_down"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= 500 {
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	RespondError(c, status, code, err)
}
