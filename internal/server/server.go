package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/config"
	"github.com/amanullahtanweer/teamsync/internal/jobs"
	"github.com/amanullahtanweer/teamsync/internal/logger"
	"github.com/amanullahtanweer/teamsync/internal/metrics"
	"github.com/amanullahtanweer/teamsync/internal/store"
)

type Deps struct {
	Config     *config.Config
	Store      store.Store
	Jobs       *jobs.Manager
	Engine     *analysis.Engine
	Hub        *Hub
	Collectors *metrics.Collectors
	Log        *logger.Logger
}

type Server struct {
	config     *config.Config
	store      store.Store
	jobs       *jobs.Manager
	engine     *analysis.Engine
	hub        *Hub
	collectors *metrics.Collectors
	log        *logger.Logger

	router *gin.Engine
	http   *http.Server
}

func New(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Store == nil || deps.Jobs == nil {
		return nil, fmt.Errorf("config, store and job manager are required")
	}
	s := &Server{
		config:     deps.Config,
		store:      deps.Store,
		jobs:       deps.Jobs,
		engine:     deps.Engine,
		hub:        deps.Hub,
		collectors: deps.Collectors,
		log:        deps.Log,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.With("component", "http")
	if s.engine == nil {
		s.engine = analysis.NewEngine(s.log)
	}
	if s.hub == nil {
		s.hub = NewHub(s.log)
	}
	if s.collectors == nil {
		s.collectors = metrics.NewCollectors()
	}

	if deps.Config.Server.Mode != "" {
		gin.SetMode(deps.Config.Server.Mode)
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              deps.Config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(listener)
}

func (s *Server) Serve(listener net.Listener) error {
	s.log.Info("HTTP server listening", "addr", listener.Addr().String())
	if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and disconnects websocket clients.
func (s *Server) Stop(ctx context.Context) error {
	var result *multierror.Error
	if err := s.http.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.hub.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("websocket hub: %w", err))
	}
	return result.ErrorOrNil()
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS())
	r.Use(RequestLogger(s.log))
	r.Use(Metrics(s.collectors))

	r.GET("/healthcheck", s.healthcheck)
	r.GET("/metrics", gin.WrapH(s.collectors.Handler()))
	r.GET("/ws", s.hub.ServeWS)

	api := r.Group("/api")
	{
		api.POST("/upload", s.upload)
		api.GET("/jobs/:id", s.getJob)

		api.GET("/transcripts", s.listTranscripts)
		api.POST("/transcripts", s.createTranscript)
		api.GET("/transcripts/:id", s.getTranscript)
		api.PATCH("/transcripts/:id", s.renameTranscript)
		api.DELETE("/transcripts/:id", s.deleteTranscript)
		api.GET("/transcripts/:id/analysis", s.analyzeStored)

		api.POST("/analyze", s.analyze)
	}

	r.NoRoute(func(c *gin.Context) {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("no route for %s %s", c.Request.Method, c.Request.URL.Path))
	})
	return r
}
