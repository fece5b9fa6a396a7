package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amanullahtanweer/teamsync/internal/analysis"
	"github.com/amanullahtanweer/teamsync/internal/config"
	"github.com/amanullahtanweer/teamsync/internal/jobs"
	"github.com/amanullahtanweer/teamsync/internal/logger"
	"github.com/amanullahtanweer/teamsync/internal/metrics"
	"github.com/amanullahtanweer/teamsync/internal/server"
	"github.com/amanullahtanweer/teamsync/internal/store"
	"github.com/amanullahtanweer/teamsync/internal/transcriber"
)

const shutdownTimeout = 30 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logMode != "" {
		cfg.Log.Mode = logMode
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	st, err := store.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open transcript store: %w", err)
	}

	tr, err := transcriber.New(cfg, log)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	collectors := metrics.NewCollectors()
	hub := server.NewHub(log)
	manager, err := jobs.NewManager(tr, st, hub, collectors, log, jobs.Options{
		UploadDir:   cfg.Transcription.UploadDir,
		EventLogDir: cfg.Jobs.EventLogDir,
		// Leave headroom over the provider poll timeout for upload and submit.
		JobTimeout: cfg.Transcription.PollTimeout + time.Minute,
	})
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to create job manager: %w", err)
	}

	srv, err := server.New(server.Deps{
		Config:     cfg,
		Store:      st,
		Jobs:       manager,
		Engine:     analysis.NewEngine(log),
		Hub:        hub,
		Collectors: collectors,
		Log:        log,
	})
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("starting teamsync",
		"addr", cfg.Addr(),
		"provider", tr.Name(),
		"storage", cfg.Storage.Backend,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var result *multierror.Error
		if err := srv.Stop(shutdownCtx); err != nil {
			result = multierror.Append(result, err)
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, err)
		}
		if err := st.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close store: %w", err))
		}
		return result.ErrorOrNil()
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
