// Command i2dd runs the Infograph2Data HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/klippa-app/go-pdfium/webassembly"

	"github.com/hericlibong/Infograph2Data/internal/common"
	"github.com/hericlibong/Infograph2Data/internal/export"
	"github.com/hericlibong/Infograph2Data/internal/extract"
	"github.com/hericlibong/Infograph2Data/internal/pdfpage"
	"github.com/hericlibong/Infograph2Data/internal/repository"
	"github.com/hericlibong/Infograph2Data/internal/review"
	"github.com/hericlibong/Infograph2Data/internal/server"
	"github.com/hericlibong/Infograph2Data/internal/vision"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		logger.Error("failed to open document store", "error", err, "path", cfg.Storage.DatabasePath)
		os.Exit(1)
	}
	defer db.Close()

	files, err := repository.NewFileStore(cfg.Storage.Dir, logger)
	if err != nil {
		logger.Error("failed to open file store", "error", err, "dir", cfg.Storage.Dir)
		os.Exit(1)
	}

	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  2,
		MaxTotal: 4,
	})
	if err != nil {
		logger.Error("failed to start pdfium runtime", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	jobs := repository.NewJobRepository(db, logger)
	datasets := repository.NewDatasetRepository(db, logger)
	idents := repository.NewIdentificationRepository(db, logger)

	provider := pdfpage.NewProvider(pool, logger)

	model := vision.NewClient(vision.ClientConfig{
		APIKey:    cfg.Vision.APIKey,
		BaseURL:   cfg.Vision.BaseURL,
		Model:     cfg.Vision.Model,
		Timeout:   cfg.Vision.Timeout,
		MaxTokens: cfg.Vision.MaxTokens,
	}, logger)
	if !model.Configured() {
		logger.Warn("vision model not configured, identify/run endpoints will report unavailable")
	}

	extractSvc := extract.NewService(jobs, datasets, provider, logger)
	reviewSvc := review.NewService(datasets, logger)
	visionSvc := vision.NewService(idents, datasets, files, provider, model, vision.Config{
		IdentifyTTL: cfg.Vision.IdentifyTTL,
		RenderScale: cfg.Vision.RenderScale,
		MaxTokens:   cfg.Vision.MaxTokens,
	}, logger)
	exportSvc := export.NewService(datasets, files, logger)

	srv := server.New(cfg.Server, files, jobs, datasets, provider,
		extractSvc, reviewSvc, visionSvc, exportSvc, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("i2dd listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
