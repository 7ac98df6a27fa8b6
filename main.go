package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"revview/internal/api"
	"revview/internal/config"
	"revview/internal/logging"
	"revview/internal/middleware"
	"revview/internal/session"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	s, closeSession, err := session.Open(cfg, logger.Logger)
	if err != nil {
		logger.Fatal("failed to open session", zap.Error(err))
	}
	defer closeSession()

	handler := middleware.Chain(
		api.NewReviewHandler(s, logger.Named("api")).Routes(),
		middleware.Recover(logger),
		middleware.Logger(logger),
		middleware.RequestID,
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server",
			zap.String("address", srv.Addr),
			zap.String("review", cfg.Review.URL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
