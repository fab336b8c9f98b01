package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tabsplit/internal/auth"
	"github.com/mmynk/tabsplit/internal/config"
	"github.com/mmynk/tabsplit/internal/middleware"
	"github.com/mmynk/tabsplit/internal/realtime"
	"github.com/mmynk/tabsplit/internal/receipt"
	"github.com/mmynk/tabsplit/internal/service"
	"github.com/mmynk/tabsplit/internal/storage/sqlite"
	"github.com/mmynk/tabsplit/internal/telemetry"
	"github.com/mmynk/tabsplit/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.LogLevel)

	if cfg.UsesDevSecret() {
		slog.Warn("Using the development JWT secret; set TABSPLIT_JWT_SECRET in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	var recognizer receipt.Recognizer = receipt.StubRecognizer{Delay: cfg.RecognizeDelay}
	if cfg.OCREndpoint != "" {
		recognizer = receipt.NewHTTPRecognizer(cfg.OCREndpoint)
		slog.Info("Using OCR endpoint", "endpoint", cfg.OCREndpoint)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	svc := service.NewSessionService(store, realtime.NewHub(), tokens,
		service.WithRecognizer(recognizer),
		service.WithStoreRetry(cfg.StoreRetries, cfg.StoreRetryBase),
		service.WithMaxReceiptBytes(cfg.MaxReceiptBytes),
	)

	router := service.NewRouter(service.RouterConfig{
		Service: svc,
		Tokens:  tokens,
		Metrics: middleware.NewMetrics(prometheus.DefaultRegisterer),
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect streaming)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
