// Package main запускает HTTP-сервер сервиса звёздного неба.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/starsky/internal/config"
	"github.com/mmeshcher/starsky/internal/handler"
	"github.com/mmeshcher/starsky/internal/middleware"
	"github.com/mmeshcher/starsky/internal/notify"
	"github.com/mmeshcher/starsky/internal/payment"
	"github.com/mmeshcher/starsky/internal/repository"
	"github.com/mmeshcher/starsky/internal/service"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub(logger)

	var publisher service.Publisher = hub
	var broker *notify.RedisBroker
	if cfg.RedisURL != "" {
		client, err := notify.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		broker = notify.NewRedisBroker(client, notify.DefaultChannel, hub, logger)
		defer broker.Close()
		publisher = broker
	}

	var payments service.PaymentProvider
	if cfg.PaymentSystemAddress != "" {
		payments = payment.NewClient(cfg.PaymentSystemAddress)
	} else {
		sugar.Warn("payment provider address is not set, purchases will not be fulfilled")
	}

	svc := service.NewService(repo, payments, publisher, logger,
		service.WithCreateTimeout(cfg.CreateTimeout))
	defer svc.Close()

	if cfg.AuthSecret == "" {
		sugar.Warn("auth secret is not set, using a random key: sessions will not survive restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, hub, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run()
		return nil
	})

	if broker != nil {
		g.Go(func() error {
			return broker.Run(ctx)
		})
	}

	g.Go(func() error {
		svc.StartFulfillment(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting starsky server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Потоки событий держат соединения открытыми, поэтому Hub закрывается до Shutdown.
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.ZapLevel())
	return zcfg.Build()
}
