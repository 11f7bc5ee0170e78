package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensebook/internal/alerts"
	"expensebook/internal/amqp"
	"expensebook/internal/backend/factory"
	"expensebook/internal/cli"
	"expensebook/internal/core"
	apphttp "expensebook/internal/http"
	"expensebook/internal/log"
	"expensebook/internal/session"
	"expensebook/internal/subscriptions"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	result, err := factory.New(logger.Logger, factory.Config{
		Type:       factory.Type(cfg.DataBackend),
		APIBaseURL: cfg.APIBaseURL,
		SQLitePath: cfg.SQLiteDBPath,
		JWTSecret:  cfg.JWTSecret,
	})
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	// Budget alerts need a broker; without one the monitor only logs.
	var publisher alerts.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, budget alerts disabled", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	sessions := session.NewManager(cfg.MaxSessions, cfg.SessionTTL, cfg.SecureCookie)
	subs := subscriptions.NewManager(result.Backend, logger.WithComponent(log.ComponentSubscriptions).Logger)
	monitor := alerts.NewMonitor(result.Backend, publisher, logger.WithComponent(log.ComponentAlerts).Logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:          ":" + cfg.Port,
		Backend:       result.Backend,
		Sessions:      sessions,
		Subscriptions: subs,
		Monitor:       monitor,
		Logger:        logger.WithComponent(log.ComponentHTTP).Logger,
	})
	subs.OnCharged = func(ctx context.Context, user core.User) {
		srv.InvalidateHistory(user.ID)
		if err := monitor.Check(ctx, user); err != nil {
			logger.Warn("Budget check after subscription charge failed",
				log.FieldError, err, log.FieldUserID, user.ID)
		}
	}

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SubscriptionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				if _, err := subs.ProcessDue(gctx, now); err != nil {
					logger.Error("Subscription processing failed", log.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
