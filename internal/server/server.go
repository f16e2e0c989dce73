// Package server runs the HTTP and gRPC listeners for a booted kernel and
// shuts both down gracefully.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/config"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/internal/kernel"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/cache"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/database"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/grpc"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second
	healthInterval  = 15 * time.Second
)

// Start boots the application from config and serves until SIGINT or
// SIGTERM.
func Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := kernel.Boot(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	return Serve(ctx, rt.App, config.AppPort(), config.GRPCPort(), config.QueueWorkers())
}

// Serve runs app until ctx is cancelled. An empty grpcPort disables gRPC.
func Serve(ctx context.Context, app *kernel.App, httpPort, grpcPort string, queueWorkers int) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.Start(runCtx, queueWorkers)

	var gs *grpc.Server
	if grpcPort != "" {
		gs = grpc.New()
		if err := gs.Start(grpcPort); err != nil {
			return err
		}
		gs.SetServing("", true)
		gs.SetServing(grpc.ServicePayments, app.Payments.Configured())
		go reportHealth(runCtx, gs)
	}

	srv := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Payment calls may take up to PAYMENT_TIMEOUT.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http: listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("server: shutting down")
	case err, ok := <-errCh:
		if ok {
			cancel()
			if gs != nil {
				gs.Stop()
			}
			return err
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	if gs != nil {
		gs.Stop()
	}
	err := srv.Shutdown(shutdownCtx)
	cancel()
	app.Drain()
	logger.Info("server: stopped")
	return err
}

// reportHealth keeps the database and cache statuses of the gRPC health
// service current.
func reportHealth(ctx context.Context, gs *grpc.Server) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		gs.SetServing(grpc.ServiceDatabase, database.DB == nil || database.Ping(pctx) == nil)
		gs.SetServing(grpc.ServiceCache, cache.RDB != nil && cache.RDB.Ping(pctx).Err() == nil)
	}
	check()

	t := time.NewTicker(healthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}
