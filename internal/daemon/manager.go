// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/xg2g/internal/coordination"
	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/resource"
	"github.com/ManuGH/xg2g/internal/rpcserver"
	"github.com/ManuGH/xg2g/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ShutdownHook is a function that performs cleanup during graceful
// shutdown. Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// namedHook pairs a hook with a name for shutdown logging.
type namedHook struct {
	name string
	hook ShutdownHook
}

// Config collects a Lifecycle's construction-time dependencies. Resource
// is optional; a nil Monitor simply skips admission gating and resource
// monitoring, which Worker already tolerates.
type Config struct {
	Coordinator *coordination.Coordinator
	Worker      *worker.Worker
	RPCServer   *rpcserver.Server
	Resource    *resource.Monitor

	// ShutdownTimeout bounds how long Shutdown waits for the RPC server's
	// in-flight connections to finish.
	ShutdownTimeout time.Duration

	// DrainTimeout bounds how long Shutdown waits for the worker's queue
	// to empty before cancelling the run loop outright.
	DrainTimeout time.Duration

	// MetricsAddr, if non-empty, is the listen address for a Prometheus
	// exposition endpoint. Empty disables it.
	MetricsAddr string
}

// Lifecycle owns the coordination daemon's top-level run/shutdown
// sequence: it starts the resource monitor, the worker's run loop, and the
// RPC server, and on shutdown stops accepting new work, drains the queue,
// tears down the RPC socket, and deregisters from the coordination
// registry.
type Lifecycle struct {
	coord    *coordination.Coordinator
	worker   *worker.Worker
	rpc      *rpcserver.Server
	resource *resource.Monitor

	shutdownTimeout time.Duration
	drainTimeout    time.Duration
	metricsAddr     string
	metricsServer   *http.Server

	mu            sync.Mutex
	started       bool
	shutdownHooks []namedHook
	workerCancel  context.CancelFunc

	shutdownOnce sync.Once
	shutdownErr  error

	logger zerolog.Logger
}

// New validates cfg and returns a Lifecycle ready for Start.
func New(cfg Config) (*Lifecycle, error) {
	if cfg.Coordinator == nil {
		return nil, ErrMissingCoordinator
	}
	if cfg.Worker == nil {
		return nil, ErrMissingWorker
	}
	if cfg.RPCServer == nil {
		return nil, ErrMissingRPCServer
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = 5 * time.Second
	}

	return &Lifecycle{
		coord:           cfg.Coordinator,
		worker:          cfg.Worker,
		rpc:             cfg.RPCServer,
		resource:        cfg.Resource,
		shutdownTimeout: shutdownTimeout,
		drainTimeout:    drainTimeout,
		metricsAddr:     cfg.MetricsAddr,
		logger:          log.WithComponent("daemon"),
	}, nil
}

// RegisterShutdownHook registers a cleanup function to run during
// Shutdown, after the RPC server has closed and the worker's run loop has
// been cancelled (Shutdown does not wait for Run to return), but before the
// function returns. Hooks run in reverse registration order.
func (l *Lifecycle) RegisterShutdownHook(name string, hook ShutdownHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shutdownHooks = append(l.shutdownHooks, namedHook{name: name, hook: hook})
}

// Start brings up the resource monitor (if configured), the worker's run
// loop, and the RPC server, then blocks until ctx is cancelled, the RPC
// server fails, or the RPC server stops after a /shutdown request. Each of
// these runs Shutdown before Start returns.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.mu.Unlock()

	if l.resource != nil {
		l.resource.Start(ctx)
	}

	if l.metricsAddr != "" {
		l.startMetricsServer()
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	l.workerCancel = cancel

	g, gctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		l.worker.Run(workerCtx)
		return nil
	})
	rpcDone := make(chan struct{})
	g.Go(func() error {
		defer close(rpcDone)
		if err := l.rpc.Serve(); err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	})

	l.logger.Info().Msg("coordination daemon started")

	select {
	case <-ctx.Done():
		l.logger.Info().Msg("shutdown signal received")
		shutdownErr := l.Shutdown(context.Background())
		if err := g.Wait(); err != nil {
			l.logger.Warn().Err(err).Msg("subsystem reported an error during shutdown")
		}
		return shutdownErr
	case <-gctx.Done():
	case <-rpcDone:
		// Serve returns without error only once the server was closed,
		// i.e. a /shutdown request already started Shutdown.
	}
	shutdownErr := l.Shutdown(context.Background())
	err := g.Wait()
	if err != nil {
		l.logger.Error().Err(err).Msg("a daemon subsystem failed, shut down")
		if shutdownErr != nil {
			return fmt.Errorf("%w (shutdown: %v)", err, shutdownErr)
		}
		return err
	}
	return shutdownErr
}

// Shutdown runs the orderly shutdown sequence exactly once, even if called
// concurrently from both a signal and the /shutdown RPC callback: stop
// accepting new RPCs, drain the in-flight queue with a short deadline,
// cancel the worker (releasing the system lock and unloading the model),
// deregister from the coordination registry, then run shutdown hooks
// in LIFO order.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return ErrNotStarted
	}
	l.mu.Unlock()

	l.shutdownOnce.Do(func() {
		l.shutdownErr = l.shutdown(ctx)
	})
	return l.shutdownErr
}

func (l *Lifecycle) shutdown(ctx context.Context) error {
	l.logger.Info().Msg("shutting down coordination daemon")

	shutdownCtx, cancel := context.WithTimeout(ctx, l.shutdownTimeout)
	defer cancel()

	var errs []error

	if err := l.rpc.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("rpc server close: %w", err))
	}

	if l.metricsServer != nil {
		if err := l.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	l.drainQueue()
	if l.workerCancel != nil {
		l.workerCancel()
	}

	if l.resource != nil {
		l.resource.Stop()
	}

	if err := l.coord.Close(); err != nil {
		errs = append(errs, fmt.Errorf("deregister instance: %w", err))
	}

	l.runShutdownHooks(shutdownCtx, &errs)

	if len(errs) > 0 {
		l.logger.Error().Int("error_count", len(errs)).Msg("shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	l.logger.Info().Msg("coordination daemon stopped")
	return nil
}

// startMetricsServer brings up a Prometheus exposition endpoint in the
// background. A bind failure is logged but never aborts Start: metrics are
// an observability aid, not a correctness dependency.
func (l *Lifecycle) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	l.metricsServer = &http.Server{
		Addr:              l.metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.logger.Info().Str("addr", l.metricsAddr).Msg("metrics endpoint listening")
		if err := l.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Warn().Err(err).Msg("metrics server failed")
		}
	}()
}

// drainQueue waits for the worker's queue to empty, up to drainTimeout,
// before the caller cancels the run loop. A still-nonempty queue at the
// deadline simply has its remaining requests dropped by cancellation;
// nothing panics or blocks indefinitely.
func (l *Lifecycle) drainQueue() {
	deadline := time.Now().Add(l.drainTimeout)
	for l.worker.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if pending := l.worker.Pending(); pending > 0 {
		l.logger.Warn().Int("pending", pending).Msg("drain deadline reached with requests still queued")
	}
}

func (l *Lifecycle) runShutdownHooks(ctx context.Context, errs *[]error) {
	l.mu.Lock()
	hooks := l.shutdownHooks
	l.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			l.logger.Error().Err(err).Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook failed")
			*errs = append(*errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		l.logger.Debug().Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook completed")
	}
}
