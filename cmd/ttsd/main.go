// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command ttsd runs the local TTS coordination daemon: a background
// process that serializes access to a shared text-to-speech model across
// every MCP client process on the machine, and plays generated audio back
// in submission order.
package main

import (
	"context"
	"os"

	"github.com/ManuGH/xg2g/internal/config"
	"github.com/ManuGH/xg2g/internal/coordination"
	"github.com/ManuGH/xg2g/internal/daemon"
	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/model"
	"github.com/ManuGH/xg2g/internal/resource"
	"github.com/ManuGH/xg2g/internal/rpcserver"
	"github.com/ManuGH/xg2g/internal/voice"
	"github.com/ManuGH/xg2g/internal/worker"
	"github.com/rs/zerolog"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

// run wires every long-lived component together and blocks until shutdown.
// Its return value is the process exit code: 0 for an orderly shutdown, 1
// for a startup failure the daemon cannot recover from (bind conflict,
// lock directory unusable, and similar).
func run() int {
	cfg := config.Load()

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Output:  os.Stdout,
		Service: "ttsd",
		Version: version,
	})
	logger := log.WithComponent("main")

	coord, err := coordination.New(cfg.CoordDir, "ttsd", cfg.QueuePollInterval, cfg.StaleTicketAge)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize coordination directory")
		return 1
	}
	defer func() {
		if err := coord.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to deregister instance on exit")
		}
	}()

	mon := resource.New(cfg.MemThresholdPercent, cfg.ResourceCheckInterval)

	catalog := voice.NewCatalog(nil, cfg.VoiceDir, os.TempDir(), cfg.DefaultVoicePath)

	exportLoaderEnv(cfg, logger)

	w := worker.New(worker.Config{
		Coordinator:     coord,
		Resource:        mon,
		Loader:          modelLoader(),
		Catalog:         catalog,
		LockTimeout:     cfg.LockTimeout,
		IdleUnloadAfter: cfg.IdleUnloadAfter,
		TempDir:         os.TempDir(),
	})

	var lifecycle *daemon.Lifecycle

	rpc, err := rpcserver.New(cfg.SocketPath, w, mon, func() {
		if lifecycle != nil {
			_ = lifecycle.Shutdown(context.Background())
		}
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to bind rpc socket")
		return 1
	}

	lifecycle, err = daemon.New(daemon.Config{
		Coordinator: coord,
		Worker:      w,
		RPCServer:   rpc,
		Resource:    mon,
		MetricsAddr: cfg.MetricsAddr,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to construct daemon lifecycle")
		return 1
	}

	logger.Info().
		Str("version", version).
		Str("socket", cfg.SocketPath).
		Str("coord_dir", cfg.CoordDir).
		Msg("ttsd starting")

	if err := lifecycle.Start(daemon.WaitForShutdown()); err != nil {
		logger.Error().Err(err).Msg("ttsd exited with error")
		return 1
	}

	logger.Info().Msg("ttsd exited cleanly")
	return 0
}

// modelLoader selects the model.Loader implementation. The reference
// loader is a deterministic, silent-audio stand-in; a real deployment
// swaps this for a loader that shells out to the actual TTS engine, reading
// the cache environment exportLoaderEnv set up for it.
func modelLoader() model.Loader {
	return model.ReferenceLoader
}

// exportLoaderEnv sets the external model loader's cache directories in
// this process's own environment before the loader is invoked. The core
// never reads these variables itself; it merely redirects where the
// loader downloads and caches its weights.
func exportLoaderEnv(cfg config.Config, logger zerolog.Logger) {
	for name, value := range map[string]string{
		"HF_HUB_CACHE":     cfg.HFHubCache,
		"HF_HOME":          cfg.HFHome,
		"LHOTSE_TOOLS_DIR": cfg.LhotseToolsDir,
	} {
		if value == "" {
			continue
		}
		if err := os.Setenv(name, value); err != nil {
			logger.Warn().Err(err).Str("var", name).Msg("failed to export loader environment variable")
		}
	}
}
