// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/xg2g/internal/coordination"
	"github.com/ManuGH/xg2g/internal/model"
	"github.com/ManuGH/xg2g/internal/playback"
	"github.com/ManuGH/xg2g/internal/rpcserver"
	"github.com/ManuGH/xg2g/internal/voice"
	"github.com/ManuGH/xg2g/internal/worker"
)

func newTestLifecycle(t *testing.T) *Lifecycle {
	t.Helper()

	restore := playback.SetPlayerBinaryForTest(func() string { return "true" })
	t.Cleanup(restore)

	coordDir := t.TempDir()
	coord, err := coordination.New(coordDir, "lifecycle-test", 5*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatalf("coordination.New() error = %v", err)
	}

	voiceDir := t.TempDir()
	catalog := voice.NewCatalog(nil, voiceDir, voiceDir, "")

	w := worker.New(worker.Config{
		Coordinator:     coord,
		Loader:          model.ReferenceLoader,
		Catalog:         catalog,
		LockTimeout:     2 * time.Second,
		IdleUnloadAfter: time.Minute,
		TempDir:         t.TempDir(),
	})

	socketPath := filepath.Join(t.TempDir(), "rpc.sock")
	rpc, err := rpcserver.New(socketPath, w, nil, func() {})
	if err != nil {
		t.Fatalf("rpcserver.New() error = %v", err)
	}

	lc, err := New(Config{
		Coordinator:     coord,
		Worker:          w,
		RPCServer:       rpc,
		ShutdownTimeout: time.Second,
		DrainTimeout:    200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return lc
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty Config")
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	lc := newTestLifecycle(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Start(ctx) }()

	// Give the RPC listener a moment to come up before tearing it down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	lc := newTestLifecycle(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}

	if err := lc.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() call error = %v, want nil (idempotent)", err)
	}
}

func TestRegisterShutdownHookRunsOnShutdown(t *testing.T) {
	lc := newTestLifecycle(t)

	called := make(chan struct{}, 1)
	lc.RegisterShutdownHook("test-hook", func(context.Context) error {
		called <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown hook was never called")
	}
}

func TestSocketFileRemovedAfterShutdown(t *testing.T) {
	lc := newTestLifecycle(t)
	socketPath := lc.rpc.SocketPath()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}

	if _, err := net.Dial("unix", socketPath); err == nil {
		t.Fatal("expected socket to be removed after shutdown")
	}
}
