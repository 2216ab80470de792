// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingCoordinator is returned when a Lifecycle is built without a
	// coordination.Coordinator.
	ErrMissingCoordinator = errors.New("coordinator is required")

	// ErrMissingWorker is returned when a Lifecycle is built without a worker.
	ErrMissingWorker = errors.New("worker is required")

	// ErrMissingRPCServer is returned when a Lifecycle is built without an
	// rpcserver.Server.
	ErrMissingRPCServer = errors.New("rpc server is required")

	// ErrAlreadyStarted is returned by Start when the Lifecycle has already
	// been started once.
	ErrAlreadyStarted = errors.New("lifecycle already started")

	// ErrNotStarted is returned by Shutdown when the Lifecycle was never
	// started.
	ErrNotStarted = errors.New("lifecycle not started")
)
