// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coordination

import "errors"

var (
	// ErrTimeout is returned when the cross-process lock could not be
	// acquired within the caller's deadline.
	ErrTimeout = errors.New("coordination: timed out waiting for inference lock")

	// ErrNotHeld reports that the inference lock is not held. No function in
	// this package currently returns it; WithInferenceLock releases the lock
	// itself.
	ErrNotHeld = errors.New("coordination: lock not held")

	// ErrInvalidTicketName is returned when a queue directory entry does not
	// match the expected <ns>-<pid>.ticket shape and cannot be parsed.
	ErrInvalidTicketName = errors.New("coordination: malformed ticket filename")
)
