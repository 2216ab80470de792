// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coordination

import (
	"os"
	"syscall"
)

// pidAlive reports whether pid currently names a live process. It sends
// signal 0, which performs existence and permission checks without
// affecting the target process.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if err == os.ErrProcessDone {
		return false
	}
	// EPERM means the process exists but is owned by another user; treat
	// as alive since we cannot prove otherwise.
	if errno, ok := err.(syscall.Errno); ok && errno == syscall.EPERM {
		return true
	}
	return false
}
