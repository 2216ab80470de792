// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package coordination implements cross-process fair mutual exclusion over
// the shared TTS model and audio device, using only the local filesystem
// for rendezvous: a FIFO ticket queue plus an OS advisory file lock whose
// hold is tied to the holding process's file descriptor table and therefore
// auto-releases on crash.
package coordination

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/metrics"
	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
)

const (
	queueSubdir    = "queue"
	registrySubdir = "registry"
	lockFilename   = "inference.lock"
)

// Coordinator owns one daemon instance's view of the shared coordination
// directory: its registry entry, the queue it enqueues tickets into, and
// the lock file it contends for.
type Coordinator struct {
	dir            string
	queueDir       string
	registryDir    string
	lockPath       string
	pollInterval   time.Duration
	staleTicketAge time.Duration
	instance       *RegistryEntry

	// watcher wakes WithInferenceLock's poll loop early on a queue
	// directory change. It is a latency optimisation only: the ticker
	// below remains the correctness-bearing poll, so a nil watcher
	// (creation failed, e.g. inotify instances exhausted) degrades to
	// poll-only behaviour silently.
	watcher *fsnotify.Watcher
}

// New creates the coordination directory layout under dir (if absent),
// registers this process in the instance registry, and returns a ready
// Coordinator. parentTool is a best-effort label for observability only.
func New(dir, parentTool string, pollInterval, staleTicketAge time.Duration) (*Coordinator, error) {
	queueDir := filepath.Join(dir, queueSubdir)
	registryDir := filepath.Join(dir, registrySubdir)

	for _, d := range []string{dir, queueDir, registryDir} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return nil, fmt.Errorf("create coordination dir %s: %w", d, err)
		}
	}

	entry, err := registerInstance(registryDir, parentTool)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		dir:            dir,
		queueDir:       queueDir,
		registryDir:    registryDir,
		lockPath:       filepath.Join(dir, lockFilename),
		pollInterval:   pollInterval,
		staleTicketAge: staleTicketAge,
		instance:       entry,
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithComponent("coordination").Warn().Err(err).Msg("queue watcher unavailable, falling back to poll-only")
	} else if err := watcher.Add(queueDir); err != nil {
		log.WithComponent("coordination").Warn().Err(err).Msg("failed to watch queue directory, falling back to poll-only")
		_ = watcher.Close()
	} else {
		c.watcher = watcher
		go c.drainWatcherErrors()
	}

	return c, nil
}

// drainWatcherErrors logs asynchronous fsnotify errors so the watcher's
// error channel never blocks; it returns once the watcher is closed.
func (c *Coordinator) drainWatcherErrors() {
	logger := log.WithComponent("coordination")
	for err := range c.watcher.Errors {
		logger.Warn().Err(err).Msg("queue watcher error")
	}
}

// Close deregisters this instance from the registry and stops the queue
// watcher, if one is running. It does not release any held lock; callers
// must ensure WithInferenceLock scopes have already exited.
func (c *Coordinator) Close() error {
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
	return c.instance.Deregister()
}

// WithInferenceLock enqueues a FIFO ticket, waits until it is first in the
// queue (reaping stale entries along the way), then takes the exclusive
// cross-process lock and runs fn. The lock and ticket are guaranteed to be
// released before WithInferenceLock returns, including when fn panics.
//
// If the ticket does not reach the head of the queue within timeout,
// WithInferenceLock removes it and returns ErrTimeout without calling fn.
func (c *Coordinator) WithInferenceLock(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	logger := log.WithComponent("coordination")

	ticket, err := createTicket(c.queueDir, c.instance.InstanceID, c.instance.ParentTool)
	if err != nil {
		return err
	}
	removed := false
	removeTicket := func() {
		if removed {
			return
		}
		if err := ticket.remove(); err != nil {
			logger.Warn().Err(err).Msg("failed to remove ticket")
		}
		removed = true
	}
	defer removeTicket()

	waitStart := time.Now()
	deadline := waitStart.Add(timeout)
	lastPos := -1

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var wake chan fsnotify.Event
	if c.watcher != nil {
		wake = c.watcher.Events
	}

	for {
		if n, err := reapStaleTickets(c.queueDir, c.staleTicketAge); err != nil {
			logger.Warn().Err(err).Msg("ticket reap pass failed")
		} else if n > 0 {
			for i := 0; i < n; i++ {
				metrics.RecordStaleTicketReaped("dead_or_aged")
			}
		}

		tickets, err := listTickets(c.queueDir)
		if err != nil {
			return err
		}
		metrics.SetQueueDepth(len(tickets))

		pos := position(tickets, ticket.name)
		if pos == -1 {
			// Our own ticket was reaped by a concurrent reaper (should not
			// normally happen while we are alive); recreate it.
			newTicket, err := createTicket(c.queueDir, c.instance.InstanceID, c.instance.ParentTool)
			if err != nil {
				return err
			}
			ticket = newTicket
			removed = false
			continue
		}
		if pos != lastPos {
			logger.Debug().Int("position", pos).Msg("queue position changed")
			lastPos = pos
		}
		if pos == 0 {
			break
		}

		if time.Now().After(deadline) {
			return ErrTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
			// Woken early by a ticket-file change; loop around and
			// re-evaluate immediately rather than waiting out the tick.
		}
	}

	waited := time.Since(waitStart)
	metrics.LockWaitSeconds.Observe(waited.Seconds())

	fl := flock.New(c.lockPath)
	lockCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	locked, err := fl.TryLockContext(lockCtx, c.pollInterval)
	if err != nil || !locked {
		return ErrTimeout
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			logger.Warn().Err(err).Msg("failed to release inference lock")
		}
	}()

	holder := LockHolder{
		PID:        os.Getpid(),
		InstanceID: c.instance.InstanceID,
		ParentTool: c.instance.ParentTool,
		AcquiredAt: time.Now(),
	}
	if err := writeJSONAtomic(c.lockPath+".holder", holder); err != nil {
		logger.Warn().Err(err).Msg("failed to record lock holder")
	}

	metrics.LockAcquisitionsTotal.Inc()

	return fn(ctx)
}

// ActiveInstances returns registry snapshots for every live daemon,
// pruning dead-pid entries as a side effect.
func (c *Coordinator) ActiveInstances() ([]RegistryEntry, error) {
	return activeInstances(c.registryDir)
}

// QueueStatus returns the sorted in-flight cross-process tickets.
func (c *Coordinator) QueueStatus() ([]string, error) {
	tickets, err := listTickets(c.queueDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tickets))
	for i, t := range tickets {
		names[i] = t.name
	}
	return names, nil
}

// CurrentHolder parses the lock-holder document best-effort, without
// itself taking the lock.
func (c *Coordinator) CurrentHolder() (*LockHolder, error) {
	return currentHolder(c.lockPath + ".holder")
}
