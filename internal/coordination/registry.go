// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coordination

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RegistryEntry describes one live daemon instance. It is written once at
// startup and removed on orderly shutdown; a peer may prune it earlier if
// the pid is found dead.
type RegistryEntry struct {
	PID        int       `json:"pid"`
	InstanceID string    `json:"instance_id"`
	ParentTool string    `json:"parent_tool"`
	StartedAt  time.Time `json:"started_at"`

	path string
}

// newInstanceID builds the "<pid>-<ns>" identifier used both as the
// registry key and embedded in the lock-holder document.
func newInstanceID(pid int) string {
	return fmt.Sprintf("%d-%d", pid, time.Now().UnixNano())
}

// registerInstance writes a RegistryEntry for this process into dir and
// returns it. The caller must call Deregister on orderly shutdown.
func registerInstance(dir, parentTool string) (*RegistryEntry, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	pid := os.Getpid()
	entry := &RegistryEntry{
		PID:        pid,
		InstanceID: newInstanceID(pid),
		ParentTool: parentTool,
		StartedAt:  time.Now(),
	}
	entry.path = filepath.Join(dir, entry.InstanceID+".json")

	if err := writeJSONAtomic(entry.path, entry); err != nil {
		return nil, fmt.Errorf("register instance: %w", err)
	}
	return entry, nil
}

// Deregister removes this instance's registry file. Safe to call more than
// once; a missing file is not an error.
func (e *RegistryEntry) Deregister() error {
	if e == nil {
		return nil
	}
	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deregister instance: %w", err)
	}
	return nil
}

// activeInstances returns every registry entry in dir whose pid is still
// alive, pruning dead-pid entries it encounters along the way.
func activeInstances(dir string) ([]RegistryEntry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry dir: %w", err)
	}

	active := make([]RegistryEntry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, f.Name())

		var entry RegistryEntry
		if err := readJSONFile(path, &entry); err != nil {
			continue
		}
		entry.path = path

		if !pidAlive(entry.PID) {
			_ = os.Remove(path)
			continue
		}
		active = append(active, entry)
	}
	return active, nil
}
