// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coordination

import "time"

// LockHolder is the JSON document written, while exclusive access is held,
// to a sibling file named after the shared lock file with a ".holder"
// suffix; the advisory-locked file itself carries no body. It is purely
// observational: correctness never depends on this content, only on the
// underlying OS advisory lock.
type LockHolder struct {
	PID        int       `json:"pid"`
	InstanceID string    `json:"instance_id"`
	ParentTool string    `json:"parent_tool"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// currentHolder parses the holder file at lockPath on a best-effort basis,
// taking no lock of its own. A missing, empty, or malformed file simply
// yields a nil holder and no error, since an unheld lock has no holder.
func currentHolder(lockPath string) (*LockHolder, error) {
	var holder LockHolder
	if err := readJSONFile(lockPath, &holder); err != nil {
		return nil, nil
	}
	if holder.InstanceID == "" {
		return nil, nil
	}
	return &holder, nil
}
