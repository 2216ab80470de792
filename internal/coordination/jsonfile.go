// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package coordination

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// writeJSONAtomic marshals v and durably replaces path with the result:
// temp file in the same directory, fsync, then atomic rename. A crash
// mid-write can never leave a torn descriptor for a peer to parse.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending file %s: %w", path, err)
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write pending file %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// readJSONFile reads and unmarshals path into v. Callers treat a missing
// file as a non-fatal condition distinguishable via os.IsNotExist.
func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
