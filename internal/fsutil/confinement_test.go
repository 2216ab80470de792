// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfineRelPath(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "confine_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Fatalf("cleanup tmp dir: %v", err)
		}
	})

	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.Mkdir(subDir, 0o750); err != nil {
		t.Fatal(err)
	}

	safeFile := filepath.Join(tmpDir, "safe.wav")
	if err := os.WriteFile(safeFile, []byte("safe"), 0o600); err != nil {
		t.Fatal(err)
	}

	linkOutside := filepath.Join(tmpDir, "link_outside")
	if err := os.Symlink("..", linkOutside); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		root     string
		target   string
		wantErr  bool
		wantPath string
	}{
		{
			name:     "valid simple file",
			root:     tmpDir,
			target:   "safe.wav",
			wantErr:  false,
			wantPath: "safe.wav",
		},
		{
			name:     "valid subdir file",
			root:     tmpDir,
			target:   "subdir/voice.wav",
			wantErr:  false,
			wantPath: "subdir/voice.wav",
		},
		{
			name:    "traversal attempt ..",
			root:    tmpDir,
			target:  "../outside.wav",
			wantErr: true,
		},
		{
			name:    "traversal attempt /",
			root:    tmpDir,
			target:  "/etc/passwd",
			wantErr: true,
		},
		{
			name:    "symlink escape",
			root:    tmpDir,
			target:  "link_outside/foo",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfineRelPath(tt.root, tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("ConfineRelPath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.wantPath != "" {
				if !strings.HasSuffix(got, tt.wantPath) {
					t.Errorf("ConfineRelPath() got = %v, want suffix %v", got, tt.wantPath)
				}
			}
		})
	}
}

func TestConfineAbsPath(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "confine_abs_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Fatalf("cleanup tmp dir: %v", err)
		}
	})

	safePath := filepath.Join(tmpDir, "safe.wav")
	if err := os.WriteFile(safePath, []byte("ok"), 0o600); err != nil {
		t.Fatal(err)
	}

	outsideDir, err := os.MkdirTemp("", "outside")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.RemoveAll(outsideDir); err != nil {
			t.Fatalf("cleanup outside dir: %v", err)
		}
	})
	outsidePath := filepath.Join(outsideDir, "secret.wav")

	tests := []struct {
		name    string
		root    string
		target  string
		wantErr bool
	}{
		{name: "valid absolute path", root: tmpDir, target: safePath, wantErr: false},
		{name: "outside absolute path", root: tmpDir, target: outsidePath, wantErr: true},
		{name: "relative path input (error)", root: tmpDir, target: "safe.wav", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConfineAbsPath(tt.root, tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("ConfineAbsPath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsRegularFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "regular_file_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.Fatalf("cleanup tmp dir: %v", err)
		}
	})

	filePath := filepath.Join(tmpDir, "voice.wav")
	if err := os.WriteFile(filePath, []byte("pcm"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := IsRegularFile(filePath); err != nil {
		t.Errorf("expected regular file, got error: %v", err)
	}
	if err := IsRegularFile(tmpDir); err == nil {
		t.Error("expected error for directory")
	}
}
