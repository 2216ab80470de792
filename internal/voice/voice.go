// Package voice resolves a request's voice selection — an explicit
// reference-clip path or a catalog name — into conditioning state the TTS
// model can use, applying the mandatory ≤10s trim rule to file-based
// clips.
package voice

import (
	"context"
	"fmt"
	"os"

	"github.com/ManuGH/xg2g/internal/fsutil"
	"github.com/ManuGH/xg2g/internal/log"
	"github.com/ManuGH/xg2g/internal/model"
)

// DefaultCatalogName is used whenever a request names a catalog entry this
// daemon does not recognise; it must always resolve successfully.
const DefaultCatalogName = "default"

// Catalog maps known voice names to the reference clip backing them. The
// canonical default entry must always be present.
type Catalog struct {
	entries     map[string]string
	confineRoot string
	tempDir     string
}

// NewCatalog builds a Catalog from name->path pairs. confineRoot bounds
// where on-disk catalog and request-supplied paths may resolve to,
// preventing path traversal from a client-supplied voice_path. tempDir is
// where trimmed clips are written.
func NewCatalog(entries map[string]string, confineRoot, tempDir string, defaultVoicePath string) *Catalog {
	c := &Catalog{
		entries:     make(map[string]string, len(entries)+1),
		confineRoot: confineRoot,
		tempDir:     tempDir,
	}
	for k, v := range entries {
		c.entries[k] = v
	}
	if _, ok := c.entries[DefaultCatalogName]; !ok {
		c.entries[DefaultCatalogName] = defaultVoicePath
	}
	return c
}

// Resolution is the outcome of resolving a request's voice selection: the
// model's opaque conditioning state, plus a cleanup function the caller
// must invoke once generation for this request has finished (it deletes
// any trimmed-clip temp file that was created).
type Resolution struct {
	State   model.VoiceState
	Cleanup func()
}

// Resolve derives voice state for source using handle. If source names a
// file path, the clip is trimmed to ≤10s before being handed to the model.
// If source names a catalog entry that is not recognised, it falls back to
// DefaultCatalogName rather than failing the request.
func (c *Catalog) Resolve(ctx context.Context, handle model.Handle, source model.VoiceSource) (*Resolution, error) {
	logger := log.WithComponent("voice")

	if source.Path != "" {
		confined, err := fsutil.ConfineAbsPath(c.confineRoot, source.Path)
		if err != nil {
			return nil, fmt.Errorf("voice path escapes allowed directory: %w", err)
		}
		if err := fsutil.IsRegularFile(confined); err != nil {
			return nil, fmt.Errorf("voice path is not a regular file: %w", err)
		}

		trimmedPath, trimmed, err := TrimToMaxDuration(confined, c.tempDir, maxVoiceClipSeconds)
		if err != nil {
			return nil, fmt.Errorf("trim voice clip: %w", err)
		}

		cleanup := func() {}
		if trimmed {
			cleanup = func() {
				if err := os.Remove(trimmedPath); err != nil && !os.IsNotExist(err) {
					logger.Warn().Err(err).Str(log.FieldPath, trimmedPath).Msg("failed to remove trimmed voice clip")
				}
			}
		}

		state, err := handle.StateForVoice(ctx, model.VoiceSource{Path: trimmedPath})
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("derive voice state from clip: %w", err)
		}
		return &Resolution{State: state, Cleanup: cleanup}, nil
	}

	name := source.Name
	path, ok := c.entries[name]
	if !ok || path == "" {
		logger.Debug().Str(log.FieldVoice, name).Msg("catalog name not recognised, falling back to default")
		name = DefaultCatalogName
		path = c.entries[DefaultCatalogName]
	}

	if path != "" {
		return c.Resolve(ctx, handle, model.VoiceSource{Path: path})
	}

	state, err := handle.StateForVoice(ctx, model.VoiceSource{Name: name})
	if err != nil {
		return nil, fmt.Errorf("derive voice state from catalog name %q: %w", name, err)
	}
	return &Resolution{State: state, Cleanup: func() {}}, nil
}
