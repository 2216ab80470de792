// Package model defines the narrow interface the coordination core uses to
// drive an external, opaque TTS model: deriving a voice state from a
// reference clip or catalog name, then generating audio for one text
// chunk at a time. The core never inspects these values beyond forwarding
// them between its own components.
package model

import "context"

// VoiceSource identifies which voice a caller wants: Path for a trimmed
// reference clip, Name for a catalog lookup. A request's source may carry
// both or neither; voice.Catalog resolves it and hands a Handle a source
// with exactly one field set.
type VoiceSource struct {
	Path string
	Name string
}

// VoiceState is an opaque value returned by StateForVoice and threaded
// through to Generate. Its concrete shape is model-defined.
type VoiceState interface{}

// Handle is the narrow interface an external TTS model must satisfy.
// Implementations own whatever device/runtime state they need; the core
// calls StateForVoice, Generate, and SampleRate only while holding the
// system-wide exclusive lock, and Close when it unloads the model, outside
// that lock.
type Handle interface {
	// StateForVoice derives conditioning state from source.
	StateForVoice(ctx context.Context, source VoiceSource) (VoiceState, error)

	// Generate synthesizes audio for one text chunk, conditioned on state.
	// The returned slice is mono float32 PCM in [-1, 1] at SampleRate().
	Generate(ctx context.Context, state VoiceState, chunk string) ([]float32, error)

	// SampleRate is the fixed sample rate this model generates audio at.
	SampleRate() int

	// Close releases any device/runtime resources. Called when the worker
	// unloads the model, either on idle timeout or daemon shutdown.
	Close() error
}

// Loader constructs a Handle on demand. The daemon holds a Loader rather
// than a Handle directly so the worker can lazily load and idle-unload.
type Loader func(ctx context.Context) (Handle, error)
