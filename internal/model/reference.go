package model

import (
	"context"
	"fmt"
	"math"
)

// referenceSampleRate matches common TTS model output rates (e.g. Bark,
// XTTS) closely enough to exercise the rest of the pipeline realistically.
const referenceSampleRate = 24000

// referenceVoiceState is the opaque state handed back by the reference
// model: just the resolved voice identity, since the reference model does
// not actually clone timbre.
type referenceVoiceState struct {
	identity string
}

// Reference is a deterministic, dependency-free Handle implementation used
// as the default stand-in when no real model is configured, and directly
// by tests that need a Handle without a GPU or model weights. It generates
// a short sine tone per chunk instead of real speech.
type Reference struct {
	closed bool
}

// NewReference returns a ready Reference handle.
func NewReference() *Reference {
	return &Reference{}
}

func (r *Reference) StateForVoice(_ context.Context, source VoiceSource) (VoiceState, error) {
	switch {
	case source.Path != "":
		return referenceVoiceState{identity: source.Path}, nil
	case source.Name != "":
		return referenceVoiceState{identity: source.Name}, nil
	default:
		return nil, fmt.Errorf("model: voice source has neither path nor name")
	}
}

// Generate produces one short sine-wave tone per chunk, scaled by chunk
// length so different inputs are audibly distinguishable in tests without
// requiring real synthesis.
func (r *Reference) Generate(_ context.Context, state VoiceState, chunk string) ([]float32, error) {
	if r.closed {
		return nil, fmt.Errorf("model: generate called on closed handle")
	}
	if chunk == "" {
		return nil, fmt.Errorf("model: empty chunk")
	}

	_, ok := state.(referenceVoiceState)
	if !ok {
		return nil, fmt.Errorf("model: voice state not produced by this model")
	}

	durationSeconds := 0.05 + float64(len(chunk))*0.01
	n := int(durationSeconds * float64(referenceSampleRate))
	samples := make([]float32, n)

	const freqHz = 220.0
	for i := range samples {
		t := float64(i) / float64(referenceSampleRate)
		samples[i] = float32(0.2 * math.Sin(2*math.Pi*freqHz*t))
	}
	return samples, nil
}

func (r *Reference) SampleRate() int {
	return referenceSampleRate
}

func (r *Reference) Close() error {
	r.closed = true
	return nil
}

// ReferenceLoader is a Loader that always returns a fresh Reference handle.
func ReferenceLoader(_ context.Context) (Handle, error) {
	return NewReference(), nil
}
