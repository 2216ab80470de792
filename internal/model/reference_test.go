package model

import (
	"context"
	"testing"
)

func TestReferenceGeneratesAudioForChunk(t *testing.T) {
	r := NewReference()
	state, err := r.StateForVoice(context.Background(), VoiceSource{Name: "default"})
	if err != nil {
		t.Fatalf("StateForVoice() error = %v", err)
	}

	samples, err := r.Generate(context.Background(), state, "hello world")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(samples) == 0 {
		t.Fatal("expected non-empty audio")
	}
	for _, s := range samples {
		if s > 1 || s < -1 {
			t.Fatalf("sample out of range: %v", s)
		}
	}
}

func TestReferenceRejectsEmptyVoiceSource(t *testing.T) {
	r := NewReference()
	if _, err := r.StateForVoice(context.Background(), VoiceSource{}); err == nil {
		t.Fatal("expected error for empty voice source")
	}
}

func TestReferenceRejectsEmptyChunk(t *testing.T) {
	r := NewReference()
	state, _ := r.StateForVoice(context.Background(), VoiceSource{Name: "default"})
	if _, err := r.Generate(context.Background(), state, ""); err == nil {
		t.Fatal("expected error for empty chunk")
	}
}

func TestReferenceCloseRejectsFurtherGenerate(t *testing.T) {
	r := NewReference()
	state, _ := r.StateForVoice(context.Background(), VoiceSource{Name: "default"})
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := r.Generate(context.Background(), state, "hi"); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestReferenceLoader(t *testing.T) {
	h, err := ReferenceLoader(context.Background())
	if err != nil {
		t.Fatalf("ReferenceLoader() error = %v", err)
	}
	if h.SampleRate() != referenceSampleRate {
		t.Errorf("SampleRate() = %d, want %d", h.SampleRate(), referenceSampleRate)
	}
}
