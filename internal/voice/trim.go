package voice

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// maxVoiceClipSeconds is the hard ceiling on reference-clip duration. A
// clip's identity (speaker timbre) is fully captured well before this, and
// bounding it keeps the model loader's cloning step latency predictable.
const maxVoiceClipSeconds = 10

// TrimToMaxDuration decodes the WAV file at path and, if it exceeds
// maxSeconds, writes a new WAV file under tempDir containing only the
// first maxSeconds worth of samples. It returns the path to use (the
// original, unchanged path when no trim was needed) and whether a new
// temp file was written.
func TrimToMaxDuration(path, tempDir string, maxSeconds int) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("open voice clip: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return "", false, fmt.Errorf("not a valid WAV file: %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return "", false, fmt.Errorf("decode voice clip: %w", err)
	}

	sampleRate := buf.Format.SampleRate
	numChans := buf.Format.NumChannels
	maxFrames := maxSeconds * sampleRate
	maxSamples := maxFrames * numChans

	if len(buf.Data) <= maxSamples {
		return path, false, nil
	}

	buf.Data = buf.Data[:maxSamples]

	outPath := filepath.Join(tempDir, "voice-trim-"+uuid.NewString()+".wav")
	out, err := os.Create(outPath)
	if err != nil {
		return "", false, fmt.Errorf("create trimmed voice clip: %w", err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, sampleRate, int(dec.BitDepth), numChans, int(dec.WavAudioFormat))
	if err := enc.Write(buf); err != nil {
		os.Remove(outPath)
		return "", false, fmt.Errorf("write trimmed voice clip: %w", err)
	}
	if err := enc.Close(); err != nil {
		os.Remove(outPath)
		return "", false, fmt.Errorf("finalize trimmed voice clip: %w", err)
	}

	return outPath, true, nil
}
