// Package wav assembles PCM audio generated by the TTS model into minimal
// RIFF/WAVE files for the playback subprocess to consume.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

const (
	bitsPerSample = 16
	numChannels   = 1
)

// Encode writes a mono 16-bit PCM WAVE file body for samples at the given
// sample rate. samples are clamped to [-1, 1] before quantisation.
func Encode(samples []float32, sampleRate int) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := quantize(s)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}

	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))                               // fmt chunk size
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))                                // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(numChannels))                      // channels
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))                       // sample rate
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bitsPerSample/8)) // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(numChannels*bitsPerSample/8))       // block align
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// WriteFile encodes samples and writes the result to path. The caller owns
// path's lifecycle (creation and later deletion).
func WriteFile(path string, samples []float32, sampleRate int) error {
	if err := os.WriteFile(path, Encode(samples, sampleRate), 0o600); err != nil {
		return fmt.Errorf("write wav file %s: %w", path, err)
	}
	return nil
}

func quantize(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(float64(s) * math.MaxInt16))
}
