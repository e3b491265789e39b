// Package wavtest synthesizes WAV fixtures for tests.
package wavtest

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Sine returns seconds of a sine tone at freq Hz with the given amplitude
func Sine(freq, amplitude float64, sampleRate int, seconds float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

// Silence returns seconds of zero samples
func Silence(sampleRate int, seconds float64) []float64 {
	return make([]float64, int(seconds*float64(sampleRate)))
}

// Write encodes mono samples in [-1, 1] as 16-bit PCM, duplicating them into
// every channel, and writes the file at path
func Write(t testing.TB, path string, samples []float64, sampleRate, channels int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create fixture dir: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)

	data := make([]int, 0, len(samples)*channels)
	for _, s := range samples {
		v := int(math.Round(math.Max(-1, math.Min(1, s)) * 32767))
		for range channels {
			data = append(data, v)
		}
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

// Bytes returns the encoded WAV file for samples
func Bytes(t testing.TB, samples []float64, sampleRate, channels int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	Write(t, path, samples, sampleRate, channels)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}
