package transcode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-emotion/algorithms/common"
	"github.com/RyanBlaney/sonido-emotion/logging"
)

var (
	// ErrNotWAV is returned when the input is not a RIFF/WAVE container
	ErrNotWAV = errors.New("audio must be in WAV format")
	// ErrUnsupportedEncoding is returned for WAV files that are neither integer
	// PCM nor 32-bit IEEE float
	ErrUnsupportedEncoding = errors.New("unsupported WAV encoding")
	// ErrEmptyAudio is returned when no samples could be read
	ErrEmptyAudio = errors.New("audio file is empty or could not be loaded")
)

// WAVE format tags
const (
	wavFormatPCM        = 0x0001
	wavFormatIEEEFloat  = 0x0003
	wavFormatExtensible = 0xFFFE
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64      `json:"-"` // mono samples in [-1, 1]
	SampleRate int            `json:"sample_rate"`
	Channels   int            `json:"channels"`
	Duration   time.Duration  `json:"duration"`
	Metadata   *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata holds the properties of the source file before conversion
type AudioMetadata struct {
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
	BitDepth   int           `json:"bit_depth"`
	Duration   time.Duration `json:"duration"`
	Format     string        `json:"format"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"` // 0 keeps the native rate
	MaxDuration      time.Duration `json:"max_duration"`       // 0 = no limit; applied before resampling
	ResampleQuality  string        `json:"resample_quality"`   // "sinc" (band-limited), "cubic" or "linear"
}

// DefaultDecoderConfig returns the loading behaviour used for feature extraction
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		MaxDuration:      3 * time.Second,
		ResampleQuality:  "sinc",
	}
}

// Decoder loads WAV audio into mono float PCM
type Decoder struct {
	config       *DecoderConfig
	interpolator *common.Interpolator
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) (*Decoder, error) {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	method, _ := common.ParseInterpolation(config.ResampleQuality)

	return &Decoder{
		config:       config,
		interpolator: common.NewInterpolator(method),
	}, nil
}

// ValidateConfig checks a decoder configuration
func ValidateConfig(config *DecoderConfig) error {
	if config.TargetSampleRate < 0 {
		return fmt.Errorf("target sample rate must not be negative: %d", config.TargetSampleRate)
	}
	if config.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative: %s", config.MaxDuration)
	}
	if _, ok := common.ParseInterpolation(config.ResampleQuality); !ok {
		return fmt.Errorf("unknown resample quality %q", config.ResampleQuality)
	}
	return nil
}

// GetConfig returns the decoder configuration
func (d *Decoder) GetConfig() DecoderConfig {
	return *d.config
}

// IsWAV reports whether data starts with a RIFF header
func IsWAV(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("RIFF"))
}

// DecodeFile decodes a WAV file and returns mono PCM data
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	audioData, err := d.DecodeReader(f)
	if err != nil {
		return nil, err
	}

	logger.Debug("Audio file decoded", logging.Fields{
		"input_sample_rate": audioData.Metadata.SampleRate,
		"input_channels":    audioData.Metadata.Channels,
		"input_bit_depth":   audioData.Metadata.BitDepth,
		"samples":           len(audioData.PCM),
		"sample_rate":       audioData.SampleRate,
	})

	return audioData, nil
}

// DecodeBytes decodes an in-memory WAV file
func (d *Decoder) DecodeBytes(data []byte) (*AudioData, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	return d.DecodeReader(bytes.NewReader(data))
}

// DecodeReader decodes WAV audio from a seekable reader
func (d *Decoder) DecodeReader(r io.ReadSeeker) (*AudioData, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil || !IsWAV(header) {
		return nil, ErrNotWAV
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind audio: %w", err)
	}

	encoding, err := sampleEncoding(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind audio: %w", err)
	}

	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		// A RIFF container without a readable format chunk or without samples
		return nil, ErrEmptyAudio
	}
	isFloat := encoding == wavFormatIEEEFloat
	if isFloat && decoder.BitDepth != 32 {
		return nil, fmt.Errorf("%w: %d-bit float samples", ErrUnsupportedEncoding, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM buffer: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, ErrEmptyAudio
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}

	var mono []float64
	if isFloat {
		mono = floatToMono(buf)
	} else {
		mono, err = d.toMono(buf, bitDepth)
	}
	if err != nil {
		return nil, err
	}
	if len(mono) == 0 {
		return nil, ErrEmptyAudio
	}

	nativeRate := buf.Format.SampleRate
	meta := &AudioMetadata{
		SampleRate: nativeRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   bitDepth,
		Duration:   samplesToDuration(len(mono), nativeRate),
		Format:     "wav",
	}
	if isFloat {
		meta.Format = "wav/float"
	}

	// Truncate at the native rate so the kept span is exactly MaxDuration of audio
	if d.config.MaxDuration > 0 {
		limit := int(d.config.MaxDuration.Seconds() * float64(nativeRate))
		if limit > 0 && len(mono) > limit {
			mono = mono[:limit]
		}
	}

	sampleRate := nativeRate
	if d.config.TargetSampleRate > 0 && d.config.TargetSampleRate != nativeRate {
		mono = d.interpolator.ResampleSignal(mono, nativeRate, d.config.TargetSampleRate)
		sampleRate = d.config.TargetSampleRate
	}

	return &AudioData{
		PCM:        mono,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   samplesToDuration(len(mono), sampleRate),
		Metadata:   meta,
	}, nil
}

// toMono averages interleaved channels and scales integer samples to [-1, 1]
func (d *Decoder) toMono(buf *audio.IntBuffer, bitDepth int) ([]float64, error) {
	var scale, offset float64
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned
		scale, offset = 128.0, 128.0
	case 16:
		scale = 32768.0
	case 24:
		scale = 8388608.0
	case 32:
		scale = 2147483648.0
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedEncoding, bitDepth)
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	mono := make([]float64, frames)

	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		mono[i] = sum / float64(channels)
	}

	return mono, nil
}

// floatToMono averages interleaved 32-bit float samples. go-audio hands them
// over as the raw little-endian bit patterns widened to int.
func floatToMono(buf *audio.IntBuffer) []float64 {
	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	mono := make([]float64, frames)

	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += float64(math.Float32frombits(uint32(int32(buf.Data[i*channels+c]))))
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// sampleEncoding returns the effective format tag of a WAVE stream,
// resolving WAVE_FORMAT_EXTENSIBLE to the tag embedded in its sub-format
// GUID. Only integer PCM and IEEE float are accepted.
func sampleEncoding(r io.Reader) (uint16, error) {
	parser := riff.New(r)
	if err := parser.ParseHeaders(); err != nil || parser.Format != riff.WavFormatID {
		return 0, ErrNotWAV
	}

	for {
		chunk, err := parser.NextChunk()
		if err != nil {
			// no format chunk before the end of the stream
			return 0, ErrEmptyAudio
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}

		var header struct {
			FormatTag      uint16
			Channels       uint16
			SampleRate     uint32
			AvgBytesPerSec uint32
			BlockAlign     uint16
			BitsPerSample  uint16
		}
		if err := chunk.ReadLE(&header); err != nil {
			return 0, ErrEmptyAudio
		}

		tag := header.FormatTag
		if tag == wavFormatExtensible && chunk.Size >= 40 {
			var ext struct {
				Size          uint16
				ValidBits     uint16
				ChannelMask   uint32
				SubFormatCode uint16
				SubFormatRest [14]byte
			}
			if err := chunk.ReadLE(&ext); err != nil {
				return 0, ErrEmptyAudio
			}
			tag = ext.SubFormatCode
		} else if tag == wavFormatExtensible {
			// a truncated extension carries no sub-format; treat it as PCM
			tag = wavFormatPCM
		}

		switch tag {
		case wavFormatPCM, wavFormatIEEEFloat:
			return tag, nil
		default:
			return 0, fmt.Errorf("%w: format tag 0x%04X", ErrUnsupportedEncoding, tag)
		}
	}
}

func samplesToDuration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}
