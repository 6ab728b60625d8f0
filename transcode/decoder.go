package transcode

import (
	"bytes"
	stderrors "errors"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"

	"github.com/sonaguard/sonaguard/algorithms/temporal"
	sgerr "github.com/sonaguard/sonaguard/errors"
	"github.com/sonaguard/sonaguard/logging"
)

// AudioData represents a canonical waveform: mono, fixed sample rate,
// silence-trimmed, peak-normalized
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
}

// DecoderConfig holds decoder and normalization configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	MinDuration      time.Duration `json:"min_duration"` // After trimming
	MaxDuration      time.Duration `json:"max_duration"` // Before trimming; 0 = no limit
	TargetPeak       float64       `json:"target_peak"`  // Peak amplitude after normalization

	// Silence trimming
	TrimFrameSize int     `json:"trim_frame_size"`
	TrimHopSize   int     `json:"trim_hop_size"`
	TrimTopDB     float64 `json:"trim_top_db"` // Threshold below the clip's peak frame
}

// DefaultDecoderConfig returns the canonical-waveform configuration the
// feature extractor was trained against
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 16000,
		MinDuration:      500 * time.Millisecond,
		MaxDuration:      300 * time.Second,
		TargetPeak:       1.0,
		TrimFrameSize:    2048,
		TrimHopSize:      512,
		TrimTopDB:        20.0,
	}
}

// Decoder turns compressed audio bytes into a canonical waveform.
// Decoding is pure Go (no external binaries), so byte-identical input
// always yields identical output.
type Decoder struct {
	config  *DecoderConfig
	trimmer *temporal.SilenceTrimmer
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config:  config,
		trimmer: temporal.NewSilenceTrimmer(config.TrimFrameSize, config.TrimHopSize, config.TrimTopDB),
	}
}

// DecodeBytes decodes audio bytes (MP3 or WAV) into a canonical waveform.
// Failures are tagged UNSUPPORTED_FORMAT, AUDIO_TOO_SHORT or AUDIO_TOO_LONG.
func (d *Decoder) DecodeBytes(data []byte) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeBytes",
		"data_size": len(data),
	})

	logger.Debug("Starting audio bytes decode")

	if len(data) == 0 {
		return nil, sgerr.New(sgerr.CodeUnsupportedFormat, "empty audio data")
	}

	var (
		samples    []float64
		sampleRate int
		err        error
	)

	switch {
	case isMP3(data):
		samples, sampleRate, err = d.decodeMP3(data)
	case isWAV(data):
		samples, sampleRate, err = decodeWAV(data)
	default:
		return nil, sgerr.New(sgerr.CodeUnsupportedFormat, "unrecognized audio container")
	}

	if err != nil {
		logger.Error(err, "Audio decode failed")
		return nil, sgerr.Wrap(sgerr.CodeUnsupportedFormat, "failed to decode audio", err)
	}

	if len(samples) == 0 || sampleRate <= 0 {
		return nil, sgerr.New(sgerr.CodeUnsupportedFormat, "no audio samples decoded")
	}

	rawDuration := time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)
	if d.config.MaxDuration > 0 && rawDuration > d.config.MaxDuration {
		return nil, sgerr.Newf(sgerr.CodeAudioTooLong,
			"audio is %.1fs, maximum is %.0fs", rawDuration.Seconds(), d.config.MaxDuration.Seconds())
	}

	logger.Debug("Audio decoded", logging.Fields{
		"input_sample_rate": sampleRate,
		"input_samples":     len(samples),
		"input_duration":    rawDuration.Seconds(),
	})

	return d.normalize(samples, sampleRate, logger)
}

// normalize resamples, trims and peak-normalizes decoded PCM
func (d *Decoder) normalize(samples []float64, sampleRate int, logger logging.Logger) (*AudioData, error) {
	if sampleRate != d.config.TargetSampleRate {
		samples = Resample(samples, sampleRate, d.config.TargetSampleRate)
		sampleRate = d.config.TargetSampleRate
	}

	start, end := d.trimmer.TrimBounds(samples)
	trimmed := samples[start:end]

	duration := time.Duration(len(trimmed)) * time.Second / time.Duration(sampleRate)
	if duration < d.config.MinDuration {
		return nil, sgerr.Newf(sgerr.CodeAudioTooShort,
			"audio is %.2fs after trimming, minimum is %.2fs",
			duration.Seconds(), d.config.MinDuration.Seconds())
	}

	// Peak normalization removes loudness as a feature confound
	peak := 0.0
	for _, s := range trimmed {
		if s > peak {
			peak = s
		} else if -s > peak {
			peak = -s
		}
	}

	normalized := make([]float64, len(trimmed))
	if peak > 0 {
		gain := d.config.TargetPeak / peak
		for i, s := range trimmed {
			normalized[i] = s * gain
		}
	}

	logger.Debug("Waveform canonicalized", logging.Fields{
		"output_sample_rate": sampleRate,
		"output_samples":     len(normalized),
		"output_duration":    duration.Seconds(),
		"trim_start":         start,
		"trim_end":           end,
		"peak_before":        peak,
	})

	return &AudioData{
		PCM:        normalized,
		SampleRate: sampleRate,
		Duration:   duration,
	}, nil
}

// decodeMP3 decodes MP3 bytes using hajimehoshi/go-mp3.
// The decoder always emits 16-bit little-endian stereo; the two channels
// are averaged down to mono here.
func (d *Decoder) decodeMP3(data []byte) ([]float64, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}

	sampleRate := decoder.SampleRate()

	// Length is in bytes of decoded output (4 bytes per stereo frame)
	var pcm []float64
	if n := decoder.Length(); n > 0 {
		pcm = make([]float64, 0, n/4)
	}

	buf := make([]byte, 8192)
	var carry []byte

	for {
		n, readErr := decoder.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if len(carry) > 0 {
				chunk = append(carry, chunk...)
				carry = nil
			}

			// Keep only whole stereo frames; remainder carries to next read
			usable := len(chunk) - len(chunk)%4
			for i := 0; i+3 < usable; i += 4 {
				left := int16(uint16(chunk[i]) | uint16(chunk[i+1])<<8)
				right := int16(uint16(chunk[i+2]) | uint16(chunk[i+3])<<8)
				pcm = append(pcm, (float64(left)+float64(right))/2.0/32768.0)
			}
			if usable < len(chunk) {
				carry = append(carry, chunk[usable:]...)
			}
		}
		if readErr != nil {
			if stderrors.Is(readErr, io.EOF) {
				break
			}
			return nil, 0, readErr
		}
	}

	return pcm, sampleRate, nil
}
