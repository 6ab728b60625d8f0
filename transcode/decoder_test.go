package transcode

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	sgerr "github.com/sonaguard/sonaguard/errors"
)

// makeWAV builds a mono 16-bit PCM WAV file from float samples in [-1, 1]
func makeWAV(samples []float64, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, 0, 44+dataSize)

	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, u32(uint32(36+dataSize))...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(1)...) // PCM
	buf = append(buf, u16(1)...) // mono
	buf = append(buf, u32(uint32(sampleRate))...)
	buf = append(buf, u32(uint32(sampleRate*2))...)
	buf = append(buf, u16(2)...)
	buf = append(buf, u16(16)...)
	buf = append(buf, []byte("data")...)
	buf = append(buf, u32(uint32(dataSize))...)

	for _, s := range samples {
		v := int16(math.Max(-1, math.Min(1, s)) * 32767)
		buf = append(buf, byte(v), byte(v>>8))
	}
	return buf
}

func sineWave(freq float64, durationSec float64, sampleRate int, amplitude float64) []float64 {
	n := int(durationSec * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestDecodeBytesWAV(t *testing.T) {
	decoder := NewDecoder(nil)

	wav := makeWAV(sineWave(440, 2.0, 16000, 0.5), 16000)
	audio, err := decoder.DecodeBytes(wav)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}

	if audio.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", audio.SampleRate)
	}
	if audio.Duration.Seconds() < 1.5 || audio.Duration.Seconds() > 2.1 {
		t.Errorf("unexpected duration: %v", audio.Duration)
	}

	// Peak normalization should bring the 0.5-amplitude sine to ~1.0
	peak := 0.0
	for _, s := range audio.PCM {
		if math.Abs(s) > peak {
			peak = math.Abs(s)
		}
	}
	if math.Abs(peak-1.0) > 1e-6 {
		t.Errorf("expected peak 1.0 after normalization, got %f", peak)
	}
}

func TestDecodeBytesResamples(t *testing.T) {
	decoder := NewDecoder(nil)

	// 8 kHz source must come out at 16 kHz with roughly doubled sample count
	wav := makeWAV(sineWave(440, 2.0, 8000, 0.8), 8000)
	audio, err := decoder.DecodeBytes(wav)
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}

	if audio.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", audio.SampleRate)
	}
	if audio.Duration.Seconds() < 1.5 || audio.Duration.Seconds() > 2.1 {
		t.Errorf("unexpected duration after resample: %v", audio.Duration)
	}
}

func TestDecodeBytesTrimsSilence(t *testing.T) {
	decoder := NewDecoder(nil)

	// One second of silence, one second of tone, one second of silence
	silence := make([]float64, 16000)
	signal := append(append(append([]float64{}, silence...), sineWave(440, 1.0, 16000, 0.6)...), silence...)

	audio, err := decoder.DecodeBytes(makeWAV(signal, 16000))
	if err != nil {
		t.Fatalf("DecodeBytes failed: %v", err)
	}

	// Trimming is frame-granular, so allow slack around the 1s tone
	if audio.Duration.Seconds() < 0.8 || audio.Duration.Seconds() > 1.3 {
		t.Errorf("expected ~1s after trimming, got %v", audio.Duration)
	}
}

func TestDecodeBytesTooShort(t *testing.T) {
	decoder := NewDecoder(nil)

	wav := makeWAV(sineWave(440, 0.2, 16000, 0.5), 16000)
	_, err := decoder.DecodeBytes(wav)
	if err == nil {
		t.Fatal("expected error for 0.2s clip")
	}
	if !sgerr.IsCode(err, sgerr.CodeAudioTooShort) {
		t.Errorf("expected AUDIO_TOO_SHORT, got %v", err)
	}
}

func TestDecodeBytesAllSilentTooShort(t *testing.T) {
	decoder := NewDecoder(nil)

	wav := makeWAV(make([]float64, 32000), 16000)
	_, err := decoder.DecodeBytes(wav)
	if err == nil {
		t.Fatal("expected error for all-silent clip")
	}
	if !sgerr.IsCode(err, sgerr.CodeAudioTooShort) {
		t.Errorf("expected AUDIO_TOO_SHORT, got %v", err)
	}
}

func TestDecodeBytesTooLong(t *testing.T) {
	config := DefaultDecoderConfig()
	config.MaxDuration = time.Second
	decoder := NewDecoder(config)

	wav := makeWAV(sineWave(440, 2.0, 16000, 0.5), 16000)
	_, err := decoder.DecodeBytes(wav)
	if err == nil {
		t.Fatal("expected error for clip over maximum duration")
	}
	if !sgerr.IsCode(err, sgerr.CodeAudioTooLong) {
		t.Errorf("expected AUDIO_TOO_LONG, got %v", err)
	}
}

func TestDecodeBytesUnsupportedFormat(t *testing.T) {
	decoder := NewDecoder(nil)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("this is not audio data at all, just text")},
		{"truncated RIFF", []byte("RIFFxxxx")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decoder.DecodeBytes(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !sgerr.IsCode(err, sgerr.CodeUnsupportedFormat) {
				t.Errorf("expected UNSUPPORTED_FORMAT, got %v", err)
			}
		})
	}
}

func TestDecodeBytesDeterministic(t *testing.T) {
	decoder := NewDecoder(nil)
	wav := makeWAV(sineWave(220, 1.5, 16000, 0.7), 16000)

	first, err := decoder.DecodeBytes(wav)
	if err != nil {
		t.Fatalf("first decode failed: %v", err)
	}
	second, err := decoder.DecodeBytes(wav)
	if err != nil {
		t.Fatalf("second decode failed: %v", err)
	}

	if len(first.PCM) != len(second.PCM) {
		t.Fatalf("sample counts differ: %d vs %d", len(first.PCM), len(second.PCM))
	}
	for i := range first.PCM {
		if first.PCM[i] != second.PCM[i] {
			t.Fatalf("samples differ at index %d: %v vs %v", i, first.PCM[i], second.PCM[i])
		}
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name     string
		inLen    int
		from, to int
		wantLen  int
	}{
		{"identity", 1000, 16000, 16000, 1000},
		{"downsample half", 1000, 16000, 8000, 500},
		{"upsample double", 1000, 8000, 16000, 2000},
		{"empty", 0, 8000, 16000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]float64, tt.inLen)
			for i := range in {
				in[i] = float64(i)
			}
			out := Resample(in, tt.from, tt.to)
			if len(out) != tt.wantLen {
				t.Errorf("expected %d output samples, got %d", tt.wantLen, len(out))
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	in := []float64{0, 1, 2, 3}
	out := Resample(in, 8000, 16000)

	// Position 1 reads source position 0.5
	if math.Abs(out[1]-0.5) > 1e-12 {
		t.Errorf("expected interpolated value 0.5, got %v", out[1])
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	// Hand-build a stereo WAV where L = 0.5 and R = -0.5; mono mix must be ~0
	sampleRate := 16000
	frames := 8000
	dataSize := frames * 4

	buf := make([]byte, 0, 44+dataSize)
	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, u32(uint32(36+dataSize))...)
	buf = append(buf, []byte("WAVE")...)
	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(1)...)
	buf = append(buf, u16(2)...) // stereo
	buf = append(buf, u32(uint32(sampleRate))...)
	buf = append(buf, u32(uint32(sampleRate*4))...)
	buf = append(buf, u16(4)...)
	buf = append(buf, u16(16)...)
	buf = append(buf, []byte("data")...)
	buf = append(buf, u32(uint32(dataSize))...)

	left := int16(16384)
	right := int16(-16384)
	for range frames {
		buf = append(buf, byte(left), byte(left>>8), byte(right), byte(right>>8))
	}

	samples, sr, err := decodeWAV(buf)
	if err != nil {
		t.Fatalf("decodeWAV failed: %v", err)
	}
	if sr != sampleRate {
		t.Errorf("expected sample rate %d, got %d", sampleRate, sr)
	}
	if len(samples) != frames {
		t.Errorf("expected %d frames, got %d", frames, len(samples))
	}
	for i, s := range samples {
		if math.Abs(s) > 1e-9 {
			t.Fatalf("expected zero downmix at frame %d, got %v", i, s)
		}
	}
}
