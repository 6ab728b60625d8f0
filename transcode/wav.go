package transcode

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

// isWAV reports whether the bytes start with a RIFF/WAVE header
func isWAV(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WAVE"
}

// isMP3 reports whether the bytes look like an MP3 stream: an ID3v2 tag
// or a raw MPEG frame sync
func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	// Frame sync: 11 set bits
	return len(data) >= 2 && data[0] == 0xFF && (data[1]&0xE0) == 0xE0
}

// decodeWAV parses a RIFF/WAVE container and returns mono float64 samples
// in [-1, 1] plus the source sample rate. Multi-channel content is downmixed
// by channel averaging. Supported encodings: PCM 8/16/24/32 bit and IEEE
// float 32/64 bit.
func decodeWAV(data []byte) ([]float64, int, error) {
	if !isWAV(data) {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE container")
	}

	var (
		audioFormat   uint16
		numChannels   int
		sampleRate    int
		bitsPerSample int
		haveFmt       bool
	)

	// Walk RIFF chunks; fmt must precede data
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		if body+chunkSize > len(data) {
			return nil, 0, fmt.Errorf("truncated %q chunk", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too small: %d bytes", chunkSize)
			}
			audioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			numChannels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			samples, err := decodeWAVData(data[body:body+chunkSize], audioFormat, numChannels, bitsPerSample)
			if err != nil {
				return nil, 0, err
			}
			return samples, sampleRate, nil
		}

		// Chunks are word-aligned
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	return nil, 0, fmt.Errorf("no data chunk found")
}

// decodeWAVData converts raw sample bytes to downmixed float64 samples
func decodeWAVData(raw []byte, audioFormat uint16, numChannels, bitsPerSample int) ([]float64, error) {
	if numChannels <= 0 || numChannels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", numChannels)
	}

	bytesPerSample := bitsPerSample / 8
	if bytesPerSample <= 0 {
		return nil, fmt.Errorf("invalid bit depth: %d", bitsPerSample)
	}

	frameSize := bytesPerSample * numChannels
	numFrames := len(raw) / frameSize
	if numFrames == 0 {
		return nil, fmt.Errorf("empty data chunk")
	}

	var decode func(b []byte) (float64, error)

	switch audioFormat {
	case wavFormatPCM:
		switch bitsPerSample {
		case 8:
			// 8-bit WAV is unsigned
			decode = func(b []byte) (float64, error) {
				return (float64(b[0]) - 128.0) / 128.0, nil
			}
		case 16:
			decode = func(b []byte) (float64, error) {
				return float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0, nil
			}
		case 24:
			decode = func(b []byte) (float64, error) {
				v := int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16)
				// Sign-extend from 24 bits
				v = v << 8 >> 8
				return float64(v) / 8388608.0, nil
			}
		case 32:
			decode = func(b []byte) (float64, error) {
				return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648.0, nil
			}
		default:
			return nil, fmt.Errorf("unsupported PCM bit depth: %d", bitsPerSample)
		}

	case wavFormatIEEEFloat:
		switch bitsPerSample {
		case 32:
			decode = func(b []byte) (float64, error) {
				return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
			}
		case 64:
			decode = func(b []byte) (float64, error) {
				return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
			}
		default:
			return nil, fmt.Errorf("unsupported float bit depth: %d", bitsPerSample)
		}

	default:
		return nil, fmt.Errorf("unsupported WAVE format tag: %d", audioFormat)
	}

	samples := make([]float64, numFrames)
	for i := range numFrames {
		frame := raw[i*frameSize : (i+1)*frameSize]
		sum := 0.0
		for c := range numChannels {
			v, err := decode(frame[c*bytesPerSample : (c+1)*bytesPerSample])
			if err != nil {
				return nil, err
			}
			sum += v
		}
		samples[i] = sum / float64(numChannels)
	}

	return samples, nil
}
