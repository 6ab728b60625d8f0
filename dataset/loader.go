package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sonaguard/sonaguard/forensics"
	"github.com/sonaguard/sonaguard/logging"
	"github.com/sonaguard/sonaguard/transcode"
)

// Loader extracts labeled feature vectors from a directory of audio clips.
// The directory layout carries the ground truth: root/ai/ holds
// AI-generated clips, root/human/ holds human recordings. Extraction runs
// through the same decoder and extractor as serving, so the sentinel and
// normalization policies are identical on both paths.
type Loader struct {
	decoder   *transcode.Decoder
	extractor *forensics.Extractor
}

// NewLoader creates a dataset loader around the shared pipeline components
func NewLoader(decoder *transcode.Decoder, extractor *forensics.Extractor) *Loader {
	return &Loader{decoder: decoder, extractor: extractor}
}

// LoadDirectory reads root/ai and root/human and returns the extracted
// feature vectors with their labels. Clips that fail to decode or extract
// are skipped with a warning rather than aborting the run.
func (l *Loader) LoadDirectory(root string) ([][]float64, []int, error) {
	var samples [][]float64
	var labels []int

	classes := []struct {
		dir   string
		label int
	}{
		{"ai", LabelAI},
		{"human", LabelHuman},
	}

	for _, class := range classes {
		dir := filepath.Join(root, class.dir)
		classSamples, err := l.loadClass(dir, class.label, &samples, &labels)
		if err != nil {
			return nil, nil, err
		}
		logging.Info("Loaded labeled audio class", logging.Fields{
			"dir":     dir,
			"label":   class.label,
			"samples": classSamples,
		})
	}

	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("no usable audio found under %s", root)
	}

	return samples, labels, nil
}

func (l *Loader) loadClass(dir string, label int, samples *[][]float64, labels *[]int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read class directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !isAudioFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Warn("Skipping unreadable clip", logging.Fields{"path": path, "error": err.Error()})
			continue
		}

		audio, err := l.decoder.DecodeBytes(data)
		if err != nil {
			logging.Warn("Skipping undecodable clip", logging.Fields{"path": path, "error": err.Error()})
			continue
		}

		vector, err := l.extractor.Extract(audio)
		if err != nil {
			logging.Warn("Skipping degenerate clip", logging.Fields{"path": path, "error": err.Error()})
			continue
		}

		*samples = append(*samples, vector)
		*labels = append(*labels, label)
		loaded++
	}

	return loaded, nil
}

func isAudioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".mp3":
		return true
	default:
		return false
	}
}
