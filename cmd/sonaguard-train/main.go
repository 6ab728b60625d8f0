package main

import (
	"flag"
	"fmt"

	"github.com/sonaguard/sonaguard/classifier"
	"github.com/sonaguard/sonaguard/dataset"
	"github.com/sonaguard/sonaguard/forensics"
	"github.com/sonaguard/sonaguard/logging"
	"github.com/sonaguard/sonaguard/transcode"
)

func main() {
	out := flag.String("out", "models/voice_classifier.json", "output path for the model artifact")
	audioDir := flag.String("audio-dir", "", "labeled audio directory (root/ai, root/human); empty uses synthetic features")
	numAI := flag.Int("synth-ai", 1000, "synthetic AI samples when no audio directory is given")
	numHuman := flag.Int("synth-human", 1000, "synthetic human samples when no audio directory is given")
	numTrees := flag.Int("trees", 200, "number of trees in the forest")
	seed := flag.Int64("seed", 42, "random seed for synthesis, splitting and training")
	flag.Parse()

	var samples [][]float64
	var labels []int

	if *audioDir != "" {
		extractor, err := forensics.NewExtractor(nil)
		if err != nil {
			logging.Fatal(err, "Failed to build extractor")
		}
		loader := dataset.NewLoader(transcode.NewDecoder(nil), extractor)

		samples, labels, err = loader.LoadDirectory(*audioDir)
		if err != nil {
			logging.Fatal(err, "Failed to load audio dataset")
		}
	} else {
		samples, labels = dataset.Synthesize(dataset.SynthOptions{
			NumAI:    *numAI,
			NumHuman: *numHuman,
			Seed:     *seed,
		})
	}

	opts := classifier.DefaultTrainOptions()
	opts.Forest.NumTrees = *numTrees
	opts.Forest.Seed = *seed
	opts.Seed = *seed

	model, report, err := classifier.Train(samples, labels, opts)
	if err != nil {
		logging.Fatal(err, "Training failed")
	}

	if err := model.Save(*out); err != nil {
		logging.Fatal(err, "Failed to save model artifact")
	}

	fmt.Printf("Model saved to %s\n", *out)
	fmt.Printf("Train accuracy: %.4f\n", report.TrainAccuracy)
	fmt.Printf("Test accuracy:  %.4f (%d held-out samples)\n", report.TestAccuracy, report.TestSamples)
	fmt.Println("Top features by importance:")
	for i, entry := range report.Importance {
		if i >= 10 {
			break
		}
		fmt.Printf("  %2d. %-24s %.4f\n", i+1, entry.Name, entry.Importance)
	}
}
