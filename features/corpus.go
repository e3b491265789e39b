package features

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/preprocessing"
)

// ErrNoUtterances is returned when a corpus yields no usable audio
var ErrNoUtterances = errors.New("no utterances could be extracted")

// Utterance is one labeled recording in a speaker/emotion/*.wav tree
type Utterance struct {
	Speaker string
	Emotion string
	Path    string
}

// Discover lists the utterances under root. The expected layout is
// root/<speaker>/<emotion>/<file>.wav; anything that is not a directory at the
// speaker or emotion level (symlinks are followed), or not a .wav file at the
// leaf level, is skipped.
// Entries are visited in lexical order.
func Discover(root string) ([]Utterance, error) {
	speakers, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var utterances []Utterance
	for _, speaker := range speakers {
		speakerPath := filepath.Join(root, speaker.Name())
		if !isDir(speaker, speakerPath) {
			continue
		}

		emotions, err := os.ReadDir(speakerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read speaker directory %s: %w", speakerPath, err)
		}

		for _, emotion := range emotions {
			emotionPath := filepath.Join(speakerPath, emotion.Name())
			if !isDir(emotion, emotionPath) {
				continue
			}

			files, err := os.ReadDir(emotionPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read emotion directory %s: %w", emotionPath, err)
			}

			for _, file := range files {
				if file.IsDir() || !strings.HasSuffix(file.Name(), ".wav") {
					continue
				}
				utterances = append(utterances, Utterance{
					Speaker: speaker.Name(),
					Emotion: emotion.Name(),
					Path:    filepath.Join(emotionPath, file.Name()),
				})
			}
		}
	}

	return utterances, nil
}

// isDir reports whether entry is a directory, following symlinks
func isDir(entry os.DirEntry, path string) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

type extractJob struct {
	index     int
	utterance Utterance
}

type extractResult struct {
	features []float64
	err      error
}

// ExtractCorpus extracts every utterance under root and returns a dataset with
// a label encoder fitted on the surviving labels. Files that fail to load or
// analyze are logged and left out. Row order follows discovery order
// regardless of the number of workers.
func (e *Extractor) ExtractCorpus(ctx context.Context, root string) (*Dataset, error) {
	logger := e.logger.WithFields(logging.Fields{
		"function": "ExtractCorpus",
		"root":     root,
	})

	utterances, err := Discover(root)
	if err != nil {
		return nil, err
	}
	if len(utterances) == 0 {
		return nil, fmt.Errorf("%w: no .wav files under %s", ErrNoUtterances, root)
	}

	logger.Info("Extracting features", logging.Fields{"files": len(utterances)})

	results := e.extractAll(ctx, utterances)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		rows    [][]float64
		labels  []string
		sources []string
	)
	for i, res := range results {
		u := utterances[i]
		if res.err != nil {
			logger.Error(res.err, "Error processing file", logging.Fields{
				"path":    u.Path,
				"speaker": u.Speaker,
				"emotion": u.Emotion,
			})
			continue
		}
		rows = append(rows, res.features)
		labels = append(labels, u.Emotion)
		sources = append(sources, u.Path)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: all %d files failed", ErrNoUtterances, len(utterances))
	}

	encoder, err := preprocessing.FitLabelEncoder(labels)
	if err != nil {
		return nil, err
	}
	encoded, err := encoder.Transform(labels)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Features:        rows,
		Labels:          encoded,
		Encoder:         encoder,
		SampleRate:      e.config.SampleRate,
		NumCoefficients: e.config.NumCoefficients,
		Sources:         sources,
	}

	logger.Info("Feature extraction complete", logging.Fields{
		"total_samples": len(rows),
		"skipped":       len(utterances) - len(rows),
		"classes":       encoder.Classes(),
	})

	return ds, nil
}

// extractAll runs ExtractFile over a bounded worker pool. results[i] belongs
// to utterances[i].
func (e *Extractor) extractAll(ctx context.Context, utterances []Utterance) []extractResult {
	results := make([]extractResult, len(utterances))

	numWorkers := e.config.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = max(1, min(numWorkers, len(utterances)))

	jobs := make(chan extractJob, numWorkers)
	var wg sync.WaitGroup

	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if err := ctx.Err(); err != nil {
					results[job.index] = extractResult{err: err}
					continue
				}
				vec, err := e.ExtractFile(job.utterance.Path)
				results[job.index] = extractResult{features: vec, err: err}
			}
		}()
	}

	for i, u := range utterances {
		if ctx.Err() != nil {
			results[i] = extractResult{err: ctx.Err()}
			continue
		}
		jobs <- extractJob{index: i, utterance: u}
	}
	close(jobs)
	wg.Wait()

	return results
}
