// Package matcher reconstructs a magnified region by replacing every pixel of
// the upsampled region with the reference pixel whose features match best.
package matcher

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"hallucinator/internal/algorithms"
	"hallucinator/internal/feature"
	"hallucinator/internal/imaging"
	"hallucinator/internal/library"
	"hallucinator/internal/logger"
)

type Options struct {
	Depth   int
	Filter  imaging.Filter
	Workers int
}

func DefaultOptions() Options {
	return Options{
		Depth:   3,
		Filter:  imaging.FilterLanczos,
		Workers: runtime.NumCPU(),
	}
}

type Result struct {
	// Canvas is the reconstruction; Upsampled is the plain magnification it
	// started from.
	Canvas    *imaging.Buffer
	Upsampled *imaging.Buffer
	Strategy  string
	Matched   int
	Unmatched int
	// Aborted is set when feature extraction failed and Canvas is the
	// unmodified upsampled region.
	Aborted         bool
	ExtractDuration time.Duration
	MatchDuration   time.Duration
}

type Reconstructor struct {
	resampler  imaging.Resampler
	extractor  *feature.Extractor
	strategies *algorithms.Manager
	opts       Options
	logger     logger.Logger
}

func NewReconstructor(resampler imaging.Resampler, extractor *feature.Extractor, strategies *algorithms.Manager, opts Options, log logger.Logger) *Reconstructor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Reconstructor{
		resampler:  resampler,
		extractor:  extractor,
		strategies: strategies,
		opts:       opts,
		logger:     log,
	}
}

// Hallucinate magnifies roi by scale and reconstructs every pixel from lib.
// An empty library returns the plain magnification. Cancellation is observed
// between output pixels.
func (r *Reconstructor) Hallucinate(ctx context.Context, roi *imaging.Buffer, scale int, lib *library.Library) (*Result, error) {
	if err := roi.Validate(); err != nil {
		return nil, err
	}
	if scale < 1 {
		return nil, fmt.Errorf("%w: scale %d must be at least 1", imaging.ErrInvalidInput, scale)
	}
	if r.opts.Depth < 1 {
		return nil, fmt.Errorf("%w: depth %d must be at least 1", imaging.ErrInvalidInput, r.opts.Depth)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	strategy := r.strategies.Current()
	size := image.Pt(roi.Width*scale, roi.Height*scale)
	upsampled, err := r.resampler.Resample(roi, size, r.opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to upsample region: %w", err)
	}

	result := &Result{
		Canvas:    upsampled.Clone(),
		Upsampled: upsampled,
		Strategy:  strategy.Name(),
	}
	if lib.Empty() {
		result.Unmatched = size.X * size.Y
		r.logger.Debug("matcher", "empty library, returning upsampled region", logger.Fields{"width": size.X, "height": size.Y})
		return result, nil
	}

	start := time.Now()
	features, err := r.extractor.ExtractLevel(result.Canvas, r.opts.Depth, 0)
	result.ExtractDuration = time.Since(start)
	if err == nil && len(features) != size.X*size.Y {
		err = fmt.Errorf("extracted %d features for %d pixels", len(features), size.X*size.Y)
	}
	if err != nil {
		r.logger.Error("matcher", fmt.Errorf("feature extraction aborted: %w", err), logger.Fields{"width": size.X, "height": size.Y})
		result.Aborted = true
		result.Unmatched = size.X * size.Y
		return result, nil
	}

	start = time.Now()
	index := strategy.Index(lib.Features())
	matched, err := r.match(ctx, result.Canvas, features, index, lib)
	result.MatchDuration = time.Since(start)
	if err != nil {
		return nil, err
	}
	result.Matched = matched
	result.Unmatched = size.X*size.Y - matched

	r.logger.Info("matcher", "reconstruction complete", logger.Fields{
		"strategy":         result.Strategy,
		"width":            size.X,
		"height":           size.Y,
		"library_features": index.Len(),
		"matched":          result.Matched,
		"extract_ms":       result.ExtractDuration.Milliseconds(),
		"match_ms":         result.MatchDuration.Milliseconds(),
	})
	return result, nil
}

// match splits the canvas into contiguous row bands, one per worker. Every
// worker writes only its own rows and reads the shared library.
func (r *Reconstructor) match(ctx context.Context, canvas *imaging.Buffer, features []feature.ParentStructure, index algorithms.Index, lib *library.Library) (int, error) {
	workers := min(r.opts.Workers, canvas.Height)
	rowsPerWorker := (canvas.Height + workers - 1) / workers
	counts := make([]int, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		top := w * rowsPerWorker
		bottom := min(top+rowsPerWorker, canvas.Height)
		if top >= bottom {
			break
		}

		wg.Add(1)
		go func(w, top, bottom int) {
			defer wg.Done()
			for y := top; y < bottom; y++ {
				for x := 0; x < canvas.Width; x++ {
					if ctx.Err() != nil {
						return
					}
					m, ok := index.Nearest(features[y*canvas.Width+x])
					if !ok {
						continue
					}
					entry := lib.At(m.Entry)
					pos := entry.Features[m.Feature].Position
					canvas.SetPixel(x, y, entry.Original.Pixel(pos.X, pos.Y))
					counts[w]++
				}
			}
		}(w, top, bottom)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	return total, nil
}
