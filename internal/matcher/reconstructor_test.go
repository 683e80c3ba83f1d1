package matcher

import (
	"context"
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hallucinator/internal/algorithms"
	"hallucinator/internal/feature"
	"hallucinator/internal/imaging"
	"hallucinator/internal/imaging/imagingtest"
	"hallucinator/internal/library"
	"hallucinator/internal/logger"
	"hallucinator/internal/pyramid"
)

// smoothNoise has continuous values, so no two pixels share a score.
func smoothNoise(w, h, channels int, seed int64) *imaging.Buffer {
	rng := rand.New(rand.NewSource(seed))
	buf := imaging.NewBuffer(w, h, channels)
	for i := range buf.Pix {
		buf.Pix[i] = rng.Float32() * 255
	}
	return buf
}

type fixture struct {
	proc      *imagingtest.Processor
	extractor *feature.Extractor
	manager   *algorithms.Manager
}

func newFixture() *fixture {
	proc := imagingtest.New()
	return &fixture{
		proc:      proc,
		extractor: feature.NewExtractor(pyramid.NewBuilder(proc), feature.DefaultWeights),
		manager:   algorithms.NewManager(),
	}
}

func (f *fixture) reconstructor(workers int) *Reconstructor {
	opts := DefaultOptions()
	opts.Workers = workers
	return NewReconstructor(f.proc, f.extractor, f.manager, opts, logger.NewNop())
}

func (f *fixture) entry(t *testing.T, id string, img *imaging.Buffer) *library.Entry {
	t.Helper()
	features, err := f.extractor.Extract(img, 3)
	require.NoError(t, err)
	return &library.Entry{ID: id, Original: img, Features: features}
}

func TestRoundTripReproducesReference(t *testing.T) {
	for _, strategy := range []string{"weighted-score", "parent-vector"} {
		t.Run(strategy, func(t *testing.T) {
			f := newFixture()
			require.NoError(t, f.manager.SetCurrent(strategy))
			roi := smoothNoise(12, 10, 3, 1)

			upsampled, err := f.proc.Resample(roi, roi.Size(), imaging.FilterLanczos)
			require.NoError(t, err)
			lib := library.New([]*library.Entry{f.entry(t, "self.png", upsampled)})

			result, err := f.reconstructor(3).Hallucinate(context.Background(), roi, 1, lib)
			require.NoError(t, err)
			assert.True(t, upsampled.Equal(result.Canvas))
			assert.Equal(t, 120, result.Matched)
			assert.Zero(t, result.Unmatched)
			assert.Equal(t, strategy, result.Strategy)
		})
	}
}

func TestRoundTripAtDoubleScale(t *testing.T) {
	for _, strategy := range []string{"weighted-score", "parent-vector"} {
		t.Run(strategy, func(t *testing.T) {
			f := newFixture()
			require.NoError(t, f.manager.SetCurrent(strategy))
			roi := smoothNoise(12, 10, 3, 12)

			upsampled, err := f.proc.Resample(roi, image.Pt(24, 20), imaging.FilterLanczos)
			require.NoError(t, err)
			lib := library.New([]*library.Entry{f.entry(t, "double.png", upsampled)})

			result, err := f.reconstructor(4).Hallucinate(context.Background(), roi, 2, lib)
			require.NoError(t, err)
			assert.Equal(t, image.Pt(24, 20), result.Canvas.Size())
			assert.True(t, upsampled.Equal(result.Canvas))
			assert.Equal(t, 480, result.Matched)
			assert.Zero(t, result.Unmatched)
		})
	}
}

func TestEmptyLibraryPassesThrough(t *testing.T) {
	f := newFixture()
	roi := smoothNoise(5, 4, 3, 2)

	result, err := f.reconstructor(2).Hallucinate(context.Background(), roi, 3, library.New(nil))
	require.NoError(t, err)

	want, err := f.proc.Resample(roi, image.Pt(15, 12), imaging.FilterLanczos)
	require.NoError(t, err)
	assert.True(t, want.Equal(result.Canvas))
	assert.True(t, want.Equal(result.Upsampled))
	assert.Zero(t, result.Matched)
	assert.False(t, result.Aborted)
	assert.Zero(t, f.proc.GradientCalls(), "no extraction without a library")
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	f := newFixture()
	lib := library.New([]*library.Entry{
		f.entry(t, "b.png", smoothNoise(9, 9, 3, 3)),
		f.entry(t, "a.png", imagingtest.Noise(10, 7, 3, 4)),
	})
	roi := smoothNoise(6, 5, 3, 5)

	first, err := f.reconstructor(1).Hallucinate(context.Background(), roi, 2, lib)
	require.NoError(t, err)
	for _, workers := range []int{1, 2, 7, 64} {
		again, err := f.reconstructor(workers).Hallucinate(context.Background(), roi, 2, lib)
		require.NoError(t, err)
		assert.Equal(t, first.Canvas.Pix, again.Canvas.Pix, "workers=%d", workers)
	}
	assert.Equal(t, image.Pt(12, 10), first.Canvas.Size())
	assert.Equal(t, 120, first.Matched)
}

func TestCanvasTakesReferenceChannels(t *testing.T) {
	f := newFixture()
	grey := imaging.NewBuffer(4, 4, 1)
	for i := range grey.Pix {
		grey.Pix[i] = 77
	}
	lib := library.New([]*library.Entry{f.entry(t, "grey.png", grey)})

	result, err := f.reconstructor(1).Hallucinate(context.Background(), smoothNoise(3, 3, 3, 6), 2, lib)
	require.NoError(t, err)
	for _, v := range result.Canvas.Pix {
		assert.Equal(t, float32(77), v)
	}
}

func TestInvalidInput(t *testing.T) {
	r := newFixture().reconstructor(1)

	_, err := r.Hallucinate(context.Background(), imaging.NewBuffer(0, 0, 3), 2, nil)
	assert.ErrorIs(t, err, imaging.ErrInvalidInput)

	_, err = r.Hallucinate(context.Background(), smoothNoise(2, 2, 3, 7), 0, nil)
	assert.ErrorIs(t, err, imaging.ErrInvalidInput)
}

func TestZeroDepthRejected(t *testing.T) {
	f := newFixture()
	opts := DefaultOptions()
	opts.Depth = 0
	r := NewReconstructor(f.proc, f.extractor, f.manager, opts, logger.NewNop())

	lib := library.New([]*library.Entry{f.entry(t, "a.png", smoothNoise(4, 4, 3, 10))})
	result, err := r.Hallucinate(context.Background(), smoothNoise(4, 4, 3, 11), 2, lib)
	assert.ErrorIs(t, err, imaging.ErrInvalidInput)
	assert.Nil(t, result, "a bad depth is not reported as an aborted reconstruction")

	_, err = r.Hallucinate(context.Background(), smoothNoise(4, 4, 3, 11), 2, library.New(nil))
	assert.ErrorIs(t, err, imaging.ErrInvalidInput)
}

func TestExtractionFailureAborts(t *testing.T) {
	f := newFixture()
	lib := library.New([]*library.Entry{f.entry(t, "a.png", smoothNoise(4, 4, 3, 8))})
	f.proc.FailGradientAfter = f.proc.GradientCalls() + 1

	result, err := f.reconstructor(2).Hallucinate(context.Background(), smoothNoise(4, 4, 3, 9), 2, lib)
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	assert.True(t, result.Upsampled.Equal(result.Canvas))
}

type cancellingStrategy struct {
	cancel context.CancelFunc
}

func (s *cancellingStrategy) Name() string { return "cancelling" }

func (s *cancellingStrategy) Index(entries [][]feature.ParentStructure) algorithms.Index {
	return &cancellingIndex{cancel: s.cancel}
}

type cancellingIndex struct {
	cancel context.CancelFunc
}

func (i *cancellingIndex) Len() int { return 1 }

func (i *cancellingIndex) Nearest(feature.ParentStructure) (algorithms.Match, bool) {
	i.cancel()
	return algorithms.Match{}, true
}

func TestCancellationStopsBetweenPixels(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.manager.Register(&cancellingStrategy{cancel: cancel})
	require.NoError(t, f.manager.SetCurrent("cancelling"))
	lib := library.New([]*library.Entry{f.entry(t, "a.png", smoothNoise(4, 4, 3, 10))})

	_, err := f.reconstructor(1).Hallucinate(ctx, smoothNoise(4, 4, 3, 11), 2, lib)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFixture().reconstructor(1).Hallucinate(ctx, smoothNoise(4, 4, 3, 12), 2, library.New(nil))
	assert.ErrorIs(t, err, context.Canceled)
}
