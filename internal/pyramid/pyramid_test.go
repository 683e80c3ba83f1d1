package pyramid

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hallucinator/internal/imaging"
	"hallucinator/internal/imaging/imagingtest"
)

func newBuilder() *Builder {
	return NewBuilder(imagingtest.New())
}

func TestGaussianLevelSizes(t *testing.T) {
	img := imagingtest.Noise(13, 10, 3, 1)

	for depth := 1; depth <= 5; depth++ {
		levels, err := newBuilder().Gaussian(img, depth)
		require.NoError(t, err)
		require.Len(t, levels, depth+1)
		assert.Same(t, img, levels[0])

		for i := 1; i < len(levels); i++ {
			prev := levels[i-1].Size()
			assert.Equal(t, image.Pt(prev.X/2, prev.Y/2), levels[i].Size(), "depth %d level %d", depth, i)
			assert.Equal(t, 3, levels[i].Channels)
		}
	}
}

func TestGaussianPastOnePixelYieldsEmptyLevels(t *testing.T) {
	levels, err := newBuilder().Gaussian(imagingtest.Noise(4, 4, 1, 2), 4)
	require.NoError(t, err)
	require.Len(t, levels, 5)
	assert.Equal(t, image.Pt(1, 1), levels[2].Size())
	assert.True(t, levels[3].Empty())
	assert.True(t, levels[4].Empty())
}

func TestGaussianInvalidInput(t *testing.T) {
	img := imagingtest.Noise(4, 4, 1, 3)

	levels, err := newBuilder().Gaussian(img, -1)
	assert.ErrorIs(t, err, imaging.ErrInvalidInput)
	assert.Equal(t, []*imaging.Buffer{img}, levels)

	empty := imaging.NewBuffer(0, 0, 3)
	levels, err = newBuilder().Gaussian(empty, 2)
	assert.ErrorIs(t, err, imaging.ErrInvalidInput)
	assert.Len(t, levels, 1)
}

func TestLaplacianOfConstantImageIsZero(t *testing.T) {
	img := imaging.NewBuffer(8, 8, 3)
	for i := range img.Pix {
		img.Pix[i] = 100
	}

	band, err := newBuilder().LaplacianBand(img, 1)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 4), band.Size())
	assert.Equal(t, 3, band.Channels)
	for _, v := range band.Pix {
		assert.Zero(t, v)
	}
}

func TestLaplacianAtCoarsestLevelIsRemainder(t *testing.T) {
	img := imagingtest.Noise(4, 4, 1, 4)
	b := newBuilder()

	band, err := b.LaplacianBand(img, 2)
	require.NoError(t, err)

	levels, err := b.Gaussian(img, 2)
	require.NoError(t, err)
	assert.True(t, levels[2].Equal(band))
}

func TestDecomposeMatchesLaplacianBand(t *testing.T) {
	img := imagingtest.Noise(17, 12, 3, 5)
	b := newBuilder()

	p, err := b.Decompose(img, 3, 3)
	require.NoError(t, err)
	require.Len(t, p.Levels, 4)
	assert.Equal(t, 3, p.Depth)

	for _, level := range p.Levels {
		want, err := b.LaplacianBand(img, level.Index)
		require.NoError(t, err)
		assert.True(t, want.Equal(level.Laplacian), "level %d", level.Index)
	}
}

func TestDecomposeClampsDepth(t *testing.T) {
	p, err := newBuilder().Decompose(imagingtest.Noise(4, 4, 1, 6), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Depth)
	assert.Len(t, p.Gaussian, 3)
	assert.Len(t, p.Levels, 3)

	p.Release()
	assert.Nil(t, p.Levels)
	assert.Nil(t, p.Gaussian)
}

func TestDerivativeBandsAreMagnitudes(t *testing.T) {
	img := imagingtest.Noise(9, 7, 3, 7)

	dH1, dV1, dH2, dV2, err := newBuilder().DerivativeBands(img)
	require.NoError(t, err)
	for _, band := range []*imaging.Buffer{dH1, dV1, dH2, dV2} {
		assert.Equal(t, 1, band.Channels)
		assert.Equal(t, img.Size(), band.Size())
		for _, v := range band.Pix {
			assert.GreaterOrEqual(t, v, float32(0))
		}
	}
}

func TestDerivativeBandsPropagateFailures(t *testing.T) {
	proc := imagingtest.New()
	proc.FailGradientAfter = 2

	_, _, _, _, err := NewBuilder(proc).DerivativeBands(imagingtest.Noise(4, 4, 1, 8))
	assert.ErrorIs(t, err, imagingtest.ErrInjected)
}

func TestMaxDepth(t *testing.T) {
	assert.Equal(t, 0, MaxDepth(1, 5))
	assert.Equal(t, 2, MaxDepth(4, 4))
	assert.Equal(t, 3, MaxDepth(17, 12))
}
