// Package pyramid decomposes an image into Gaussian levels, Laplacian
// band-pass residuals and derivative bands.
package pyramid

import (
	"fmt"

	"hallucinator/internal/imaging"
)

const smoothKernel = 3

// Level holds one decomposition level. Gaussian and Laplacian keep the
// source channel count; the four derivative bands are single channel
// magnitudes.
type Level struct {
	Index     int
	Gaussian  *imaging.Buffer
	Laplacian *imaging.Buffer
	DH1       *imaging.Buffer
	DV1       *imaging.Buffer
	DH2       *imaging.Buffer
	DV2       *imaging.Buffer
}

// Pyramid is the result of one Decompose call. Levels up to the requested
// maximum carry bands; Gaussian covers every level up to Depth.
type Pyramid struct {
	Depth    int
	Gaussian []*imaging.Buffer
	Levels   []Level
}

// Release drops every buffer reference so the decomposition can be collected
// as soon as its owner is done with it.
func (p *Pyramid) Release() {
	if p == nil {
		return
	}
	for i := range p.Gaussian {
		p.Gaussian[i] = nil
	}
	for i := range p.Levels {
		p.Levels[i] = Level{Index: p.Levels[i].Index}
	}
	p.Gaussian = nil
	p.Levels = nil
}

type Builder struct {
	resampler imaging.Resampler
}

func NewBuilder(resampler imaging.Resampler) *Builder {
	return &Builder{resampler: resampler}
}

// Gaussian returns depth+1 levels; level 0 is img itself and every further
// level has floor-halved dimensions. Levels that halve to zero are empty
// buffers. On invalid input the single level [img] is returned with the error.
func (b *Builder) Gaussian(img *imaging.Buffer, depth int) ([]*imaging.Buffer, error) {
	if img.Empty() || depth < 0 {
		return []*imaging.Buffer{img}, fmt.Errorf("%w: gaussian pyramid of %v with depth %d",
			imaging.ErrInvalidInput, img.Size(), depth)
	}

	levels := make([]*imaging.Buffer, 0, depth+1)
	levels = append(levels, img)
	for i := 1; i <= depth; i++ {
		next, err := b.down(levels[i-1])
		if err != nil {
			return levels, fmt.Errorf("gaussian level %d: %w", i, err)
		}
		levels = append(levels, next)
	}
	return levels, nil
}

// LaplacianBand returns the detail lost between level and level+1 of base.
func (b *Builder) LaplacianBand(base *imaging.Buffer, level int) (*imaging.Buffer, error) {
	if base.Empty() || level < 0 {
		return nil, fmt.Errorf("%w: laplacian band %d of %v", imaging.ErrInvalidInput, level, base.Size())
	}

	fine := base
	for i := 0; i < level; i++ {
		next, err := b.down(fine)
		if err != nil {
			return nil, fmt.Errorf("laplacian level %d: %w", i+1, err)
		}
		fine = next
	}
	coarse, err := b.down(fine)
	if err != nil {
		return nil, fmt.Errorf("laplacian level %d: %w", level+1, err)
	}
	return b.band(fine, coarse)
}

// DerivativeBands smooths img, converts it to intensity and returns the
// magnitudes of the first and second horizontal and vertical derivatives.
func (b *Builder) DerivativeBands(img *imaging.Buffer) (dH1, dV1, dH2, dV2 *imaging.Buffer, err error) {
	if img.Empty() {
		empty := func() *imaging.Buffer { return imaging.NewBuffer(img.Size().X, img.Size().Y, 1) }
		return empty(), empty(), empty(), empty(), nil
	}

	smoothed, err := b.resampler.Smooth(img, smoothKernel)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("smooth: %w", err)
	}
	intensity, err := b.resampler.ToIntensity(smoothed)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("intensity: %w", err)
	}

	if dH1, err = b.resampler.Gradient(intensity, imaging.AxisHorizontal); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("horizontal gradient: %w", err)
	}
	if dV1, err = b.resampler.Gradient(intensity, imaging.AxisVertical); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("vertical gradient: %w", err)
	}
	if dH2, err = b.resampler.Gradient(dH1, imaging.AxisHorizontal); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("second horizontal gradient: %w", err)
	}
	if dV2, err = b.resampler.Gradient(dV1, imaging.AxisVertical); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("second vertical gradient: %w", err)
	}

	// second derivatives are taken from the signed first derivatives
	return dH1.Abs(), dV1.Abs(), dH2.Abs(), dV2.Abs(), nil
}

// MaxDepth is the deepest level at which a w x h image is still at least 1x1.
func MaxDepth(w, h int) int {
	depth := 0
	for w >= 2 && h >= 2 {
		w, h = w/2, h/2
		depth++
	}
	return depth
}

// Decompose builds the Gaussian levels of img down to depth, clamped to
// MaxDepth, and the five bands for levels 0..maxLevel.
func (b *Builder) Decompose(img *imaging.Buffer, depth, maxLevel int) (*Pyramid, error) {
	if img.Empty() || depth < 0 {
		return nil, fmt.Errorf("%w: decompose %v with depth %d", imaging.ErrInvalidInput, img.Size(), depth)
	}
	if limit := MaxDepth(img.Width, img.Height); depth > limit {
		depth = limit
	}
	if maxLevel > depth {
		maxLevel = depth
	}
	if maxLevel < 0 {
		maxLevel = 0
	}

	// one extra level so the band at the coarsest level matches LaplacianBand
	gaussian, err := b.Gaussian(img, depth+1)
	if err != nil {
		return nil, err
	}

	p := &Pyramid{
		Depth:    depth,
		Gaussian: gaussian[:depth+1],
		Levels:   make([]Level, 0, maxLevel+1),
	}
	for l := 0; l <= maxLevel; l++ {
		lap, err := b.band(gaussian[l], gaussian[l+1])
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("laplacian level %d: %w", l, err)
		}
		dH1, dV1, dH2, dV2, err := b.DerivativeBands(gaussian[l])
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("derivatives level %d: %w", l, err)
		}
		p.Levels = append(p.Levels, Level{
			Index:     l,
			Gaussian:  gaussian[l],
			Laplacian: lap,
			DH1:       dH1,
			DV1:       dV1,
			DH2:       dH2,
			DV2:       dV2,
		})
	}
	return p, nil
}

func (b *Builder) down(img *imaging.Buffer) (*imaging.Buffer, error) {
	size := imaging.Half(img.Size())
	if img.Empty() || size.X == 0 || size.Y == 0 {
		return imaging.NewBuffer(size.X, size.Y, img.Channels), nil
	}
	return b.resampler.Resample(img, size, imaging.FilterPyramid)
}

// band subtracts the expanded coarse level from fine. An empty coarse level
// leaves fine as the low-pass remainder.
func (b *Builder) band(fine, coarse *imaging.Buffer) (*imaging.Buffer, error) {
	if fine.Empty() {
		return imaging.NewBuffer(fine.Size().X, fine.Size().Y, fine.Channels), nil
	}
	if coarse.Empty() {
		return fine.Clone(), nil
	}
	up, err := b.resampler.Resample(coarse, fine.Size(), imaging.FilterPyramid)
	if err != nil {
		return nil, err
	}
	return imaging.Subtract(fine, up)
}
