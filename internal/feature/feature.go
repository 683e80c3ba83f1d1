// Package feature turns pyramid bands into per-pixel parent structures: the
// five band values at a pixel together with the same values one level
// coarser, reduced to a weighted score for matching.
package feature

import (
	"fmt"
	"image"
	"math"

	"hallucinator/internal/imaging"
	"hallucinator/internal/pyramid"
)

// Vector is ordered (laplacian, dH1, dV1, dH2, dV2).
type Vector [5]float64

// DefaultWeights favour the Laplacian and weigh second derivatives least.
var DefaultWeights = [5]float64{1.0, 0.5, 0.5, 0.25, 0.25}

type ParentStructure struct {
	Level     int
	Position  image.Point
	Current   Vector
	Parent    Vector
	HasParent bool
	Weights   [5]float64
	Score     float64
}

// WeightedScore is sum(weights[i] * 2^-level * current[i]).
func WeightedScore(current Vector, weights [5]float64, level int) float64 {
	scale := math.Ldexp(1, -level)
	var score float64
	for i, v := range current {
		score += weights[i] * scale * v
	}
	return score
}

type Extractor struct {
	Weights [5]float64

	builder *pyramid.Builder
}

func NewExtractor(builder *pyramid.Builder, weights [5]float64) *Extractor {
	return &Extractor{Weights: weights, builder: builder}
}

// Extract returns one record per pixel per level, level-major then raster
// order. The coarsest level has no parent.
func (e *Extractor) Extract(img *imaging.Buffer, depth int) ([]ParentStructure, error) {
	if err := validate(img, depth); err != nil {
		return nil, err
	}

	p, err := e.builder.Decompose(img, depth, depth)
	if err != nil {
		return nil, err
	}
	defer p.Release()

	total := 0
	for _, level := range p.Levels {
		total += level.Gaussian.Width * level.Gaussian.Height
	}
	out := make([]ParentStructure, 0, total)
	for l := range p.Levels {
		out = e.appendLevel(out, p, l)
	}
	return out, nil
}

// ExtractLevel returns the records of a single level, computing only the
// bands that level and its parent need.
func (e *Extractor) ExtractLevel(img *imaging.Buffer, depth, level int) ([]ParentStructure, error) {
	if err := validate(img, depth); err != nil {
		return nil, err
	}
	if level < 0 || level > depth {
		return nil, fmt.Errorf("%w: level %d outside depth %d", imaging.ErrInvalidInput, level, depth)
	}

	p, err := e.builder.Decompose(img, depth, level+1)
	if err != nil {
		return nil, err
	}
	defer p.Release()

	if level >= len(p.Levels) {
		return nil, nil
	}
	return e.appendLevel(nil, p, level), nil
}

func (e *Extractor) appendLevel(out []ParentStructure, p *pyramid.Pyramid, l int) []ParentStructure {
	level := p.Levels[l]
	hasParent := l < p.Depth && l+1 < len(p.Levels)

	for y := 0; y < level.Gaussian.Height; y++ {
		for x := 0; x < level.Gaussian.Width; x++ {
			ps := ParentStructure{
				Level:     l,
				Position:  image.Pt(x, y),
				Current:   sample(level, x, y),
				HasParent: hasParent,
				Weights:   e.Weights,
			}
			if hasParent {
				parent := p.Levels[l+1]
				ps.Parent = sample(parent, min(x/2, parent.Gaussian.Width-1), min(y/2, parent.Gaussian.Height-1))
			}
			ps.Score = WeightedScore(ps.Current, e.Weights, l)
			out = append(out, ps)
		}
	}
	return out
}

func sample(level pyramid.Level, x, y int) Vector {
	return Vector{
		level.Laplacian.Sum(x, y),
		float64(level.DH1.At(x, y, 0)),
		float64(level.DV1.At(x, y, 0)),
		float64(level.DH2.At(x, y, 0)),
		float64(level.DV2.At(x, y, 0)),
	}
}

func validate(img *imaging.Buffer, depth int) error {
	if img.Empty() {
		return fmt.Errorf("%w: empty image", imaging.ErrInvalidInput)
	}
	if depth < 1 {
		return fmt.Errorf("%w: depth %d must be at least 1", imaging.ErrInvalidInput, depth)
	}
	return nil
}
