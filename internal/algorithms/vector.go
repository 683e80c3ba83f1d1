package algorithms

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"hallucinator/internal/feature"
)

const vectorDims = 10

// ParentVector measures the Euclidean distance between the weighted current
// and parent band values, so patches that collide on the scalar score are
// still told apart by their structure one level up.
type ParentVector struct{}

func NewParentVector() *ParentVector {
	return &ParentVector{}
}

func (s *ParentVector) Name() string {
	return "parent-vector"
}

type vectorIndex struct {
	vectors [][]float64
	entry   []int
	index   []int
}

func (s *ParentVector) Index(entries [][]feature.ParentStructure) Index {
	idx := &vectorIndex{}
	for e, features := range entries {
		for i := range features {
			idx.vectors = append(idx.vectors, Embed(features[i]))
			idx.entry = append(idx.entry, e)
			idx.index = append(idx.index, i)
		}
	}
	return idx
}

func (idx *vectorIndex) Len() int {
	return len(idx.vectors)
}

func (idx *vectorIndex) Nearest(query feature.ParentStructure) (Match, bool) {
	if len(idx.vectors) == 0 {
		return Match{}, false
	}
	q := Embed(query)

	best := 0
	bestDist := math.Inf(1)
	for i, v := range idx.vectors {
		if d := floats.Distance(v, q, 2); i == 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return Match{Entry: idx.entry[best], Feature: idx.index[best], Distance: bestDist}, true
}

// Embed scales the current bands by 2^-level and the parent bands by
// 2^-(level+1), both weighted. A missing parent contributes zeros.
func Embed(ps feature.ParentStructure) []float64 {
	v := make([]float64, vectorDims)
	scale := math.Ldexp(1, -ps.Level)
	for i := range ps.Current {
		v[i] = ps.Weights[i] * scale * ps.Current[i]
	}
	if ps.HasParent {
		for i := range ps.Parent {
			v[5+i] = ps.Weights[i] * scale / 2 * ps.Parent[i]
		}
	}
	return v
}
