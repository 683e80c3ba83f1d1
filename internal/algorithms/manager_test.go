package algorithms

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hallucinator/internal/feature"
)

func scores(values ...float64) []feature.ParentStructure {
	out := make([]feature.ParentStructure, len(values))
	for i, v := range values {
		out[i] = feature.ParentStructure{Score: v, Weights: feature.DefaultWeights}
	}
	return out
}

func query(score float64) feature.ParentStructure {
	return feature.ParentStructure{Score: score, Weights: feature.DefaultWeights}
}

func TestManagerRegistry(t *testing.T) {
	m := NewManager()
	assert.Equal(t, []string{"parent-vector", "weighted-score", "weighted-score-linear"}, m.Available())
	assert.Equal(t, DefaultStrategy, m.Current().Name())

	require.NoError(t, m.SetCurrent("parent-vector"))
	assert.Equal(t, "parent-vector", m.Current().Name())

	err := m.SetCurrent("threshold")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Equal(t, "parent-vector", m.Current().Name())

	_, err = m.Get("threshold")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestFirstEntryWinsNearTie(t *testing.T) {
	entries := [][]feature.ParentStructure{scores(5.0), scores(5.2)}

	for _, s := range []Strategy{NewWeightedScore(), NewWeightedScoreLinear()} {
		match, ok := s.Index(entries).Nearest(query(5.1))
		require.True(t, ok, s.Name())
		assert.Equal(t, 0, match.Entry, s.Name())
		assert.Equal(t, 0, match.Feature, s.Name())
	}
}

func TestExactTiesResolveToEarliest(t *testing.T) {
	entries := [][]feature.ParentStructure{scores(9, 3, 7), scores(3, 7), scores(5)}

	for _, s := range []Strategy{NewWeightedScore(), NewWeightedScoreLinear()} {
		idx := s.Index(entries)

		match, ok := idx.Nearest(query(5))
		require.True(t, ok)
		assert.Equal(t, Match{Entry: 2, Feature: 0, Distance: 0}, match, s.Name())

		// without the exact hit, 3 and 7 are both 2 away and entry 0 feature 1
		// comes first
		match, ok = s.Index(entries[:2]).Nearest(query(5))
		require.True(t, ok)
		assert.Equal(t, 0, match.Entry, s.Name())
		assert.Equal(t, 1, match.Feature, s.Name())
	}
}

func TestEmptyIndex(t *testing.T) {
	for _, s := range []Strategy{NewWeightedScore(), NewWeightedScoreLinear(), NewParentVector()} {
		idx := s.Index(nil)
		assert.Zero(t, idx.Len())
		_, ok := idx.Nearest(query(1))
		assert.False(t, ok, s.Name())
	}
}

func TestSortedIndexMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	entries := make([][]feature.ParentStructure, 6)
	for e := range entries {
		values := make([]float64, 50)
		for i := range values {
			// coarse values produce plenty of exact ties
			values[i] = float64(rng.Intn(40)) / 4
		}
		entries[e] = scores(values...)
	}

	sorted := NewWeightedScore().Index(entries)
	linear := NewWeightedScoreLinear().Index(entries)
	require.Equal(t, 300, sorted.Len())
	require.Equal(t, 300, linear.Len())

	for i := 0; i < 500; i++ {
		q := query(rng.Float64()*12 - 1)
		if i%5 == 0 {
			q = query(float64(rng.Intn(48))/8 + 0.125)
		}
		want, _ := linear.Nearest(q)
		got, _ := sorted.Nearest(q)
		assert.Equal(t, want, got, "query %v", q.Score)
	}
}

func TestParentVectorUsesParentBands(t *testing.T) {
	same := feature.Vector{4, 2, 2, 1, 1}
	a := feature.ParentStructure{Current: same, Parent: feature.Vector{10}, HasParent: true, Weights: feature.DefaultWeights}
	b := feature.ParentStructure{Current: same, Parent: feature.Vector{-10}, HasParent: true, Weights: feature.DefaultWeights}
	a.Score = feature.WeightedScore(a.Current, a.Weights, 0)
	b.Score = a.Score

	q := b
	q.Parent = feature.Vector{-9}

	match, ok := NewParentVector().Index([][]feature.ParentStructure{{a}, {b}}).Nearest(q)
	require.True(t, ok)
	assert.Equal(t, 1, match.Entry)
	assert.InDelta(t, 0.5, match.Distance, 1e-12)

	// the scalar score cannot tell them apart and keeps the first
	match, ok = NewWeightedScore().Index([][]feature.ParentStructure{{a}, {b}}).Nearest(q)
	require.True(t, ok)
	assert.Equal(t, 0, match.Entry)
}

func TestEmbed(t *testing.T) {
	ps := feature.ParentStructure{
		Level:     1,
		Current:   feature.Vector{2, 2, 2, 2, 2},
		Parent:    feature.Vector{4, 4, 4, 4, 4},
		HasParent: true,
		Weights:   feature.DefaultWeights,
	}
	assert.Equal(t, []float64{1, 0.5, 0.5, 0.25, 0.25, 1, 0.5, 0.5, 0.25, 0.25}, Embed(ps))

	ps.HasParent = false
	assert.Equal(t, []float64{1, 0.5, 0.5, 0.25, 0.25, 0, 0, 0, 0, 0}, Embed(ps))
}
