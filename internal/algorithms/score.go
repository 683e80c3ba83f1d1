package algorithms

import (
	"math"
	"sort"

	"hallucinator/internal/feature"
)

// WeightedScore compares the precomputed scalar scores. The index keeps the
// scores sorted and inspects only the runs adjacent to the query.
type WeightedScore struct{}

func NewWeightedScore() *WeightedScore {
	return &WeightedScore{}
}

func (s *WeightedScore) Name() string {
	return "weighted-score"
}

type scored struct {
	score float64
	order int
	entry int
	index int
}

type scoreIndex struct {
	items []scored
	// groupStart and groupEnd bound the run of identical scores around each
	// position; groupEnd is exclusive.
	groupStart []int
	groupEnd   []int
}

func (s *WeightedScore) Index(entries [][]feature.ParentStructure) Index {
	idx := &scoreIndex{}
	order := 0
	for e, features := range entries {
		for i := range features {
			idx.items = append(idx.items, scored{score: features[i].Score, order: order, entry: e, index: i})
			order++
		}
	}

	sort.Slice(idx.items, func(i, j int) bool {
		a, b := idx.items[i], idx.items[j]
		if a.score != b.score {
			return a.score < b.score
		}
		return a.order < b.order
	})

	n := len(idx.items)
	idx.groupStart = make([]int, n)
	idx.groupEnd = make([]int, n)
	for i := 0; i < n; i++ {
		if i > 0 && idx.items[i].score == idx.items[i-1].score {
			idx.groupStart[i] = idx.groupStart[i-1]
		} else {
			idx.groupStart[i] = i
		}
	}
	for i := n - 1; i >= 0; i-- {
		if i < n-1 && idx.items[i].score == idx.items[i+1].score {
			idx.groupEnd[i] = idx.groupEnd[i+1]
		} else {
			idx.groupEnd[i] = i + 1
		}
	}
	return idx
}

func (idx *scoreIndex) Len() int {
	return len(idx.items)
}

func (idx *scoreIndex) Nearest(query feature.ParentStructure) (Match, bool) {
	n := len(idx.items)
	if n == 0 {
		return Match{}, false
	}
	q := query.Score
	pos := sort.Search(n, func(i int) bool { return idx.items[i].score >= q })

	best := -1
	bestDist := math.Inf(1)
	consider := func(i int, dist float64) {
		if best < 0 || dist < bestDist || (dist == bestDist && idx.items[i].order < idx.items[best].order) {
			best, bestDist = i, dist
		}
	}

	// Distinct scores can round to the same distance, so every group at the
	// minimal distance on each side is visited.
	if pos < n {
		d := idx.items[pos].score - q
		for j := pos; j < n && idx.items[j].score-q == d; j = idx.groupEnd[j] {
			consider(j, d)
		}
	}
	if pos > 0 {
		d := q - idx.items[pos-1].score
		for j := pos - 1; j >= 0 && q-idx.items[j].score == d; j = idx.groupStart[j] - 1 {
			consider(idx.groupStart[j], d)
		}
	}

	if best < 0 {
		return Match{}, false
	}
	it := idx.items[best]
	return Match{Entry: it.entry, Feature: it.index, Distance: bestDist}, true
}

// WeightedScoreLinear is the exhaustive scan over the same distance as
// WeightedScore. It serves as the reference for the sorted index.
type WeightedScoreLinear struct{}

func NewWeightedScoreLinear() *WeightedScoreLinear {
	return &WeightedScoreLinear{}
}

func (s *WeightedScoreLinear) Name() string {
	return "weighted-score-linear"
}

type linearScoreIndex struct {
	entries [][]feature.ParentStructure
	n       int
}

func (s *WeightedScoreLinear) Index(entries [][]feature.ParentStructure) Index {
	n := 0
	for _, features := range entries {
		n += len(features)
	}
	return &linearScoreIndex{entries: entries, n: n}
}

func (idx *linearScoreIndex) Len() int {
	return idx.n
}

func (idx *linearScoreIndex) Nearest(query feature.ParentStructure) (Match, bool) {
	found := false
	best := Match{Distance: math.Inf(1)}
	for e, features := range idx.entries {
		for i := range features {
			d := math.Abs(features[i].Score - query.Score)
			if !found || d < best.Distance {
				best = Match{Entry: e, Feature: i, Distance: d}
				found = true
			}
		}
	}
	return best, found
}
