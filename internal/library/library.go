// Package library holds the reference images and their extracted features.
// A Library is built once and is read-only afterwards, so it can be shared
// between goroutines without locking.
package library

import (
	"sort"

	"hallucinator/internal/feature"
	"hallucinator/internal/imaging"
)

type Entry struct {
	// ID is the path relative to the library root, slash separated.
	ID       string
	Original *imaging.Buffer
	Features []feature.ParentStructure
}

type Library struct {
	entries  []*Entry
	byID     map[string]*Entry
	features int
}

// New orders entries by ID. Later duplicates of an ID are dropped.
func New(entries []*Entry) *Library {
	sorted := make([]*Entry, 0, len(entries))
	byID := make(map[string]*Entry, len(entries))
	features := 0
	for _, e := range entries {
		if e == nil {
			continue
		}
		if _, dup := byID[e.ID]; dup {
			continue
		}
		byID[e.ID] = e
		sorted = append(sorted, e)
		features += len(e.Features)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &Library{entries: sorted, byID: byID, features: features}
}

// Entries returns the entries in ascending ID order.
func (l *Library) Entries() []*Entry {
	if l == nil {
		return nil
	}
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Features returns each entry's features in library order.
func (l *Library) Features() [][]feature.ParentStructure {
	if l == nil {
		return nil
	}
	out := make([][]feature.ParentStructure, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Features
	}
	return out
}

// At returns the entry at position i in library order.
func (l *Library) At(i int) *Entry {
	return l.entries[i]
}

func (l *Library) Get(id string) (*Entry, bool) {
	if l == nil {
		return nil, false
	}
	e, ok := l.byID[id]
	return e, ok
}

func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

func (l *Library) FeatureCount() int {
	if l == nil {
		return 0
	}
	return l.features
}

func (l *Library) Empty() bool {
	return l.FeatureCount() == 0
}
