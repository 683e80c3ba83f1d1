package algorithms

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"hallucinator/internal/feature"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Match identifies a reference feature by entry and feature position in
// library order.
type Match struct {
	Entry    int
	Feature  int
	Distance float64
}

// Index answers nearest-feature queries over a fixed corpus. Among equally
// distant candidates the one earliest in library order wins.
type Index interface {
	Nearest(query feature.ParentStructure) (Match, bool)
	Len() int
}

// Strategy defines how feature distance is measured and searched.
type Strategy interface {
	Name() string
	// Index prepares a search structure over entries, given in library order.
	Index(entries [][]feature.ParentStructure) Index
}

type Manager struct {
	strategies map[string]Strategy
	current    string
	mu         sync.RWMutex
}

const DefaultStrategy = "weighted-score"

func NewManager() *Manager {
	manager := &Manager{
		strategies: make(map[string]Strategy),
		current:    DefaultStrategy,
	}

	manager.registerStrategies()

	return manager
}

func (m *Manager) registerStrategies() {
	for _, s := range []Strategy{NewWeightedScore(), NewWeightedScoreLinear(), NewParentVector()} {
		m.strategies[s.Name()] = s
	}
}

// Register adds or replaces a strategy.
func (m *Manager) Register(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[s.Name()] = s
}

func (m *Manager) SetCurrent(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.strategies[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}

	m.current = name
	return nil
}

func (m *Manager) Current() Strategy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.strategies[m.current]
}

func (m *Manager) Get(name string) (Strategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, exists := m.strategies[name]; exists {
		return s, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
}

func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.strategies))
	for name := range m.strategies {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
