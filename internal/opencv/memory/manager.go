package memory

import (
	"fmt"
	"sync"
	"time"

	"hallucinator/internal/logger"

	"gocv.io/x/gocv"
)

// Manager accounts for every native matrix handed out through its arenas.
type Manager struct {
	mu           sync.RWMutex
	logger       logger.Logger
	maxMemory    int64
	usedMemory   int64
	peakMemory   int64
	allocCount   int64
	deallocCount int64
	activeMats   map[uint64]*MatInfo
	nextID       uint64
}

type MatInfo struct {
	ID        uint64
	Tag       string
	Size      int64
	Timestamp time.Time
}

type Stats struct {
	Allocations   int64
	Deallocations int64
	UsedBytes     int64
	PeakBytes     int64
	ActiveMats    int
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		logger:     log,
		maxMemory:  2 * 1024 * 1024 * 1024,
		activeMats: make(map[uint64]*MatInfo),
	}
}

// SetLimit changes the ceiling for sized allocations.
func (m *Manager) SetLimit(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxMemory = bytes
}

// NewArena starts a scope; every matrix created or adopted through it is
// closed by Release.
func (m *Manager) NewArena(tag string) *Arena {
	return &Arena{manager: m, tag: tag}
}

func (m *Manager) reserve(size int64, tag string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.usedMemory+size > m.maxMemory {
		return 0, fmt.Errorf("memory limit exceeded: would use %d bytes, limit is %d",
			m.usedMemory+size, m.maxMemory)
	}

	m.nextID++
	m.usedMemory += size
	if m.usedMemory > m.peakMemory {
		m.peakMemory = m.usedMemory
	}
	m.allocCount++
	m.activeMats[m.nextID] = &MatInfo{
		ID:        m.nextID,
		Tag:       tag,
		Size:      size,
		Timestamp: time.Now(),
	}
	return m.nextID, nil
}

func (m *Manager) release(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info, exists := m.activeMats[id]; exists {
		delete(m.activeMats, id)
		m.usedMemory -= info.Size
	}
	m.deallocCount++
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Allocations:   m.allocCount,
		Deallocations: m.deallocCount,
		UsedBytes:     m.usedMemory,
		PeakBytes:     m.peakMemory,
		ActiveMats:    len(m.activeMats),
	}
}

// Cleanup reports matrices that were never released and resets the
// accounting. Their native memory belongs to arenas that leaked.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	matCount := len(m.activeMats)
	for id, info := range m.activeMats {
		m.logger.Warning("MemoryManager", "unreleased Mat at cleanup", logger.Fields{
			"tag":  info.Tag,
			"size": info.Size,
			"age":  time.Since(info.Timestamp).String(),
		})
		delete(m.activeMats, id)
	}

	m.logger.Info("MemoryManager", "cleanup completed", logger.Fields{
		"mats_cleaned":  matCount,
		"allocations":   m.allocCount,
		"deallocations": m.deallocCount,
		"peak_bytes":    m.peakMemory,
	})

	m.usedMemory = 0
}

func matSize(rows, cols int, matType gocv.MatType) int64 {
	return int64(rows * cols * getMatTypeSize(matType))
}

func getMatTypeSize(matType gocv.MatType) int {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV16SC1:
		return 2
	case gocv.MatTypeCV32FC1:
		return 4
	case gocv.MatTypeCV32FC3:
		return 12
	case gocv.MatTypeCV32FC4:
		return 16
	default:
		return 1
	}
}
