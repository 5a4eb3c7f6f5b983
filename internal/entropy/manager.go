package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"lukechampine.com/blake3"
)

var ErrEntropyUnavailable = errors.New("entropy source unavailable")

// recentWindow bounds how many issued values stay queryable for freshness.
const recentWindow = 1024

// Manager issues the evolving entropy value mixed into every signal. Values
// derive from a boot seed and a strictly increasing counter, so callers can
// only consume entropy, never set it; a mutated entropy value is one the
// manager never issued.
type Manager struct {
	mu      sync.Mutex
	seed    [32]byte
	counter uint64
	recent  map[uint64]struct{}
	order   []uint64
}

func NewManager() (*Manager, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return &Manager{seed: seed, recent: make(map[uint64]struct{})}, nil
}

// Next returns a fresh entropy value. Two concurrent callers never observe
// the same value.
func (m *Manager) Next() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// The counter makes every derivation input unique; the retry only guards
	// against a 64-bit truncation collision inside the recent window.
	for attempt := 0; attempt < 8; attempt++ {
		m.counter++
		v := m.deriveLocked(m.counter)
		if _, seen := m.recent[v]; seen {
			continue
		}
		m.rememberLocked(v)
		return v, nil
	}
	return 0, ErrEntropyUnavailable
}

// Recent reports whether v is one of the last issued values. Audit tooling
// uses this as a freshness probe; signal validation itself relies on the
// entropy value being covered by the signature.
func (m *Manager) Recent(v uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.recent[v]
	return ok
}

func (m *Manager) deriveLocked(counter uint64) uint64 {
	material := make([]byte, 0, len(m.seed)+8)
	material = append(material, m.seed[:]...)
	var c [8]byte
	binary.BigEndian.PutUint64(c[:], counter)
	material = append(material, c[:]...)
	sum := blake3.Sum256(material)
	return binary.BigEndian.Uint64(sum[:8])
}

func (m *Manager) rememberLocked(v uint64) {
	m.recent[v] = struct{}{}
	m.order = append(m.order, v)
	if len(m.order) > recentWindow {
		delete(m.recent, m.order[0])
		m.order = m.order[1:]
	}
}
