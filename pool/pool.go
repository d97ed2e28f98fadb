// Package pool manages independent heap.Context values, one per session,
// so that a process can host multiple unrelated tenants without their
// allocations ever sharing a free list.
package pool

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/shenjiangwei/segalloc/heap"
	"github.com/shenjiangwei/segalloc/region"
)

// Stats tracks pool-wide activity across every session: how many were
// opened and closed, and how many allocate/free calls succeeded or failed.
type Stats struct {
	Opens       uint64
	Closes      uint64
	Allocations uint64
	Frees       uint64
	AllocErrors uint64
	FreeErrors  uint64
}

// session owns one heap.Context and serializes access to it. heap.Context
// is not safe for concurrent use on its own (see package heap), so every
// session gets its own mutex guarding calls into its context.
type session struct {
	mu  sync.Mutex
	ctx *heap.Context
}

// Manager owns a set of sessions keyed by uuid.UUID. Each session wraps an
// independently-initialized heap.Context, fulfilling the design note that a
// system needing multiple independent heaps should instantiate multiple
// contexts rather than extend a single one.
type Manager struct {
	logger log.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	stats    Stats
}

// NewManager creates an empty Manager. Every Open call allocates a fresh
// region and heap.Context; Manager itself holds no memory of its own.
func NewManager(logger log.Logger) *Manager {
	return &Manager{
		logger:   logger,
		sessions: make(map[uuid.UUID]*session),
	}
}

// Open reserves a new region.Slice of the given capacity, initializes a
// heap.Context over it, and registers the session under a fresh UUID.
func (m *Manager) Open(capacity uint32) (uuid.UUID, error) {
	ctx, err := heap.New(region.NewSlice(capacity), m.logger)
	if err != nil {
		return uuid.Nil, fmt.Errorf("pool: open: %w", err)
	}

	id := uuid.New()
	m.mu.Lock()
	m.sessions[id] = &session{ctx: ctx}
	m.stats.Opens++
	m.mu.Unlock()

	m.logger.Debug().Msgf("pool: opened session %s with capacity %d", id, capacity)
	return id, nil
}

// OpenWithProvider registers a session over a caller-supplied provider,
// letting callers substitute region.Mmap or a test double for region.Slice.
func (m *Manager) OpenWithProvider(provider region.Provider) (uuid.UUID, error) {
	ctx, err := heap.New(provider, m.logger)
	if err != nil {
		return uuid.Nil, fmt.Errorf("pool: open: %w", err)
	}

	id := uuid.New()
	m.mu.Lock()
	m.sessions[id] = &session{ctx: ctx}
	m.stats.Opens++
	m.mu.Unlock()

	return id, nil
}

func (m *Manager) lookup(id uuid.UUID) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pool: unknown session %s", id)
	}
	return s, nil
}

// Allocate allocates size bytes within the named session's heap.
func (m *Manager) Allocate(id uuid.UUID, size uint32) (unsafe.Pointer, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ctx.Malloc(size)

	m.mu.Lock()
	m.stats.Allocations++
	if err != nil {
		m.stats.AllocErrors++
	}
	m.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("pool: allocate in session %s: %w", id, err)
	}
	return p, nil
}

// Free releases ptr, previously returned by Allocate or Realloc for id.
func (m *Manager) Free(id uuid.UUID, ptr unsafe.Pointer) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.ctx.Free(ptr)

	m.mu.Lock()
	m.stats.Frees++
	if err != nil {
		m.stats.FreeErrors++
	}
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("pool: free in session %s: %w", id, err)
	}
	return nil
}

// Realloc resizes ptr within the named session's heap.
func (m *Manager) Realloc(id uuid.UUID, ptr unsafe.Pointer, size uint32) (unsafe.Pointer, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ctx.Realloc(ptr, size)
	if err != nil {
		return nil, fmt.Errorf("pool: realloc in session %s: %w", id, err)
	}
	return p, nil
}

// AllocateOffset allocates size bytes in the named session and returns the
// result as an offset from the session's region base, for callers (the RPC
// wire protocol) that cannot carry a raw process-local pointer.
func (m *Manager) AllocateOffset(id uuid.UUID, size uint32) (uint32, error) {
	s, err := m.lookup(id)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ctx.Malloc(size)

	m.mu.Lock()
	m.stats.Allocations++
	if err != nil {
		m.stats.AllocErrors++
	}
	m.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("pool: allocate in session %s: %w", id, err)
	}
	return s.ctx.OffsetOf(p), nil
}

// FreeOffset releases the allocation at offset within the named session.
func (m *Manager) FreeOffset(id uuid.UUID, offset uint32) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.ctx.Free(s.ctx.PointerAt(offset))

	m.mu.Lock()
	m.stats.Frees++
	if err != nil {
		m.stats.FreeErrors++
	}
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("pool: free in session %s: %w", id, err)
	}
	return nil
}

// ReallocOffset resizes the allocation at offset within the named session
// and returns the new offset.
func (m *Manager) ReallocOffset(id uuid.UUID, offset uint32, size uint32) (uint32, error) {
	s, err := m.lookup(id)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.ctx.Realloc(s.ctx.PointerAt(offset), size)
	if err != nil {
		return 0, fmt.Errorf("pool: realloc in session %s: %w", id, err)
	}
	return s.ctx.OffsetOf(p), nil
}

// Verify runs the named session's heap consistency checker.
func (m *Manager) Verify(id uuid.UUID) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ctx.Verify()
}

// SessionStats reports usage for one session: bytes currently live,
// how many blocks sit on a free list, and total header overhead.
type SessionStats struct {
	UsedBytes      uint64
	FreeBlockCount int
	Overhead       uint64
}

// Stat returns current usage for the named session.
func (m *Manager) Stat(id uuid.UUID) (SessionStats, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionStats{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return SessionStats{
		UsedBytes:      s.ctx.UsedBytes(),
		FreeBlockCount: s.ctx.FreeBlockCount(),
		Overhead:       s.ctx.Overhead(),
	}, nil
}

// Close removes the named session. The underlying region is abandoned to
// the garbage collector; there is no operating-system resource to release
// for region.Slice, and region.Mmap callers should Close their provider
// separately before calling this.
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("pool: unknown session %s", id)
	}
	delete(m.sessions, id)
	m.stats.Closes++
	return nil
}

// Stats returns a snapshot of pool-wide counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Sessions returns the ids of every currently open session.
func (m *Manager) Sessions() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
