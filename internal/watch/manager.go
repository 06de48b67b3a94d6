// Package watch owns live query subscriptions. A slot is a logical
// subscription identity (main list, one saved property, a manager's
// dashboard); each slot holds at most one live subscription set at a time,
// and re-subscribing always disposes the previous set first.
package watch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/query"
)

type SnapshotFunc func([]models.Property)

// Disposer tears down a subscription. Safe to call more than once.
type Disposer func()

// Backend opens a live query and pushes a full matching snapshot to fn on
// every relevant write, starting with the current result set.
type Backend interface {
	Subscribe(ctx context.Context, q query.Query, fn SnapshotFunc) (Disposer, error)
}

type slot struct {
	gen       uint64
	disposers []Disposer
}

type Manager struct {
	backend Backend

	mu    sync.Mutex
	slots map[string]*slot
}

func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend, slots: make(map[string]*slot)}
}

// take disposes whatever the slot currently holds and returns the new
// generation. Disposal happens strictly before the caller installs
// anything new, so a stale callback can never race fresh data.
func (m *Manager) take(name string) (*slot, uint64) {
	m.mu.Lock()
	s, ok := m.slots[name]
	if !ok {
		s = &slot{}
		m.slots[name] = s
	}
	old := s.disposers
	s.disposers = nil
	s.gen++
	gen := s.gen
	m.mu.Unlock()

	for _, d := range old {
		d()
	}
	return s, gen
}

func (m *Manager) current(s *slot, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return s.gen == gen
}

func (m *Manager) install(s *slot, gen uint64, d Disposer) {
	m.mu.Lock()
	if s.gen == gen {
		s.disposers = append(s.disposers, d)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	// The slot moved on while the backend call was in flight.
	d()
}

// Subscribe replaces the slot's subscription with a live query for q.
// Callbacks tagged with an older generation are dropped.
func (m *Manager) Subscribe(ctx context.Context, name string, q query.Query, fn SnapshotFunc) (Disposer, error) {
	s, gen := m.take(name)

	gated := func(props []models.Property) {
		if !m.current(s, gen) {
			return
		}
		fn(props)
	}

	d, err := m.backend.Subscribe(ctx, q, gated)
	if err != nil {
		slog.Error("subscribe failed", "slot", name, "error", err)
		return nil, err
	}
	d = once(d)
	m.install(s, gen, d)
	return m.disposerFor(s, gen), nil
}

// SubscribeSet opens one subscription per id under a single slot and merges
// the results into one ordered-by-arrival list. fn receives the merged list
// and the count of ids that have reported at least once; the merge is
// complete when loaded == len(ids). A late id updates its entry in place.
func (m *Manager) SubscribeSet(ctx context.Context, name string, ids []string, fn func(props []models.Property, loaded int)) (Disposer, error) {
	s, gen := m.take(name)

	merge := &setMerge{ids: len(ids), index: make(map[string]int)}

	for _, id := range ids {
		id := id
		gated := func(props []models.Property) {
			if !m.current(s, gen) {
				return
			}
			merged, loaded := merge.apply(id, props)
			fn(merged, loaded)
		}

		d, err := m.backend.Subscribe(ctx, byID(id), gated)
		if err != nil {
			slog.Error("subscribe failed", "slot", name, "id", id, "error", err)
			m.Dispose(name)
			return nil, err
		}
		m.install(s, gen, once(d))
	}
	return m.disposerFor(s, gen), nil
}

// RunOnce replaces the slot with a one-shot fetch (the full-text search
// path). Cancellation is cooperative: a response that lands after the slot
// moved on is discarded rather than applied stale. On error the caller
// keeps whatever it was already showing.
func (m *Manager) RunOnce(ctx context.Context, name string, fetch func(context.Context) ([]models.Property, error), fn func([]models.Property, error)) {
	s, gen := m.take(name)

	go func() {
		props, err := fetch(ctx)
		if !m.current(s, gen) {
			return
		}
		fn(props, err)
	}()
}

// Dispose tears down the slot's current subscriptions. Idempotent.
func (m *Manager) Dispose(name string) {
	m.mu.Lock()
	s, ok := m.slots[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	old := s.disposers
	s.disposers = nil
	s.gen++
	m.mu.Unlock()

	for _, d := range old {
		d()
	}
}

func (m *Manager) disposerFor(s *slot, gen uint64) Disposer {
	return once(func() {
		m.mu.Lock()
		if s.gen != gen {
			m.mu.Unlock()
			return
		}
		old := s.disposers
		s.disposers = nil
		s.gen++
		m.mu.Unlock()

		for _, d := range old {
			d()
		}
	})
}

func once(d Disposer) Disposer {
	var o sync.Once
	return func() { o.Do(d) }
}

func byID(id string) query.Query {
	return query.Query{
		Constraints: []query.Constraint{{Field: "_id", Op: query.OpEq, Value: id}},
		Limit:       1,
	}
}

// setMerge accumulates per-id snapshots in arrival order.
type setMerge struct {
	mu     sync.Mutex
	ids    int
	order  []string
	index  map[string]int
	values map[string]*models.Property
	loaded int
}

func (sm *setMerge) apply(id string, props []models.Property) ([]models.Property, int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.values == nil {
		sm.values = make(map[string]*models.Property)
	}
	if _, seen := sm.index[id]; !seen {
		sm.index[id] = len(sm.order)
		sm.order = append(sm.order, id)
		sm.loaded++
	}
	if len(props) > 0 {
		p := props[0]
		sm.values[id] = &p
	} else {
		// The document no longer matches (deleted or out of scope).
		delete(sm.values, id)
	}

	merged := make([]models.Property, 0, len(sm.order))
	for _, pid := range sm.order {
		if p := sm.values[pid]; p != nil {
			merged = append(merged, *p)
		}
	}
	return merged, sm.loaded
}
