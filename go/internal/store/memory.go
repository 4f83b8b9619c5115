package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store used by tests and the local demo. It
// keeps the document tree as nested maps and fans changes out to subscribers
// on dedicated dispatch goroutines, so a callback can itself write to the
// store without deadlocking.
type MemoryStore struct {
	mu   sync.RWMutex
	root map[string]any
	subs map[*memSub]struct{}
}

type memSub struct {
	path string
	fn   SubscribeFunc

	mu       sync.Mutex
	pending  *Snapshot
	notifyCh chan struct{}
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root: make(map[string]any),
		subs: make(map[*memSub]struct{}),
	}
}

func (m *MemoryStore) Read(_ context.Context, path string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.get(path)
	if !ok {
		return nil, ErrNotFound
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document at %s: %w", path, err)
	}
	return data, nil
}

func (m *MemoryStore) Write(_ context.Context, path string, value any) error {
	normalized, err := normalize(value)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	m.mu.Lock()
	m.set(Split(path), normalized)
	m.publishLocked(path)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Update(_ context.Context, path string, fields map[string]any) error {
	normalized := make(map[string]any, len(fields))
	for k, v := range fields {
		nv, err := normalize(v)
		if err != nil {
			return fmt.Errorf("update %s: field %s: %w", path, k, err)
		}
		normalized[k] = nv
	}

	m.mu.Lock()
	for k, v := range normalized {
		m.set(append(Split(path), k), v)
	}
	m.publishLocked(path)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	m.remove(Split(path))
	m.publishLocked(path)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Subscribe(_ context.Context, path string, fn SubscribeFunc) (UnsubscribeFunc, error) {
	sub := &memSub{
		path:     path,
		fn:       fn,
		notifyCh: make(chan struct{}, 1),
	}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	sub.publish(m.snapshotLocked(path))
	m.mu.Unlock()

	go sub.dispatch()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, sub)
			m.mu.Unlock()
			sub.close()
		})
	}, nil
}

// publishLocked notifies every subscription whose path overlaps the mutated
// path (an ancestor or descendant both see the change).
func (m *MemoryStore) publishLocked(mutated string) {
	for sub := range m.subs {
		if !pathsOverlap(sub.path, mutated) {
			continue
		}
		sub.publish(m.snapshotLocked(sub.path))
	}
}

func (m *MemoryStore) snapshotLocked(path string) Snapshot {
	v, ok := m.get(path)
	if !ok {
		return Snapshot{Path: path}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Data: data, Exists: true}
}

func (m *MemoryStore) get(path string) (any, bool) {
	var cur any = m.root
	for _, seg := range Split(path) {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (m *MemoryStore) set(segments []string, value any) {
	node := m.root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// remove deletes the node at segments and prunes parents left empty, so an
// empty subtree reads as absent rather than as an empty object.
func (m *MemoryStore) remove(segments []string) {
	parents := make([]map[string]any, 0, len(segments))
	node := m.root
	for _, seg := range segments[:len(segments)-1] {
		parents = append(parents, node)
		child, ok := node[seg].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, segments[len(segments)-1])

	for i := len(parents) - 1; i >= 0; i-- {
		child, _ := parents[i][segments[i]].(map[string]any)
		if child != nil && len(child) == 0 {
			delete(parents[i], segments[i])
		}
	}
}

// publish coalesces: only the latest snapshot is kept if the dispatcher is
// behind, which matches the "replace your whole local view" contract.
func (s *memSub) publish(snap Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = &snap
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}

func (s *memSub) dispatch() {
	for range s.notifyCh {
		s.mu.Lock()
		snap := s.pending
		s.pending = nil
		s.mu.Unlock()
		if snap != nil {
			s.fn(*snap)
		}
	}
}

func (s *memSub) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
	close(s.notifyCh)
}

// normalize round-trips a value through JSON so every backend stores the
// same shapes regardless of the Go type written.
func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func pathsOverlap(a, b string) bool {
	as, bs := Split(a), Split(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
