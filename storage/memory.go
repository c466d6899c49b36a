package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store with per-slot versioning for
// conflict detection. It is the default store for tests and embedded
// use.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[SlotKey][]byte
	version map[SlotKey]uint64
	clock   uint64 // bumps on every commit
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:    make(map[SlotKey][]byte),
		version: make(map[SlotKey]uint64),
	}
}

// Get reads the committed value of one slot.
func (s *MemoryStore) Get(ctx context.Context, contract string, slot uint16) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneBytes(s.data[SlotKey{contract, slot}]), nil
}

// Set writes one slot directly, bypassing conflict detection.
func (s *MemoryStore) Set(ctx context.Context, contract string, slot uint16, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := SlotKey{contract, slot}
	s.clock++
	s.data[key] = cloneBytes(value)
	s.version[key] = s.clock
	return nil
}

// Begin opens a transaction against the current state.
func (s *MemoryStore) Begin(ctx context.Context) (Txn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memoryTxn{
		store:   s,
		begin:   s.clock,
		reads:   make(map[SlotKey][]byte),
		writes:  make(map[SlotKey][]byte),
		touched: make(map[SlotKey]struct{}),
	}, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// memoryTxn buffers writes and records every touched slot. Commit
// validates that no touched slot moved past the begin clock.
type memoryTxn struct {
	store   *MemoryStore
	begin   uint64
	reads   map[SlotKey][]byte // snapshot of values read
	writes  map[SlotKey][]byte
	touched map[SlotKey]struct{}
	done    bool
}

func (t *memoryTxn) Get(ctx context.Context, contract string, slot uint16) ([]byte, error) {
	if t.done {
		return nil, ErrTxnDone
	}
	key := SlotKey{contract, slot}

	if v, ok := t.writes[key]; ok {
		return cloneBytes(v), nil
	}
	if v, ok := t.reads[key]; ok {
		return cloneBytes(v), nil
	}

	t.store.mu.Lock()
	v := cloneBytes(t.store.data[key])
	t.store.mu.Unlock()

	// First read fixes the snapshot for this slot.
	t.reads[key] = v
	t.touched[key] = struct{}{}
	return cloneBytes(v), nil
}

func (t *memoryTxn) Set(ctx context.Context, contract string, slot uint16, value []byte) error {
	if t.done {
		return ErrTxnDone
	}
	key := SlotKey{contract, slot}
	t.writes[key] = cloneBytes(value)
	t.touched[key] = struct{}{}
	return nil
}

// Delete buffers removal of a slot as a nil write. The slot's version
// still advances at commit so readers of the old value conflict.
func (t *memoryTxn) Delete(ctx context.Context, contract string, slot uint16) error {
	if t.done {
		return ErrTxnDone
	}
	key := SlotKey{contract, slot}
	t.writes[key] = nil
	t.touched[key] = struct{}{}
	return nil
}

func (t *memoryTxn) Writes() map[SlotKey][]byte {
	out := make(map[SlotKey][]byte, len(t.writes))
	for k, v := range t.writes {
		out[k] = cloneBytes(v)
	}
	return out
}

func (t *memoryTxn) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// First committer wins: any touched slot committed after our
	// begin clock aborts this transaction.
	for key := range t.touched {
		if s.version[key] > t.begin {
			return ErrConflict
		}
	}

	if len(t.writes) == 0 {
		return nil
	}
	s.clock++
	for key, value := range t.writes {
		if value == nil {
			delete(s.data, key)
		} else {
			s.data[key] = value
		}
		s.version[key] = s.clock
	}
	return nil
}

func (t *memoryTxn) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
