package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process SnapshotStore used by tests and local
// single-node runs. TTLs are honored lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string]memEntry
	sets    map[string]map[string]struct{}
	FailAll bool // when set, every call reports an unreachable store
}

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memEntry),
		sets: make(map[string]map[string]struct{}),
	}
}

type memUnavailableError struct{}

func (memUnavailableError) Error() string { return "memory store unavailable" }

func (s *MemoryStore) failing() error {
	if s.FailAll {
		return memUnavailableError{}
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := s.failing(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		return nil, nil
	}
	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.failing(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *MemoryStore) Del(_ context.Context, key string) error {
	if err := s.failing(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	b, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return b != nil, nil
}

func (s *MemoryStore) SAdd(_ context.Context, set, member string) error {
	if err := s.failing(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sets[set] == nil {
		s.sets[set] = make(map[string]struct{})
	}
	s.sets[set][member] = struct{}{}
	return nil
}

func (s *MemoryStore) SRem(_ context.Context, set, member string) error {
	if err := s.failing(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[set], member)
	return nil
}

func (s *MemoryStore) SMembers(_ context.Context, set string) ([]string, error) {
	if err := s.failing(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]string, 0, len(s.sets[set]))
	for m := range s.sets[set] {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	if err := s.failing(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}
