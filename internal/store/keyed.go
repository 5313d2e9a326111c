package store

import "sync"

// KeyedMutex serializes read-modify-write cycles against a single snapshot
// key. Correctness of the engine depends on no two writers to the same game
// interleaving; cross-key operations stay fully parallel.
//
// This covers a single process. Sharing snapshots between processes would
// need a distributed lock on top of the store.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the lock for key, allocating it on first use.
func (km *KeyedMutex) Lock(key string) {
	km.mu.Lock()
	l, ok := km.locks[key]
	if !ok {
		l = &keyLock{}
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the lock for key and frees it once uncontended.
func (km *KeyedMutex) Unlock(key string) {
	km.mu.Lock()
	l := km.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	l.mu.Unlock()
}
