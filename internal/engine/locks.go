package engine

import (
	"context"
	"sort"
	"sync"
)

// KeyedMutex is the in-process ResourceLocker used when the service
// runs as a single node or when no Redis client is configured.  One
// mutex exists per resource id; Lock acquires the requested ids in
// ascending order so two batch requests can never deadlock against
// each other.
//
// The standard library serves here on purpose: inside one process a
// plain sync.Mutex per key is the whole requirement, and the
// cross-instance variant lives in internal/lock on Redis.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewKeyedMutex returns an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uint64]*sync.Mutex)}
}

func (k *KeyedMutex) mutexFor(id uint64) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	return m
}

// Lock acquires every id in ascending order and returns the release
// function.  Duplicate ids are collapsed.  The context is accepted for
// interface symmetry with the Redis locker; acquisition itself does
// not block on anything but the peer request holding the same id.
func (k *KeyedMutex) Lock(_ context.Context, ids []uint64) (func(), error) {
	uniq := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, id := range uniq {
		m := k.mutexFor(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}, nil
}
