// Package lock serializes copy-on-write reads of a datasource's active
// snapshot pointer. The keyed in-process manager covers single-process
// deployments; the Redis manager covers multi-process ones.
package lock

import (
	"context"
	"sync"
	"time"
)

// Manager acquires and releases named advisory locks.
type Manager interface {
	// Acquire blocks until the named lock is held or ctx is done. ttl bounds
	// how long a crashed holder can wedge the lock in distributed
	// implementations.
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// KeyedMutex is an in-process Manager built from per-key mutexes.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex creates an empty in-process lock manager.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Acquire locks the named mutex. The ttl is ignored: an in-process holder
// cannot crash without taking the process with it.
func (k *KeyedMutex) Acquire(_ context.Context, key string, _ time.Duration) error {
	k.get(key).Lock()
	return nil
}

// Release unlocks the named mutex.
func (k *KeyedMutex) Release(_ context.Context, key string) error {
	k.get(key).Unlock()
	return nil
}
