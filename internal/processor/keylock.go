package processor

import (
	"context"
	"sync"
)

// keyLocks serialises holders of the same key. Entries exist only while held
// or waited for, so the map stays as small as the number of in-flight keys.
type keyLocks struct {
	mu   sync.Mutex
	held map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{held: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done.
func (k *keyLocks) Lock(ctx context.Context, key string) error {
	k.mu.Lock()
	l, ok := k.held[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		k.held[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.release(key, l)
		return ctx.Err()
	}
}

// Unlock releases key. It must follow a successful Lock.
func (k *keyLocks) Unlock(key string) {
	k.mu.Lock()
	l := k.held[key]
	k.mu.Unlock()

	<-l.sem
	k.release(key, l)
}

func (k *keyLocks) release(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.held, key)
	}
}

// Len returns the number of keys currently held or waited for.
func (k *keyLocks) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.held)
}
