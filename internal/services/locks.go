package services

import "sync"

// keyedMutex hands out one mutex per instance ID so that load, mutate and
// save of one instance's files never interleave.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for id and returns its release func.
func (k *keyedMutex) Lock(id string) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &sync.Mutex{}
		k.locks[id] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Forget drops the mutex for a deleted instance. The caller must hold it.
func (k *keyedMutex) Forget(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.locks, id)
}
