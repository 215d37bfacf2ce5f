// Package syncutil holds small concurrency helpers shared by the services.
package syncutil

import (
	"context"
	"hash/fnv"
)

const keyedSlots = 128

// KeyedMutex serializes work per string key. Keys are hashed onto a fixed
// set of slots, so two distinct keys may occasionally share one; that costs
// waiting time, never correctness.
//
// Each slot is a one-token channel, which lets Lock give up when the
// caller's context is cancelled instead of blocking forever.
type KeyedMutex struct {
	slots [keyedSlots]chan struct{}
}

// NewKeyedMutex returns a mutex with every slot unlocked.
func NewKeyedMutex() *KeyedMutex {
	m := &KeyedMutex{}
	for i := range m.slots {
		m.slots[i] = make(chan struct{}, 1)
		m.slots[i] <- struct{}{}
	}
	return m
}

// Lock acquires the slot for key and returns its release function. If ctx
// is done before the slot frees up, Lock returns the context error and the
// caller holds nothing.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (release func(), err error) {
	slot := m.slots[m.index(key)]
	select {
	case <-slot:
		return func() { slot <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *KeyedMutex) index(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % keyedSlots
}
