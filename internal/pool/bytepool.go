// Package pool provides a small generic object pool, adapted from the
// teacher's pool.SyncPool[T] (the one pool variant in that repository
// with no NUMA/platform dependency), specialized here for reusing the
// byte slices of the state machine's fragmentation accumulator and of
// nettransport's read buffers. The pipeline's reassembly buffer is
// not pooled.
//
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
package pool

import "sync"

// SyncPool wraps sync.Pool for generic, type-safe reuse.
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool creates a pool whose Get calls creator when empty.
func NewSyncPool[T any](creator func() T) *SyncPool[T] {
	return &SyncPool[T]{
		pool: &sync.Pool{New: func() any { return creator() }},
	}
}

func (p *SyncPool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *SyncPool[T]) Put(v T) {
	p.pool.Put(v)
}

// BytePool reuses fixed-capacity byte slices, truncated to zero
// length on Get so callers always see an empty slice ready to append
// into.
type BytePool struct {
	inner *SyncPool[[]byte]
	cap   int
}

// NewBytePool creates a pool of slices pre-allocated to capacity.
func NewBytePool(capacity int) *BytePool {
	return &BytePool{
		cap: capacity,
		inner: NewSyncPool(func() []byte {
			return make([]byte, 0, capacity)
		}),
	}
}

// Get returns a zero-length slice with at least the pool's configured
// capacity.
func (b *BytePool) Get() []byte {
	return b.inner.Get()[:0]
}

// Put returns buf to the pool for reuse. Callers must not use buf
// after calling Put.
func (b *BytePool) Put(buf []byte) {
	b.inner.Put(buf[:0])
}
