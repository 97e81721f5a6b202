// Package queue implements the bounded, wait-free single-producer /
// single-consumer ring that hands events from the ingest thread to the
// consumer thread.
//
// The producer and consumer ends are distinct handles created by splitting
// the ring at construction, so the SPSC discipline is enforced structurally:
// only the Producer can push, only the Consumer can pop. Position counters
// are monotonic 64-bit values that never wrap in practice; the slot index is
// pos & (capacity-1).
//
// Hot-path cost is one atomic load, one atomic store, and one slot copy per
// operation. Each end keeps a cached copy of the other end's position and
// reloads the shared counter only when the cache indicates full (producer)
// or empty (consumer), which keeps cross-core cache traffic off the common
// path. Counters and their caches live on separate cache lines to avoid
// false sharing.
package queue

import (
	"fmt"
	"sync/atomic"
)

const cacheLine = 64

// ring is the shared state behind a Producer/Consumer pair.
//
// Layout: the consumer-owned fields (readPos + cachedWritePos) and the
// producer-owned fields (writePos + cachedReadPos) each occupy their own
// cache line; the read-only metadata follows.
type ring[T any] struct {
	readPos        atomic.Uint64 // consumer cursor
	cachedWritePos uint64        // consumer's last observed writePos
	_              [cacheLine - 16]byte

	writePos      atomic.Uint64 // producer cursor
	cachedReadPos uint64        // producer's last observed readPos
	_             [cacheLine - 16]byte

	buf  []T
	mask uint64
}

// Producer is the push end of a split ring. Exactly one goroutine may use it.
type Producer[T any] struct {
	r *ring[T]
}

// Consumer is the pop end of a split ring. Exactly one goroutine may use it.
type Consumer[T any] struct {
	r *ring[T]
}

// New allocates a ring of the given capacity and splits it into its two
// ends. Capacity must be a power of two so the index mask stays valid.
// T should be a plain value type: slots are overwritten in place and are
// never cleared, so a T holding references would pin stale heap objects.
func New[T any](capacity int) (*Producer[T], *Consumer[T], error) {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		return nil, nil, fmt.Errorf("queue: capacity must be a power of two, got %d", capacity)
	}
	r := &ring[T]{
		buf:  make([]T, capacity),
		mask: uint64(capacity - 1),
	}
	return &Producer[T]{r: r}, &Consumer[T]{r: r}, nil
}

// TryPush enqueues v, returning false if the ring already holds capacity
// unread items. Never blocks, never allocates.
//
// The slot write happens before the writePos store; atomic.Uint64.Store has
// release semantics, so a consumer that observes the new writePos also
// observes the slot contents.
func (p *Producer[T]) TryPush(v T) bool {
	r := p.r
	w := r.writePos.Load()
	if w-r.cachedReadPos > r.mask {
		r.cachedReadPos = r.readPos.Load()
		if w-r.cachedReadPos > r.mask {
			return false // full
		}
	}
	r.buf[w&r.mask] = v
	r.writePos.Store(w + 1)
	return true
}

// TryPop dequeues the oldest unread item, returning false if the ring is
// empty. Never blocks, never allocates.
func (c *Consumer[T]) TryPop() (T, bool) {
	r := c.r
	rd := r.readPos.Load()
	if rd == r.cachedWritePos {
		r.cachedWritePos = r.writePos.Load()
		if rd == r.cachedWritePos {
			var zero T
			return zero, false // empty
		}
	}
	v := r.buf[rd&r.mask]
	r.readPos.Store(rd + 1)
	return v, true
}

// Len returns the approximate number of unread items. The value may be
// stale by the time it is returned; it is suitable for monitoring, not for
// emptiness decisions (use TryPop for those).
func (c *Consumer[T]) Len() int {
	r := c.r
	return int(r.writePos.Load() - r.readPos.Load())
}

// Cap returns the fixed capacity of the ring.
func (c *Consumer[T]) Cap() int {
	return len(c.r.buf)
}
