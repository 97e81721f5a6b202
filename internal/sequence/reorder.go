package sequence

import "sort"

// ReorderBuffer is a sparse store of raw packet bodies keyed by sequence
// number, holding arrivals that ran ahead of next_expected. Keys are kept in
// ascending order so the oldest (smallest) entry can be evicted on overflow
// and the contiguous run starting at next_expected can be drained in order.
type ReorderBuffer struct {
	entries map[uint64][]byte
	keys    []uint64 // ascending
	max     int
}

// NewReorderBuffer creates a buffer holding at most max entries.
func NewReorderBuffer(max int) *ReorderBuffer {
	if max <= 0 {
		max = 1
	}
	return &ReorderBuffer{
		entries: make(map[uint64][]byte, max),
		keys:    make([]uint64, 0, max),
		max:     max,
	}
}

// Insert stores a copy of data under seq. When the buffer is full the entry
// with the smallest sequence is evicted first: it sits furthest below the
// highest-seen sequence, so it is the least likely to still be recovered in
// time and the most damaging to hold. Returns false when such an eviction
// occurred. Inserting an existing key replaces its payload.
func (b *ReorderBuffer) Insert(seq uint64, data []byte) bool {
	if _, ok := b.entries[seq]; ok {
		b.entries[seq] = append(b.entries[seq][:0], data...)
		return true
	}

	evicted := false
	if len(b.keys) >= b.max {
		oldest := b.keys[0]
		b.keys = b.keys[1:]
		delete(b.entries, oldest)
		evicted = true
	}

	i := sort.Search(len(b.keys), func(i int) bool { return b.keys[i] > seq })
	b.keys = append(b.keys, 0)
	copy(b.keys[i+1:], b.keys[i:])
	b.keys[i] = seq

	owned := make([]byte, len(data))
	copy(owned, data)
	b.entries[seq] = owned
	return !evicted
}

// Take removes and returns the payload stored under seq.
func (b *ReorderBuffer) Take(seq uint64) ([]byte, bool) {
	data, ok := b.entries[seq]
	if !ok {
		return nil, false
	}
	delete(b.entries, seq)
	i := sort.Search(len(b.keys), func(i int) bool { return b.keys[i] >= seq })
	if i < len(b.keys) && b.keys[i] == seq {
		b.keys = append(b.keys[:i], b.keys[i+1:]...)
	}
	return data, true
}

// EvictBelow drops every entry with sequence < seq and returns how many were
// removed. Keeps the buffer free of entries that can no longer be released.
func (b *ReorderBuffer) EvictBelow(seq uint64) int {
	i := sort.Search(len(b.keys), func(i int) bool { return b.keys[i] >= seq })
	for _, k := range b.keys[:i] {
		delete(b.entries, k)
	}
	b.keys = append(b.keys[:0], b.keys[i:]...)
	return i
}

// Len returns the number of buffered entries.
func (b *ReorderBuffer) Len() int {
	return len(b.keys)
}

// Reset empties the buffer.
func (b *ReorderBuffer) Reset() {
	clear(b.entries)
	b.keys = b.keys[:0]
}
