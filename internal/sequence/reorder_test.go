package sequence_test

import (
	"bytes"
	"testing"

	"MarketFeed/internal/sequence"
)

func TestReorderInsertTake(t *testing.T) {
	b := sequence.NewReorderBuffer(4)

	if !b.Insert(10, []byte("ten")) {
		t.Fatal("insert reported eviction on empty buffer")
	}
	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1", b.Len())
	}

	data, ok := b.Take(10)
	if !ok {
		t.Fatal("take missed stored entry")
	}
	if !bytes.Equal(data, []byte("ten")) {
		t.Fatalf("payload = %q", data)
	}
	if b.Len() != 0 {
		t.Fatalf("Len after take = %d", b.Len())
	}
	if _, ok := b.Take(10); ok {
		t.Fatal("take succeeded twice for the same sequence")
	}
}

func TestReorderOwnsCopy(t *testing.T) {
	b := sequence.NewReorderBuffer(4)
	src := []byte{1, 2, 3}
	b.Insert(5, src)
	src[0] = 99 // caller reuses its buffer

	data, _ := b.Take(5)
	if data[0] != 1 {
		t.Fatal("buffer aliased the caller's bytes")
	}
}

func TestReorderOverflowEvictsSmallest(t *testing.T) {
	b := sequence.NewReorderBuffer(3)
	b.Insert(30, []byte("c"))
	b.Insert(10, []byte("a"))
	b.Insert(20, []byte("b"))

	if b.Insert(40, []byte("d")) {
		t.Fatal("overflow insert did not report eviction")
	}
	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	if _, ok := b.Take(10); ok {
		t.Fatal("smallest key survived the overflow eviction")
	}
	for _, seq := range []uint64{20, 30, 40} {
		if _, ok := b.Take(seq); !ok {
			t.Errorf("entry %d missing", seq)
		}
	}
}

func TestReorderEvictBelow(t *testing.T) {
	b := sequence.NewReorderBuffer(8)
	for _, seq := range []uint64{5, 7, 9, 11} {
		b.Insert(seq, []byte{byte(seq)})
	}

	if n := b.EvictBelow(9); n != 2 {
		t.Fatalf("evicted %d, want 2", n)
	}
	if _, ok := b.Take(5); ok {
		t.Error("5 survived eviction")
	}
	if _, ok := b.Take(9); !ok {
		t.Error("9 was wrongly evicted")
	}
}

func TestReorderReset(t *testing.T) {
	b := sequence.NewReorderBuffer(4)
	b.Insert(1, []byte("x"))
	b.Insert(2, []byte("y"))
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len after reset = %d", b.Len())
	}
	if _, ok := b.Take(1); ok {
		t.Fatal("entry survived reset")
	}
}
