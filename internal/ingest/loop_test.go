package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"MarketFeed/internal/feed"
	"MarketFeed/internal/ingest"
	"MarketFeed/internal/queue"
	"MarketFeed/internal/sequence"
	"MarketFeed/internal/testutil"
)

// scriptTransport replays a fixed list of datagrams, then reports no data
// (or a fatal error, when failWhenDrained is set).
type scriptTransport struct {
	mu              sync.Mutex
	packets         [][]byte
	failWhenDrained bool
}

func (s *scriptTransport) Recv(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.packets) == 0 {
		if s.failWhenDrained {
			return 0, errors.New("socket closed")
		}
		return 0, nil
	}
	p := s.packets[0]
	s.packets = s.packets[1:]
	return copy(buf, p), nil
}

func (s *scriptTransport) Close() error { return nil }

func testSequencer(c *feed.Counters) *sequence.Sequencer {
	return sequence.New(sequence.Config{
		DupWindow:    10,
		ReorderCap:   8,
		MaxGap:       10,
		GapTimeoutNS: uint64(time.Second),
		MaxRetries:   3,
	}, nil, c)
}

func startLoop(t *testing.T, tr ingest.Transport, c *feed.Counters, capacity int) (*queue.Consumer[feed.Event], context.CancelFunc, chan error) {
	t.Helper()

	producer, consumer, err := queue.New[feed.Event](capacity)
	if err != nil {
		t.Fatal(err)
	}

	loop := ingest.NewLoop(tr, testSequencer(c), producer, c, zerolog.Nop(), ingest.LoopConfig{
		CPU: -1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()
	return consumer, cancel, done
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// popSeqs drains up to n events, identifying each by the exchange timestamp
// the test packets derive from the sequence number.
func popSeqs(c *queue.Consumer[feed.Event], out *[]uint64, n int) bool {
	for len(*out) < n {
		ev, ok := c.TryPop()
		if !ok {
			return false
		}
		*out = append(*out, ev.ExchangeTS/1_000)
	}
	return true
}

func TestLoopCleanStream(t *testing.T) {
	tr := &scriptTransport{}
	for seq := uint64(1); seq <= 5; seq++ {
		tr.packets = append(tr.packets, testutil.TradePacket(seq))
	}

	c := &feed.Counters{}
	consumer, cancel, done := startLoop(t, tr, c, 64)

	var got []uint64
	waitUntil(t, "5 events", func() bool { return popSeqs(consumer, &got, 5) })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("loop error: %v", err)
	}

	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Fatalf("events out of order: %v", got)
		}
	}
	if c.PacketsReceived.Load() != 5 || c.PacketsReleased.Load() != 5 {
		t.Errorf("received=%d released=%d, want 5/5", c.PacketsReceived.Load(), c.PacketsReleased.Load())
	}
	if c.GapsDetected.Load() != 0 || c.Duplicates.Load() != 0 {
		t.Errorf("gaps=%d dups=%d, want 0/0", c.GapsDetected.Load(), c.Duplicates.Load())
	}
}

func TestLoopResequencesGapAndDuplicate(t *testing.T) {
	tr := &scriptTransport{}
	for _, seq := range []uint64{1, 2, 5, 3, 3, 4, 6} {
		tr.packets = append(tr.packets, testutil.TradePacket(seq))
	}

	c := &feed.Counters{}
	consumer, cancel, done := startLoop(t, tr, c, 64)

	var got []uint64
	waitUntil(t, "6 events", func() bool { return popSeqs(consumer, &got, 6) })
	cancel()
	<-done

	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Fatalf("events out of order: %v", got)
		}
	}
	if c.Duplicates.Load() != 1 {
		t.Errorf("duplicates = %d, want 1", c.Duplicates.Load())
	}
	if c.GapsDetected.Load() != 1 || c.GapsFilled.Load() != 1 {
		t.Errorf("gaps detected=%d filled=%d, want 1/1", c.GapsDetected.Load(), c.GapsFilled.Load())
	}
	if c.Resequenced.Load() != 1 {
		t.Errorf("resequenced = %d, want 1", c.Resequenced.Load())
	}
}

func TestLoopHeartbeatConsumesSequenceWithoutEvent(t *testing.T) {
	tr := &scriptTransport{packets: [][]byte{
		testutil.TradePacket(1),
		testutil.HeartbeatPacket(2),
		testutil.TradePacket(3),
	}}

	c := &feed.Counters{}
	consumer, cancel, done := startLoop(t, tr, c, 64)

	var got []uint64
	waitUntil(t, "2 events", func() bool { return popSeqs(consumer, &got, 2) })
	waitUntil(t, "all packets sequenced", func() bool { return c.NextExpected.Load() == 4 })
	cancel()
	<-done

	if got[0] != 1 || got[1] != 3 {
		t.Fatalf("events = %v, want [1 3]", got)
	}
	// The heartbeat sequence was consumed: no gap was reported.
	if c.GapsDetected.Load() != 0 {
		t.Errorf("gaps_detected = %d, want 0", c.GapsDetected.Load())
	}
}

func TestLoopIgnoresRuntDatagram(t *testing.T) {
	tr := &scriptTransport{packets: [][]byte{
		{0x01, 0x02, 0x03}, // shorter than the header
		testutil.TradePacket(1),
	}}

	c := &feed.Counters{}
	consumer, cancel, done := startLoop(t, tr, c, 64)

	var got []uint64
	waitUntil(t, "1 event", func() bool { return popSeqs(consumer, &got, 1) })
	cancel()
	<-done

	if c.PacketsReceived.Load() != 2 {
		t.Errorf("received = %d, want 2", c.PacketsReceived.Load())
	}
	if c.PacketsReleased.Load() != 1 {
		t.Errorf("released = %d, want 1", c.PacketsReleased.Load())
	}
}

func TestLoopBackpressureDropsWhenQueueFull(t *testing.T) {
	tr := &scriptTransport{}
	for seq := uint64(1); seq <= 9; seq++ {
		tr.packets = append(tr.packets, testutil.TradePacket(seq))
	}

	c := &feed.Counters{}
	// Capacity 8, consumer never polls: the ninth event has nowhere to go.
	consumer, cancel, done := startLoop(t, tr, c, 8)

	waitUntil(t, "drop counted", func() bool { return c.DroppedQueueFull.Load() == 1 })
	cancel()
	<-done

	var got []uint64
	if !popSeqs(consumer, &got, 8) {
		t.Fatalf("expected 8 queued events, got %d", len(got))
	}
	for i, seq := range got {
		if seq != uint64(i+1) {
			t.Fatalf("events = %v", got)
		}
	}
	if _, ok := consumer.TryPop(); ok {
		t.Fatal("more than 8 events were queued")
	}
	if c.PacketsReleased.Load() != 8 {
		t.Errorf("released = %d, want 8", c.PacketsReleased.Load())
	}
}

func TestLoopFatalTransportError(t *testing.T) {
	tr := &scriptTransport{
		packets:         [][]byte{testutil.TradePacket(1)},
		failWhenDrained: true,
	}

	c := &feed.Counters{}
	_, cancel, done := startLoop(t, tr, c, 8)
	defer cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("loop exited without error on transport failure")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not terminate on transport failure")
	}
}

func TestLoopResyncRequest(t *testing.T) {
	tr := &scriptTransport{}
	for seq := uint64(1); seq <= 2; seq++ {
		tr.packets = append(tr.packets, testutil.TradePacket(seq))
	}

	producer, consumer, err := queue.New[feed.Event](8)
	if err != nil {
		t.Fatal(err)
	}
	c := &feed.Counters{}
	loop := ingest.NewLoop(tr, testSequencer(c), producer, c, zerolog.Nop(), ingest.LoopConfig{
		CPU:                   -1,
		MaintenanceIntervalNS: uint64(time.Millisecond),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	var got []uint64
	waitUntil(t, "2 events", func() bool { return popSeqs(consumer, &got, 2) })

	loop.RequestResync()
	waitUntil(t, "resync applied", func() bool {
		return c.CurrentState.Load() == uint64(sequence.StateInitial)
	})

	// After resync the feed re-seeds from whatever arrives next.
	tr.mu.Lock()
	tr.packets = append(tr.packets, testutil.TradePacket(500))
	tr.mu.Unlock()

	waitUntil(t, "post-resync event", func() bool { return popSeqs(consumer, &got, 3) })
	cancel()
	<-done

	if got[2] != 500 {
		t.Fatalf("post-resync event = %d, want 500", got[2])
	}
	if c.CurrentState.Load() != uint64(sequence.StateLive) {
		t.Errorf("state = %d, want live", c.CurrentState.Load())
	}
}
