package recovery_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"MarketFeed/internal/feed"
	"MarketFeed/internal/recovery"
)

type capturePublisher struct {
	mu       sync.Mutex
	messages []captured
}

type captured struct {
	subject string
	data    []byte
}

func (p *capturePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, captured{subject: subject, data: append([]byte(nil), data...)})
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *capturePublisher) get(i int) captured {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[i]
}

func waitFor(t *testing.T, what string, cond func() bool) {
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

func TestRetransmitRequestPublished(t *testing.T) {
	counters := &feed.Counters{}
	client := recovery.NewClient(16, counters, zerolog.Nop())
	pub := &capturePublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx, pub)

	client.RequestRetransmit(100, 110)
	waitFor(t, "publish", func() bool { return pub.count() == 1 })

	msg := pub.get(0)
	if msg.subject != recovery.SubjectRetransmit {
		t.Fatalf("subject = %s, want %s", msg.subject, recovery.SubjectRetransmit)
	}

	var req recovery.RetransmitRequest
	if err := json.Unmarshal(msg.data, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.StartSeq != 100 || req.EndSeq != 110 {
		t.Errorf("range = [%d, %d], want [100, 110]", req.StartSeq, req.EndSeq)
	}
	if req.Session != client.Session().String() {
		t.Errorf("session = %s, want %s", req.Session, client.Session())
	}
	if req.RequestedAt == 0 {
		t.Error("requested_at not stamped")
	}
}

func TestSnapshotRequestPublished(t *testing.T) {
	client := recovery.NewClient(16, &feed.Counters{}, zerolog.Nop())
	pub := &capturePublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx, pub)

	client.RequestSnapshot()
	waitFor(t, "publish", func() bool { return pub.count() == 1 })

	msg := pub.get(0)
	if msg.subject != recovery.SubjectSnapshot {
		t.Fatalf("subject = %s, want %s", msg.subject, recovery.SubjectSnapshot)
	}
	var req recovery.SnapshotRequest
	if err := json.Unmarshal(msg.data, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Session != client.Session().String() {
		t.Errorf("session mismatch")
	}
}

func TestOverflowDropsWithoutBlocking(t *testing.T) {
	counters := &feed.Counters{}
	// Depth 1 and no Run goroutine draining: further requests must drop
	// immediately rather than stall the caller.
	client := recovery.NewClient(1, counters, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		client.RequestRetransmit(1, 2)
		client.RequestRetransmit(3, 4)
		client.RequestRetransmit(5, 6)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("request methods blocked")
	}
	if got := counters.RecoveryDropped.Load(); got != 2 {
		t.Errorf("recovery_dropped = %d, want 2", got)
	}
}
