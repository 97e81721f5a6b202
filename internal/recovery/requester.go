// Package recovery carries the sequencer's gap-fill and snapshot requests
// out to the retransmission service. The sequencer side never blocks: its
// callback drops a request into a bounded channel; a dedicated goroutine
// drains the channel and publishes. Retransmitted packets re-enter the
// pipeline through the normal ingest path.
package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"MarketFeed/internal/feed"
)

// Publisher is the wire behind the requester. The production implementation
// is a NATS connection; tests capture in memory.
type Publisher interface {
	Publish(subject string, data []byte) error
}

const (
	SubjectRetransmit = "md.recovery.retransmit"
	SubjectSnapshot   = "md.recovery.snapshot"
)

// RetransmitRequest is the JSON body published for a gap.
type RetransmitRequest struct {
	Session     string `json:"session"`
	StartSeq    uint64 `json:"start_seq"`
	EndSeq      uint64 `json:"end_seq"`
	RequestedAt int64  `json:"requested_at_us"`
}

// SnapshotRequest is the JSON body published when the feed goes stale.
type SnapshotRequest struct {
	Session     string `json:"session"`
	RequestedAt int64  `json:"requested_at_us"`
}

type request struct {
	snapshot bool
	start    uint64
	end      uint64
}

// Client implements sequence.RecoveryClient. The request methods are called
// from the ingest thread and only ever do a non-blocking channel send;
// overflow is counted and dropped (the periodic gap retry will re-request).
type Client struct {
	session  uuid.UUID
	ch       chan request
	counters *feed.Counters
	log      zerolog.Logger
}

// NewClient creates a requester with the given channel depth. The session
// ID is stamped on every request so the retransmission service can
// correlate a subscriber across requests.
func NewClient(depth int, counters *feed.Counters, log zerolog.Logger) *Client {
	if depth <= 0 {
		depth = 256
	}
	return &Client{
		session:  uuid.New(),
		ch:       make(chan request, depth),
		counters: counters,
		log:      log,
	}
}

// Session returns the client's session ID.
func (c *Client) Session() uuid.UUID { return c.session }

// RequestRetransmit queues a retransmission ask for [startSeq, endSeq].
func (c *Client) RequestRetransmit(startSeq, endSeq uint64) {
	select {
	case c.ch <- request{start: startSeq, end: endSeq}:
	default:
		c.counters.RecoveryDropped.Inc()
	}
}

// RequestSnapshot queues a full-snapshot ask.
func (c *Client) RequestSnapshot() {
	select {
	case c.ch <- request{snapshot: true}:
	default:
		c.counters.RecoveryDropped.Inc()
	}
}

// Run drains queued requests and publishes them until the context is
// cancelled. Publish failures are logged and dropped; the sequencer's
// timeout-driven retries provide the redundancy.
func (c *Client) Run(ctx context.Context, pub Publisher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-c.ch:
			if err := c.publish(pub, req); err != nil {
				c.log.Warn().Err(err).Msg("recovery publish failed")
			}
		}
	}
}

func (c *Client) publish(pub Publisher, req request) error {
	now := time.Now().UnixMicro()
	if req.snapshot {
		data, err := json.Marshal(SnapshotRequest{
			Session:     c.session.String(),
			RequestedAt: now,
		})
		if err != nil {
			return fmt.Errorf("marshal snapshot request: %w", err)
		}
		c.log.Warn().Msg("feed stale, requesting snapshot")
		return pub.Publish(SubjectSnapshot, data)
	}

	data, err := json.Marshal(RetransmitRequest{
		Session:     c.session.String(),
		StartSeq:    req.start,
		EndSeq:      req.end,
		RequestedAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal retransmit request: %w", err)
	}
	c.log.Warn().
		Uint64("start_seq", req.start).
		Uint64("end_seq", req.end).
		Msg("gap detected, requesting retransmit")
	return pub.Publish(SubjectRetransmit, data)
}
