package feed

import "sync/atomic"

// PaddedUint64 is an atomic counter isolated on its own cache line so
// relaxed increments from one thread never invalidate a line another thread
// is writing.
type PaddedUint64 struct {
	v atomic.Uint64
	_ [56]byte
}

// Inc adds one.
func (p *PaddedUint64) Inc() { p.v.Add(1) }

// Add adds n.
func (p *PaddedUint64) Add(n uint64) { p.v.Add(n) }

// Load returns the current value. Readers on other threads accept
// arbitrarily stale views.
func (p *PaddedUint64) Load() uint64 { return p.v.Load() }

// Store overwrites the value. Used for gauges (state, next expected).
func (p *PaddedUint64) Store(n uint64) { p.v.Store(n) }

// Counters is the pipeline's cross-thread observable state. Writers are the
// ingest and consumer threads (each field has exactly one writer); readers
// are the ops HTTP server, the metrics scraper, and the periodic stats log.
type Counters struct {
	PacketsReceived  PaddedUint64
	PacketsReleased  PaddedUint64
	DroppedQueueFull PaddedUint64
	Duplicates       PaddedUint64
	GapsDetected     PaddedUint64
	GapsFilled       PaddedUint64
	OutOfOrder       PaddedUint64
	Resequenced      PaddedUint64
	ReorderOverflows PaddedUint64
	RecoveryDropped  PaddedUint64
	EventsConsumed   PaddedUint64

	// Gauges published by the sequencer at external observation points.
	CurrentState PaddedUint64
	NextExpected PaddedUint64
}

// Snapshot is a plain copy of the counters, safe to marshal.
type Snapshot struct {
	PacketsReceived  uint64 `json:"packets_received"`
	PacketsReleased  uint64 `json:"packets_released"`
	DroppedQueueFull uint64 `json:"packets_dropped_queue_full"`
	Duplicates       uint64 `json:"duplicates"`
	GapsDetected     uint64 `json:"gaps_detected"`
	GapsFilled       uint64 `json:"gaps_filled"`
	OutOfOrder       uint64 `json:"out_of_order"`
	Resequenced      uint64 `json:"resequenced"`
	ReorderOverflows uint64 `json:"reorder_overflows"`
	RecoveryDropped  uint64 `json:"recovery_requests_dropped"`
	EventsConsumed   uint64 `json:"events_consumed"`
	CurrentState     uint64 `json:"current_state"`
	NextExpected     uint64 `json:"next_expected"`
}

// Snapshot reads every counter once. The fields are not read atomically as a
// set; the result is a monitoring view, not a consistent cut.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		PacketsReceived:  c.PacketsReceived.Load(),
		PacketsReleased:  c.PacketsReleased.Load(),
		DroppedQueueFull: c.DroppedQueueFull.Load(),
		Duplicates:       c.Duplicates.Load(),
		GapsDetected:     c.GapsDetected.Load(),
		GapsFilled:       c.GapsFilled.Load(),
		OutOfOrder:       c.OutOfOrder.Load(),
		Resequenced:      c.Resequenced.Load(),
		ReorderOverflows: c.ReorderOverflows.Load(),
		RecoveryDropped:  c.RecoveryDropped.Load(),
		EventsConsumed:   c.EventsConsumed.Load(),
		CurrentState:     c.CurrentState.Load(),
		NextExpected:     c.NextExpected.Load(),
	}
}
