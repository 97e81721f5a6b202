package sequence

import (
	"MarketFeed/internal/feed"
)

// State is the feed state, modeled after the state machines of the major
// exchange feed protocols (gap detection with bounded incremental recovery,
// escalating to a full snapshot when the feed can no longer be reconciled).
type State uint8

const (
	StateInitial State = iota // waiting for the first packet
	StateLive                 // normal in-order operation
	StateRecovering           // gap outstanding, buffering ahead
	StateStale                // unrecoverable; snapshot + resync required
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateLive:
		return "live"
	case StateRecovering:
		return "recovering"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Decision classifies what the sequencer did with one packet.
type Decision uint8

const (
	ReleaseNow Decision = iota // in order: parse and forward immediately
	Buffered                   // ahead of next expected: held for resequencing
	DroppedDuplicate
	DroppedStale
)

func (d Decision) String() string {
	switch d {
	case ReleaseNow:
		return "release"
	case Buffered:
		return "buffered"
	case DroppedDuplicate:
		return "dropped_duplicate"
	case DroppedStale:
		return "dropped_stale"
	default:
		return "unknown"
	}
}

// GapFillRequest describes one missing inclusive sequence range.
type GapFillRequest struct {
	StartSeq         uint64
	EndSeq           uint64
	FirstRequestedTS uint64 // ticks of the most recent (re)request
	RetryCount       uint8
}

// RecoveryClient is implemented by the retransmission transport. Both calls
// are fire-and-forget and must not block: recovered packets re-enter through
// the normal ingest path.
type RecoveryClient interface {
	RequestRetransmit(startSeq, endSeq uint64)
	RequestSnapshot()
}

// NopRecovery discards recovery requests. Useful for tests and for feeds
// without a retransmission service.
type NopRecovery struct{}

func (NopRecovery) RequestRetransmit(startSeq, endSeq uint64) {}
func (NopRecovery) RequestSnapshot()                          {}

// Config bounds the sequencer's memory and recovery behavior.
type Config struct {
	DupWindow    int    // W most-recent observations remembered
	ReorderCap   int    // max buffered out-of-order payloads
	MaxGap       uint64 // beyond this the feed goes stale
	GapTimeoutNS uint64 // ticks before a pending gap is re-requested
	MaxRetries   uint8  // re-requests before going stale
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		DupWindow:    10_000,
		ReorderCap:   1_000,
		MaxGap:       1_000,
		GapTimeoutNS: 1_000_000_000,
		MaxRetries:   3,
	}
}

// Sequencer combines the duplicate window, the reorder buffer, and the feed
// state machine. For every observation it decides release / buffer / drop,
// emits gap-fill requests through the recovery client, and times out stale
// requests on Tick.
//
// Not thread-safe — owned by the ingest thread. The counters it updates use
// relaxed atomics and may be read from other threads.
type Sequencer struct {
	cfg      Config
	state    State
	recovery RecoveryClient
	counters *feed.Counters

	nextExpected uint64
	highestSeen  uint64

	window  *DupWindow
	buffer  *ReorderBuffer
	pending []GapFillRequest // disjoint ranges, ascending by StartSeq

	snapshotRequested bool
}

// New creates a sequencer in the Initial state. A nil recovery client is
// replaced with NopRecovery; a nil counters block gets a private one.
func New(cfg Config, recovery RecoveryClient, counters *feed.Counters) *Sequencer {
	if recovery == nil {
		recovery = NopRecovery{}
	}
	if counters == nil {
		counters = &feed.Counters{}
	}
	s := &Sequencer{
		cfg:      cfg,
		recovery: recovery,
		counters: counters,
		window:   NewDupWindow(cfg.DupWindow),
		buffer:   NewReorderBuffer(cfg.ReorderCap),
	}
	s.publish()
	return s
}

// Process classifies one observation. The payload is copied if it needs to
// outlive the call (buffering); callers may reuse the backing array.
//
// Evaluation order: duplicate window first (it is the sole duplicate
// authority), then the state machine. A sequence below next expected is
// only released when it lands inside a pending gap range.
func (s *Sequencer) Process(seq uint64, payload []byte, recvTS uint64) Decision {
	if seq > s.highestSeen {
		s.highestSeen = seq
	}

	if s.window.Contains(seq) {
		s.counters.Duplicates.Inc()
		return DroppedDuplicate
	}
	s.window.Insert(seq)

	switch s.state {
	case StateInitial:
		// Accept any starting sequence and go live from there.
		s.nextExpected = seq + 1
		s.state = StateLive
		s.publish()
		return ReleaseNow

	case StateStale:
		// Incremental updates are meaningless until a snapshot + resync.
		return DroppedStale
	}

	if seq == s.nextExpected {
		s.nextExpected++
		s.noteFilled(seq)
		s.publish()
		return ReleaseNow
	}

	if seq < s.nextExpected {
		// Late arrival: only meaningful if it satisfies a pending gap.
		if s.noteFilled(seq) {
			s.publish()
			return ReleaseNow
		}
		s.counters.Duplicates.Inc()
		return DroppedDuplicate
	}

	// seq > nextExpected: running ahead.
	if s.state == StateLive {
		gap := seq - s.nextExpected
		s.counters.GapsDetected.Inc()
		if gap > s.cfg.MaxGap {
			s.enterStale()
			return DroppedStale
		}
		req := GapFillRequest{
			StartSeq:         s.nextExpected,
			EndSeq:           seq - 1,
			FirstRequestedTS: recvTS,
		}
		s.pending = append(s.pending, req)
		s.recovery.RequestRetransmit(req.StartSeq, req.EndSeq)
		s.state = StateRecovering
	}

	if !s.buffer.Insert(seq, payload) {
		s.counters.ReorderOverflows.Inc()
	}
	s.counters.OutOfOrder.Inc()
	s.publish()
	return Buffered
}

// DrainReady releases buffered payloads that are now contiguous with next
// expected, invoking emit for each in ascending sequence order. Call after
// every Process.
func (s *Sequencer) DrainReady(emit func(payload []byte)) {
	for {
		data, ok := s.buffer.Take(s.nextExpected)
		if !ok {
			break
		}
		released := s.nextExpected
		s.nextExpected++
		s.counters.Resequenced.Inc()
		// A buffered payload can land inside a pending gap range (the
		// packet before it was lost); its release closes that part of
		// the gap just like a retransmit would.
		s.noteFilled(released)
		emit(data)
	}
	// Anything still below next expected can never be released.
	s.buffer.EvictBelow(s.nextExpected)
	s.publish()
}

// Tick runs periodic maintenance: every pending gap older than the timeout
// is re-requested, up to MaxRetries; after that the feed goes stale and a
// snapshot is requested.
func (s *Sequencer) Tick(now uint64) {
	for i := range s.pending {
		g := &s.pending[i]
		if now-g.FirstRequestedTS <= s.cfg.GapTimeoutNS {
			continue
		}
		if g.RetryCount < s.cfg.MaxRetries {
			g.RetryCount++
			g.FirstRequestedTS = now
			s.recovery.RequestRetransmit(g.StartSeq, g.EndSeq)
			continue
		}
		s.enterStale()
		return
	}
}

// OnGapFilled removes the pending gap exactly matching [start, end]. The
// normal path is implicit (missing sequences re-enter via Process); this is
// for recovery transports that confirm whole ranges out of band.
func (s *Sequencer) OnGapFilled(start, end uint64) {
	for i := range s.pending {
		if s.pending[i].StartSeq == start && s.pending[i].EndSeq == end {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.counters.GapsFilled.Inc()
			s.maybeLive()
			return
		}
	}
}

// Resync unconditionally resets to Initial: the duplicate window, reorder
// buffer, and pending gaps are cleared and the next packet seeds a fresh
// sequence baseline. Called by the operator after a snapshot is applied.
func (s *Sequencer) Resync() {
	s.state = StateInitial
	s.nextExpected = 0
	s.window.Reset()
	s.buffer.Reset()
	s.pending = s.pending[:0]
	s.snapshotRequested = false
	s.publish()
}

// State returns the current feed state.
func (s *Sequencer) State() State { return s.state }

// NextExpected returns the smallest sequence not yet released.
func (s *Sequencer) NextExpected() uint64 { return s.nextExpected }

// HighestSeen returns the largest sequence observed so far.
func (s *Sequencer) HighestSeen() uint64 { return s.highestSeen }

// PendingGaps returns a copy of the outstanding gap-fill requests.
func (s *Sequencer) PendingGaps() []GapFillRequest {
	out := make([]GapFillRequest, len(s.pending))
	copy(out, s.pending)
	return out
}

// BufferLen returns the number of buffered out-of-order payloads.
func (s *Sequencer) BufferLen() int { return s.buffer.Len() }

// noteFilled records that seq has been released and updates the pending gap
// containing it, if any. Fills arrive at the low edge of the lowest gap in
// the normal flow; the middle-split branch keeps ranges disjoint if a
// retransmission service delivers out of order.
func (s *Sequencer) noteFilled(seq uint64) bool {
	for i := range s.pending {
		g := &s.pending[i]
		if seq < g.StartSeq || seq > g.EndSeq {
			continue
		}
		switch {
		case g.StartSeq == g.EndSeq:
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			s.counters.GapsFilled.Inc()
		case seq == g.StartSeq:
			g.StartSeq++
		case seq == g.EndSeq:
			g.EndSeq--
		default:
			upper := GapFillRequest{
				StartSeq:         seq + 1,
				EndSeq:           g.EndSeq,
				FirstRequestedTS: g.FirstRequestedTS,
				RetryCount:       g.RetryCount,
			}
			g.EndSeq = seq - 1
			s.pending = append(s.pending, GapFillRequest{})
			copy(s.pending[i+2:], s.pending[i+1:])
			s.pending[i+1] = upper
		}
		s.maybeLive()
		return true
	}
	return false
}

// maybeLive transitions Recovering back to Live once no gaps remain.
func (s *Sequencer) maybeLive() {
	if s.state == StateRecovering && len(s.pending) == 0 {
		s.state = StateLive
	}
	s.publish()
}

// enterStale drops all recovery state and requests a snapshot exactly once
// per stale episode. Exit requires an operator Resync.
func (s *Sequencer) enterStale() {
	s.state = StateStale
	s.pending = s.pending[:0]
	if !s.snapshotRequested {
		s.recovery.RequestSnapshot()
		s.snapshotRequested = true
	}
	s.publish()
}

// publish mirrors state and next expected into the cross-thread gauges.
func (s *Sequencer) publish() {
	s.counters.CurrentState.Store(uint64(s.state))
	s.counters.NextExpected.Store(s.nextExpected)
}
