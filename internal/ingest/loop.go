package ingest

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"MarketFeed/internal/clock"
	"MarketFeed/internal/cpuutil"
	"MarketFeed/internal/feed"
	"MarketFeed/internal/queue"
	"MarketFeed/internal/sequence"
)

// recvBufSize is the scratch buffer one receive lands in. Fixed, embedded,
// never resized.
const recvBufSize = 64 << 10

// statsLogIntervalNS is how often a counters snapshot goes to the logger.
const statsLogIntervalNS = 5_000_000_000

// LoopConfig parameterizes the ingest loop.
type LoopConfig struct {
	CPU                   int    // core to pin to; negative leaves the thread unpinned
	MaintenanceIntervalNS uint64 // cadence of sequencer Tick
}

// Loop is the producer-side driver. Run busy-polls the transport; every
// received datagram is timestamped, sequenced, and — when released — parsed
// into an Event and pushed onto the ring.
type Loop struct {
	transport Transport
	seq       *sequence.Sequencer
	out       *queue.Producer[feed.Event]
	counters  *feed.Counters
	log       zerolog.Logger
	cfg       LoopConfig

	resyncRequested atomic.Bool

	buf [recvBufSize]byte
}

// NewLoop wires the loop. The logger must be backed by a non-blocking
// writer; it is only used off the per-packet path (startup, shutdown,
// periodic stats).
func NewLoop(t Transport, s *sequence.Sequencer, out *queue.Producer[feed.Event],
	counters *feed.Counters, log zerolog.Logger, cfg LoopConfig) *Loop {
	if cfg.MaintenanceIntervalNS == 0 {
		cfg.MaintenanceIntervalNS = 100_000_000
	}
	return &Loop{
		transport: t,
		seq:       s,
		out:       out,
		counters:  counters,
		log:       log,
		cfg:       cfg,
	}
}

// RequestResync asks the loop to resync the sequencer at its next
// maintenance step. Safe to call from any thread; the sequencer itself is
// only ever touched by the loop.
func (l *Loop) RequestResync() {
	l.resyncRequested.Store(true)
}

// Run executes the ingest loop until the context is cancelled or the
// transport fails. The cancellation signal is mirrored into an atomic flag
// so the per-iteration check stays off the kernel and lock paths.
func (l *Loop) Run(ctx context.Context) error {
	if err := cpuutil.Pin(l.cfg.CPU); err != nil {
		return fmt.Errorf("pin ingest thread: %w", err)
	}

	var stop atomic.Bool
	go func() {
		<-ctx.Done()
		stop.Store(true)
	}()

	l.log.Info().Int("cpu", l.cfg.CPU).Msg("ingest loop started")

	lastMaintenance := clock.Ticks()
	lastStatsLog := lastMaintenance

	for !stop.Load() {
		now := clock.Ticks()
		if now-lastMaintenance > l.cfg.MaintenanceIntervalNS {
			if l.resyncRequested.Swap(false) {
				l.seq.Resync()
				l.log.Warn().Msg("sequencer resync applied")
			}
			l.seq.Tick(now)
			lastMaintenance = now

			if now-lastStatsLog > statsLogIntervalNS {
				l.logStats()
				lastStatsLog = now
			}
		}

		n, err := l.transport.Recv(l.buf[:])
		if err != nil {
			l.log.Error().Err(err).Msg("transport receive failed, stopping ingest")
			return fmt.Errorf("ingest receive: %w", err)
		}
		if n == 0 {
			cpuutil.Relax()
			continue
		}

		// Timestamp before any classification work: consumer latency is
		// measured against this instant.
		recvTS := clock.Ticks()
		l.counters.PacketsReceived.Inc()

		if n < feed.HeaderSize {
			continue // runt datagram, silently discarded
		}

		pkt := l.buf[:n]
		hdr, _ := feed.ParseHeader(pkt)

		if l.seq.Process(hdr.Sequence, pkt, recvTS) == sequence.ReleaseNow {
			l.parseAndPush(pkt, recvTS)
		}
		l.seq.DrainReady(func(p []byte) {
			l.parseAndPush(p, recvTS)
		})
	}

	l.log.Info().Msg("ingest loop stopped")
	return nil
}

// parseAndPush normalizes one released packet and hands it to the consumer.
// Heartbeats and unknown message types have already consumed their sequence
// number and produce nothing here.
func (l *Loop) parseAndPush(pkt []byte, recvTS uint64) {
	ev, ok := feed.ParseEvent(pkt, recvTS)
	if !ok {
		return
	}
	if !l.out.TryPush(ev) {
		// Consumer is not keeping up. Count and move on; there is no
		// waiting primitive on this path.
		l.counters.DroppedQueueFull.Inc()
		return
	}
	l.counters.PacketsReleased.Inc()
}

func (l *Loop) logStats() {
	s := l.counters.Snapshot()
	l.log.Info().
		Uint64("received", s.PacketsReceived).
		Uint64("released", s.PacketsReleased).
		Uint64("dropped_queue_full", s.DroppedQueueFull).
		Uint64("duplicates", s.Duplicates).
		Uint64("gaps_detected", s.GapsDetected).
		Uint64("gaps_filled", s.GapsFilled).
		Uint64("out_of_order", s.OutOfOrder).
		Uint64("resequenced", s.Resequenced).
		Uint64("reorder_overflows", s.ReorderOverflows).
		Str("state", sequence.State(s.CurrentState).String()).
		Uint64("next_expected", s.NextExpected).
		Msg("feed stats")
}
