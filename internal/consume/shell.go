// Package consume drives the consumer side of the pipeline: a pinned
// busy-polling loop that pops normalized events off the ring, accounts
// end-to-end latency, and forwards each event to the trading logic behind
// the Handler interface.
package consume

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"

	"MarketFeed/internal/clock"
	"MarketFeed/internal/cpuutil"
	"MarketFeed/internal/feed"
	"MarketFeed/internal/queue"
)

// Handler receives every event, in release order, on the consumer thread.
// Implementations must not block: anything slow belongs on another core
// behind another queue.
type Handler interface {
	OnEvent(ev *feed.Event)
}

// LatencyStats accumulates ingest-to-consume latency in ticks (pop time
// minus the event's receive timestamp). Written only by
// the consumer thread; the fields are atomics so monitoring threads can
// read stale-but-torn-free values.
type LatencyStats struct {
	Count   feed.PaddedUint64
	TotalNS feed.PaddedUint64
	MinNS   feed.PaddedUint64
	MaxNS   feed.PaddedUint64
}

// NewLatencyStats initializes the min field to its identity.
func NewLatencyStats() *LatencyStats {
	ls := &LatencyStats{}
	ls.MinNS.Store(math.MaxUint64)
	return ls
}

func (ls *LatencyStats) observe(lat uint64) {
	ls.Count.Inc()
	ls.TotalNS.Add(lat)
	if lat < ls.MinNS.Load() {
		ls.MinNS.Store(lat)
	}
	if lat > ls.MaxNS.Load() {
		ls.MaxNS.Store(lat)
	}
}

// AvgNS returns the mean observed latency, or 0 before any event.
func (ls *LatencyStats) AvgNS() uint64 {
	n := ls.Count.Load()
	if n == 0 {
		return 0
	}
	return ls.TotalNS.Load() / n
}

// Shell is the thin consumer driver.
type Shell struct {
	in       *queue.Consumer[feed.Event]
	handler  Handler
	counters *feed.Counters
	latency  *LatencyStats
	log      zerolog.Logger
	cpu      int

	stop atomic.Bool
}

// NewShell wires the consumer. A negative cpu leaves the thread unpinned.
func NewShell(in *queue.Consumer[feed.Event], handler Handler, counters *feed.Counters,
	latency *LatencyStats, log zerolog.Logger, cpu int) *Shell {
	if latency == nil {
		latency = NewLatencyStats()
	}
	return &Shell{
		in:       in,
		handler:  handler,
		counters: counters,
		latency:  latency,
		log:      log,
		cpu:      cpu,
	}
}

// Latency exposes the shell's latency accumulator for monitoring.
func (s *Shell) Latency() *LatencyStats { return s.latency }

// Stop asks the shell to exit once the queue is drained. Call only after
// the producer has stopped, so nothing new is in flight.
func (s *Shell) Stop() {
	s.stop.Store(true)
}

// Run busy-polls the queue until Stop is called and the queue is empty.
// The drain condition is TryPop reporting empty, not an approximate length
// read.
func (s *Shell) Run() error {
	if err := cpuutil.Pin(s.cpu); err != nil {
		return fmt.Errorf("pin consumer thread: %w", err)
	}

	s.log.Info().Int("cpu", s.cpu).Msg("consumer shell started")

	for {
		ev, ok := s.in.TryPop()
		if !ok {
			if s.stop.Load() {
				break
			}
			cpuutil.Relax()
			continue
		}

		s.latency.observe(clock.Ticks() - ev.RecvTS)
		s.counters.EventsConsumed.Inc()
		s.handler.OnEvent(&ev)
	}

	s.log.Info().
		Uint64("events", s.latency.Count.Load()).
		Uint64("avg_latency_ns", s.latency.AvgNS()).
		Msg("consumer shell stopped")
	return nil
}
