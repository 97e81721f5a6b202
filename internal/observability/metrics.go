package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"MarketFeed/internal/consume"
	"MarketFeed/internal/feed"
)

// Metrics bridges the pipeline's relaxed atomic counters into Prometheus.
// Every collector is a CounterFunc/GaugeFunc reading the shared atomics at
// scrape time, so nothing here ever touches the hot path.
type Metrics struct {
	PacketsReceived  prometheus.CounterFunc
	PacketsReleased  prometheus.CounterFunc
	DroppedQueueFull prometheus.CounterFunc
	Duplicates       prometheus.CounterFunc
	GapsDetected     prometheus.CounterFunc
	GapsFilled       prometheus.CounterFunc
	OutOfOrder       prometheus.CounterFunc
	Resequenced      prometheus.CounterFunc
	ReorderOverflows prometheus.CounterFunc
	RecoveryDropped  prometheus.CounterFunc
	EventsConsumed   prometheus.CounterFunc

	FeedState    prometheus.GaugeFunc
	NextExpected prometheus.GaugeFunc

	LatencyAvgNS prometheus.GaugeFunc
	LatencyMinNS prometheus.GaugeFunc
	LatencyMaxNS prometheus.GaugeFunc
}

// NewMetrics registers all collectors on the default registry.
func NewMetrics(c *feed.Counters, lat *consume.LatencyStats) *Metrics {
	counter := func(name, help string, load func() uint64) prometheus.CounterFunc {
		return promauto.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, func() float64 {
			return float64(load())
		})
	}
	gauge := func(name, help string, load func() uint64) prometheus.GaugeFunc {
		return promauto.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(load())
		})
	}

	return &Metrics{
		PacketsReceived:  counter("md_packets_received_total", "Datagrams accepted from the transport", c.PacketsReceived.Load),
		PacketsReleased:  counter("md_packets_released_total", "Events released in order to the consumer", c.PacketsReleased.Load),
		DroppedQueueFull: counter("md_packets_dropped_queue_full_total", "Events dropped because the ring was full", c.DroppedQueueFull.Load),
		Duplicates:       counter("md_duplicates_total", "Packets rejected as duplicates", c.Duplicates.Load),
		GapsDetected:     counter("md_gaps_detected_total", "Sequence gaps detected", c.GapsDetected.Load),
		GapsFilled:       counter("md_gaps_filled_total", "Gap ranges completely filled by recovery", c.GapsFilled.Load),
		OutOfOrder:       counter("md_out_of_order_total", "Packets buffered ahead of next expected", c.OutOfOrder.Load),
		Resequenced:      counter("md_resequenced_total", "Buffered packets released by the drain", c.Resequenced.Load),
		ReorderOverflows: counter("md_reorder_overflows_total", "Reorder buffer evictions due to overflow", c.ReorderOverflows.Load),
		RecoveryDropped:  counter("md_recovery_requests_dropped_total", "Recovery requests dropped at the bounded channel", c.RecoveryDropped.Load),
		EventsConsumed:   counter("md_events_consumed_total", "Events popped by the consumer shell", c.EventsConsumed.Load),

		FeedState:    gauge("md_feed_state", "Sequencer state (0 initial, 1 live, 2 recovering, 3 stale)", c.CurrentState.Load),
		NextExpected: gauge("md_next_expected_sequence", "Smallest sequence not yet released", c.NextExpected.Load),

		LatencyAvgNS: gauge("md_consumer_latency_avg_ns", "Mean ingest-to-consume latency", lat.AvgNS),
		LatencyMinNS: gauge("md_consumer_latency_min_ns", "Minimum ingest-to-consume latency", func() uint64 {
			if lat.Count.Load() == 0 {
				return 0
			}
			return lat.MinNS.Load()
		}),
		LatencyMaxNS: gauge("md_consumer_latency_max_ns", "Maximum ingest-to-consume latency", lat.MaxNS.Load),
	}
}
