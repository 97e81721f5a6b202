package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"MarketFeed/internal/feed"
	"MarketFeed/internal/sequence"
)

// FeedHealth answers the liveness and readiness probes for the pipeline.
// Liveness only means the process is up. Readiness is feed-specific: the
// transport must be joined and both loops running, and the sequencer must
// still be authoritative — a stale feed answers not-ready so load balancers
// and operators stop trusting this instance until a snapshot and resync
// bring it back.
type FeedHealth struct {
	started   atomic.Bool
	counters  *feed.Counters
	startTime time.Time
}

// NewFeedHealth creates the checker over the pipeline's shared counters,
// which carry the sequencer state gauge it reads at probe time.
func NewFeedHealth(counters *feed.Counters) *FeedHealth {
	return &FeedHealth{
		counters:  counters,
		startTime: time.Now(),
	}
}

// SetStarted marks the pipeline as started: transport joined, ingest and
// consumer loops launched.
func (h *FeedHealth) SetStarted(started bool) {
	h.started.Store(started)
}

// Ready reports readiness and, when not ready, why.
func (h *FeedHealth) Ready() (bool, string) {
	if !h.started.Load() {
		return false, "starting"
	}
	if sequence.State(h.counters.CurrentState.Load()) == sequence.StateStale {
		return false, "feed_stale"
	}
	return true, ""
}

// LivenessHandler answers 200 whenever the process is running.
func (h *FeedHealth) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, probeResponse{
		Status: "alive",
		Uptime: time.Since(h.startTime).String(),
	})
}

// ReadinessHandler answers 200 while the feed is authoritative and 503
// otherwise, with the sequencer state and next expected sequence so a probe
// failure is diagnosable from the body alone.
func (h *FeedHealth) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	resp := probeResponse{
		State:        sequence.State(h.counters.CurrentState.Load()).String(),
		NextExpected: h.counters.NextExpected.Load(),
	}

	ready, reason := h.Ready()
	if !ready {
		resp.Status = "not_ready"
		resp.Reason = reason
		writeProbe(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Status = "ready"
	writeProbe(w, http.StatusOK, resp)
}

type probeResponse struct {
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	State        string `json:"state,omitempty"`
	NextExpected uint64 `json:"next_expected,omitempty"`
	Uptime       string `json:"uptime,omitempty"`
}

func writeProbe(w http.ResponseWriter, code int, resp probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
