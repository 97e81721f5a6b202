package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"MarketFeed/internal/feed"
	"MarketFeed/internal/sequence"
)

// OpsServer is the operator surface: Prometheus scrape endpoint, health
// probes, a JSON counters snapshot, and the resync trigger used to bring a
// stale feed back after a snapshot has been applied out of band.
type OpsServer struct {
	srv *http.Server
	log zerolog.Logger
}

// NewOpsServer builds the listener. resync is invoked on POST /resync; it
// must be safe to call from the HTTP goroutine (the ingest loop applies the
// actual reset on its own thread).
func NewOpsServer(addr string, health *FeedHealth, counters *feed.Counters,
	resync func(), log zerolog.Logger) *OpsServer {

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.LivenessHandler)
	mux.HandleFunc("/readyz", health.ReadinessHandler)

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		snap := counters.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			feed.Snapshot
			State string `json:"state"`
		}{
			Snapshot: snap,
			State:    sequence.State(snap.CurrentState).String(),
		})
	})

	mux.HandleFunc("/resync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		resync()
		log.Warn().Msg("operator resync requested")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "resync_requested"})
	})

	return &OpsServer{
		srv: &http.Server{Addr: addr, Handler: mux},
		log: log,
	}
}

// Run serves until the context is cancelled.
func (s *OpsServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
