package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"MarketFeed/internal/config"
	"MarketFeed/internal/consume"
	"MarketFeed/internal/feed"
	"MarketFeed/internal/ingest"
	"MarketFeed/internal/observability"
	"MarketFeed/internal/queue"
	"MarketFeed/internal/recovery"
	"MarketFeed/internal/sequence"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "marketfeed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// All pipeline logging funnels through one bounded async writer so the
	// pinned loops never block on stdout. Drops are reported out-of-band.
	asyncOut := observability.NewAsyncWriter(os.Stdout, cfg.App.LogRingSize, func(missed int) {
		fmt.Fprintf(os.Stderr, "marketfeed: dropped %d log entries\n", missed)
	})
	defer asyncOut.Close()

	mainLog := observability.NewLogger("main", asyncOut)
	mainLog.Info().Str("name", cfg.App.Name).Msg("marketfeed starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Shared state ---
	counters := &feed.Counters{}
	latency := consume.NewLatencyStats()
	observability.NewMetrics(counters, latency)
	health := observability.NewFeedHealth(counters)

	// --- Recovery bus ---
	recoveryLog := observability.NewLogger("recovery", asyncOut)
	nc, err := recovery.ConnectNATS(cfg.Recovery.NATSURL, recoveryLog)
	if err != nil {
		return fmt.Errorf("recovery bus: %w", err)
	}
	defer nc.Close()

	recoveryClient := recovery.NewClient(cfg.Recovery.QueueSize, counters, recoveryLog)
	mainLog.Info().
		Str("session", recoveryClient.Session().String()).
		Str("nats", cfg.Recovery.NATSURL).
		Msg("recovery bus connected")

	// --- Transport ---
	transport, err := ingest.JoinUDP(cfg.Feed.Group, cfg.Feed.Port, cfg.Feed.Interface)
	if err != nil {
		return fmt.Errorf("join feed: %w", err)
	}
	mainLog.Info().
		Str("group", cfg.Feed.Group).
		Uint16("port", cfg.Feed.Port).
		Msg("feed joined")

	// --- Pipeline ---
	producer, consumer, err := queue.New[feed.Event](cfg.Feed.QueueCapacity)
	if err != nil {
		return err
	}

	sequencer := sequence.New(sequence.Config{
		DupWindow:    cfg.Sequencer.DupWindow,
		ReorderCap:   cfg.Sequencer.ReorderCap,
		MaxGap:       cfg.Sequencer.MaxGap,
		GapTimeoutNS: cfg.Sequencer.GapTimeoutNS,
		MaxRetries:   cfg.Sequencer.MaxRetries,
	}, recoveryClient, counters)

	loop := ingest.NewLoop(transport, sequencer, producer, counters,
		observability.NewLogger("ingest", asyncOut),
		ingest.LoopConfig{
			CPU:                   cfg.Feed.ProducerCPU,
			MaintenanceIntervalNS: cfg.Sequencer.MaintenanceIntervalNS,
		})

	shell := consume.NewShell(consumer, consume.NewSpreadWatcher(), counters, latency,
		observability.NewLogger("consume", asyncOut), cfg.Feed.ConsumerCPU)

	opsServer := observability.NewOpsServer(cfg.App.OpsAddr, health, counters,
		loop.RequestResync, observability.NewLogger("ops", asyncOut))

	// --- Start ---
	producerDone := make(chan error, 1)
	consumerDone := make(chan error, 1)
	errChan := make(chan error, 4)

	go func() {
		producerDone <- loop.Run(ctx)
	}()
	go func() {
		consumerDone <- shell.Run()
	}()
	go func() {
		errChan <- recoveryClient.Run(ctx, recovery.NewNATSPublisher(nc))
	}()
	go func() {
		errChan <- opsServer.Run(ctx)
	}()

	health.SetStarted(true)
	mainLog.Info().Str("ops", cfg.App.OpsAddr).Msg("marketfeed ready")

	// --- Wait ---
	var runErr error
	select {
	case sig := <-sigChan:
		mainLog.Info().Str("signal", sig.String()).Msg("shutting down")
	case runErr = <-producerDone:
		producerDone = nil
		if runErr != nil {
			mainLog.Error().Err(runErr).Msg("ingest loop failed, shutting down")
		}
	case err := <-errChan:
		if err != nil && err != context.Canceled {
			runErr = err
			mainLog.Error().Err(err).Msg("background goroutine failed, shutting down")
		}
	}

	// --- Graceful shutdown ---
	// Producer first: cancel, let the loop exit, close the transport so no
	// new work arrives. Then stop the consumer, which drains the queue until
	// TryPop reports empty before returning.
	cancel()
	if producerDone != nil {
		if err := <-producerDone; err != nil && runErr == nil {
			runErr = err
		}
	}
	transport.Close()

	shell.Stop()
	<-consumerDone

	logShutdownStats(mainLog, counters, latency)
	mainLog.Info().Msg("marketfeed shutdown complete")
	return runErr
}

func logShutdownStats(log zerolog.Logger, counters *feed.Counters, latency *consume.LatencyStats) {
	s := counters.Snapshot()
	log.Info().
		Uint64("received", s.PacketsReceived).
		Uint64("released", s.PacketsReleased).
		Uint64("consumed", s.EventsConsumed).
		Uint64("dropped_queue_full", s.DroppedQueueFull).
		Uint64("duplicates", s.Duplicates).
		Uint64("gaps_detected", s.GapsDetected).
		Uint64("gaps_filled", s.GapsFilled).
		Uint64("avg_latency_ns", latency.AvgNS()).
		Msg("final stats")
}
