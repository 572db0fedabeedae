package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unoc/core-go/internal/feed"
	"unoc/core-go/internal/httpapi"
	"unoc/core-go/internal/metrics"
	"unoc/core-go/internal/sim"
	"unoc/core-go/internal/snapshot"
	"unoc/core-go/internal/topofile"
	"unoc/core-go/internal/topology"
)

func main() {
	addr := envOr("HTTP_ADDR", ":8081")
	logLevel := envOr("LOG_LEVEL", "info")
	topologyPath := envOr("TOPOLOGY_FILE", "topology.yaml")
	databaseURL := envOr("DATABASE_URL", "")
	snapshotDir := envOr("SNAPSHOT_DIR", "snapshots")

	logger := httpapi.NewLogger(logLevel, "unoc-core")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doc, err := topofile.Load(topologyPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", topologyPath).Msg("failed to load topology file")
	}

	store := topology.NewStore()
	events := sim.NewEventLog()
	simulator := sim.New(store, events, logger)
	if _, _, err := simulator.ReplaceAll(doc); err != nil {
		logger.Fatal().Err(err).Msg("failed to install topology")
	}
	events.Addf("SYSTEM: topology loaded from %s (%d devices, %d links)", topologyPath, len(doc.Devices), len(doc.Links))

	var pool *snapshot.Pool
	if databaseURL != "" {
		p, err := snapshot.Open(ctx, databaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()
		pool = p
	}

	var snapshots snapshot.Store
	if pool != nil {
		s, err := snapshot.NewPostgresStore(ctx, pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare snapshot store")
		}
		snapshots = s
	} else {
		s, err := snapshot.NewFileStore(snapshotDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare snapshot store")
		}
		snapshots = s
	}

	m := metrics.New()
	m.SetTopologyStats(simulator.Stats())

	hub := feed.NewHub(logger, m, func() feed.Message {
		hist := simulator.History()
		return feed.NewSnapshot(simulator.Snapshot(), simulator.Stats(), feed.HistoryStatus{
			CanUndo: hist.CanUndo,
			CanRedo: hist.CanRedo,
		})
	})
	go hub.Run(ctx)

	// Edits to the topology file replace the running state. The command
	// history refers to the old world, so reload drops it.
	watcher := topofile.NewWatcher(topologyPath, logger, func() {
		doc, err := topofile.Load(topologyPath)
		if err != nil {
			logger.Error().Err(err).Str("path", topologyPath).Msg("topology reload rejected")
			events.Addf("SYSTEM: topology reload failed: %v", err)
			return
		}
		if _, _, err := simulator.ReplaceAll(doc); err != nil {
			logger.Error().Err(err).Msg("topology reload rejected")
			return
		}
		events.Addf("SYSTEM: topology reloaded from %s", topologyPath)
		stats := simulator.Stats()
		m.SetTopologyStats(stats)
		hist := simulator.History()
		hub.Broadcast(feed.NewSnapshot(simulator.Snapshot(), stats, feed.HistoryStatus{
			CanUndo: hist.CanUndo,
			CanRedo: hist.CanRedo,
		}))
	})
	go func() {
		if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("topology watcher stopped")
		}
	}()

	h := httpapi.NewHandler(logger, simulator, events, hub, snapshots, pool, m)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("unoc-core listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
