// unoc-view is a headless view client: it follows the feed, runs the
// projection engine and writes every surface operation to the log. It
// exists for soaking the protocol against a live core without a UI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"unoc/core-go/internal/engine"
	"unoc/core-go/internal/feed"
	"unoc/core-go/internal/httpapi"
	"unoc/core-go/internal/query"
	"unoc/core-go/internal/render"
	"unoc/core-go/internal/topology"
	"unoc/core-go/internal/view"
)

func main() {
	feedURL := envOr("FEED_URL", "ws://localhost:8081/ws")
	apiURL := envOr("API_URL", "http://localhost:8081")
	logLevel := envOr("LOG_LEVEL", "info")
	mode := envOr("VIEW_MODE", string(view.ModeNational))

	logger := httpapi.NewLogger(logLevel, "unoc-view")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := view.DefaultOptions()
	opts.Mode = view.Mode(mode)

	bus := engine.NewBus(0)
	r := engine.New(engine.Config{
		Store:   topology.NewStore(),
		Bus:     bus,
		Graph:   &logGraphSurface{log: logger},
		Map:     &logMapSurface{log: logger},
		Querier: query.NewClient(apiURL),
		Options: opts,
		Logger:  logger,
		Callbacks: engine.Callbacks{
			OnNotice: func(n engine.Notice) {
				logger.Info().Str("level", n.Level.String()).Str("text", n.Message).Msg("notice")
			},
			OnState: func(s engine.State) {
				logger.Info().Str("state", s.String()).Msg("engine state")
			},
			OnPanel: func(content render.Content, ok bool) {
				switch {
				case !ok:
					logger.Info().Msg("panel cleared")
				case content.Device != nil:
					logger.Info().Str("id", content.Device.ID).Str("status", string(content.Device.Status)).Msg("panel device")
				case content.Link != nil:
					logger.Info().Str("id", content.Link.ID).Str("status", string(content.Link.Status)).Msg("panel link")
				}
			},
		},
	})

	client, err := feed.Dial(ctx, feedURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("url", feedURL).Msg("failed to connect to feed")
	}
	go func() {
		_ = client.Run(ctx, bus)
	}()

	if err := r.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("engine stopped")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func envOr(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

type logGraphSurface struct {
	log zerolog.Logger
}

func (s *logGraphSurface) UpsertNode(id string, style view.NodeStyle) {
	s.log.Info().Str("id", id).Str("shape", style.Shape).Str("background", style.Background).Msg("graph upsert node")
}

func (s *logGraphSurface) RemoveNode(id string) {
	s.log.Info().Str("id", id).Msg("graph remove node")
}

func (s *logGraphSurface) UpsertEdge(id, from, to string, style view.EdgeStyle) {
	s.log.Info().Str("id", id).Str("from", from).Str("to", to).Str("color", style.Color).Msg("graph upsert edge")
}

func (s *logGraphSurface) RemoveEdge(id string) {
	s.log.Info().Str("id", id).Msg("graph remove edge")
}

type logMapSurface struct {
	log zerolog.Logger
}

func (s *logMapSurface) UpsertMarker(id string, lat, lon float64, style view.NodeStyle) {
	s.log.Info().Str("id", id).Float64("lat", lat).Float64("lon", lon).Msg("map upsert marker")
}

func (s *logMapSurface) RemoveMarker(id string) {
	s.log.Info().Str("id", id).Msg("map remove marker")
}

func (s *logMapSurface) SetMarkerVisible(id string, visible bool) {
	s.log.Info().Str("id", id).Bool("visible", visible).Msg("map marker visibility")
}

func (s *logMapSurface) UpsertLine(id string, fromLat, fromLon, toLat, toLon float64, style view.EdgeStyle) {
	s.log.Info().Str("id", id).Float64("from_lat", fromLat).Float64("from_lon", fromLon).Float64("to_lat", toLat).Float64("to_lon", toLon).Msg("map upsert line")
}

func (s *logMapSurface) RemoveLine(id string) {
	s.log.Info().Str("id", id).Msg("map remove line")
}

func (s *logMapSurface) SetLineVisible(id string, visible bool) {
	s.log.Info().Str("id", id).Bool("visible", visible).Msg("map line visibility")
}
