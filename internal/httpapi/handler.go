package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"unoc/core-go/internal/feed"
	"unoc/core-go/internal/metrics"
	"unoc/core-go/internal/sim"
	"unoc/core-go/internal/snapshot"
	"unoc/core-go/internal/topology"
)

type Handler struct {
	log       zerolog.Logger
	sim       *sim.Simulator
	events    *sim.EventLog
	hub       *feed.Hub
	snapshots snapshot.Store
	pool      *snapshot.Pool
	metrics   *metrics.Metrics
}

func NewHandler(log zerolog.Logger, s *sim.Simulator, events *sim.EventLog, hub *feed.Hub, snapshots snapshot.Store, pool *snapshot.Pool, m *metrics.Metrics) *Handler {
	return &Handler{
		log:       log,
		sim:       s,
		events:    events,
		hub:       hub,
		snapshots: snapshots,
		pool:      pool,
		metrics:   m,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)

	// Observability and feed
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	if h.hub != nil {
		r.Get("/ws", h.hub.ServeHTTP)
	}

	// API
	r.Route("/api", func(r chi.Router) {
		r.Get("/topology", h.handleGetTopology)
		r.Get("/events", h.handleGetEvents)
		r.Get("/rings", h.handleGetRings)
		r.Get("/stats", h.handleGetStats)

		r.Route("/links/{id}", func(r chi.Router) {
			r.Post("/status", h.handleLinkStatus)
			r.Post("/utilization", h.handleLinkUtilization)
		})

		r.Route("/devices/{id}", func(r chi.Router) {
			r.Post("/status", h.handleDeviceStatus)
			r.Get("/signal", h.handleDeviceSignal)
		})

		r.Route("/simulation", func(r chi.Router) {
			r.Post("/trace-path", h.handleTracePath)
			r.Post("/fiber-cut", h.handleFiberCut)
			r.Post("/undo", h.handleUndo)
			r.Post("/redo", h.handleRedo)
		})

		r.Route("/snapshot", func(r chi.Router) {
			r.Get("/", h.handleListSnapshots)
			r.Post("/save", h.handleSaveSnapshot)
			r.Post("/load", h.handleLoadSnapshot)
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

// writeSimError maps simulator failures onto the error envelope.
func (h *Handler) writeSimError(w http.ResponseWriter, err error, id string) {
	var verr *topology.ValidationError
	switch {
	case errors.Is(err, topology.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", err.Error(), map[string]any{"id": id})
	case errors.As(err, &verr):
		h.writeError(w, http.StatusUnprocessableEntity, "validation_failed", verr.Error(), map[string]any{"id": verr.ID})
	case errors.Is(err, sim.ErrNotEndDevice):
		h.writeError(w, http.StatusUnprocessableEntity, "not_end_device", err.Error(), map[string]any{"id": id})
	default:
		h.log.Error().Err(err).Str("id", id).Msg("simulation request failed")
		h.writeError(w, http.StatusInternalServerError, "internal", "operation failed", nil)
	}
}

// broadcastSnapshot pushes the full current state to every feed client
// and refreshes the HUD gauges. Used after undo/redo and restores, where
// many entities may have changed at once.
func (h *Handler) broadcastSnapshot() {
	stats := h.sim.Stats()
	h.metrics.SetTopologyStats(stats)
	if h.hub == nil {
		return
	}
	hist := h.sim.History()
	h.hub.Broadcast(feed.NewSnapshot(h.sim.Snapshot(), stats, feed.HistoryStatus{
		CanUndo: hist.CanUndo,
		CanRedo: hist.CanRedo,
	}))
}

// broadcastEventNotice mirrors the newest event-log line onto the feed
// so connected views can append it without polling /api/events.
func (h *Handler) broadcastEventNotice() {
	if h.hub == nil {
		return
	}
	if events := h.events.List(); len(events) > 0 {
		h.hub.Broadcast(feed.NewNotice(events[0].Message))
	}
}

func (h *Handler) broadcastDevicePatch(d topology.Device) {
	h.metrics.SetTopologyStats(h.sim.Stats())
	if h.hub == nil {
		return
	}
	msg, err := feed.NewDevicePatch(h.sim.Snapshot().Version, d)
	if err != nil {
		h.log.Error().Err(err).Msg("encode device patch")
		return
	}
	h.hub.Broadcast(msg)
}

func (h *Handler) broadcastLinkPatch(l topology.Link) {
	h.metrics.SetTopologyStats(h.sim.Stats())
	if h.hub == nil {
		return
	}
	msg, err := feed.NewLinkPatch(h.sim.Snapshot().Version, l)
	if err != nil {
		h.log.Error().Err(err).Msg("encode link patch")
		return
	}
	h.hub.Broadcast(msg)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	if h.sim.Snapshot().Version == 0 {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "topology not initialized", nil)
		return
	}
	if h.pool != nil {
		if err := h.pool.Ping(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (h *Handler) handleGetTopology(w http.ResponseWriter, r *http.Request) {
	snap := h.sim.Snapshot()
	h.writeJSON(w, http.StatusOK, topology.Topology{
		Version: topology.SupportedVersion,
		Devices: snap.Devices,
		Links:   snap.Links,
		Rings:   snap.Rings,
	})
}

func (h *Handler) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.events.List())
}

func (h *Handler) handleGetRings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sim.RingStatuses())
}

func (h *Handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"stats":   h.sim.Stats(),
		"history": h.sim.History(),
	})
}

type statusPayload struct {
	Status string `json:"status"`
}

func (h *Handler) handleLinkStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusPayload
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	l, err := h.sim.SetLinkStatus(id, topology.LinkStatus(req.Status))
	if err != nil {
		h.writeSimError(w, err, id)
		return
	}
	h.broadcastLinkPatch(l)
	h.broadcastEventNotice()
	h.writeJSON(w, http.StatusOK, l)
}

type utilizationPayload struct {
	Utilization float64 `json:"utilization"`
}

func (h *Handler) handleLinkUtilization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req utilizationPayload
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	l, err := h.sim.SetLinkUtilization(id, req.Utilization)
	if err != nil {
		h.writeSimError(w, err, id)
		return
	}
	h.broadcastLinkPatch(l)
	h.broadcastEventNotice()
	h.writeJSON(w, http.StatusOK, l)
}

func (h *Handler) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusPayload
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	d, err := h.sim.SetDeviceStatus(id, topology.DeviceStatus(req.Status))
	if err != nil {
		h.writeSimError(w, err, id)
		return
	}
	h.broadcastDevicePatch(d)
	h.broadcastEventNotice()
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDeviceSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reading, err := h.sim.Signal(id)
	if err != nil {
		h.writeSimError(w, err, id)
		return
	}
	h.writeJSON(w, http.StatusOK, reading)
}

type tracePayload struct {
	StartNode string `json:"start_node"`
	EndNode   string `json:"end_node"`
}

func (h *Handler) handleTracePath(w http.ResponseWriter, r *http.Request) {
	var req tracePayload
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.StartNode == "" || req.EndNode == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "start_node and end_node are required", nil)
		return
	}

	path, err := h.sim.TracePath(req.StartNode, req.EndNode)
	if err != nil {
		h.writeSimError(w, err, req.StartNode)
		return
	}
	h.writeJSON(w, http.StatusOK, path)
}

type fiberCutPayload struct {
	NodeID string `json:"node_id"`
}

func (h *Handler) handleFiberCut(w http.ResponseWriter, r *http.Request) {
	var req fiberCutPayload
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	d, links, err := h.sim.FiberCut(req.NodeID)
	if err != nil {
		h.writeSimError(w, err, req.NodeID)
		return
	}
	h.broadcastDevicePatch(d)
	for _, l := range links {
		h.broadcastLinkPatch(l)
	}
	h.broadcastEventNotice()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"device": d,
		"links":  links,
	})
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	desc, err := h.sim.Undo()
	if err != nil {
		h.writeError(w, http.StatusConflict, "nothing_to_undo", err.Error(), nil)
		return
	}
	// A single undo may have touched many entities; resync via snapshot.
	h.broadcastSnapshot()
	h.writeJSON(w, http.StatusOK, map[string]any{"undone": desc, "history": h.sim.History()})
}

func (h *Handler) handleRedo(w http.ResponseWriter, r *http.Request) {
	desc, err := h.sim.Redo()
	if err != nil {
		h.writeError(w, http.StatusConflict, "nothing_to_redo", err.Error(), nil)
		return
	}
	h.broadcastSnapshot()
	h.writeJSON(w, http.StatusOK, map[string]any{"redone": desc, "history": h.sim.History()})
}

func (h *Handler) ensureSnapshots(w http.ResponseWriter) bool {
	if h.snapshots == nil {
		h.writeError(w, http.StatusServiceUnavailable, "snapshots_unavailable", "snapshot store not configured", nil)
		return false
	}
	return true
}

type snapshotPayload struct {
	Name string `json:"name"`
}

func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if !h.ensureSnapshots(w) {
		return
	}
	names, err := h.snapshots.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list snapshots failed")
		h.writeError(w, http.StatusInternalServerError, "internal", "failed to list snapshots", nil)
		return
	}
	if names == nil {
		names = []string{}
	}
	h.writeJSON(w, http.StatusOK, names)
}

func (h *Handler) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotPayload
	if err := decodeJSONStrict(r, &req); err != nil || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "missing 'name' in request body", nil)
		return
	}
	if !h.ensureSnapshots(w) {
		return
	}

	snap := h.sim.Snapshot()
	state := snapshot.State{
		Topology: topology.Topology{
			Version: topology.SupportedVersion,
			Devices: snap.Devices,
			Links:   snap.Links,
			Rings:   snap.Rings,
		},
		Events: h.events.List(),
	}
	if err := h.snapshots.Save(r.Context(), req.Name, state); err != nil {
		if errors.Is(err, snapshot.ErrBadName) {
			h.writeError(w, http.StatusBadRequest, "invalid_name", err.Error(), nil)
			return
		}
		h.log.Error().Err(err).Str("name", req.Name).Msg("save snapshot failed")
		h.writeError(w, http.StatusInternalServerError, "internal", "failed to save snapshot", nil)
		return
	}
	h.events.Addf("SYSTEM: Snapshot '%s' saved successfully.", req.Name)
	h.writeJSON(w, http.StatusCreated, map[string]any{"message": "snapshot '" + req.Name + "' saved"})
}

func (h *Handler) handleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotPayload
	if err := decodeJSONStrict(r, &req); err != nil || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "missing 'name' in request body", nil)
		return
	}
	if !h.ensureSnapshots(w) {
		return
	}

	state, err := h.snapshots.Load(r.Context(), req.Name)
	if err != nil {
		switch {
		case errors.Is(err, snapshot.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
		case errors.Is(err, snapshot.ErrBadName):
			h.writeError(w, http.StatusBadRequest, "invalid_name", err.Error(), nil)
		default:
			h.log.Error().Err(err).Str("name", req.Name).Msg("load snapshot failed")
			h.writeError(w, http.StatusInternalServerError, "internal", "failed to load snapshot", nil)
		}
		return
	}

	if _, _, err := h.sim.ReplaceAll(state.Topology); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "invalid_snapshot", err.Error(), nil)
		return
	}
	h.events.Replace(state.Events)
	h.events.Addf("SYSTEM: Snapshot '%s' loaded successfully.", req.Name)
	// Clients re-sync through the normal snapshot path.
	h.broadcastSnapshot()
	h.writeJSON(w, http.StatusOK, map[string]any{"message": "snapshot '" + req.Name + "' loaded"})
}
