package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"unoc/core-go/internal/render"
	"unoc/core-go/internal/topology"
	"unoc/core-go/internal/view"
)

type stubGraph struct {
	nodes map[string]view.NodeStyle
	edges map[string]view.EdgeStyle
}

func newStubGraph() *stubGraph {
	return &stubGraph{nodes: make(map[string]view.NodeStyle), edges: make(map[string]view.EdgeStyle)}
}

func (g *stubGraph) UpsertNode(id string, style view.NodeStyle) { g.nodes[id] = style }
func (g *stubGraph) RemoveNode(id string)                       { delete(g.nodes, id) }
func (g *stubGraph) UpsertEdge(id, from, to string, style view.EdgeStyle) {
	g.edges[id] = style
}
func (g *stubGraph) RemoveEdge(id string) { delete(g.edges, id) }

type stubMap struct {
	markers map[string]bool
	lines   map[string]bool
}

func newStubMap() *stubMap {
	return &stubMap{markers: make(map[string]bool), lines: make(map[string]bool)}
}

func (m *stubMap) UpsertMarker(id string, lat, lon float64, style view.NodeStyle) {
	m.markers[id] = true
}
func (m *stubMap) RemoveMarker(id string)               { delete(m.markers, id) }
func (m *stubMap) SetMarkerVisible(id string, v bool)   { m.markers[id] = v }
func (m *stubMap) UpsertLine(id string, a, b, c, d float64, style view.EdgeStyle) {
	m.lines[id] = true
}
func (m *stubMap) RemoveLine(id string)             { delete(m.lines, id) }
func (m *stubMap) SetLineVisible(id string, v bool) { m.lines[id] = v }

type stubQuerier struct {
	signal    SignalInfo
	signalErr error
	path      TracePath
	traceErr  error
	calls     int
}

func (q *stubQuerier) Signal(ctx context.Context, deviceID string) (SignalInfo, error) {
	q.calls++
	return q.signal, q.signalErr
}

func (q *stubQuerier) Trace(ctx context.Context, fromID, toID string) (TracePath, error) {
	q.calls++
	return q.path, q.traceErr
}

type harness struct {
	r       *Reconciler
	bus     *Bus
	graph   *stubGraph
	geo     *stubMap
	notices []Notice
	panels  []bool
	signals []string
	states  []State
}

func newHarness(t *testing.T, q Querier) *harness {
	t.Helper()
	h := &harness{bus: NewBus(16), graph: newStubGraph(), geo: newStubMap()}
	h.r = New(Config{
		Store:   topology.NewStore(),
		Bus:     h.bus,
		Graph:   h.graph,
		Map:     h.geo,
		Querier: q,
		Zoom:    10,
		Logger:  zerolog.Nop(),
		Callbacks: Callbacks{
			OnNotice: func(n Notice) { h.notices = append(h.notices, n) },
			OnPanel:  func(_ render.Content, ok bool) { h.panels = append(h.panels, ok) },
			OnSignal: func(id string, _ SignalInfo) { h.signals = append(h.signals, id) },
			OnState:  func(s State) { h.states = append(h.states, s) },
		},
	})
	return h
}

// step feeds one event through the reconciler synchronously.
func (h *harness) step(e Event) {
	h.r.handle(context.Background(), e)
}

// drain forwards one queued async completion from the bus to the loop.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	select {
	case e := <-h.bus.Events():
		h.step(e)
	case <-time.After(time.Second):
		t.Fatalf("no async completion on the bus")
	}
}

func snapshotEvent() SnapshotReceived {
	return SnapshotReceived{
		Devices: []topology.Device{
			{ID: "OLT-1", Type: topology.DeviceOLT, Status: topology.DeviceOnline,
				Properties: topology.Properties{topology.PropDataSource: topology.SourceNational}},
			{ID: "ONT-1", Type: topology.DeviceONT, Status: topology.DeviceOnline,
				Coordinates: &topology.Coordinates{7.6, 51.9},
				Properties:  topology.Properties{topology.PropDataSource: topology.SourceNational}},
		},
		Links: []topology.Link{
			{ID: "L1", Source: "OLT-1", Target: "ONT-1", Status: topology.LinkUp,
				Properties: topology.Properties{topology.PropLinkTechnology: topology.TechPON}},
		},
	}
}

func TestReconciler_SnapshotMovesToSynced(t *testing.T) {
	h := newHarness(t, nil)

	if h.r.State() != StateUninitialized {
		t.Fatalf("initial state = %v", h.r.State())
	}
	h.step(snapshotEvent())

	if h.r.State() != StateSynced {
		t.Fatalf("state = %v, want synced", h.r.State())
	}
	if _, ok := h.graph.nodes["OLT-1"]; !ok {
		t.Fatalf("graph not populated after snapshot")
	}
	if _, ok := h.graph.edges["L1"]; !ok {
		t.Fatalf("edge missing after snapshot")
	}
	// OLT-1 has no coordinates, only ONT-1 gets a marker.
	if _, ok := h.geo.markers["ONT-1"]; !ok {
		t.Fatalf("marker missing after snapshot")
	}
	if _, ok := h.geo.markers["OLT-1"]; ok {
		t.Fatalf("coordinate-less device drawn on map")
	}
}

func TestReconciler_InvalidSnapshotRejectedWithoutStateChange(t *testing.T) {
	h := newHarness(t, nil)

	bad := snapshotEvent()
	bad.Links = append(bad.Links, topology.Link{ID: "L2", Source: "OLT-1", Target: "GHOST", Status: topology.LinkUp})
	h.step(bad)

	if h.r.State() != StateUninitialized {
		t.Fatalf("state = %v, want uninitialized after rejected snapshot", h.r.State())
	}
	if len(h.notices) == 0 {
		t.Fatalf("expected a validation notice")
	}
	if len(h.graph.nodes) != 0 {
		t.Fatalf("surface mutated by rejected snapshot")
	}
}

func TestReconciler_PatchBeforeSnapshotDropped(t *testing.T) {
	h := newHarness(t, nil)
	d := topology.Device{ID: "X", Type: topology.DeviceONT, Status: topology.DeviceOnline}
	h.step(PatchReceived{Kind: topology.KindDevice, Device: &d})

	if len(h.graph.nodes) != 0 {
		t.Fatalf("patch before snapshot reached the surface")
	}
}

func TestReconciler_PatchIsTargeted(t *testing.T) {
	h := newHarness(t, nil)
	h.step(snapshotEvent())

	offline := topology.Device{ID: "ONT-1", Type: topology.DeviceONT, Status: topology.DeviceOffline,
		Coordinates: &topology.Coordinates{7.6, 51.9},
		Properties:  topology.Properties{topology.PropDataSource: topology.SourceNational}}
	h.step(PatchReceived{Kind: topology.KindDevice, Device: &offline})

	got := h.graph.nodes["ONT-1"]
	if got.BorderColor != view.NodeStyleFor(offline).BorderColor {
		t.Fatalf("patched style not applied: %+v", got)
	}
	// The untouched neighbor stays projected.
	if _, ok := h.graph.nodes["OLT-1"]; !ok {
		t.Fatalf("patch disturbed unrelated entity")
	}
}

func TestReconciler_PatchRejectionKeepsStore(t *testing.T) {
	h := newHarness(t, nil)
	h.step(snapshotEvent())

	bad := topology.Link{ID: "L9", Source: "GHOST", Target: "ONT-1", Status: topology.LinkUp}
	h.step(PatchReceived{Kind: topology.KindLink, Link: &bad})

	if len(h.notices) == 0 {
		t.Fatalf("expected patch rejection notice")
	}
	if _, ok := h.graph.edges["L9"]; ok {
		t.Fatalf("rejected link reached the surface")
	}
}

func TestReconciler_LocalActionsRequireSynced(t *testing.T) {
	h := newHarness(t, nil)

	h.step(FilterChanged{Options: view.DefaultOptions()})
	h.step(ZoomChanged{Level: 3})
	h.step(EntityClicked{ID: "X", Kind: topology.KindDevice})

	if len(h.notices) != 3 {
		t.Fatalf("notices = %d, want 3", len(h.notices))
	}
	for _, n := range h.notices {
		if !errors.Is(n.Err, ErrNotSynced) {
			t.Fatalf("notice err = %v, want ErrNotSynced", n.Err)
		}
	}
}

func TestReconciler_SelectionInvalidatedByNextSnapshot(t *testing.T) {
	h := newHarness(t, nil)
	h.step(snapshotEvent())
	h.step(EntityClicked{ID: "OLT-1", Kind: topology.KindDevice})

	if ok := h.panels[len(h.panels)-1]; !ok {
		t.Fatalf("panel empty after selecting visible device")
	}

	// Next snapshot drops OLT-1 entirely.
	next := SnapshotReceived{
		Devices: []topology.Device{
			{ID: "ONT-1", Type: topology.DeviceONT, Status: topology.DeviceOnline,
				Properties: topology.Properties{topology.PropDataSource: topology.SourceNational}},
		},
	}
	h.step(next)

	if ok := h.panels[len(h.panels)-1]; ok {
		t.Fatalf("panel still shows removed entity")
	}
}

func TestReconciler_ClickOnEndDeviceFetchesSignal(t *testing.T) {
	q := &stubQuerier{signal: SignalInfo{Status: "good", PowerDBm: -21.5}}
	h := newHarness(t, q)
	h.step(snapshotEvent())

	h.step(EntityClicked{ID: "ONT-1", Kind: topology.KindDevice})
	h.drain(t)

	if len(h.signals) != 1 || h.signals[0] != "ONT-1" {
		t.Fatalf("signals = %v, want [ONT-1]", h.signals)
	}

	// Non-end devices never trigger the lookup.
	before := q.calls
	h.step(EntityClicked{ID: "OLT-1", Kind: topology.KindDevice})
	if q.calls != before {
		t.Fatalf("signal fetched for a non-end device")
	}
}

func TestReconciler_StaleSignalResponseDiscarded(t *testing.T) {
	q := &stubQuerier{signal: SignalInfo{Status: "good"}}
	h := newHarness(t, q)
	h.step(snapshotEvent())

	h.step(EntityClicked{ID: "ONT-1", Kind: topology.KindDevice})
	// Selection moves on before the response is processed.
	h.step(EntityClicked{ID: "OLT-1", Kind: topology.KindDevice})
	h.drain(t)

	if len(h.signals) != 0 {
		t.Fatalf("stale signal response surfaced: %v", h.signals)
	}
	if len(h.notices) != 0 {
		t.Fatalf("stale discard must be silent, got %v", h.notices)
	}
}

func TestReconciler_TraceHighlightsPath(t *testing.T) {
	q := &stubQuerier{path: TracePath{Nodes: []string{"OLT-1", "ONT-1"}, Links: []string{"L1"}}}
	h := newHarness(t, q)
	h.step(snapshotEvent())

	h.step(TraceRequested{FromID: "OLT-1", ToID: "ONT-1"})
	h.drain(t)

	if h.graph.nodes["OLT-1"].BorderColor != view.HighlightColor {
		t.Fatalf("trace nodes not highlighted")
	}
	if h.graph.edges["L1"].Color != view.HighlightColor {
		t.Fatalf("trace link not highlighted")
	}

	h.step(HighlightCleared{})
	if h.graph.edges["L1"].Color == view.HighlightColor {
		t.Fatalf("highlight not cleared")
	}
}

func TestReconciler_OverlappingTracesOnlyLatestWins(t *testing.T) {
	q := &stubQuerier{path: TracePath{Nodes: []string{"OLT-1"}, Links: nil}}
	h := newHarness(t, q)
	h.step(snapshotEvent())

	h.step(TraceRequested{FromID: "OLT-1", ToID: "ONT-1"})
	h.step(TraceRequested{FromID: "OLT-1", ToID: "ONT-1"})

	// The two completions race onto the bus in either order; sort them by
	// token value. Only the higher token may paint.
	events := []traceResolved{
		(<-h.bus.Events()).(traceResolved),
		(<-h.bus.Events()).(traceResolved),
	}
	stale, latest := events[0], events[1]
	if stale.token > latest.token {
		stale, latest = latest, stale
	}
	if stale.token == latest.token {
		t.Fatalf("both completions carry token %d, want distinct tokens", stale.token)
	}

	h.step(stale)
	if h.graph.nodes["OLT-1"].BorderColor == view.HighlightColor {
		t.Fatalf("superseded trace painted the overlay")
	}
	h.step(latest)
	if h.graph.nodes["OLT-1"].BorderColor != view.HighlightColor {
		t.Fatalf("latest trace did not paint the overlay")
	}
}

func TestReconciler_EmptyTraceYieldsNotice(t *testing.T) {
	q := &stubQuerier{path: TracePath{}}
	h := newHarness(t, q)
	h.step(snapshotEvent())

	h.step(TraceRequested{FromID: "OLT-1", ToID: "ONT-1"})
	h.drain(t)

	if len(h.notices) != 1 || h.notices[0].Level != NoticeInfo {
		t.Fatalf("notices = %+v, want one info notice", h.notices)
	}
	if h.graph.nodes["OLT-1"].BorderColor == view.HighlightColor {
		t.Fatalf("empty trace painted the overlay")
	}
}

func TestReconciler_RunEndsOnFeedClose(t *testing.T) {
	h := newHarness(t, nil)
	cause := errors.New("connection reset")

	done := make(chan error, 1)
	go func() { done <- h.r.Run(context.Background()) }()
	h.bus.Publish(snapshotEvent())
	h.bus.Publish(FeedClosed{Err: cause})

	select {
	case err := <-done:
		if !errors.Is(err, cause) {
			t.Fatalf("Run returned %v, want %v", err, cause)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after feed close")
	}
	if h.r.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", h.r.State())
	}
}

func TestReconciler_PatchProjectsNewlyVisibleEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	snap := snapshotEvent()
	snap.Devices = append(snap.Devices, topology.Device{
		ID: "ONT-2", Type: topology.DeviceONT, Status: topology.DeviceOnline,
		Coordinates: &topology.Coordinates{7.7, 51.8},
		Properties:  topology.Properties{topology.PropDataSource: topology.SourceNational},
	})
	h.step(snap)

	// ONT-2 touches no link and the fallback is off while links exist.
	if _, ok := h.graph.nodes["ONT-2"]; ok {
		t.Fatalf("isolated device projected while links exist")
	}

	l2 := topology.Link{ID: "L2", Source: "ONT-1", Target: "ONT-2", Status: topology.LinkUp,
		Properties: topology.Properties{topology.PropLinkTechnology: topology.TechPON}}
	h.step(PatchReceived{Kind: topology.KindLink, Link: &l2})

	if _, ok := h.graph.edges["L2"]; !ok {
		t.Fatalf("patched link not projected")
	}
	if _, ok := h.graph.nodes["ONT-2"]; !ok {
		t.Fatalf("endpoint made visible by the link patch not projected")
	}
	if _, ok := h.geo.markers["ONT-2"]; !ok {
		t.Fatalf("endpoint marker missing on the map")
	}
	if _, ok := h.geo.lines["L2"]; !ok {
		t.Fatalf("line missing on the map")
	}
}

func TestReconciler_PatchRetiresIsolatedFallback(t *testing.T) {
	h := newHarness(t, nil)
	snap := snapshotEvent()
	snap.Links = nil
	snap.Devices = append(snap.Devices, topology.Device{
		ID: "ONT-2", Type: topology.DeviceONT, Status: topology.DeviceOnline,
		Coordinates: &topology.Coordinates{7.7, 51.8},
		Properties:  topology.Properties{topology.PropDataSource: topology.SourceNational},
	})
	h.step(snap)

	// Link-less topology shows every device via the fallback.
	if len(h.graph.nodes) != 3 {
		t.Fatalf("fallback projected %d nodes, want 3", len(h.graph.nodes))
	}

	l1 := topology.Link{ID: "L1", Source: "OLT-1", Target: "ONT-1", Status: topology.LinkUp,
		Properties: topology.Properties{topology.PropLinkTechnology: topology.TechPON}}
	h.step(PatchReceived{Kind: topology.KindLink, Link: &l1})

	if _, ok := h.graph.edges["L1"]; !ok {
		t.Fatalf("patched link not projected")
	}
	if _, ok := h.graph.nodes["ONT-2"]; ok {
		t.Fatalf("fallback device still projected after the first link patch")
	}
	if _, ok := h.geo.markers["ONT-2"]; ok {
		t.Fatalf("fallback marker still on the map")
	}
	// The link's endpoints remain.
	if _, ok := h.graph.nodes["OLT-1"]; !ok {
		t.Fatalf("link endpoint dropped by the patch")
	}
}

func TestReconciler_EmptyClickClearsSelectionAndHighlight(t *testing.T) {
	q := &stubQuerier{path: TracePath{Nodes: []string{"OLT-1", "ONT-1"}, Links: []string{"L1"}}}
	h := newHarness(t, q)
	h.step(snapshotEvent())

	h.step(EntityClicked{ID: "OLT-1", Kind: topology.KindDevice})
	h.step(TraceRequested{FromID: "OLT-1", ToID: "ONT-1"})
	h.drain(t)

	if h.graph.nodes["OLT-1"].BorderColor != view.HighlightColor {
		t.Fatalf("trace did not paint before the empty-space click")
	}
	if !h.panels[len(h.panels)-1] {
		t.Fatalf("no selection before the empty-space click")
	}

	h.step(SurfaceClickedEmpty{})

	if h.graph.nodes["OLT-1"].BorderColor == view.HighlightColor {
		t.Fatalf("highlight survived the empty-space click")
	}
	if h.panels[len(h.panels)-1] {
		t.Fatalf("selection survived the empty-space click")
	}
}

func TestReconciler_FilterChangeResyncs(t *testing.T) {
	h := newHarness(t, nil)
	h.step(snapshotEvent())

	opts := view.DefaultOptions()
	opts.Arch = view.ArchPtP
	h.step(FilterChanged{Options: opts})

	if len(h.graph.nodes) != 0 || len(h.graph.edges) != 0 {
		t.Fatalf("PtP filter over PON-only topology left entities on the surface: %d nodes %d edges",
			len(h.graph.nodes), len(h.graph.edges))
	}
}
