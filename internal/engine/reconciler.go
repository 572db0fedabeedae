// Package engine drives the view pipeline: it owns the reconciler state
// machine, consumes feed and surface events from a single bus, and keeps
// the store, projectors, overlay and panel consistent with each other.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"unoc/core-go/internal/render"
	"unoc/core-go/internal/topology"
	"unoc/core-go/internal/view"
)

// State is the reconciler lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateSynced
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSynced:
		return "synced"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SignalInfo is the auxiliary signal lookup result for an end device.
type SignalInfo struct {
	Status   string   `json:"status"`
	PowerDBm float64  `json:"power_dbm"`
	BudgetDB *float64 `json:"budget,omitempty"`
}

// TracePath is a path between two devices as computed by the server.
// Empty slices mean no path exists.
type TracePath struct {
	Nodes []string `json:"nodes"`
	Links []string `json:"links"`
}

// Querier performs the auxiliary pull requests. Implementations must
// honor context cancellation; the reconciler cancels a request the
// moment a newer one supersedes it.
type Querier interface {
	Signal(ctx context.Context, deviceID string) (SignalInfo, error)
	Trace(ctx context.Context, fromID, toID string) (TracePath, error)
}

// NoticeLevel classifies a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a dismissible user-facing message. Fatal session errors are
// not notices; they end Run.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

// Callbacks are the reconciler's outputs toward the embedding
// application. All are optional and invoked from the Run goroutine.
type Callbacks struct {
	OnNotice func(Notice)
	OnState  func(State)
	OnPanel  func(content render.Content, ok bool)
	OnSignal func(deviceID string, info SignalInfo)
}

// Config assembles a Reconciler. Store, Bus and both surfaces are
// required; Querier may be nil when no query endpoint exists, in which
// case traces and signal lookups report a request error.
type Config struct {
	Store     *topology.Store
	Bus       *Bus
	Graph     render.GraphSurface
	Map       render.MapSurface
	Querier   Querier
	Options   view.Options
	LOD       view.LOD
	Zoom      float64
	Logger    zerolog.Logger
	Callbacks Callbacks
}

// Reconciler is the single-threaded core of the engine. All fields are
// touched only from Run's loop; producers talk to it via the bus.
type Reconciler struct {
	store *topology.Store
	bus   *Bus
	graph *render.GraphProjector
	geo   *render.MapProjector
	hl    *render.HighlightOverlay
	panel *render.Panel

	querier Querier
	opts    view.Options
	state   State
	log     zerolog.Logger
	cb      Callbacks

	signalToken  uint64
	traceToken   uint64
	cancelSignal context.CancelFunc
	cancelTrace  context.CancelFunc
}

func New(cfg Config) *Reconciler {
	graph := render.NewGraphProjector(cfg.Graph)
	if cfg.Options == (view.Options{}) {
		cfg.Options = view.DefaultOptions()
	}
	if cfg.LOD == (view.LOD{}) {
		cfg.LOD = view.NewLOD()
	}
	return &Reconciler{
		store:   cfg.Store,
		bus:     cfg.Bus,
		graph:   graph,
		geo:     render.NewMapProjector(cfg.Map, cfg.LOD, cfg.Zoom),
		hl:      render.NewHighlightOverlay(cfg.Graph, graph),
		panel:   render.NewPanel(),
		querier: cfg.Querier,
		opts:    cfg.Options,
		state:   StateUninitialized,
		log:     cfg.Logger,
		cb:      cfg.Callbacks,
	}
}

// State returns the current lifecycle state. Meaningful only from the
// Run goroutine or after Run returned.
func (r *Reconciler) State() State { return r.state }

// Run consumes the bus until the context ends or the feed closes.
// A feed disconnect is terminal: Run returns the transport error and the
// reconciler stays DISCONNECTED.
func (r *Reconciler) Run(ctx context.Context) error {
	defer r.cancelPending()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-r.bus.Events():
			if closed, ok := e.(FeedClosed); ok {
				r.setState(StateDisconnected)
				r.log.Error().Err(closed.Err).Msg("feed closed, session over")
				return closed.Err
			}
			r.handle(ctx, e)
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, e Event) {
	switch ev := e.(type) {
	case SnapshotReceived:
		r.onSnapshot(ev)
	case PatchReceived:
		r.onPatch(ev)
	case FilterChanged:
		if !r.requireSynced("filter change") {
			return
		}
		r.opts = ev.Options
		r.resync()
	case ZoomChanged:
		if !r.requireSynced("zoom change") {
			return
		}
		r.geo.SetZoom(ev.Level)
	case EntityClicked:
		if !r.requireSynced("select") {
			return
		}
		r.onClick(ctx, ev)
	case SelectionCleared:
		if !r.requireSynced("clear selection") {
			return
		}
		r.panel.Clear()
		r.emitPanel()
	case SurfaceClickedEmpty:
		if !r.requireSynced("clear") {
			return
		}
		r.panel.Clear()
		r.hl.Clear()
		r.emitPanel()
	case TraceRequested:
		if !r.requireSynced("trace") {
			return
		}
		r.onTrace(ctx, ev)
	case HighlightCleared:
		if !r.requireSynced("clear highlight") {
			return
		}
		r.hl.Clear()
	case signalResolved:
		r.onSignalResolved(ev)
	case traceResolved:
		r.onTraceResolved(ev)
	default:
		r.log.Warn().Type("event", e).Msg("unhandled event")
	}
}

// onSnapshot installs a full replacement and resynchronizes everything
// derived from the store. Valid both as the initial sync and as a later
// reset, for example after a saved snapshot was restored server-side.
func (r *Reconciler) onSnapshot(ev SnapshotReceived) {
	version, changes, err := r.store.ReplaceAll(ev.Devices, ev.Links, ev.Rings)
	if err != nil {
		var verr *topology.ValidationError
		if errors.As(err, &verr) {
			r.notice(NoticeWarning, "snapshot rejected: "+verr.Reason, err)
			return
		}
		r.notice(NoticeError, "snapshot rejected", err)
		return
	}
	r.log.Info().
		Uint64("version", version).
		Int("added_devices", len(changes.AddedDevices)).
		Int("removed_devices", len(changes.RemovedDevices)).
		Int("added_links", len(changes.AddedLinks)).
		Int("removed_links", len(changes.RemovedLinks)).
		Msg("snapshot installed")
	r.setState(StateSynced)
	r.resync()
}

// onPatch applies a single-entity update and touches only the affected
// id on the surfaces, so highlight, selection and zoom survive intact.
func (r *Reconciler) onPatch(ev PatchReceived) {
	if r.state != StateSynced {
		r.log.Warn().Msg("patch before first snapshot, dropped")
		return
	}

	var id string
	var err error
	switch {
	case ev.Kind == topology.KindDevice && ev.Device != nil:
		id = ev.Device.ID
		_, err = r.store.ApplyDevice(*ev.Device)
	case ev.Kind == topology.KindLink && ev.Link != nil:
		id = ev.Link.ID
		_, err = r.store.ApplyLink(*ev.Link)
	default:
		r.notice(NoticeWarning, "malformed patch dropped", nil)
		return
	}
	if err != nil {
		r.notice(NoticeWarning, "patch rejected", err)
		return
	}

	set := view.Filter(r.store.Snapshot(), r.opts)
	r.syncChanged(set, id)

	// The targeted upsert painted the base style; put the highlight back
	// on top if the entity is part of it.
	if r.hl.Active() {
		nodes, links := r.hl.IDs()
		r.hl.Apply(nodes, links)
	}

	r.panel.Revalidate(set)
	r.emitPanel()
}

// syncChanged reconciles both surfaces against the new filtered set,
// touching only ids whose visibility flipped plus the patched id. One
// patch can flip other entities: a link patch may surface a previously
// hidden endpoint, or retire the isolated-node fallback for every
// device at once.
func (r *Reconciler) syncChanged(set view.Set, patchedID string) {
	wantNodes := set.DeviceIDs()
	wantEdges := set.LinkIDs()

	// Stale edges before stale nodes, mirroring the full sync, so the
	// surface never holds an edge without its endpoints.
	for _, id := range r.graph.EdgeIDs() {
		if _, ok := wantEdges[id]; ok {
			continue
		}
		l, _ := r.graph.ProjectedLink(id)
		r.graph.SyncLink(l, false)
		r.geo.SyncLink(l, false)
	}
	for _, id := range r.graph.NodeIDs() {
		if _, ok := wantNodes[id]; ok {
			continue
		}
		d, _ := r.graph.ProjectedDevice(id)
		r.graph.SyncDevice(d, false)
		r.geo.SyncDevice(d, false)
	}

	// Nodes before edges so a newly visible link finds its endpoint
	// markers on the map.
	for _, d := range set.Devices {
		if _, projected := r.graph.ProjectedDevice(d.ID); projected && d.ID != patchedID {
			continue
		}
		r.graph.SyncDevice(d, true)
		r.geo.SyncDevice(d, true)
	}
	for _, l := range set.Links {
		_, projected := r.graph.ProjectedLink(l.ID)
		// A device patch can change endpoint coordinates, so links
		// touching the patched id re-sync even when already projected.
		touchesPatched := l.Source == patchedID || l.Target == patchedID
		if projected && l.ID != patchedID && !touchesPatched {
			continue
		}
		r.graph.SyncLink(l, true)
		r.geo.SyncLink(l, true)
	}
}

// resync recomputes the filtered set and reconciles both surfaces,
// then restores overlay and selection from current data.
func (r *Reconciler) resync() {
	set := view.Filter(r.store.Snapshot(), r.opts)
	r.graph.SyncFull(set)
	r.geo.SyncFull(set)

	if r.hl.Active() {
		nodes, links := r.hl.IDs()
		r.hl.Reset()
		r.hl.Apply(nodes, links)
	}

	r.panel.Revalidate(set)
	r.emitPanel()
}

func (r *Reconciler) onClick(ctx context.Context, ev EntityClicked) {
	r.panel.Select(ev.ID, ev.Kind)
	content, ok := r.panel.Resolve(r.store.Snapshot())
	if r.cb.OnPanel != nil {
		r.cb.OnPanel(content, ok)
	}
	if !ok || ev.Kind != topology.KindDevice {
		return
	}
	if content.Device == nil || !topology.IsEndDevice(content.Device.Type) {
		return
	}
	r.fetchSignal(ctx, ev.ID)
}

// fetchSignal issues the auxiliary lookup with a fresh token. A newer
// selection cancels and supersedes the in-flight request.
func (r *Reconciler) fetchSignal(ctx context.Context, deviceID string) {
	if r.querier == nil {
		r.notice(NoticeError, "no query endpoint configured", nil)
		return
	}
	if r.cancelSignal != nil {
		r.cancelSignal()
	}
	r.signalToken++
	token := r.signalToken

	reqCtx, cancel := context.WithCancel(ctx)
	r.cancelSignal = cancel
	go func() {
		info, err := r.querier.Signal(reqCtx, deviceID)
		r.bus.Publish(signalResolved{token: token, deviceID: deviceID, info: info, err: err})
	}()
}

func (r *Reconciler) onSignalResolved(ev signalResolved) {
	if ev.token != r.signalToken {
		r.log.Debug().Str("device_id", ev.deviceID).Msg("stale signal response discarded")
		return
	}
	cur, ok := r.panel.Current()
	if !ok || cur.ID != ev.deviceID {
		r.log.Debug().Str("device_id", ev.deviceID).Msg("signal response for superseded selection discarded")
		return
	}
	if ev.err != nil {
		r.notice(NoticeError, "signal lookup failed", ev.err)
		return
	}
	if r.cb.OnSignal != nil {
		r.cb.OnSignal(ev.deviceID, ev.info)
	}
}

func (r *Reconciler) onTrace(ctx context.Context, ev TraceRequested) {
	if r.querier == nil {
		r.notice(NoticeError, "no query endpoint configured", nil)
		return
	}
	if r.cancelTrace != nil {
		r.cancelTrace()
	}
	r.traceToken++
	token := r.traceToken

	reqCtx, cancel := context.WithCancel(ctx)
	r.cancelTrace = cancel
	go func() {
		path, err := r.querier.Trace(reqCtx, ev.FromID, ev.ToID)
		r.bus.Publish(traceResolved{token: token, path: path, err: err})
	}()
}

func (r *Reconciler) onTraceResolved(ev traceResolved) {
	if ev.token != r.traceToken {
		r.log.Debug().Msg("stale trace response discarded")
		return
	}
	if ev.err != nil {
		r.notice(NoticeError, "path trace failed", ev.err)
		return
	}
	if len(ev.path.Nodes) == 0 && len(ev.path.Links) == 0 {
		r.notice(NoticeInfo, "no path found", nil)
		return
	}
	r.hl.Apply(ev.path.Nodes, ev.path.Links)
}

func (r *Reconciler) requireSynced(action string) bool {
	if r.state == StateSynced {
		return true
	}
	r.notice(NoticeWarning, action+" ignored: "+r.state.String(), ErrNotSynced)
	return false
}

func (r *Reconciler) setState(s State) {
	if r.state == s {
		return
	}
	r.state = s
	r.log.Info().Stringer("state", s).Msg("reconciler state change")
	if r.cb.OnState != nil {
		r.cb.OnState(s)
	}
}

func (r *Reconciler) emitPanel() {
	if r.cb.OnPanel == nil {
		return
	}
	content, ok := r.panel.Resolve(r.store.Snapshot())
	r.cb.OnPanel(content, ok)
}

func (r *Reconciler) notice(level NoticeLevel, msg string, err error) {
	evt := r.log.Warn()
	if level == NoticeError {
		evt = r.log.Error()
	}
	evt.Err(err).Msg(msg)
	if r.cb.OnNotice != nil {
		r.cb.OnNotice(Notice{Level: level, Message: msg, Err: err})
	}
}

func (r *Reconciler) cancelPending() {
	if r.cancelSignal != nil {
		r.cancelSignal()
	}
	if r.cancelTrace != nil {
		r.cancelTrace()
	}
}
