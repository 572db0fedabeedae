package engine

import (
	"unoc/core-go/internal/topology"
	"unoc/core-go/internal/view"
)

// Event is a message on the engine bus. Surfaces and the feed client
// publish events; the reconciler is the only consumer, which keeps all
// state mutation on its single loop.
type Event interface{ isEvent() }

// SnapshotReceived carries a full topology replacement from the feed.
type SnapshotReceived struct {
	Devices []topology.Device
	Links   []topology.Link
	Rings   []topology.Ring
}

// PatchReceived carries a single-entity update from the feed.
type PatchReceived struct {
	Kind   topology.EntityKind
	Device *topology.Device
	Link   *topology.Link
}

// FeedClosed signals that the feed connection ended. The session is over.
type FeedClosed struct {
	Err error
}

// FilterChanged is a local view-mode or architecture-filter change.
type FilterChanged struct {
	Options view.Options
}

// ZoomChanged is the map surface's zoom callback.
type ZoomChanged struct {
	Level float64
}

// EntityClicked is a click on either surface.
type EntityClicked struct {
	ID   string
	Kind topology.EntityKind
}

// SelectionCleared drops the detail-panel selection.
type SelectionCleared struct{}

// SurfaceClickedEmpty is a click on empty space. It drops the selection
// and the path highlight together.
type SurfaceClickedEmpty struct{}

// TraceRequested asks the query endpoint for a path between two devices.
type TraceRequested struct {
	FromID string
	ToID   string
}

// HighlightCleared removes the current path highlight.
type HighlightCleared struct{}

// signalResolved is the completion of an asynchronous signal lookup.
type signalResolved struct {
	token    uint64
	deviceID string
	info     SignalInfo
	err      error
}

// traceResolved is the completion of an asynchronous path trace.
type traceResolved struct {
	token uint64
	path  TracePath
	err   error
}

func (SnapshotReceived) isEvent() {}
func (PatchReceived) isEvent()    {}
func (FeedClosed) isEvent()       {}
func (FilterChanged) isEvent()    {}
func (ZoomChanged) isEvent()      {}
func (EntityClicked) isEvent()    {}
func (SelectionCleared) isEvent()    {}
func (SurfaceClickedEmpty) isEvent() {}
func (TraceRequested) isEvent()   {}
func (HighlightCleared) isEvent() {}
func (signalResolved) isEvent()   {}
func (traceResolved) isEvent()    {}

// Bus is the typed event queue between producers and the reconciler.
type Bus struct {
	ch chan Event
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{ch: make(chan Event, buffer)}
}

// Publish enqueues an event. It blocks when the reconciler falls behind,
// which is the backpressure keeping feed messages in arrival order.
func (b *Bus) Publish(e Event) {
	b.ch <- e
}

// Events returns the consumer side of the bus.
func (b *Bus) Events() <-chan Event {
	return b.ch
}
