package render

import (
	"sort"

	"unoc/core-go/internal/view"
)

// HighlightOverlay paints a traced path over the base styles on the
// graph surface. It tracks what it highlighted so Clear can restore the
// base style by re-resolving it from the projector, never by caching
// surface state.
type HighlightOverlay struct {
	surface GraphSurface
	base    *GraphProjector
	nodes   map[string]struct{}
	edges   map[string]struct{}
}

func NewHighlightOverlay(surface GraphSurface, base *GraphProjector) *HighlightOverlay {
	return &HighlightOverlay{
		surface: surface,
		base:    base,
		nodes:   make(map[string]struct{}),
		edges:   make(map[string]struct{}),
	}
}

// Apply replaces any previous highlight with the given path. Ids not
// currently projected are skipped; a trace can legitimately pass through
// entities the active filter hides.
func (o *HighlightOverlay) Apply(deviceIDs, linkIDs []string) {
	o.Clear()
	for _, id := range deviceIDs {
		d, ok := o.base.ProjectedDevice(id)
		if !ok {
			continue
		}
		o.surface.UpsertNode(id, view.HighlightNodeStyle(d))
		o.nodes[id] = struct{}{}
	}
	for _, id := range linkIDs {
		l, ok := o.base.ProjectedLink(id)
		if !ok {
			continue
		}
		o.surface.UpsertEdge(id, l.Source, l.Target, view.HighlightEdgeStyle(l))
		o.edges[id] = struct{}{}
	}
}

// Clear restores base styles for everything highlighted. Calling it with
// nothing highlighted is a no-op.
func (o *HighlightOverlay) Clear() {
	for id := range o.nodes {
		if d, ok := o.base.ProjectedDevice(id); ok {
			o.surface.UpsertNode(id, view.NodeStyleFor(d))
		}
		delete(o.nodes, id)
	}
	for id := range o.edges {
		if l, ok := o.base.ProjectedLink(id); ok {
			o.surface.UpsertEdge(id, l.Source, l.Target, view.EdgeStyleFor(l))
		}
		delete(o.edges, id)
	}
}

// Reset forgets the highlight without touching the surface. Used after a
// full sync has already repainted base styles.
func (o *HighlightOverlay) Reset() {
	clear(o.nodes)
	clear(o.edges)
}

// IDs returns the currently highlighted device and link ids, sorted for
// deterministic re-application.
func (o *HighlightOverlay) IDs() (deviceIDs, linkIDs []string) {
	deviceIDs = make([]string, 0, len(o.nodes))
	for id := range o.nodes {
		deviceIDs = append(deviceIDs, id)
	}
	linkIDs = make([]string, 0, len(o.edges))
	for id := range o.edges {
		linkIDs = append(linkIDs, id)
	}
	sort.Strings(deviceIDs)
	sort.Strings(linkIDs)
	return deviceIDs, linkIDs
}

// Active reports whether a highlight is currently applied.
func (o *HighlightOverlay) Active() bool {
	return len(o.nodes) > 0 || len(o.edges) > 0
}
