package render

import (
	"unoc/core-go/internal/topology"
	"unoc/core-go/internal/view"
)

// GraphProjector keeps a graph surface in step with the filtered view.
// It remembers what it last projected so a full sync removes exactly the
// entities that left the visible set, and so overlays can restore base
// styles without consulting the store.
type GraphProjector struct {
	surface GraphSurface
	nodes   map[string]topology.Device
	edges   map[string]topology.Link
}

func NewGraphProjector(surface GraphSurface) *GraphProjector {
	return &GraphProjector{
		surface: surface,
		nodes:   make(map[string]topology.Device),
		edges:   make(map[string]topology.Link),
	}
}

// SyncFull reconciles the surface against the filtered set. Stale edges
// go first so the surface never holds an edge without its endpoints,
// then stale nodes, then upserts for everything visible.
func (p *GraphProjector) SyncFull(set view.Set) {
	wantNodes := set.DeviceIDs()
	wantEdges := set.LinkIDs()

	for id := range p.edges {
		if _, ok := wantEdges[id]; !ok {
			p.surface.RemoveEdge(id)
			delete(p.edges, id)
		}
	}
	for id := range p.nodes {
		if _, ok := wantNodes[id]; !ok {
			p.surface.RemoveNode(id)
			delete(p.nodes, id)
		}
	}

	for _, d := range set.Devices {
		p.surface.UpsertNode(d.ID, view.NodeStyleFor(d))
		p.nodes[d.ID] = d
	}
	for _, l := range set.Links {
		p.surface.UpsertEdge(l.ID, l.Source, l.Target, view.EdgeStyleFor(l))
		p.edges[l.ID] = l
	}
}

// SyncDevice applies a single-device patch. A device outside the visible
// set is removed from the surface if it was projected before.
func (p *GraphProjector) SyncDevice(d topology.Device, visible bool) {
	if !visible {
		if _, ok := p.nodes[d.ID]; ok {
			p.surface.RemoveNode(d.ID)
			delete(p.nodes, d.ID)
		}
		return
	}
	p.surface.UpsertNode(d.ID, view.NodeStyleFor(d))
	p.nodes[d.ID] = d
}

// SyncLink applies a single-link patch.
func (p *GraphProjector) SyncLink(l topology.Link, visible bool) {
	if !visible {
		if _, ok := p.edges[l.ID]; ok {
			p.surface.RemoveEdge(l.ID)
			delete(p.edges, l.ID)
		}
		return
	}
	p.surface.UpsertEdge(l.ID, l.Source, l.Target, view.EdgeStyleFor(l))
	p.edges[l.ID] = l
}

// NodeIDs returns the ids currently projected as nodes.
func (p *GraphProjector) NodeIDs() []string {
	out := make([]string, 0, len(p.nodes))
	for id := range p.nodes {
		out = append(out, id)
	}
	return out
}

// EdgeIDs returns the ids currently projected as edges.
func (p *GraphProjector) EdgeIDs() []string {
	out := make([]string, 0, len(p.edges))
	for id := range p.edges {
		out = append(out, id)
	}
	return out
}

// ProjectedDevice returns the device as last pushed to the surface.
func (p *GraphProjector) ProjectedDevice(id string) (topology.Device, bool) {
	d, ok := p.nodes[id]
	return d, ok
}

// ProjectedLink returns the link as last pushed to the surface.
func (p *GraphProjector) ProjectedLink(id string) (topology.Link, bool) {
	l, ok := p.edges[id]
	return l, ok
}

// Projected reports whether an id is currently on the surface, as either
// a node or an edge.
func (p *GraphProjector) Projected(id string) bool {
	if _, ok := p.nodes[id]; ok {
		return true
	}
	_, ok := p.edges[id]
	return ok
}
