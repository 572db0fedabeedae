package render

import (
	"unoc/core-go/internal/topology"
	"unoc/core-go/internal/view"
)

// MapProjector keeps a geographic surface in step with the filtered
// view. Entities without coordinates are simply not drawn; a line needs
// coordinates on both endpoints. Zoom changes only toggle visibility,
// they never add or remove entities.
type MapProjector struct {
	surface MapSurface
	lod     view.LOD
	zoom    float64

	markers map[string]topology.Device
	lines   map[string]topology.Link
}

func NewMapProjector(surface MapSurface, lod view.LOD, initialZoom float64) *MapProjector {
	return &MapProjector{
		surface: surface,
		lod:     lod,
		zoom:    initialZoom,
		markers: make(map[string]topology.Device),
		lines:   make(map[string]topology.Link),
	}
}

// SyncFull reconciles the surface against the filtered set.
func (p *MapProjector) SyncFull(set view.Set) {
	coords := make(map[string]topology.Coordinates, len(set.Devices))
	for _, d := range set.Devices {
		if d.Coordinates != nil {
			coords[d.ID] = *d.Coordinates
		}
	}

	wantLines := make(map[string]struct{}, len(set.Links))
	for _, l := range set.Links {
		if _, ok := coords[l.Source]; !ok {
			continue
		}
		if _, ok := coords[l.Target]; !ok {
			continue
		}
		wantLines[l.ID] = struct{}{}
	}

	for id := range p.lines {
		if _, ok := wantLines[id]; !ok {
			p.surface.RemoveLine(id)
			delete(p.lines, id)
		}
	}
	for id := range p.markers {
		if _, ok := coords[id]; !ok {
			p.surface.RemoveMarker(id)
			delete(p.markers, id)
		}
	}

	for _, d := range set.Devices {
		pos, ok := coords[d.ID]
		if !ok {
			continue
		}
		p.surface.UpsertMarker(d.ID, pos.Lat(), pos.Lon(), view.NodeStyleFor(d))
		p.surface.SetMarkerVisible(d.ID, p.lod.DeviceVisible(d, p.zoom))
		p.markers[d.ID] = d
	}
	for _, l := range set.Links {
		if _, ok := wantLines[l.ID]; !ok {
			continue
		}
		from, to := coords[l.Source], coords[l.Target]
		p.surface.UpsertLine(l.ID, from.Lat(), from.Lon(), to.Lat(), to.Lon(), view.LineStyleFor(l))
		p.surface.SetLineVisible(l.ID, p.lod.LinkVisible(l, p.zoom))
		p.lines[l.ID] = l
	}
}

// SyncDevice applies a single-device patch to the map. A device that is
// hidden or has no coordinates loses its marker and every line touching
// it, so the surface never holds a dangling line.
func (p *MapProjector) SyncDevice(d topology.Device, visible bool) {
	if !visible || d.Coordinates == nil {
		if _, ok := p.markers[d.ID]; ok {
			for id, l := range p.lines {
				if l.Source == d.ID || l.Target == d.ID {
					p.surface.RemoveLine(id)
					delete(p.lines, id)
				}
			}
			p.surface.RemoveMarker(d.ID)
			delete(p.markers, d.ID)
		}
		return
	}
	p.surface.UpsertMarker(d.ID, d.Coordinates.Lat(), d.Coordinates.Lon(), view.NodeStyleFor(d))
	p.surface.SetMarkerVisible(d.ID, p.lod.DeviceVisible(d, p.zoom))
	p.markers[d.ID] = d
}

// SyncLink applies a single-link patch. Endpoint positions come from the
// projected markers; a link whose endpoint is not on the map is removed.
func (p *MapProjector) SyncLink(l topology.Link, visible bool) {
	from, okFrom := p.markers[l.Source]
	to, okTo := p.markers[l.Target]
	if !visible || !okFrom || !okTo {
		if _, ok := p.lines[l.ID]; ok {
			p.surface.RemoveLine(l.ID)
			delete(p.lines, l.ID)
		}
		return
	}
	p.surface.UpsertLine(l.ID,
		from.Coordinates.Lat(), from.Coordinates.Lon(),
		to.Coordinates.Lat(), to.Coordinates.Lon(),
		view.LineStyleFor(l))
	p.surface.SetLineVisible(l.ID, p.lod.LinkVisible(l, p.zoom))
	p.lines[l.ID] = l
}

// SetZoom re-evaluates visibility for every projected entity at the new
// zoom level. Toggling is binary and idempotent.
func (p *MapProjector) SetZoom(zoom float64) {
	p.zoom = zoom
	for id, d := range p.markers {
		p.surface.SetMarkerVisible(id, p.lod.DeviceVisible(d, zoom))
	}
	for id, l := range p.lines {
		p.surface.SetLineVisible(id, p.lod.LinkVisible(l, zoom))
	}
}

// Zoom returns the current zoom level.
func (p *MapProjector) Zoom() float64 { return p.zoom }
