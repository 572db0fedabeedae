package view

import "unoc/core-go/internal/topology"

// DefaultZoomThreshold is the map zoom level above which non-core
// entities become visible.
const DefaultZoomThreshold = 7

// LOD is the zoom level-of-detail rule for the geographic surface.
// Visibility is binary, not a fade: core infrastructure is always shown,
// everything else only when zoomed past the threshold.
type LOD struct {
	Threshold float64
}

func NewLOD() LOD { return LOD{Threshold: DefaultZoomThreshold} }

// DeviceVisible reports the marker opacity (1 or 0) for a device at the
// given zoom level. Core nodes are always visible.
func (l LOD) DeviceVisible(d topology.Device, zoom float64) bool {
	if d.Type == topology.DeviceCoreNode {
		return true
	}
	return zoom > l.Threshold
}

// LinkVisible reports the line opacity for a link. Backbone links are
// always visible.
func (l LOD) LinkVisible(link topology.Link, zoom float64) bool {
	if link.Properties.String(topology.PropLinkType) == topology.LinkTypeBackbone {
		return true
	}
	return zoom > l.Threshold
}
