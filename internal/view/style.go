package view

import (
	"fmt"

	"unoc/core-go/internal/topology"
)

// Status palette shared by both surfaces.
const (
	colorOnline      = "#4CAF50"
	colorOffline     = "#F44336"
	colorMaintenance = "#FFC107"
	colorUnknown     = "#9E9E9E"
)

// HighlightColor is the fixed path-trace accent applied on top of base
// styles and removed by re-resolving the base style.
const HighlightColor = "#00BFFF"

// NodeStyle is the resolved appearance of a device on the graph surface.
type NodeStyle struct {
	Shape       string
	Label       string
	Size        int
	BorderColor string
	Background  string
	BorderWidth int
	FontColor   string
}

// EdgeStyle is the resolved appearance of a link. The same struct serves
// the graph surface and the geographic surface so the two views can never
// diverge for one entity.
type EdgeStyle struct {
	Color string
	Width float64
	Dash  []float64
	Label string
}

// NodeStyleFor resolves a device to its display style. The function is
// total: unknown types and statuses yield the documented grey fallback
// instead of failing, and it is pure, so it can be re-applied at any time
// to restore an entity after a highlight is cleared.
func NodeStyleFor(d topology.Device) NodeStyle {
	s := NodeStyle{
		Shape:       "box",
		Label:       string(d.Type),
		Size:        20,
		BorderWidth: 2,
		FontColor:   "#ffffff",
	}
	switch d.Status {
	case topology.DeviceOnline:
		s.BorderColor, s.Background = colorOnline, "#2e7d32"
	case topology.DeviceOffline:
		s.BorderColor, s.Background = colorOffline, "#c62828"
	case topology.DeviceMaintenance:
		s.BorderColor, s.Background = colorMaintenance, "#ffa000"
	default:
		s.BorderColor, s.Background = colorUnknown, "#616161"
	}

	switch d.Type {
	case topology.DeviceCoreNode:
		s.Shape = "database"
		s.BorderColor, s.Background = "#00BFFF", "#202A40"
		s.Size = 30
		s.Label = d.ID
	case topology.DevicePOP:
		s.Shape = "database"
		s.BorderColor, s.Background = "#FFFFFF", "#007BFF"
		s.Size = 25
		s.Label = d.ID
	case topology.DeviceODF:
		s.Label = "ODF"
		s.BorderColor, s.Background = "#cccccc", "#555555"
	case topology.DeviceNVt:
		s.BorderColor, s.Background = "#cccccc", "#888888"
	case topology.DeviceHUP:
		s.Shape = "dot"
		s.Size = 10
		s.Label = ""
	case topology.DeviceOLT:
		s.BorderColor, s.Background = "#f5b041", "#873600"
	case topology.DeviceSplitter:
		s.BorderColor, s.Background = "#a569bd", "#5b2c6f"
	case topology.DeviceAONSwitch:
		s.Shape = "square"
		s.BorderColor, s.Background = "#9400D3", "#4B0082"
	case topology.DeviceBusinessNT:
		s.BorderColor, s.Background = "#9400D3", "#4B0082"
		s.Label = "Business NT"
	case topology.DeviceONT:
		// Status colors carry the meaning for subscriber terminations.
	default:
		// Unknown type: keep the status-colored box.
	}
	return s
}

func statusColor(status topology.LinkStatus) string {
	switch status {
	case topology.LinkUp:
		return colorOnline
	case topology.LinkDown:
		return colorOffline
	case topology.LinkDegraded, topology.LinkBlocking:
		return colorMaintenance
	default:
		return colorUnknown
	}
}

// EdgeStyleFor resolves a link to its graph-surface style.
func EdgeStyleFor(l topology.Link) EdgeStyle {
	s := EdgeStyle{
		Color: statusColor(l.Status),
		Width: 2,
	}
	if l.Status == topology.LinkBlocking {
		s.Dash = []float64{5, 5}
	}

	switch {
	case l.Technology() == topology.TechPtP:
		s.Color = "#9400D3"
		s.Width = 4
		s.Dash = nil
		s.Label = fmt.Sprintf("PtP (%s Gbit/s)", bandwidthLabel(l))
	case l.Properties.String(topology.PropLinkType) == topology.LinkTypeBackbone:
		s.Color = "#FF4500"
		s.Width = 4
		s.Dash = []float64{10, 10}
		s.Label = "Backbone"
	case l.Properties.String(topology.PropLinkType) == topology.LinkTypeRegional:
		s.Color = "#8A2BE2"
		s.Width = 2.5
		s.Dash = []float64{5, 5}
		s.Label = "Regional"
	}
	return s
}

// LineStyleFor resolves a link to its geographic-surface style. The rules
// mirror EdgeStyleFor (same colors, same precedence) with map-scale
// weights: Backbone heavy with a long dash, Regional medium with a short
// dash, PtP fixed heavy solid, blocking short-dashed.
func LineStyleFor(l topology.Link) EdgeStyle {
	s := EdgeStyle{
		Color: statusColor(l.Status),
		Width: 2,
	}

	switch {
	case l.Technology() == topology.TechPtP:
		s.Color = "#9400D3"
		s.Width = 4
	case l.Properties.String(topology.PropLinkType) == topology.LinkTypeBackbone:
		s.Color = "#FF4500"
		s.Width = 5
		s.Dash = []float64{15, 15}
	case l.Properties.String(topology.PropLinkType) == topology.LinkTypeRegional:
		s.Color = "#8A2BE2"
		s.Width = 3
		s.Dash = []float64{8, 8}
	case l.Status == topology.LinkBlocking:
		s.Dash = []float64{5, 5}
	}
	return s
}

// HighlightNodeStyle is the overlay applied to path-trace nodes: base
// style with the accent border.
func HighlightNodeStyle(d topology.Device) NodeStyle {
	s := NodeStyleFor(d)
	s.BorderColor = HighlightColor
	s.BorderWidth = 3
	return s
}

// HighlightEdgeStyle is the overlay applied to path-trace links.
func HighlightEdgeStyle(l topology.Link) EdgeStyle {
	s := EdgeStyleFor(l)
	s.Color = HighlightColor
	s.Width = 4
	return s
}

func bandwidthLabel(l topology.Link) string {
	bw, ok := l.Properties.Float(topology.PropBandwidthGbps)
	if !ok {
		return "..."
	}
	if bw == float64(int64(bw)) {
		return fmt.Sprintf("%d", int64(bw))
	}
	return fmt.Sprintf("%g", bw)
}
