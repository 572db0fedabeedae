// Package render reconciles filtered view sets onto display surfaces.
// Projectors own the diffing: a surface only ever receives upserts and
// removals, never a full repaint, so re-syncing the same set is a no-op
// at the surface level apart from idempotent upserts.
package render

import (
	"unoc/core-go/internal/view"
)

// GraphSurface is the logical-graph drawing target. Implementations are
// expected to treat Upsert as insert-or-replace keyed by id.
type GraphSurface interface {
	UpsertNode(id string, style view.NodeStyle)
	RemoveNode(id string)
	UpsertEdge(id, from, to string, style view.EdgeStyle)
	RemoveEdge(id string)
}

// MapSurface is the geographic drawing target. Positions are passed as
// latitude then longitude; the projector does the axis ordering so no
// surface implementation ever has to think about it.
type MapSurface interface {
	UpsertMarker(id string, lat, lon float64, style view.NodeStyle)
	RemoveMarker(id string)
	SetMarkerVisible(id string, visible bool)
	UpsertLine(id string, fromLat, fromLon, toLat, toLon float64, style view.EdgeStyle)
	RemoveLine(id string)
	SetLineVisible(id string, visible bool)
}
