package render

import (
	"unoc/core-go/internal/topology"
	"unoc/core-go/internal/view"
)

// Selection identifies the single entity shown in the detail panel.
type Selection struct {
	ID   string
	Kind topology.EntityKind
}

// Panel tracks the detail-panel selection. At most one entity is
// selected; selecting a new one replaces the old. The panel never holds
// entity data itself, only the reference, so its content is always
// resolved fresh against the latest snapshot.
type Panel struct {
	current *Selection
}

func NewPanel() *Panel { return &Panel{} }

// Select replaces the current selection.
func (p *Panel) Select(id string, kind topology.EntityKind) {
	p.current = &Selection{ID: id, Kind: kind}
}

// Clear drops the selection.
func (p *Panel) Clear() { p.current = nil }

// Current returns the active selection, if any.
func (p *Panel) Current() (Selection, bool) {
	if p.current == nil {
		return Selection{}, false
	}
	return *p.current, true
}

// Revalidate drops the selection when the entity is no longer in the
// visible set. It returns true when the selection survived.
func (p *Panel) Revalidate(set view.Set) bool {
	if p.current == nil {
		return false
	}
	if !set.Contains(p.current.ID) {
		p.current = nil
		return false
	}
	return true
}

// Content is the resolved detail-panel payload.
type Content struct {
	Kind   topology.EntityKind
	Device *topology.Device
	Link   *topology.Link
}

// Resolve looks the current selection up in the snapshot. A selection
// that vanished from the store yields ok=false and clears the panel.
func (p *Panel) Resolve(snap topology.Snapshot) (Content, bool) {
	if p.current == nil {
		return Content{}, false
	}
	switch p.current.Kind {
	case topology.KindDevice:
		for i := range snap.Devices {
			if snap.Devices[i].ID == p.current.ID {
				return Content{Kind: topology.KindDevice, Device: &snap.Devices[i]}, true
			}
		}
	case topology.KindLink:
		for i := range snap.Links {
			if snap.Links[i].ID == p.current.ID {
				return Content{Kind: topology.KindLink, Link: &snap.Links[i]}, true
			}
		}
	}
	p.current = nil
	return Content{}, false
}
