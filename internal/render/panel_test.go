package render

import (
	"testing"

	"unoc/core-go/internal/topology"
	"unoc/core-go/internal/view"
)

func TestPanel_SelectReplaces(t *testing.T) {
	p := NewPanel()
	p.Select("A", topology.KindDevice)
	p.Select("L1", topology.KindLink)

	cur, ok := p.Current()
	if !ok {
		t.Fatalf("no current selection")
	}
	if cur.ID != "L1" || cur.Kind != topology.KindLink {
		t.Fatalf("selection = %+v, want L1/link", cur)
	}
}

func TestPanel_RevalidateDropsHiddenSelection(t *testing.T) {
	p := NewPanel()
	p.Select("B", topology.KindDevice)

	visible := view.Set{Devices: []topology.Device{{ID: "A"}}}
	if p.Revalidate(visible) {
		t.Fatalf("selection survived although B is not visible")
	}
	if _, ok := p.Current(); ok {
		t.Fatalf("selection not cleared")
	}
}

func TestPanel_RevalidateKeepsVisibleSelection(t *testing.T) {
	p := NewPanel()
	p.Select("L1", topology.KindLink)

	visible := view.Set{Links: []topology.Link{{ID: "L1", Source: "A", Target: "B"}}}
	if !p.Revalidate(visible) {
		t.Fatalf("visible selection dropped")
	}
}

func TestPanel_ResolveAgainstSnapshot(t *testing.T) {
	p := NewPanel()
	p.Select("D1", topology.KindDevice)

	snap := topology.Snapshot{
		Devices: []topology.Device{{ID: "D1", Type: topology.DeviceOLT, Status: topology.DeviceMaintenance}},
	}
	content, ok := p.Resolve(snap)
	if !ok {
		t.Fatalf("Resolve failed for present device")
	}
	if content.Device == nil || content.Device.Status != topology.DeviceMaintenance {
		t.Fatalf("content = %+v, want fresh device state", content)
	}

	// Entity gone from the store: panel clears itself.
	if _, ok := p.Resolve(topology.Snapshot{}); ok {
		t.Fatalf("Resolve succeeded for missing entity")
	}
	if _, ok := p.Current(); ok {
		t.Fatalf("selection not cleared after failed resolve")
	}
}
