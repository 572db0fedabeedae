package view

import (
	"testing"

	"unoc/core-go/internal/topology"
)

func TestLOD_DeviceVisible(t *testing.T) {
	lod := NewLOD()
	core := topology.Device{ID: "c", Type: topology.DeviceCoreNode}
	ont := topology.Device{ID: "o", Type: topology.DeviceONT}

	tests := []struct {
		name string
		dev  topology.Device
		zoom float64
		want bool
	}{
		{"core below threshold", core, 3, true},
		{"core above threshold", core, 12, true},
		{"ont below threshold", ont, 3, false},
		{"ont at threshold", ont, DefaultZoomThreshold, false},
		{"ont above threshold", ont, 7.5, true},
	}
	for _, tt := range tests {
		if got := lod.DeviceVisible(tt.dev, tt.zoom); got != tt.want {
			t.Errorf("%s: visible = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLOD_LinkVisible(t *testing.T) {
	lod := NewLOD()
	backbone := topology.Link{
		ID:         "b",
		Properties: topology.Properties{topology.PropLinkType: topology.LinkTypeBackbone},
	}
	access := topology.Link{ID: "a"}

	if !lod.LinkVisible(backbone, 2) {
		t.Errorf("backbone must be visible at any zoom")
	}
	if lod.LinkVisible(access, DefaultZoomThreshold) {
		t.Errorf("access link visible at threshold, want hidden")
	}
	if !lod.LinkVisible(access, 8) {
		t.Errorf("access link hidden above threshold")
	}
}
