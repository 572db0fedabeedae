package snapshot

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"unoc/core-go/internal/sim"
	"unoc/core-go/internal/topology"
)

func sampleState() State {
	return State{
		Topology: topology.Topology{
			Version: topology.SupportedVersion,
			Devices: []topology.Device{
				{ID: "OLT-1", Type: topology.DeviceOLT, Status: topology.DeviceOnline},
			},
			Links: []topology.Link{},
		},
		Events: []sim.Event{
			{Time: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), Message: "SYSTEM: backend started"},
		},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "baseline", sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx, "baseline")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, sampleState()) {
		t.Fatalf("state round trip mismatch:\n got %+v\nwant %+v", got, sampleState())
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "x", sampleState()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	changed := sampleState()
	changed.Topology.Devices[0].Status = topology.DeviceOffline
	if err := store.Save(ctx, "x", changed); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "x")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Topology.Devices[0].Status != topology.DeviceOffline {
		t.Fatalf("overwrite lost: %+v", got.Topology.Devices[0])
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Load(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFileStore_RejectsBadNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	for _, name := range []string{"", "../escape", "a/b", ".hidden", "white space"} {
		if err := store.Save(ctx, name, sampleState()); !errors.Is(err, ErrBadName) {
			t.Errorf("Save(%q) err = %v, want ErrBadName", name, err)
		}
		if _, err := store.Load(ctx, name); !errors.Is(err, ErrBadName) {
			t.Errorf("Load(%q) err = %v, want ErrBadName", name, err)
		}
	}
}

func TestFileStore_List(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := store.Save(ctx, name, sampleState()); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	names, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if want := []string{"alpha", "mike", "zulu"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
}
