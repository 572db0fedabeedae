package topology

import (
	"errors"
	"reflect"
	"testing"
)

func baseDevices() []Device {
	return []Device{
		{ID: "OLT-1", Type: DeviceOLT, Status: DeviceOnline},
		{ID: "ONT-1", Type: DeviceONT, Status: DeviceOnline, Coordinates: &Coordinates{7.6, 51.9}},
	}
}

func baseLinks() []Link {
	return []Link{
		{ID: "L1", Source: "OLT-1", Target: "ONT-1", Status: LinkUp, Properties: Properties{PropLinkTechnology: TechPON}},
	}
}

func TestStore_ReplaceAll_AssignsMonotonicVersions(t *testing.T) {
	s := NewStore()

	v1, _, err := s.ReplaceAll(baseDevices(), baseLinks(), nil)
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	v2, _, err := s.ReplaceAll(baseDevices(), baseLinks(), nil)
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	if v2 <= v1 {
		t.Fatalf("expected monotonic versions, got %d then %d", v1, v2)
	}
	if s.Version() != v2 {
		t.Fatalf("Version() = %d, want %d", s.Version(), v2)
	}
}

func TestStore_ReplaceAll_ChangeSet(t *testing.T) {
	s := NewStore()
	if _, _, err := s.ReplaceAll(baseDevices(), baseLinks(), nil); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	// Drop the link, add a device.
	devices := append(baseDevices(), Device{ID: "POP-1", Type: DevicePOP, Status: DeviceOnline})
	_, changes, err := s.ReplaceAll(devices, nil, nil)
	if err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	if got, want := changes.AddedDevices, []string{"POP-1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("AddedDevices = %v, want %v", got, want)
	}
	if len(changes.RemovedDevices) != 0 {
		t.Errorf("RemovedDevices = %v, want none", changes.RemovedDevices)
	}
	if got, want := changes.RemovedLinks, []string{"L1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("RemovedLinks = %v, want %v", got, want)
	}
}

func TestStore_ReplaceAll_RejectsDanglingEndpoint(t *testing.T) {
	s := NewStore()
	if _, _, err := s.ReplaceAll(baseDevices(), baseLinks(), nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := s.Version()

	bad := []Link{{ID: "L2", Source: "OLT-1", Target: "GHOST", Status: LinkUp}}
	_, _, err := s.ReplaceAll(baseDevices(), bad, nil)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Kind != KindLink || verr.ID != "L2" {
		t.Fatalf("unexpected error detail: %+v", verr)
	}
	// Previous snapshot must stay installed.
	if s.Version() != before {
		t.Fatalf("store mutated on rejected snapshot: version %d -> %d", before, s.Version())
	}
	if _, err := s.Link("L1"); err != nil {
		t.Fatalf("prior link lost after rejected snapshot: %v", err)
	}
}

func TestStore_ReplaceAll_RejectsDuplicateIDs(t *testing.T) {
	s := NewStore()
	dup := append(baseDevices(), Device{ID: "OLT-1", Type: DeviceOLT, Status: DeviceOffline})
	_, _, err := s.ReplaceAll(dup, nil, nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestStore_ApplyLink_RejectsDanglingEndpoint(t *testing.T) {
	s := NewStore()
	if _, _, err := s.ReplaceAll(baseDevices(), baseLinks(), nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := s.Version()

	_, err := s.ApplyLink(Link{ID: "L9", Source: "GHOST", Target: "ONT-1", Status: LinkUp})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if s.Version() != before {
		t.Fatalf("version bumped on rejected patch")
	}
}

func TestStore_ApplyDevice_InsertsUnknownID(t *testing.T) {
	s := NewStore()
	if _, _, err := s.ReplaceAll(baseDevices(), baseLinks(), nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	v, err := s.ApplyDevice(Device{ID: "ONT-2", Type: DeviceONT, Status: DeviceMaintenance})
	if err != nil {
		t.Fatalf("ApplyDevice: %v", err)
	}
	if v != s.Version() {
		t.Fatalf("returned version %d != store version %d", v, s.Version())
	}
	d, err := s.Device("ONT-2")
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if d.Status != DeviceMaintenance {
		t.Fatalf("status = %q, want maintenance", d.Status)
	}
}

func TestStore_ApplyDevice_ReplacesInPlace(t *testing.T) {
	s := NewStore()
	if _, _, err := s.ReplaceAll(baseDevices(), baseLinks(), nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := s.ApplyDevice(Device{ID: "OLT-1", Type: DeviceOLT, Status: DeviceOffline}); err != nil {
		t.Fatalf("ApplyDevice: %v", err)
	}
	d, err := s.Device("OLT-1")
	if err != nil {
		t.Fatalf("Device: %v", err)
	}
	if d.Status != DeviceOffline {
		t.Fatalf("status = %q, want offline", d.Status)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.Device("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Link("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Snapshot_IsDeterministic(t *testing.T) {
	s := NewStore()
	devices := []Device{
		{ID: "b", Type: DeviceONT, Status: DeviceOnline},
		{ID: "a", Type: DeviceOLT, Status: DeviceOnline},
		{ID: "c", Type: DevicePOP, Status: DeviceOnline},
	}
	if _, _, err := s.ReplaceAll(devices, nil, nil); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	s1 := s.Snapshot()
	s2 := s.Snapshot()
	if !reflect.DeepEqual(s1, s2) {
		t.Fatalf("snapshots differ for identical store content")
	}
	for i := 1; i < len(s1.Devices); i++ {
		if s1.Devices[i-1].ID >= s1.Devices[i].ID {
			t.Fatalf("devices not sorted: %v", s1.Devices)
		}
	}
}

func TestStore_Stats(t *testing.T) {
	s := NewStore()
	devices := []Device{
		{ID: "a", Type: DeviceOLT, Status: DeviceOnline},
		{ID: "b", Type: DeviceONT, Status: DeviceOffline},
	}
	links := []Link{
		{ID: "l", Source: "a", Target: "b", Status: LinkDown},
	}
	if _, _, err := s.ReplaceAll(devices, links, nil); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	st := s.Stats()
	want := Stats{DevicesTotal: 2, DevicesOnline: 1, LinksTotal: 1, LinksUp: 0}
	if st != want {
		t.Fatalf("Stats = %+v, want %+v", st, want)
	}
}

func TestLink_Technology_DefaultsToPON(t *testing.T) {
	l := Link{ID: "l"}
	if got := l.Technology(); got != TechPON {
		t.Fatalf("Technology() = %q, want PON", got)
	}
	l.Properties = Properties{PropLinkTechnology: TechPtP}
	if got := l.Technology(); got != TechPtP {
		t.Fatalf("Technology() = %q, want PtP", got)
	}
}
