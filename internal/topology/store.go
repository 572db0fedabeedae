package topology

import (
	"fmt"
	"sort"
)

// Store is the canonical in-memory topology model. It is the single source
// of truth: projectors, overlays and panels hold only derived state keyed
// by entity id and re-derive from here on any conflict.
//
// The store is not goroutine safe. All mutation happens on the single
// logical thread of the reconciler; the reconciler serializes access.
type Store struct {
	version uint64
	devices map[string]Device
	links   map[string]Link
	rings   map[string]Ring
}

func NewStore() *Store {
	return &Store{
		devices: make(map[string]Device),
		links:   make(map[string]Link),
		rings:   make(map[string]Ring),
	}
}

// ChangeSet names the entity ids that differ between two store versions.
// Downstream caches use it for targeted invalidation.
type ChangeSet struct {
	AddedDevices   []string
	RemovedDevices []string
	AddedLinks     []string
	RemovedLinks   []string
}

// Version returns the current store version. Zero means no snapshot has
// been installed yet.
func (s *Store) Version() uint64 { return s.version }

// ReplaceAll discards all prior content and installs a new snapshot.
// The snapshot is validated as a whole before anything is replaced: on a
// ValidationError the previous content stays installed untouched.
func (s *Store) ReplaceAll(devices []Device, links []Link, rings []Ring) (uint64, ChangeSet, error) {
	nd := make(map[string]Device, len(devices))
	for _, d := range devices {
		if err := validateDevice(d); err != nil {
			return s.version, ChangeSet{}, err
		}
		if _, dup := nd[d.ID]; dup {
			return s.version, ChangeSet{}, &ValidationError{Kind: KindDevice, ID: d.ID, Reason: "duplicate device id"}
		}
		nd[d.ID] = d
	}

	nl := make(map[string]Link, len(links))
	for _, l := range links {
		if err := validateLink(l, nd); err != nil {
			return s.version, ChangeSet{}, err
		}
		if _, dup := nl[l.ID]; dup {
			return s.version, ChangeSet{}, &ValidationError{Kind: KindLink, ID: l.ID, Reason: "duplicate link id"}
		}
		nl[l.ID] = l
	}

	nr := make(map[string]Ring, len(rings))
	for _, r := range rings {
		if r.ID == "" {
			return s.version, ChangeSet{}, &ValidationError{Kind: KindRing, ID: r.ID, Reason: "empty id"}
		}
		nr[r.ID] = r
	}

	changes := ChangeSet{
		AddedDevices:   missingKeys(nd, s.devices),
		RemovedDevices: missingKeys(s.devices, nd),
		AddedLinks:     missingKeys(nl, s.links),
		RemovedLinks:   missingKeys(s.links, nl),
	}

	s.devices = nd
	s.links = nl
	s.rings = nr
	s.version++
	return s.version, changes, nil
}

// ApplyDevice upserts a single device and bumps the version. Unknown ids
// are inserted; the feed protocol has no per-entity delete.
func (s *Store) ApplyDevice(d Device) (uint64, error) {
	if err := validateDevice(d); err != nil {
		return s.version, err
	}
	s.devices[d.ID] = d
	s.version++
	return s.version, nil
}

// ApplyLink upserts a single link. Both endpoints must already exist in
// the current snapshot; a dangling endpoint rejects the patch without
// mutating the store.
func (s *Store) ApplyLink(l Link) (uint64, error) {
	if err := validateLink(l, s.devices); err != nil {
		return s.version, err
	}
	s.links[l.ID] = l
	s.version++
	return s.version, nil
}

func (s *Store) Device(id string) (Device, error) {
	d, ok := s.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("device %q: %w", id, ErrNotFound)
	}
	return d, nil
}

func (s *Store) Link(id string) (Link, error) {
	l, ok := s.links[id]
	if !ok {
		return Link{}, fmt.Errorf("link %q: %w", id, ErrNotFound)
	}
	return l, nil
}

func (s *Store) Ring(id string) (Ring, error) {
	r, ok := s.rings[id]
	if !ok {
		return Ring{}, fmt.Errorf("ring %q: %w", id, ErrNotFound)
	}
	return r, nil
}

// Snapshot is a stable, order-deterministic view of the store used by the
// pure derivation pipeline. Slices are sorted by id so that equal store
// content always yields an identical snapshot.
type Snapshot struct {
	Version uint64
	Devices []Device
	Links   []Link
	Rings   []Ring
}

func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		Version: s.version,
		Devices: make([]Device, 0, len(s.devices)),
		Links:   make([]Link, 0, len(s.links)),
		Rings:   make([]Ring, 0, len(s.rings)),
	}
	for _, d := range s.devices {
		snap.Devices = append(snap.Devices, d)
	}
	for _, l := range s.links {
		snap.Links = append(snap.Links, l)
	}
	for _, r := range s.rings {
		snap.Rings = append(snap.Rings, r)
	}
	sort.Slice(snap.Devices, func(i, j int) bool { return snap.Devices[i].ID < snap.Devices[j].ID })
	sort.Slice(snap.Links, func(i, j int) bool { return snap.Links[i].ID < snap.Links[j].ID })
	sort.Slice(snap.Rings, func(i, j int) bool { return snap.Rings[i].ID < snap.Rings[j].ID })
	return snap
}

// Stats summarizes the store for the HUD and for metrics gauges.
type Stats struct {
	DevicesTotal  int
	DevicesOnline int
	LinksTotal    int
	LinksUp       int
}

func (s *Store) Stats() Stats {
	st := Stats{DevicesTotal: len(s.devices), LinksTotal: len(s.links)}
	for _, d := range s.devices {
		if d.Status == DeviceOnline {
			st.DevicesOnline++
		}
	}
	for _, l := range s.links {
		if l.Status == LinkUp {
			st.LinksUp++
		}
	}
	return st
}

func validateDevice(d Device) error {
	if d.ID == "" {
		return &ValidationError{Kind: KindDevice, ID: d.ID, Reason: "empty id"}
	}
	if d.Type == "" {
		return &ValidationError{Kind: KindDevice, ID: d.ID, Reason: "empty type"}
	}
	if !d.Status.Valid() {
		return &ValidationError{Kind: KindDevice, ID: d.ID, Reason: fmt.Sprintf("unknown status %q", d.Status)}
	}
	return nil
}

func validateLink(l Link, devices map[string]Device) error {
	if l.ID == "" {
		return &ValidationError{Kind: KindLink, ID: l.ID, Reason: "empty id"}
	}
	if !l.Status.Valid() {
		return &ValidationError{Kind: KindLink, ID: l.ID, Reason: fmt.Sprintf("unknown status %q", l.Status)}
	}
	if _, ok := devices[l.Source]; !ok {
		return &ValidationError{Kind: KindLink, ID: l.ID, Reason: fmt.Sprintf("source %q references a non-existent device", l.Source)}
	}
	if _, ok := devices[l.Target]; !ok {
		return &ValidationError{Kind: KindLink, ID: l.ID, Reason: fmt.Sprintf("target %q references a non-existent device", l.Target)}
	}
	return nil
}

func missingKeys[V any](in, notIn map[string]V) []string {
	var out []string
	for k := range in {
		if _, ok := notIn[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
