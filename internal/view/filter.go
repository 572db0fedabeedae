// Package view derives everything the render surfaces need from a store
// snapshot: the visible subset, per-entity styles and zoom visibility.
// Every function here is pure; identical inputs always produce identical
// outputs, which is what makes re-projection idempotent.
package view

import (
	"strings"

	"unoc/core-go/internal/topology"
)

type Mode string

const (
	ModeNational Mode = "national"
	ModeLocal    Mode = "local"
)

type ArchFilter string

const (
	ArchAll ArchFilter = "all"
	ArchPON ArchFilter = "PON"
	ArchPtP ArchFilter = "PtP"
)

// Options selects the visible partition of the topology.
type Options struct {
	Mode Mode
	Arch ArchFilter

	// LocalSource is the data_source tag marking local-topology devices.
	LocalSource string
	// LocalNamespace restricts rings in local mode to those whose id
	// contains this marker.
	LocalNamespace string
}

func DefaultOptions() Options {
	return Options{
		Mode:           ModeNational,
		Arch:           ArchAll,
		LocalSource:    topology.SourceLocalDefault,
		LocalNamespace: "REES",
	}
}

// Set is the filtered, display-ready subset. Slice order follows the
// snapshot's deterministic id order.
type Set struct {
	Devices []topology.Device
	Links   []topology.Link
	Rings   []topology.Ring
}

// DeviceIDs returns the visible device id set.
func (s Set) DeviceIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(s.Devices))
	for _, d := range s.Devices {
		out[d.ID] = struct{}{}
	}
	return out
}

// LinkIDs returns the visible link id set.
func (s Set) LinkIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(s.Links))
	for _, l := range s.Links {
		out[l.ID] = struct{}{}
	}
	return out
}

// Contains reports whether the id is visible as either a device or a link.
func (s Set) Contains(id string) bool {
	for _, d := range s.Devices {
		if d.ID == id {
			return true
		}
	}
	for _, l := range s.Links {
		if l.ID == id {
			return true
		}
	}
	return false
}

// Filter derives the visible subset of a snapshot.
//
// The geographic partition keys on the data_source property: "geojson"
// for the national layer, opts.LocalSource for the local layer. A link
// survives the partition only when both endpoints do. The architecture
// filter then narrows links by link_technology (absent defaults to PON).
//
// A device is visible iff it is an endpoint of a visible link, or the
// filtered link set is empty while Arch == all (isolated-node fallback).
// The fallback is gated strictly on ArchAll: a non-all filter that
// legitimately matches zero links must show zero devices, not all of them.
func Filter(snap topology.Snapshot, opts Options) Set {
	if opts.LocalSource == "" {
		opts.LocalSource = topology.SourceLocalDefault
	}

	wantSource := topology.SourceNational
	if opts.Mode == ModeLocal {
		wantSource = opts.LocalSource
	}

	geoDevices := make([]topology.Device, 0, len(snap.Devices))
	geoIDs := make(map[string]struct{})
	for _, d := range snap.Devices {
		if d.Properties.String(topology.PropDataSource) != wantSource {
			continue
		}
		geoDevices = append(geoDevices, d)
		geoIDs[d.ID] = struct{}{}
	}

	var links []topology.Link
	for _, l := range snap.Links {
		if _, ok := geoIDs[l.Source]; !ok {
			continue
		}
		if _, ok := geoIDs[l.Target]; !ok {
			continue
		}
		if opts.Arch != ArchAll && !strings.EqualFold(l.Technology(), string(opts.Arch)) {
			continue
		}
		links = append(links, l)
	}

	endpointIDs := make(map[string]struct{}, len(links)*2)
	for _, l := range links {
		endpointIDs[l.Source] = struct{}{}
		endpointIDs[l.Target] = struct{}{}
	}

	var devices []topology.Device
	isolatedFallback := len(links) == 0 && opts.Arch == ArchAll
	for _, d := range geoDevices {
		if _, ok := endpointIDs[d.ID]; ok || isolatedFallback {
			devices = append(devices, d)
		}
	}

	var rings []topology.Ring
	for _, r := range snap.Rings {
		if opts.Mode == ModeLocal && !strings.Contains(r.ID, opts.LocalNamespace) {
			continue
		}
		rings = append(rings, r)
	}

	return Set{Devices: devices, Links: links, Rings: rings}
}
