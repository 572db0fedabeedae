// Package feed carries the push side of the topology protocol: the wire
// message format, the websocket hub broadcasting it and the client that
// turns incoming messages into engine events.
package feed

import (
	"encoding/json"
	"fmt"

	"unoc/core-go/internal/topology"
)

// Kind discriminates feed messages.
type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindPatch    Kind = "patch"
	KindNotice   Kind = "notice"
)

// Message is the feed wire format. A snapshot carries the complete
// topology; a patch carries exactly one entity. Deletion happens only
// through a snapshot, there is no delete kind.
type Message struct {
	Kind Kind `json:"kind"`

	// Snapshot payload.
	Version uint64            `json:"version,omitempty"`
	Devices []topology.Device `json:"devices,omitempty"`
	Links   []topology.Link   `json:"links,omitempty"`
	Rings   []topology.Ring   `json:"rings,omitempty"`
	Stats   *topology.Stats   `json:"stats,omitempty"`
	History *HistoryStatus    `json:"history,omitempty"`

	// Patch payload.
	EntityKind string          `json:"entityKind,omitempty"`
	Entity     json.RawMessage `json:"entity,omitempty"`

	// Notice payload.
	Text string `json:"text,omitempty"`
}

// HistoryStatus mirrors the server's undo/redo availability so clients
// can enable the matching controls.
type HistoryStatus struct {
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

// NewSnapshot builds a snapshot message from a store snapshot.
func NewSnapshot(snap topology.Snapshot, stats topology.Stats, history HistoryStatus) Message {
	return Message{
		Kind:    KindSnapshot,
		Version: snap.Version,
		Devices: snap.Devices,
		Links:   snap.Links,
		Rings:   snap.Rings,
		Stats:   &stats,
		History: &history,
	}
}

// NewDevicePatch builds a single-device patch message.
func NewDevicePatch(version uint64, d topology.Device) (Message, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return Message{}, fmt.Errorf("encode device patch: %w", err)
	}
	return Message{Kind: KindPatch, Version: version, EntityKind: "device", Entity: raw}, nil
}

// NewLinkPatch builds a single-link patch message.
func NewLinkPatch(version uint64, l topology.Link) (Message, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return Message{}, fmt.Errorf("encode link patch: %w", err)
	}
	return Message{Kind: KindPatch, Version: version, EntityKind: "link", Entity: raw}, nil
}

// NewNotice builds an informational broadcast, used for event-log lines.
func NewNotice(text string) Message {
	return Message{Kind: KindNotice, Text: text}
}

// DecodePatch extracts the patched entity. Exactly one of the returned
// pointers is non-nil on success.
func (m Message) DecodePatch() (*topology.Device, *topology.Link, error) {
	if m.Kind != KindPatch {
		return nil, nil, fmt.Errorf("message kind %q is not a patch", m.Kind)
	}
	switch m.EntityKind {
	case "device":
		var d topology.Device
		if err := json.Unmarshal(m.Entity, &d); err != nil {
			return nil, nil, fmt.Errorf("decode device patch: %w", err)
		}
		return &d, nil, nil
	case "link":
		var l topology.Link
		if err := json.Unmarshal(m.Entity, &l); err != nil {
			return nil, nil, fmt.Errorf("decode link patch: %w", err)
		}
		return nil, &l, nil
	default:
		return nil, nil, fmt.Errorf("unknown patch entity kind %q", m.EntityKind)
	}
}
