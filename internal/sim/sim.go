// Package sim is the authoritative simulation state behind the API:
// reversible status commands, the event log, path tracing and the
// per-device signal readout.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"unoc/core-go/internal/topology"
)

// ErrNotEndDevice is returned for signal lookups on devices that carry
// no subscriber-side optical termination.
var ErrNotEndDevice = errors.New("device has no signal termination")

// PropPowerDBm is the stored receive level on end devices. When absent,
// an online device reports DefaultPowerDBm.
const PropPowerDBm = "power_dbm"

// DefaultPowerDBm is a healthy GPON receive level used when the device
// carries no measured value.
const DefaultPowerDBm = -21.0

// Simulator serializes all mutations of the shared store and keeps the
// undo/redo history and event log. The store itself is not goroutine
// safe; every access from the API side goes through here.
type Simulator struct {
	mu      sync.Mutex
	store   *topology.Store
	events  *EventLog
	history history
	log     zerolog.Logger
}

func New(store *topology.Store, events *EventLog, log zerolog.Logger) *Simulator {
	return &Simulator{
		store:  store,
		events: events,
		log:    log.With().Str("component", "sim").Logger(),
	}
}

// HistoryStatus reports undo/redo availability.
type HistoryStatus struct {
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

func (s *Simulator) History() HistoryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HistoryStatus{CanUndo: s.history.canUndo(), CanRedo: s.history.canRedo()}
}

// Snapshot returns the current topology under the simulator's lock.
func (s *Simulator) Snapshot() topology.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// Stats returns the HUD counters under the simulator's lock.
func (s *Simulator) Stats() topology.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Stats()
}

// ReplaceAll installs a new topology, for example from a reloaded file
// or a restored snapshot. The command history does not survive; its
// captured prior states refer to the replaced world.
func (s *Simulator) ReplaceAll(t topology.Topology) (uint64, topology.ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, changes, err := s.store.ReplaceAll(t.Devices, t.Links, t.Rings)
	if err != nil {
		return 0, topology.ChangeSet{}, err
	}
	s.history = history{}
	return version, changes, nil
}

func (s *Simulator) run(c command) error {
	if err := c.Execute(s.store); err != nil {
		return err
	}
	s.history.push(c)
	s.events.Addf("SIMULATION: %s", c.Describe())
	s.log.Info().Str("command", c.Describe()).Msg("command executed")
	return nil
}

// SetLinkStatus changes one link's status as an undoable command and
// returns the updated link.
func (s *Simulator) SetLinkStatus(linkID string, status topology.LinkStatus) (topology.Link, error) {
	if !status.Valid() {
		return topology.Link{}, &topology.ValidationError{Kind: topology.KindLink, ID: linkID, Reason: fmt.Sprintf("invalid status %q", status)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.run(&linkStatusCommand{linkID: linkID, newStatus: status}); err != nil {
		return topology.Link{}, err
	}
	return s.store.Link(linkID)
}

// SetDeviceStatus changes one device's status as an undoable command.
func (s *Simulator) SetDeviceStatus(deviceID string, status topology.DeviceStatus) (topology.Device, error) {
	if !status.Valid() {
		return topology.Device{}, &topology.ValidationError{Kind: topology.KindDevice, ID: deviceID, Reason: fmt.Sprintf("invalid status %q", status)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.run(&deviceStatusCommand{deviceID: deviceID, newStatus: status}); err != nil {
		return topology.Device{}, err
	}
	return s.store.Device(deviceID)
}

// SetLinkUtilization stores a utilization percentage on a link.
func (s *Simulator) SetLinkUtilization(linkID string, percent float64) (topology.Link, error) {
	if percent < 0 || percent > 100 {
		return topology.Link{}, &topology.ValidationError{Kind: topology.KindLink, ID: linkID, Reason: fmt.Sprintf("utilization %.1f out of range 0-100", percent)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.run(&linkUtilizationCommand{linkID: linkID, percent: percent}); err != nil {
		return topology.Link{}, err
	}
	return s.store.Link(linkID)
}

// FiberCut takes a device offline and every link touching it down, as
// one undoable command. It returns the device and the affected links.
func (s *Simulator) FiberCut(deviceID string) (topology.Device, []topology.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := &fiberCutCommand{deviceID: deviceID}
	if err := s.run(cmd); err != nil {
		return topology.Device{}, nil, err
	}
	d, err := s.store.Device(deviceID)
	if err != nil {
		return topology.Device{}, nil, err
	}
	links := make([]topology.Link, 0, len(cmd.cutLinks))
	for _, id := range cmd.cutLinks {
		l, err := s.store.Link(id)
		if err != nil {
			return topology.Device{}, nil, err
		}
		links = append(links, l)
	}
	return d, links, nil
}

// Undo reverses the most recent command and returns its description.
func (s *Simulator) Undo() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.history.popUndo(s.store)
	if err != nil {
		return "", err
	}
	s.events.Addf("SIMULATION: undo %s", c.Describe())
	return c.Describe(), nil
}

// Redo re-applies the most recently undone command.
func (s *Simulator) Redo() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.history.popRedo(s.store)
	if err != nil {
		return "", err
	}
	s.events.Addf("SIMULATION: redo %s", c.Describe())
	return c.Describe(), nil
}

// Path is a device/link walk between two endpoints.
type Path struct {
	Nodes []string `json:"nodes"`
	Links []string `json:"links"`
}

// TracePath finds a shortest path between two devices over links that
// are not down, breadth first. No path yields empty slices, not an
// error; the caller decides how to present that.
func (s *Simulator) TracePath(fromID, toID string) (Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Device(fromID); err != nil {
		return Path{}, err
	}
	if _, err := s.store.Device(toID); err != nil {
		return Path{}, err
	}
	if fromID == toID {
		return Path{Nodes: []string{fromID}, Links: []string{}}, nil
	}

	type hop struct {
		prevNode string
		viaLink  string
	}
	adj := make(map[string][]struct {
		peer string
		link string
	})
	for _, l := range s.store.Snapshot().Links {
		if l.Status == topology.LinkDown {
			continue
		}
		adj[l.Source] = append(adj[l.Source], struct {
			peer string
			link string
		}{l.Target, l.ID})
		adj[l.Target] = append(adj[l.Target], struct {
			peer string
			link string
		}{l.Source, l.ID})
	}

	visited := map[string]hop{fromID: {}}
	queue := []string{fromID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == toID {
			break
		}
		for _, n := range adj[cur] {
			if _, seen := visited[n.peer]; seen {
				continue
			}
			visited[n.peer] = hop{prevNode: cur, viaLink: n.link}
			queue = append(queue, n.peer)
		}
	}

	if _, ok := visited[toID]; !ok {
		return Path{Nodes: []string{}, Links: []string{}}, nil
	}

	var nodes, links []string
	for cur := toID; cur != fromID; cur = visited[cur].prevNode {
		nodes = append([]string{cur}, nodes...)
		links = append([]string{visited[cur].viaLink}, links...)
	}
	nodes = append([]string{fromID}, nodes...)
	return Path{Nodes: nodes, Links: links}, nil
}

// SignalReading is the stored optical level of an end device.
type SignalReading struct {
	Status   string   `json:"status"`
	PowerDBm *float64 `json:"power_dbm"`
}

// Signal reports the receive level for an end device. Offline devices
// read as loss of signal with no power value.
func (s *Simulator) Signal(deviceID string) (SignalReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.store.Device(deviceID)
	if err != nil {
		return SignalReading{}, err
	}
	if !topology.IsEndDevice(d.Type) {
		return SignalReading{}, fmt.Errorf("%w: %s is a %s", ErrNotEndDevice, deviceID, d.Type)
	}
	if d.Status == topology.DeviceOffline {
		return SignalReading{Status: "LOS"}, nil
	}
	power := DefaultPowerDBm
	if v, ok := d.Properties.Float(PropPowerDBm); ok {
		power = v
	}
	return SignalReading{Status: string(d.Status), PowerDBm: &power}, nil
}

// RingStatus is the ERPS panel row: the ring and its RPL link state.
type RingStatus struct {
	RingID   string              `json:"ring_id"`
	Name     string              `json:"name"`
	RPLLink  string              `json:"rpl_link_id"`
	Status   topology.LinkStatus `json:"status"`
	Degraded bool                `json:"degraded"`
}

// RingStatuses derives the display state of every ring. A healthy ring
// has its RPL blocking; anything else means the ring is switched over
// or broken.
func (s *Simulator) RingStatuses() []RingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.store.Snapshot()
	out := make([]RingStatus, 0, len(snap.Rings))
	for _, r := range snap.Rings {
		rs := RingStatus{RingID: r.ID, Name: r.Name, RPLLink: r.RPLLinkID}
		l, err := s.store.Link(r.RPLLinkID)
		if err != nil {
			rs.Status = topology.LinkDown
			rs.Degraded = true
		} else {
			rs.Status = l.Status
			rs.Degraded = l.Status != topology.LinkBlocking
		}
		out = append(out, rs)
	}
	return out
}
