package sim

import (
	"fmt"

	"unoc/core-go/internal/topology"
)

// command is a reversible simulation operation. Execute captures the
// prior state it needs to undo itself.
type command interface {
	Execute(store *topology.Store) error
	Undo(store *topology.Store) error
	Describe() string
}

// history is the undo/redo stack. A newly executed command clears the
// redo side.
type history struct {
	undo []command
	redo []command
}

func (h *history) push(c command) {
	h.undo = append(h.undo, c)
	h.redo = nil
}

func (h *history) canUndo() bool { return len(h.undo) > 0 }
func (h *history) canRedo() bool { return len(h.redo) > 0 }

func (h *history) popUndo(store *topology.Store) (command, error) {
	if len(h.undo) == 0 {
		return nil, fmt.Errorf("nothing to undo")
	}
	c := h.undo[len(h.undo)-1]
	if err := c.Undo(store); err != nil {
		return nil, err
	}
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, c)
	return c, nil
}

func (h *history) popRedo(store *topology.Store) (command, error) {
	if len(h.redo) == 0 {
		return nil, fmt.Errorf("nothing to redo")
	}
	c := h.redo[len(h.redo)-1]
	if err := c.Execute(store); err != nil {
		return nil, err
	}
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, c)
	return c, nil
}

// linkStatusCommand flips one link's status.
type linkStatusCommand struct {
	linkID    string
	newStatus topology.LinkStatus
	oldStatus topology.LinkStatus
}

func (c *linkStatusCommand) Execute(store *topology.Store) error {
	l, err := store.Link(c.linkID)
	if err != nil {
		return err
	}
	c.oldStatus = l.Status
	l.Status = c.newStatus
	_, err = store.ApplyLink(l)
	return err
}

func (c *linkStatusCommand) Undo(store *topology.Store) error {
	l, err := store.Link(c.linkID)
	if err != nil {
		return err
	}
	l.Status = c.oldStatus
	_, err = store.ApplyLink(l)
	return err
}

func (c *linkStatusCommand) Describe() string {
	return fmt.Sprintf("link '%s' status -> '%s'", c.linkID, c.newStatus)
}

// deviceStatusCommand flips one device's status.
type deviceStatusCommand struct {
	deviceID  string
	newStatus topology.DeviceStatus
	oldStatus topology.DeviceStatus
}

func (c *deviceStatusCommand) Execute(store *topology.Store) error {
	d, err := store.Device(c.deviceID)
	if err != nil {
		return err
	}
	c.oldStatus = d.Status
	d.Status = c.newStatus
	_, err = store.ApplyDevice(d)
	return err
}

func (c *deviceStatusCommand) Undo(store *topology.Store) error {
	d, err := store.Device(c.deviceID)
	if err != nil {
		return err
	}
	d.Status = c.oldStatus
	_, err = store.ApplyDevice(d)
	return err
}

func (c *deviceStatusCommand) Describe() string {
	return fmt.Sprintf("device '%s' status -> '%s'", c.deviceID, c.newStatus)
}

// linkUtilizationCommand sets the utilization_percent property.
type linkUtilizationCommand struct {
	linkID  string
	percent float64
	old     *float64
}

func (c *linkUtilizationCommand) Execute(store *topology.Store) error {
	l, err := store.Link(c.linkID)
	if err != nil {
		return err
	}
	if v, ok := l.Properties.Float(topology.PropUtilization); ok {
		c.old = &v
	} else {
		c.old = nil
	}
	l.Properties = l.Properties.Clone()
	if l.Properties == nil {
		l.Properties = topology.Properties{}
	}
	l.Properties[topology.PropUtilization] = c.percent
	_, err = store.ApplyLink(l)
	return err
}

func (c *linkUtilizationCommand) Undo(store *topology.Store) error {
	l, err := store.Link(c.linkID)
	if err != nil {
		return err
	}
	l.Properties = l.Properties.Clone()
	if c.old == nil {
		delete(l.Properties, topology.PropUtilization)
	} else {
		l.Properties[topology.PropUtilization] = *c.old
	}
	_, err = store.ApplyLink(l)
	return err
}

func (c *linkUtilizationCommand) Describe() string {
	return fmt.Sprintf("link '%s' utilization -> %.0f%%", c.linkID, c.percent)
}

// fiberCutCommand takes a device offline and every link touching it
// down, as one reversible unit.
type fiberCutCommand struct {
	deviceID  string
	oldDevice topology.DeviceStatus
	oldLinks  map[string]topology.LinkStatus
	cutLinks  []string
}

func (c *fiberCutCommand) Execute(store *topology.Store) error {
	d, err := store.Device(c.deviceID)
	if err != nil {
		return err
	}
	c.oldDevice = d.Status
	c.oldLinks = make(map[string]topology.LinkStatus)
	c.cutLinks = nil

	d.Status = topology.DeviceOffline
	if _, err := store.ApplyDevice(d); err != nil {
		return err
	}
	for _, l := range store.Snapshot().Links {
		if l.Source != c.deviceID && l.Target != c.deviceID {
			continue
		}
		c.oldLinks[l.ID] = l.Status
		c.cutLinks = append(c.cutLinks, l.ID)
		l.Status = topology.LinkDown
		if _, err := store.ApplyLink(l); err != nil {
			return err
		}
	}
	return nil
}

func (c *fiberCutCommand) Undo(store *topology.Store) error {
	d, err := store.Device(c.deviceID)
	if err != nil {
		return err
	}
	d.Status = c.oldDevice
	if _, err := store.ApplyDevice(d); err != nil {
		return err
	}
	for id, status := range c.oldLinks {
		l, err := store.Link(id)
		if err != nil {
			return err
		}
		l.Status = status
		if _, err := store.ApplyLink(l); err != nil {
			return err
		}
	}
	return nil
}

func (c *fiberCutCommand) Describe() string {
	return fmt.Sprintf("fiber cut at device '%s' (%d links down)", c.deviceID, len(c.cutLinks))
}
