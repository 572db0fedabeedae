// Package snapshot persists named server states. Two stores exist: a
// Postgres store for normal deployments and a filesystem store for
// DB-less ones. Both hold the same JSON state document.
package snapshot

import (
	"context"
	"errors"

	"unoc/core-go/internal/sim"
	"unoc/core-go/internal/topology"
)

// ErrNotFound is returned when no snapshot carries the requested name.
var ErrNotFound = errors.New("snapshot not found")

// ErrBadName rejects names that would escape the store's namespace.
var ErrBadName = errors.New("invalid snapshot name")

// State is the persisted server state: the full topology plus the
// event log at save time.
type State struct {
	Topology topology.Topology `json:"topology"`
	Events   []sim.Event       `json:"events"`
}

// Store saves and restores named states.
type Store interface {
	Save(ctx context.Context, name string, state State) error
	Load(ctx context.Context, name string) (State, error)
	List(ctx context.Context) ([]string, error)
}

// validName keeps names usable as both filenames and key values:
// non-empty, no path separators, no leading dot.
func validName(name string) bool {
	if name == "" || len(name) > 128 || name[0] == '.' {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
