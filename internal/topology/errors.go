package topology

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by store lookups for unknown ids.
var ErrNotFound = errors.New("entity not found")

// ValidationError rejects a malformed entity or a link with a dangling
// endpoint at ingestion. The store is never mutated when one is returned.
type ValidationError struct {
	Kind   EntityKind
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Kind, e.ID, e.Reason)
}

// EntityKind discriminates patch targets on the wire and in errors.
type EntityKind string

const (
	KindDevice EntityKind = "device"
	KindLink   EntityKind = "link"
	KindRing   EntityKind = "ring"
)
