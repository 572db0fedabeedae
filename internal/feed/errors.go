package feed

import "fmt"

// TransportError wraps a feed connection failure. It is fatal to the
// session: the engine moves to DISCONNECTED and nothing retries.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("feed transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
