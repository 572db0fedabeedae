package engine

import "errors"

// ErrNotSynced is returned for local actions issued before the first
// snapshot installed, or after the session disconnected.
var ErrNotSynced = errors.New("engine is not synced")

// ErrStaleResponse marks an asynchronous response whose request token
// was superseded before it resolved. Stale responses are discarded
// silently and never surfaced as a notice.
var ErrStaleResponse = errors.New("stale response discarded")
