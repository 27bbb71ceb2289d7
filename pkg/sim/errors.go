package sim

import "errors"

// Error taxonomy for gateway operations. Connect and resolve failures are
// fatal to startup; actuation and capture failures are per-call and leave
// the session usable.
var (
	ErrConnect   = errors.New("sim: connect failed")
	ErrNotFound  = errors.New("sim: object not found")
	ErrActuation = errors.New("sim: set target pose failed")
	ErrCapture   = errors.New("sim: frame capture failed")
	ErrClosed    = errors.New("sim: session closed")
)
