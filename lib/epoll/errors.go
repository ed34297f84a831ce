package epoll

import (
	"errors"
	"fmt"
)

// ErrAlreadyExists is returned by Control for ADD on a handle that already
// has a Watch.
var ErrAlreadyExists = errors.New("epoll: watch already exists")

// ErrNotFound is returned by Control for MOD or DEL on a handle with no
// Watch.
var ErrNotFound = errors.New("epoll: watch not found")

// OSError wraps an opaque OS multiplexer error together with the operation
// that produced it. ControlOS does not use it: it returns the OS handle's
// own error unchanged, and Collect logs a failed OS wait instead of
// returning it.
type OSError struct {
	Op  string
	Err error
}

func (e *OSError) Error() string { return fmt.Sprintf("epoll: os %s: %v", e.Op, e.Err) }
func (e *OSError) Unwrap() error { return e.Err }

// invariant panics with a formatted message. The core calls this for
// conditions spec'd as internal-assertion failures — a status-changed
// callback from a descriptor that was never in the Watch Table, or any
// other state the control-path invariants say cannot happen. These paths
// have no caller to report an error to, so there's nothing to do but abort.
func invariant(format string, args ...any) {
	panic("epoll: invariant violated: " + fmt.Sprintf(format, args...))
}
