package epoll

import (
	"fmt"

	"github.com/flowsim/vepoll/lib/vdesc"
)

// Subscription is the last-applied mask an application ADD or MOD supplied
// for one Watch (spec §3's "last-applied subscription").
type Subscription struct {
	Read  bool
	Write bool

	EdgeTriggered bool
	OneShot       bool

	// Cookie is opaque application data returned verbatim on every event
	// reported for this Watch.
	Cookie uint64
}

// Event is one reportable occurrence handed back by Collect (spec §4.5).
type Event struct {
	Cookie   uint64
	Readable bool
	Writable bool
	Edge     bool
}

// Watch is the per-(epoll, virtual-descriptor) record spec §3 and §4.1
// describe: a strong reference to the watched descriptor, the last-applied
// subscription, and a flag vector mixing fresh (status/mask-derived) and
// sticky (reporting/lifecycle) bits.
type Watch struct {
	descriptor vdesc.Descriptor
	handle     vdesc.Handle
	sub        Subscription
	refs       int

	// Fresh flags: overwritten wholesale by every refresh.
	active   bool
	readable bool
	writable bool
	closed   bool

	waitingRead  bool
	waitingWrite bool

	edgeTriggered bool
	oneShot       bool

	// Sticky flags: survive refresh, only mutated explicitly.
	readChanged  bool
	writeChanged bool

	edgeReported    bool
	oneShotReported bool

	watching bool
}

// newWatch creates a Watch in the `watching` state for descriptor d with
// subscription sub, acquiring the Watch's one strong descriptor reference
// and the table's own reference (refs=1; see release). The caller is
// responsible for the initial refresh.
func newWatch(d vdesc.Descriptor, sub Subscription) *Watch {
	d.Acquire()
	return &Watch{
		descriptor: d,
		handle:     d.Handle(),
		sub:        sub,
		watching:   true,
		refs:       1,
	}
}

// refresh overwrites the status- and mask-derived flags from fresh inputs
// while preserving every sticky flag, then updates read-changed/write-changed
// if the corresponding readiness bit flipped (spec §4.1).
func (w *Watch) refresh(status vdesc.Status, sub Subscription) {
	prevReadable := w.readable
	prevWritable := w.writable

	w.active = status.Active
	w.readable = status.Readable
	w.writable = status.Writable
	w.closed = status.Closed

	w.sub = sub
	w.waitingRead = sub.Read
	w.waitingWrite = sub.Write
	w.edgeTriggered = sub.EdgeTriggered
	w.oneShot = sub.OneShot

	if w.readable != prevReadable {
		w.readChanged = true
	}
	if w.writable != prevWritable {
		w.writeChanged = true
	}
}

// markReported sets the sticky reporting bits requested and clears both
// change bits, per spec §4.1.
func (w *Watch) markReported(edge, oneShot bool) {
	if edge {
		w.edgeReported = true
	}
	if oneShot {
		w.oneShotReported = true
	}
	w.readChanged = false
	w.writeChanged = false
}

// rearm clears the sticky reporting bits, as MOD requires (spec §4.3).
func (w *Watch) rearm() {
	w.edgeReported = false
	w.oneShotReported = false
}

func (w *Watch) acquire() { w.refs++ }

// release drops a reference; on the last release it releases the Watch's
// strong reference to the underlying descriptor (spec §4.1).
func (w *Watch) release() {
	w.refs--
	if w.refs < 0 {
		invariant("watch %d over-released", w.handle)
	}
	if w.refs == 0 {
		w.descriptor.Release()
	}
}

func (w *Watch) String() string {
	return fmt.Sprintf("watch(%d watching=%v readable=%v writable=%v)", w.handle, w.watching, w.readable, w.writable)
}
