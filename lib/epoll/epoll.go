// Package epoll implements the virtualized event-notification multiplexer
// core: Watch, Watch Table, Readiness Evaluator, and Notification
// Controller, tied together by the Epoll type, plus a thin OS passthrough
// for raw file descriptors the application legitimately owns.
package epoll

import (
	"fmt"

	"github.com/flowsim/vepoll/internal/slogutil"
	"github.com/flowsim/vepoll/lib/osmux"
	"github.com/flowsim/vepoll/lib/procface"
	"github.com/flowsim/vepoll/lib/schedule"
	"github.com/flowsim/vepoll/lib/syncutil"
	"github.com/flowsim/vepoll/lib/vdesc"
)

var l = slogutil.Logger("epoll", "virtualized event-notification multiplexer core")

// Op names the three control operations an application may perform on an
// Epoll (spec §4.3).
type Op int

const (
	ControlAdd Op = iota
	ControlMod
	ControlDel
)

func (o Op) String() string {
	switch o {
	case ControlAdd:
		return "ADD"
	case ControlMod:
		return "MOD"
	case ControlDel:
		return "DEL"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// osHandle is the OS passthrough surface Epoll needs: exactly what
// *osmux.Mux provides, narrowed to an interface so tests can substitute an
// in-memory fake instead of a real kernel epoll instance.
type osHandle interface {
	ControlAdd(fd int32, mask osmux.Mask) error
	ControlMod(fd int32, mask osmux.Mask) error
	ControlDel(fd int32) error
	Wait(out []osmux.Event) (int, error)
	Poll() bool
	Close() error
}

// Epoll is one epoll instance (spec §3): a Watch Table, an OS multiplexer
// handle, a reference to the owning process, and the {scheduled,
// notifying, closed} flag set. It is itself a virtual descriptor — it can
// be watched by a parent Epoll — and is permanently active.
type Epoll struct {
	handle  vdesc.Handle
	table   *watchTable
	os      osHandle
	process procface.Process
	host    procface.Host
	sched   schedule.Scheduler

	// osSubs remembers the cookie/mask an application supplied via
	// control-os for a raw fd, so collect can attach it to an Event
	// mirrored verbatim from the OS multiplexer's wait results.
	osSubs map[int32]Subscription

	flagsMu   syncutil.Mutex
	scheduled bool
	notifying bool
	closed    bool
	finalized bool
	selfReady bool
	refs      int

	listenersMu syncutil.Mutex
	listeners   []vdesc.Listener
}

// New creates an Epoll owned by process on host, using sched to arrange
// deferred notify tasks and os as its OS multiplexer handle. handle is the
// stable identity this Epoll presents as a virtual descriptor in its own
// right (spec §3's "the epoll instance is itself a virtual descriptor").
func New(handle vdesc.Handle, process procface.Process, host procface.Host, sched schedule.Scheduler, os osHandle) *Epoll {
	return &Epoll{
		handle:      handle,
		table:       newWatchTable(),
		os:          os,
		process:     process,
		host:        host,
		sched:       sched,
		osSubs:      make(map[int32]Subscription),
		flagsMu:     syncutil.NewMutex(),
		listenersMu: syncutil.NewMutex(),
	}
}

// Handle returns this Epoll's own stable identity.
func (e *Epoll) Handle() vdesc.Handle { return e.handle }

// Status reports this Epoll's status as a virtual descriptor: permanently
// Active, Readable reflecting the last check's own-readiness computation
// (exposing nested readiness to a parent Epoll), and Closed once closed.
func (e *Epoll) Status() vdesc.Status {
	e.flagsMu.Lock()
	defer e.flagsMu.Unlock()
	return vdesc.Status{Active: true, Readable: e.selfReady, Closed: e.closed}
}

// Acquire and Release implement vdesc.Descriptor so a parent Epoll can
// watch this one. They share the same refcount the Notification
// Controller uses to keep the Epoll alive across an in-flight notify task
// (spec §9's "deferred task carrying Epoll ownership").
func (e *Epoll) Acquire() {
	e.flagsMu.Lock()
	e.refs++
	e.flagsMu.Unlock()
}

func (e *Epoll) Release() {
	e.flagsMu.Lock()
	e.refs--
	if e.refs < 0 {
		e.flagsMu.Unlock()
		invariant("epoll %d over-released", e.handle)
	}
	e.flagsMu.Unlock()
}

// Refs reports the current reference count; exported for tests asserting
// the notify task's acquire/release pairing.
func (e *Epoll) Refs() int {
	e.flagsMu.Lock()
	defer e.flagsMu.Unlock()
	return e.refs
}

func (e *Epoll) Subscribe(li vdesc.Listener) {
	e.listenersMu.Lock()
	e.listeners = append(e.listeners, li)
	e.listenersMu.Unlock()
}

func (e *Epoll) Unsubscribe(li vdesc.Listener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	for i, s := range e.listeners {
		if s == li {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}

func (e *Epoll) notifyListeners() {
	e.listenersMu.Lock()
	snapshot := make([]vdesc.Listener, len(e.listeners))
	copy(snapshot, e.listeners)
	e.listenersMu.Unlock()
	for _, li := range snapshot {
		li.StatusChanged(e)
	}
}

// Control performs ADD, MOD, or DEL for one virtual descriptor (spec §4.3).
func (e *Epoll) Control(op Op, d vdesc.Descriptor, sub Subscription) error {
	switch op {
	case ControlAdd:
		return e.controlAdd(d, sub)
	case ControlMod:
		return e.controlMod(d, sub)
	case ControlDel:
		return e.controlDel(d)
	default:
		l.Warn("unrecognized control op, ignoring", slogutil.Handle("op", uint64(op)))
		return nil
	}
}

func (e *Epoll) controlAdd(d vdesc.Descriptor, sub Subscription) error {
	h := d.Handle()
	if _, ok := e.table.get(h); ok {
		return ErrAlreadyExists
	}
	w := newWatch(d, sub)
	w.refresh(d.Status(), sub)
	if !e.table.insert(w) {
		invariant("watch %d inserted concurrently with existence check", h)
	}
	d.Subscribe(e)
	e.check()
	return nil
}

func (e *Epoll) controlMod(d vdesc.Descriptor, sub Subscription) error {
	h := d.Handle()
	w, ok := e.table.get(h)
	if !ok {
		return ErrNotFound
	}
	w.sub = sub
	w.rearm()
	e.check()
	return nil
}

func (e *Epoll) controlDel(d vdesc.Descriptor) error {
	h := d.Handle()
	w, ok := e.table.remove(h)
	if !ok {
		return ErrNotFound
	}
	w.watching = false
	d.Unsubscribe(e)
	w.release()
	return nil
}

// ControlOS mirrors control against a raw, OS-owned file descriptor (spec
// §4.6). Unlike virtual watches, raw fds carry no edge/one-shot state —
// the OS multiplexer's own semantics apply, and collect appends its
// results verbatim.
func (e *Epoll) ControlOS(op Op, fd int32, sub Subscription) error {
	mask := osmux.Mask{Read: sub.Read, Write: sub.Write}
	switch op {
	case ControlAdd:
		if err := e.os.ControlAdd(fd, mask); err != nil {
			return err
		}
		e.osSubs[fd] = sub
	case ControlMod:
		if err := e.os.ControlMod(fd, mask); err != nil {
			return err
		}
		e.osSubs[fd] = sub
	case ControlDel:
		if err := e.os.ControlDel(fd); err != nil {
			return err
		}
		delete(e.osSubs, fd)
	default:
		l.Warn("unrecognized control-os op, ignoring", slogutil.Handle("op", uint64(op)))
	}
	return nil
}

// Collect walks the Watch Table yielding one Event per ready Watch, then —
// if space remains — fills the rest from the OS multiplexer (spec §4.5).
// capacity 0 returns immediately with no OS call (spec §8's boundary
// case); a full virtual sweep likewise skips the OS call entirely.
func (e *Epoll) Collect(out []Event) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}

	n := 0
	e.table.sweep(func(w *Watch) bool {
		if ready(w) {
			out[n] = reportEvent(w)
			w.markReported(w.edgeTriggered, w.oneShot)
			n++
			metricEventsCollected.WithLabelValues("virtual").Inc()
		}
		return n < len(out)
	})

	if n < len(out) {
		osOut := make([]osmux.Event, len(out)-n)
		osN, err := e.os.Wait(osOut)
		if err != nil {
			l.Warn("os multiplexer wait failed during collect", slogutil.Error(err))
		}
		for i := 0; i < osN; i++ {
			sub := e.osSubs[osOut[i].Fd]
			out[n] = Event{
				Cookie:   sub.Cookie,
				Readable: osOut[i].Readable,
				Writable: osOut[i].Writable,
			}
			n++
			metricEventsCollected.WithLabelValues("os").Inc()
		}
	}

	e.check()
	return n, nil
}

// StatusChanged is the inbound callback a watched virtual descriptor
// invokes synchronously with its own status mutation (spec §4.4).
func (e *Epoll) StatusChanged(d vdesc.Descriptor) {
	if _, ok := e.table.get(d.Handle()); !ok {
		invariant("status-changed from descriptor %d not present in watch table", d.Handle())
	}
	e.check()
}

// Close marks the Epoll closed. Finalization runs immediately only if no
// notify task is scheduled AND none is currently in flight; otherwise it is
// deferred to that task's completion (notify's step 2, or the post-Continue
// check added for the reentrant-close case) per spec §4.4's close
// coordination and §3's "while notifying is true ... no close is
// finalized" invariant. Idempotent.
func (e *Epoll) Close() {
	e.flagsMu.Lock()
	alreadyClosed := e.closed
	e.closed = true
	deferFinalize := e.scheduled || e.notifying
	e.flagsMu.Unlock()

	if alreadyClosed {
		return
	}
	if !deferFinalize {
		e.finalize()
	}
}

// finalize tears down the Watch Table (unsubscribing from every watched
// descriptor and releasing every Watch's descriptor reference), closes the OS multiplexer handle, and tells the host to
// remove this Epoll from its own descriptor table. Idempotent.
func (e *Epoll) finalize() {
	e.flagsMu.Lock()
	if e.finalized {
		e.flagsMu.Unlock()
		return
	}
	e.finalized = true
	e.flagsMu.Unlock()

	torn := 0
	e.table.sweep(func(w *Watch) bool {
		w.watching = false
		w.descriptor.Unsubscribe(e)
		w.release()
		torn++
		return true
	})
	metricWatchesActive.Sub(float64(torn))
	// Every Watch has now dropped its descriptor reference; discard the
	// table entries themselves.
	e.table = newWatchTable()

	if err := e.os.Close(); err != nil {
		l.Warn("failed to close OS multiplexer handle during finalize", slogutil.Error(err))
	}

	if e.host != nil {
		e.host.CloseDescriptor(e.handle)
	}

	l.Debug("epoll finalized", slogutil.Handle("epoll", uint64(e.handle)))
}

// WatchInfo is a read-only snapshot of one Watch, for debug introspection
// (cmd/vepolld's /watches endpoint) — never mutated by callers.
type WatchInfo struct {
	Handle        vdesc.Handle
	Cookie        uint64
	Readable      bool
	Writable      bool
	Watching      bool
	EdgeTriggered bool
	OneShot       bool
}

// Snapshot returns a point-in-time view of every Watch currently in the
// table. Safe to call concurrently with the owning host's turn thanks to
// the Watch Table's xsync-backed map.
func (e *Epoll) Snapshot() []WatchInfo {
	var out []WatchInfo
	e.table.sweep(func(w *Watch) bool {
		out = append(out, WatchInfo{
			Handle:        w.handle,
			Cookie:        w.sub.Cookie,
			Readable:      w.readable,
			Writable:      w.writable,
			Watching:      w.watching,
			EdgeTriggered: w.edgeTriggered,
			OneShot:       w.oneShot,
		})
		return true
	})
	return out
}

var _ vdesc.Descriptor = (*Epoll)(nil)
