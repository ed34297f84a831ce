// Package vdesc defines the virtual-descriptor interfaces the epoll core
// consumes (spec §6): status, reference counting, and status-change
// subscription. The core treats these as external collaborators owned by
// the simulator's descriptor table; this package also ships Virtual, an
// in-memory reference descriptor used by tests and cmd/vepolld to exercise
// the core without a full simulator attached.
package vdesc

import "fmt"

// Handle is a descriptor's stable identity within one epoll's Watch Table.
type Handle uint64

// Status is the live status of a virtual descriptor, as spec §3 describes
// the status-derived watch flags.
type Status struct {
	Active   bool
	Readable bool
	Writable bool
	Closed   bool
}

// Listener receives a synchronous callback when a Descriptor's status
// changes. Implementations must not block and must not call back into the
// descriptor's owner for the same descriptor (spec §4.4).
type Listener interface {
	StatusChanged(d Descriptor)
}

// Descriptor is the virtual-descriptor abstraction the epoll core consumes.
// Implementations are provided by the simulator; vdesc.Virtual below is a
// minimal reference implementation for tests.
type Descriptor interface {
	Handle() Handle
	Status() Status

	Acquire()
	Release()

	Subscribe(l Listener)
	Unsubscribe(l Listener)
}

// Virtual is a minimal in-memory Descriptor used by tests and the demo
// binary. It is not part of the spec's collaborator contract; it exists
// only to make the contract drivable without a real simulator.
//
// The listener bookkeeping (a plain slice of listeners, Subscribe appending
// and Unsubscribe removing the first entry equal by identity, with no lock)
// is adapted from the
// subscriber bookkeeping in a publish/subscribe event logger, restructured
// here for direct synchronous callback fan-in instead of channel delivery,
// since spec §4.4 requires status-changed to be synchronous with the
// mutation that caused it.
type Virtual struct {
	handle Handle
	name   string

	status    Status
	listeners []Listener
	refs      int
}

// NewVirtual creates a reference descriptor with the given stable handle.
// It starts Active with no readiness.
func NewVirtual(handle Handle, name string) *Virtual {
	return &Virtual{
		handle: handle,
		name:   name,
		status: Status{Active: true},
	}
}

func (v *Virtual) Handle() Handle { return v.handle }
func (v *Virtual) Status() Status { return v.status }

func (v *Virtual) Acquire() { v.refs++ }

func (v *Virtual) Release() {
	v.refs--
	if v.refs < 0 {
		panic(fmt.Sprintf("vdesc: over-released descriptor %d (%s)", v.handle, v.name))
	}
}

// Refs reports the current reference count, for tests asserting
// acquire/release pairing.
func (v *Virtual) Refs() int { return v.refs }

func (v *Virtual) Subscribe(l Listener) {
	v.listeners = append(v.listeners, l)
}

func (v *Virtual) Unsubscribe(l Listener) {
	for i, s := range v.listeners {
		if s == l {
			v.listeners = append(v.listeners[:i], v.listeners[i+1:]...)
			return
		}
	}
}

// SetStatus updates the descriptor's status and synchronously fans the
// change out to every subscribed listener, mirroring the simulator's own
// status-changed callback contract (spec §4.4, §6).
func (v *Virtual) SetStatus(s Status) {
	v.status = s
	// Iterate a snapshot: a listener's StatusChanged may itself call
	// Subscribe/Unsubscribe on a *different* descriptor but must not touch
	// this one's subscriber list (spec §4.4's synchronous-callback rule).
	listeners := make([]Listener, len(v.listeners))
	copy(listeners, v.listeners)
	for _, l := range listeners {
		l.StatusChanged(v)
	}
}

func (v *Virtual) String() string {
	return fmt.Sprintf("vdesc(%d:%s)", v.handle, v.name)
}
