// Package procface defines the process- and host-layer interfaces the
// epoll core consumes (spec §6): whether a process still wants
// notifications for a given epoll handle, running its cooperative
// continuation, checking whether it's still running, and asking the host
// to tear down a descriptor. It also ships Virtual, a minimal reference
// process used by tests and cmd/vepolld.
package procface

import "github.com/flowsim/vepoll/lib/vdesc"

// Process is the process-layer collaborator the Notification Controller
// consults and drives (spec §4.4, §6).
type Process interface {
	// WantsNotify reports whether the process currently cares about
	// notifications for the given epoll handle.
	WantsNotify(epoll vdesc.Handle) bool

	// Continue runs the process until it voluntarily yields. It may call
	// back into the epoll's control or collect operations.
	Continue()

	// IsRunning reports whether the process is still alive.
	IsRunning() bool
}

// Host is the host-layer collaborator that owns descriptor tables.
type Host interface {
	// CloseDescriptor initiates descriptor-table removal for handle.
	CloseDescriptor(handle vdesc.Handle)
}

// Virtual is a minimal reference Process: its "continuation" is a queue of
// closures enqueued by test code, each standing in for one slice of
// application execution between yields. Each Continue call runs only the
// oldest queued closure, if any; WantsNotify and IsRunning are plain fields
// a test can flip.
//
// The "run until it yields" framing mirrors a supervised service's
// Serve-until-Stop convention, generalized from one-shot goroutine services
// to a pull-based queue since the epoll core, not a scheduler, decides when
// continuation happens.
type Virtual struct {
	Running bool
	Wants   map[vdesc.Handle]bool

	pending []func()
}

// NewVirtual creates a running reference process that wants notifications
// for every epoll handle unless told otherwise via Wants.
func NewVirtual() *Virtual {
	return &Virtual{Running: true, Wants: map[vdesc.Handle]bool{}}
}

func (p *Virtual) WantsNotify(epoll vdesc.Handle) bool {
	if want, ok := p.Wants[epoll]; ok {
		return want
	}
	return true
}

func (p *Virtual) IsRunning() bool { return p.Running }

// Enqueue schedules fn to run on the next Continue call.
func (p *Virtual) Enqueue(fn func()) {
	p.pending = append(p.pending, fn)
}

func (p *Virtual) Continue() {
	if len(p.pending) == 0 {
		return
	}
	fn := p.pending[0]
	p.pending = p.pending[1:]
	fn()
}

var _ Process = (*Virtual)(nil)

// VirtualHost is a minimal reference Host that records closed handles.
type VirtualHost struct {
	Closed []vdesc.Handle
}

func (h *VirtualHost) CloseDescriptor(handle vdesc.Handle) {
	h.Closed = append(h.Closed, handle)
}

var _ Host = (*VirtualHost)(nil)
