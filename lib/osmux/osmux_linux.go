//go:build linux

package osmux

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sys/unix"

	"github.com/flowsim/vepoll/internal/slogutil"
)

var l = slogutil.Logger("osmux", "OS epoll passthrough and oracle")

// maskCacheSize bounds the number of raw-fd → mask entries osmux
// remembers; a simulated host has only a handful of real descriptors, so a
// small fixed size is plenty.
const maskCacheSize = 256

// Mux is the OS passthrough handle owned by one Epoll instance (spec §4.6,
// §5's "OS multiplexer handle is owned by the Epoll").
//
// Grounded on gvisor's pkg/fdnotifier notifier type (_examples/walteh-gvisor,
// fdnotifier_darwin.go): a mutex-guarded map from fd to its last-applied
// interest, translated from gvisor's kqueue calls to Linux epoll_ctl/epoll_wait.
type Mux struct {
	mu    sync.Mutex
	epfd  int
	masks *lru.Cache[int32, unix.EpollEvent]
}

// New creates an OS passthrough handle backed by a fresh epoll instance.
func New() (*Mux, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &OSError{Op: "epoll_create1", Err: err}
	}
	cache, err := lru.New[int32, unix.EpollEvent](maskCacheSize)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Mux{epfd: fd, masks: cache}, nil
}

func toEpollEvent(fd int32, mask Mask) unix.EpollEvent {
	var events uint32
	if mask.Read {
		events |= unix.EPOLLIN
	}
	if mask.Write {
		events |= unix.EPOLLOUT
	}
	return unix.EpollEvent{Events: events, Fd: fd}
}

// ControlAdd registers fd with the OS multiplexer for the given interest.
func (m *Mux) ControlAdd(fd int32, mask Mask) error {
	ev := toEpollEvent(fd, mask)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return &OSError{Op: "epoll_ctl(add)", Fd: fd, Err: err}
	}
	m.masks.Add(fd, ev)
	l.Debug("added raw fd", slogutil.Handle("fd", uint64(fd)))
	return nil
}

// ControlMod updates fd's registered interest. It is a no-op syscall-wise
// if the requested mask already matches what's cached, so a MOD that
// repeats a prior subscription doesn't pay for a syscall.
func (m *Mux) ControlMod(fd int32, mask Mask) error {
	ev := toEpollEvent(fd, mask)
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.masks.Get(fd); ok && cached.Events == ev.Events {
		return nil
	}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, int(fd), &ev); err != nil {
		return &OSError{Op: "epoll_ctl(mod)", Fd: fd, Err: err}
	}
	m.masks.Add(fd, ev)
	return nil
}

// ControlDel removes fd from the OS multiplexer. ENOENT, for an fd that was
// never added or was already removed, is ignored, so removal is idempotent;
// any other error, including EBADF for an fd that has since been closed, is
// returned.
func (m *Mux) ControlDel(fd int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masks.Remove(fd)
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil && err != unix.ENOENT {
		return &OSError{Op: "epoll_ctl(del)", Fd: fd, Err: err}
	}
	return nil
}

// Wait mirrors epoll_wait with a zero timeout (spec §4.6's "wait with zero
// timeout"), appending verbatim events into out and returning how many
// slots it filled.
func (m *Mux) Wait(out []Event) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	raw := make([]unix.EpollEvent, len(out))
	n, err := unix.EpollWait(m.epfd, raw, 0)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, &OSError{Op: "epoll_wait", Err: err}
	}
	for i := 0; i < n; i++ {
		out[i] = Event{
			Fd:       raw[i].Fd,
			Readable: raw[i].Events&unix.EPOLLIN != 0,
			Writable: raw[i].Events&unix.EPOLLOUT != 0,
		}
	}
	return n, nil
}

// Poll is the OS oracle: a nonblocking, non-consuming peek at whether any
// event is pending on m's epoll instance.
//
// Grounded directly on gvisor's NonBlockingPoll / the OS-oracle design note
// (spec §9): create a temporary outer multiplexer, register m's real
// multiplexer fd as a child with read interest, zero-timeout wait on the
// temporary one, then tear the temporary one down. Because the temporary
// multiplexer is discarded immediately and epoll_wait never removes ready
// events from the underlying fd's readiness, this never consumes anything
// from m itself.
func (m *Mux) Poll() bool {
	outer, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		l.Warn("oracle: failed to create temporary epoll", slogutil.Error(err))
		return false
	}
	defer unix.Close(outer)

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(m.epfd)}
	if err := unix.EpollCtl(outer, unix.EPOLL_CTL_ADD, m.epfd, &ev); err != nil {
		l.Warn("oracle: failed to register multiplexer fd", slogutil.Error(err))
		return false
	}

	var results [1]unix.EpollEvent
	n, err := unix.EpollWait(outer, results[:], 0)
	if err != nil && err != unix.EINTR {
		l.Warn("oracle: wait failed", slogutil.Error(err))
		return false
	}
	return n > 0
}

// Close releases the OS multiplexer handle (spec §5's "closed during
// finalization").
func (m *Mux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := unix.Close(m.epfd); err != nil {
		return &OSError{Op: "close", Err: err}
	}
	return nil
}

// WaitTimeout is a blocking variant of Wait that waits up to timeout for an
// event; only this package's tests call it, and the core itself never does
// (it always passes a zero timeout per spec §4.6).
func (m *Mux) WaitTimeout(out []Event, timeout time.Duration) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	raw := make([]unix.EpollEvent, len(out))
	n, err := unix.EpollWait(m.epfd, raw, int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, &OSError{Op: "epoll_wait", Err: err}
	}
	for i := 0; i < n; i++ {
		out[i] = Event{
			Fd:       raw[i].Fd,
			Readable: raw[i].Events&unix.EPOLLIN != 0,
			Writable: raw[i].Events&unix.EPOLLOUT != 0,
		}
	}
	return n, nil
}
