// Package syncutil provides the lock primitives used across vepoll for the
// handful of places state is shared beyond a single host's cooperative
// turn (an Epoll's flag set and its listener registry). Set
// VEPOLL_LOCK_TIMING=1 to log locks held longer than the threshold; the
// message is logged at DEBUG, so it only appears once the syncutil package
// level is raised (e.g. VEPOLL_TRACE=syncutil).
package syncutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/flowsim/vepoll/internal/slogutil"
)

var (
	debug     = os.Getenv("VEPOLL_LOCK_TIMING") != ""
	threshold = 100 * time.Millisecond
	l         = slogutil.Logger("syncutil", "lock instrumentation")
)

// Mutex is the only lock shape vepoll's core actually takes: the Epoll
// flag set and its listener registry are both guarded by a plain mutex,
// never a reader/writer lock, so that's the only variant instrumented here.
type Mutex interface {
	Lock()
	Unlock()
}

func NewMutex() Mutex {
	if debug {
		return &loggedMutex{}
	}
	return &sync.Mutex{}
}

type loggedMutex struct {
	sync.Mutex
	start    time.Time
	lockedAt string
}

func (m *loggedMutex) Lock() {
	m.Mutex.Lock()
	m.start = time.Now()
	m.lockedAt = getCaller()
}

func (m *loggedMutex) Unlock() {
	duration := time.Since(m.start)
	if duration >= threshold {
		l.Debug("mutex held too long", slog.Duration("duration", duration), slog.String("lockedAt", m.lockedAt), slog.String("unlockedAt", getCaller()))
	}
	m.Mutex.Unlock()
}

func getCaller() string {
	_, file, line, _ := runtime.Caller(2)
	file = filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file))
	return fmt.Sprintf("%s:%d", file, line)
}
