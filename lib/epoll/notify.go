package epoll

import (
	"time"

	"github.com/flowsim/vepoll/lib/schedule"
)

// notifyDelay is the virtual delay a scheduled notify task is arranged at
// (spec §6's "schedule(task, delay) → bool at delay 1 virtual time unit").
const notifyDelay = time.Duration(1)

// check is the Notification Controller's check procedure (spec §4.4). It
// returns immediately if the Epoll is closed or a continuation is
// currently in flight; otherwise it re-evaluates readiness from scratch
// and, if ready and nothing is already scheduled and the process still
// wants notifications, arranges exactly one deferred notify task.
func (e *Epoll) check() {
	e.flagsMu.Lock()
	if e.closed || e.notifying {
		e.flagsMu.Unlock()
		return
	}
	e.flagsMu.Unlock()

	readyNow := e.evaluateReadiness()

	e.flagsMu.Lock()
	wasReady := e.selfReady
	e.selfReady = readyNow
	alreadyScheduled := e.scheduled
	e.flagsMu.Unlock()

	if readyNow != wasReady {
		e.notifyListeners()
	}

	if !readyNow || alreadyScheduled {
		return
	}
	if !e.process.WantsNotify(e.handle) {
		return
	}

	e.Acquire()
	task := schedule.Task{
		Run:     func() { e.notify() },
		Release: func() { e.Release() },
	}
	if e.sched.Schedule(task, notifyDelay) {
		e.flagsMu.Lock()
		e.scheduled = true
		e.flagsMu.Unlock()
		metricNotifiesScheduled.Inc()
	} else {
		// Scheduling failed outright (e.g. a stopped scheduler): drop the
		// reference we just took since neither Run nor Release will fire.
		e.Release()
	}
}

// evaluateReadiness sweeps the Watch Table short-circuiting on the first
// ready Watch, falling back to the OS oracle if no virtual Watch is ready
// (spec §4.4).
func (e *Epoll) evaluateReadiness() bool {
	anyReady := false
	e.table.sweep(func(w *Watch) bool {
		if ready(w) {
			anyReady = true
			return false
		}
		return true
	})
	if anyReady {
		return true
	}
	metricOSOraclePolls.Inc()
	return e.os.Poll()
}

// notify is the deferred notify task body (spec §4.4's five numbered
// steps). It is always invoked from the Task.Run the scheduler fires; the
// paired Task.Release (which runs whether or not Run did) drops the
// reference check acquired when scheduling this task.
func (e *Epoll) notify() {
	e.flagsMu.Lock()
	e.scheduled = false
	closed := e.closed
	e.flagsMu.Unlock()

	if closed || !e.process.IsRunning() {
		e.finalize()
		return
	}

	if !e.evaluateReadiness() {
		return
	}

	e.flagsMu.Lock()
	e.notifying = true
	e.flagsMu.Unlock()

	e.process.Continue()

	e.flagsMu.Lock()
	e.notifying = false
	closed = e.closed
	e.flagsMu.Unlock()

	// A reentrant Close() from within Continue() sees notifying still true
	// and defers finalization to here, rather than finalizing mid-notify.
	if closed {
		e.finalize()
		return
	}

	e.check()
}
