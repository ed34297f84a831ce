package epoll

// ready is the Readiness Evaluator (spec §4.2): a pure decision over one
// Watch. It first refreshes the Watch from the descriptor's current status
// and its own last-applied subscription, then applies the three gates in
// order: liveness, candidate-event existence, and the triggering-mode gate.
func ready(w *Watch) bool {
	w.refresh(w.descriptor.Status(), w.sub)
	return readyNoRefresh(w)
}

// readyNoRefresh applies the readiness gates to a Watch's current flags
// without refreshing them first. Used where the caller has already called
// refresh (or deliberately wants to evaluate a stale snapshot, e.g. a
// sweep that refreshed once up front).
func readyNoRefresh(w *Watch) bool {
	if !w.active || w.closed || !w.watching {
		return false
	}

	candidateRead := w.readable && w.waitingRead
	candidateWrite := w.writable && w.waitingWrite
	if !candidateRead && !candidateWrite {
		return false
	}

	if w.oneShot && w.oneShotReported {
		return false
	}

	if !w.edgeTriggered {
		return true
	}

	// Edge-triggered: a candidate qualifies iff its change bit is set, or
	// this is the first report since ADD/MOD (edge-reported not yet set).
	if !w.edgeReported {
		return true
	}
	if candidateRead && w.readChanged {
		return true
	}
	if candidateWrite && w.writeChanged {
		return true
	}
	return false
}

// reportEvent builds the Event a ready Watch yields, merging both
// directions if both qualify (spec §4.2's "single reported event merges
// both direction bits").
func reportEvent(w *Watch) Event {
	ev := Event{Cookie: w.sub.Cookie}
	if w.readable && w.waitingRead {
		ev.Readable = true
	}
	if w.writable && w.waitingWrite {
		ev.Writable = true
	}
	if w.edgeTriggered {
		ev.Edge = true
	}
	return ev
}
