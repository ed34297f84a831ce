package epoll

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/flowsim/vepoll/lib/vdesc"
)

// watchTable is the mapping, owned by one Epoll, from descriptor handle to
// Watch (spec §2, §4.3). It enforces at-most-one-Watch-per-handle.
//
// Backed by puzpuzpuz/xsync.MapOf rather than a mutex-guarded map: the
// single-threaded-per-host model means writes never race each other, but a
// debug introspection endpoint (cmd/vepolld's /watches) may want to read a
// snapshot concurrently with the owning host's turn, and xsync gives that
// without a read lock that would otherwise have to be threaded through
// every control-path method.
type watchTable struct {
	m *xsync.MapOf[vdesc.Handle, *Watch]
}

func newWatchTable() *watchTable {
	return &watchTable{m: xsync.NewMapOf[vdesc.Handle, *Watch]()}
}

// insert adds w under its handle, failing if an entry already exists.
func (t *watchTable) insert(w *Watch) bool {
	_, loaded := t.m.LoadOrStore(w.handle, w)
	if !loaded {
		metricWatchesActive.Inc()
	}
	return !loaded
}

func (t *watchTable) get(h vdesc.Handle) (*Watch, bool) {
	return t.m.Load(h)
}

// remove deletes the entry for h, returning the removed Watch if there was
// one. It does not itself call release on the Watch; callers decide when
// the table's own reference drops (spec §4.3's DEL semantics).
func (t *watchTable) remove(h vdesc.Handle) (*Watch, bool) {
	w, ok := t.m.LoadAndDelete(h)
	if ok {
		metricWatchesActive.Dec()
	}
	return w, ok
}

func (t *watchTable) size() int {
	return t.m.Size()
}

// sweep calls fn for every Watch currently in the table, stopping early if
// fn returns false. The walk order is unspecified but stable for the
// duration of one call, matching spec §4.5's "order unspecified, stable
// per call" requirement.
func (t *watchTable) sweep(fn func(w *Watch) bool) {
	t.m.Range(func(_ vdesc.Handle, w *Watch) bool {
		return fn(w)
	})
}
