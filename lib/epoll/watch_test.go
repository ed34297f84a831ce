package epoll

import (
	"testing"

	"github.com/flowsim/vepoll/lib/vdesc"
)

func TestWatchRefreshSetsChangeBitsOnTransition(t *testing.T) {
	d := vdesc.NewVirtual(1, "fd")
	w := newWatch(d, Subscription{Read: true})

	w.refresh(vdesc.Status{Active: true, Readable: false}, w.sub)
	if w.readChanged {
		t.Fatalf("expected no change bit on first refresh matching the zero value")
	}

	w.refresh(vdesc.Status{Active: true, Readable: true}, w.sub)
	if !w.readChanged {
		t.Fatalf("expected readChanged after a readable transition")
	}

	w.readChanged = false
	w.refresh(vdesc.Status{Active: true, Readable: true}, w.sub)
	if w.readChanged {
		t.Fatalf("expected readChanged to stay clear with no further transition")
	}
}

func TestWatchRefreshPreservesStickyFlags(t *testing.T) {
	d := vdesc.NewVirtual(1, "fd")
	w := newWatch(d, Subscription{Read: true})
	w.edgeReported = true
	w.oneShotReported = true
	w.readChanged = true

	w.refresh(vdesc.Status{Active: true, Readable: true}, w.sub)

	if !w.edgeReported || !w.oneShotReported {
		t.Fatalf("refresh must not clear sticky reporting bits")
	}
}

func TestWatchMarkReportedClearsChangeBits(t *testing.T) {
	d := vdesc.NewVirtual(1, "fd")
	w := newWatch(d, Subscription{Read: true})
	w.readChanged = true
	w.writeChanged = true

	w.markReported(true, true)

	if w.readChanged || w.writeChanged {
		t.Fatalf("markReported must clear both change bits")
	}
	if !w.edgeReported || !w.oneShotReported {
		t.Fatalf("markReported must set the requested sticky reporting bits")
	}
}

func TestWatchRearmClearsReportingBits(t *testing.T) {
	d := vdesc.NewVirtual(1, "fd")
	w := newWatch(d, Subscription{Read: true})
	w.edgeReported = true
	w.oneShotReported = true

	w.rearm()

	if w.edgeReported || w.oneShotReported {
		t.Fatalf("rearm (MOD) must clear edge-reported and one-shot-reported")
	}
}

func TestWatchAcquireReleasePanicsOnOverRelease(t *testing.T) {
	d := vdesc.NewVirtual(1, "fd")
	w := newWatch(d, Subscription{Read: true})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on over-release")
		}
	}()
	w.release()
	w.release()
}

func TestWatchReleaseDropsDescriptorRefOnLast(t *testing.T) {
	d := vdesc.NewVirtual(1, "fd")
	w := newWatch(d, Subscription{Read: true})
	w.acquire()

	w.release()
	if d.Refs() != 1 {
		t.Fatalf("expected the descriptor still held (refs=%d), not last release yet", d.Refs())
	}
	w.release()
	if d.Refs() != 0 {
		t.Fatalf("expected the descriptor released on the watch's last release, refs=%d", d.Refs())
	}
}
