package syncutil

import (
	"sync"
	"testing"
	"time"
)

const (
	shortWait = 5 * time.Millisecond
	longWait  = 125 * time.Millisecond
)

func TestTypes(t *testing.T) {
	debug = false
	if _, ok := NewMutex().(*sync.Mutex); !ok {
		t.Error("wrong type for plain mutex")
	}

	debug = true
	if _, ok := NewMutex().(*loggedMutex); !ok {
		t.Error("wrong type for logged mutex")
	}
	debug = false
}

func TestMutexTiming(t *testing.T) {
	debug = true
	threshold = 20 * time.Millisecond
	defer func() { debug = false; threshold = 100 * time.Millisecond }()

	mut := NewMutex()
	mut.Lock()
	time.Sleep(shortWait)
	mut.Unlock()

	mut.Lock()
	time.Sleep(longWait)
	mut.Unlock()
	// No assertions on log output: the point of this test is that a slow
	// hold doesn't deadlock or panic the instrumented path.
}
