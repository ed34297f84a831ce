package main

import (
	"strings"
	"testing"

	"github.com/flowsim/vepoll/lib/epoll"
	"github.com/flowsim/vepoll/lib/osmux"
	"github.com/flowsim/vepoll/lib/procface"
	"github.com/flowsim/vepoll/lib/schedule"
	"github.com/flowsim/vepoll/lib/vdesc"
)

// fakeOS is a no-op OS multiplexer stand-in: scenario files in these tests
// never register raw fds, so the control calls are never made and Wait and
// Poll always report nothing, but Epoll still needs a live handle to
// construct.
type fakeOS struct{}

func (fakeOS) ControlAdd(int32, osmux.Mask) error { return nil }
func (fakeOS) ControlMod(int32, osmux.Mask) error { return nil }
func (fakeOS) ControlDel(int32) error             { return nil }
func (fakeOS) Wait([]osmux.Event) (int, error)    { return 0, nil }
func (fakeOS) Poll() bool                         { return false }
func (fakeOS) Close() error                       { return nil }

func TestParseScenarioRejectsUnknownStep(t *testing.T) {
	_, err := parseScenario(strings.NewReader("frobnicate conn1\n"))
	if err == nil {
		t.Fatalf("expected an error for an unrecognized step")
	}
}

func TestParseScenarioSkipsBlankAndComment(t *testing.T) {
	sc, err := parseScenario(strings.NewReader("\n# a comment\nadd conn1 read\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sc.steps) != 1 {
		t.Fatalf("expected exactly one step, got %d", len(sc.steps))
	}
}

func TestRunnerDrivesLevelTriggeredScenario(t *testing.T) {
	sched := schedule.NewVirtual()
	proc := procface.NewVirtual()
	host := &procface.VirtualHost{}
	e := epoll.New(vdesc.Handle(1), proc, host, sched, fakeOS{})

	sc, err := parseScenario(strings.NewReader(
		"add conn1 read\nset conn1 readable\nadvance 1\ncollect 4\n",
	))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var logged []string
	r := newRunner(e, sched, proc, func(format string, args ...any) {
		logged = append(logged, format)
	})
	if err := r.run(sc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(logged) != 4 {
		t.Fatalf("expected one log line per step, got %d", len(logged))
	}
	if sched.Now() != 1 {
		t.Fatalf("expected virtual time to have advanced by 1, got %s", sched.Now())
	}
}

func TestRunnerPropagatesControlErrors(t *testing.T) {
	sched := schedule.NewVirtual()
	proc := procface.NewVirtual()
	host := &procface.VirtualHost{}
	e := epoll.New(vdesc.Handle(1), proc, host, sched, fakeOS{})

	sc, err := parseScenario(strings.NewReader("del conn1\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r := newRunner(e, sched, proc, func(string, ...any) {})
	if err := r.run(sc); err == nil {
		t.Fatalf("expected deleting an unwatched descriptor to fail")
	}
}
