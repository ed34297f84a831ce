package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/flowsim/vepoll/lib/epoll"
	"github.com/flowsim/vepoll/lib/procface"
	"github.com/flowsim/vepoll/lib/schedule"
	"github.com/flowsim/vepoll/lib/vdesc"
)

// scenario is a parsed, ready-to-run script driving one epoll.Epoll through
// a sequence of steps. Each line is one of:
//
//	add <name> read|write|rw [edge] [oneshot]
//	mod <name> read|write|rw [edge] [oneshot]
//	del <name>
//	set <name> [active|inactive] [readable|unreadable] [writable|unwritable] [closed]
//	advance <n>
//	collect [capacity]   (capacity defaults to 16)
//	close
//
// Blank lines and lines starting with # are ignored. This is deliberately
// tiny: it exists to drive the core end to end from the command line, not
// to be a general-purpose test language.
type scenario struct {
	steps []step
}

type step struct {
	kind string
	args []string
}

func parseScenario(r io.Reader) (*scenario, error) {
	sc := &scenario{}
	scan := bufio.NewScanner(r)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		kind := strings.ToLower(fields[0])
		switch kind {
		case "add", "mod", "del", "set", "advance", "collect", "close":
		default:
			return nil, fmt.Errorf("scenario line %d: unknown step %q", lineNo, fields[0])
		}
		sc.steps = append(sc.steps, step{kind: kind, args: fields[1:]})
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return sc, nil
}

// runner holds the live state a scenario drives: one epoll instance plus
// the named virtual descriptors it watches.
type runner struct {
	epoll *epoll.Epoll
	sched *schedule.Virtual
	proc  *procface.Virtual
	descs map[string]*vdesc.Virtual
	next  vdesc.Handle

	log func(format string, args ...any)
}

func newRunner(e *epoll.Epoll, sched *schedule.Virtual, proc *procface.Virtual, logf func(string, ...any)) *runner {
	return &runner{
		epoll: e,
		sched: sched,
		proc:  proc,
		descs: make(map[string]*vdesc.Virtual),
		log:   logf,
	}
}

func (r *runner) descriptor(name string) *vdesc.Virtual {
	if d, ok := r.descs[name]; ok {
		return d
	}
	r.next++
	d := vdesc.NewVirtual(r.next, name)
	r.descs[name] = d
	return d
}

func parseSubscription(args []string) epoll.Subscription {
	sub := epoll.Subscription{}
	if len(args) > 0 {
		switch args[0] {
		case "read":
			sub.Read = true
		case "write":
			sub.Write = true
		case "rw":
			sub.Read, sub.Write = true, true
		}
	}
	for _, a := range args[1:] {
		switch a {
		case "edge":
			sub.EdgeTriggered = true
		case "oneshot":
			sub.OneShot = true
		}
	}
	return sub
}

func (r *runner) run(sc *scenario) error {
	for _, st := range sc.steps {
		switch st.kind {
		case "add":
			if len(st.args) < 1 {
				return fmt.Errorf("add: missing descriptor name")
			}
			name := st.args[0]
			d := r.descriptor(name)
			sub := parseSubscription(st.args[1:])
			sub.Cookie = uint64(d.Handle())
			if err := r.epoll.Control(epoll.ControlAdd, d, sub); err != nil {
				return fmt.Errorf("add %s: %w", name, err)
			}
			r.log("add %s %+v", name, sub)

		case "mod":
			if len(st.args) < 1 {
				return fmt.Errorf("mod: missing descriptor name")
			}
			name := st.args[0]
			d := r.descriptor(name)
			sub := parseSubscription(st.args[1:])
			sub.Cookie = uint64(d.Handle())
			if err := r.epoll.Control(epoll.ControlMod, d, sub); err != nil {
				return fmt.Errorf("mod %s: %w", name, err)
			}
			r.log("mod %s %+v", name, sub)

		case "del":
			if len(st.args) < 1 {
				return fmt.Errorf("del: missing descriptor name")
			}
			name := st.args[0]
			d := r.descriptor(name)
			if err := r.epoll.Control(epoll.ControlDel, d, epoll.Subscription{}); err != nil {
				return fmt.Errorf("del %s: %w", name, err)
			}
			r.log("del %s", name)

		case "set":
			if len(st.args) < 1 {
				return fmt.Errorf("set: missing descriptor name")
			}
			name := st.args[0]
			d := r.descriptor(name)
			status := d.Status()
			for _, flag := range st.args[1:] {
				switch flag {
				case "active":
					status.Active = true
				case "inactive":
					status.Active = false
				case "readable":
					status.Readable = true
				case "unreadable":
					status.Readable = false
				case "writable":
					status.Writable = true
				case "unwritable":
					status.Writable = false
				case "closed":
					status.Closed = true
				default:
					return fmt.Errorf("set %s: unknown flag %q", name, flag)
				}
			}
			d.SetStatus(status)
			r.log("set %s %+v", name, status)

		case "advance":
			if len(st.args) < 1 {
				return fmt.Errorf("advance: missing tick count")
			}
			n, err := strconv.Atoi(st.args[0])
			if err != nil {
				return fmt.Errorf("advance: %w", err)
			}
			r.sched.Advance(time.Duration(n))
			r.log("advance %d (now=%s)", n, r.sched.Now())

		case "collect":
			cap := 16
			if len(st.args) > 0 {
				n, err := strconv.Atoi(st.args[0])
				if err != nil {
					return fmt.Errorf("collect: %w", err)
				}
				cap = n
			}
			out := make([]epoll.Event, cap)
			n, err := r.epoll.Collect(out)
			if err != nil {
				return fmt.Errorf("collect: %w", err)
			}
			r.log("collect -> %d event(s): %+v", n, out[:n])

		case "close":
			r.epoll.Close()
			r.log("close")
		}
	}
	return nil
}
