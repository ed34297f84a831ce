// Command vepolld is a small demo and integration binary: it wires a
// virtual process, a handful of virtual descriptors, and a real OS
// multiplexer together into one epoll instance, drives it through an
// optional scenario file, then keeps serving debug introspection and
// Prometheus metrics until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/thejerf/suture/v4"

	"github.com/flowsim/vepoll/internal/slogutil"
	"github.com/flowsim/vepoll/lib/epoll"
	"github.com/flowsim/vepoll/lib/osmux"
	"github.com/flowsim/vepoll/lib/procface"
	"github.com/flowsim/vepoll/lib/schedule"
	"github.com/flowsim/vepoll/lib/vdesc"
)

var l = slogutil.Logger("vepolld", "demo/integration binary for the epoll core")

type cli struct {
	Scenario      string        `arg:"" optional:"" type:"existingfile" help:"scenario file driving the epoll instance"`
	Listen        string        `default:":8080" help:"debug HTTP listen address"`
	MetricsListen string        `default:":8081" help:"Prometheus metrics listen address"`
	TickInterval  time.Duration `default:"200ms" help:"wall-clock interval per virtual time tick, once the scenario has finished"`
}

func main() {
	var params cli
	kong.Parse(&params)
	if err := run(&params); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(params *cli) error {
	mux, err := osmux.New()
	if err != nil {
		return fmt.Errorf("opening OS multiplexer: %w", err)
	}

	sched := schedule.NewVirtual()
	proc := procface.NewVirtual()
	host := &procface.VirtualHost{}
	e := epoll.New(vdesc.Handle(1), proc, host, sched, mux)

	if params.Scenario != "" {
		f, err := os.Open(params.Scenario)
		if err != nil {
			return fmt.Errorf("opening scenario: %w", err)
		}
		sc, err := parseScenario(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parsing scenario: %w", err)
		}

		r := newRunner(e, sched, proc, func(format string, args ...any) {
			l.Info(fmt.Sprintf(format, args...))
		})
		if err := r.run(sc); err != nil {
			return fmt.Errorf("running scenario: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	supervisor := suture.NewSimple("vepolld")
	supervisor.Add(schedule.AsService(tickPump(sched, params.TickInterval), "scheduler-pump"))
	supervisor.Add(schedule.AsService(httpServe(params.Listen, newDebugMux(e)), "debug-http"))
	if params.MetricsListen != "" {
		supervisor.Add(schedule.AsService(httpServe(params.MetricsListen, newMetricsMux()), "metrics-http"))
	}

	l.Info("vepolld serving", slog.String("listen", params.Listen), slog.String("metrics", params.MetricsListen))
	return supervisor.Serve(ctx)
}

// tickPump advances the virtual scheduler by one tick every interval, so
// any notify task scheduled by a descriptor's status change after the
// initial scenario has run still fires.
func tickPump(sched *schedule.Virtual, interval time.Duration) func(context.Context) {
	return func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				sched.Close()
				return
			case <-ticker.C:
				sched.Advance(1)
			}
		}
	}
}

// httpServe runs an http.Handler until ctx is cancelled, as a suture
// Service body.
func httpServe(addr string, handler http.Handler) func(context.Context) {
	return func(ctx context.Context) {
		srv := &http.Server{Addr: addr, Handler: handler}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Warn("http server exited", slogutil.Error(err), slog.String("addr", addr))
		}
	}
}
