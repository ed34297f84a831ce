package main

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowsim/vepoll/lib/epoll"
)

// debugServer exposes introspection endpoints over the epoll instance
// driven by main's scenario runner: /watches dumps the current Watch
// Table, /healthz is a trivial liveness probe.
type debugServer struct {
	epoll *epoll.Epoll
}

func newDebugMux(e *epoll.Epoll) http.Handler {
	d := &debugServer{epoll: e}
	restMux := httprouter.New()
	restMux.HandlerFunc(http.MethodGet, "/watches", d.getWatches)
	restMux.HandlerFunc(http.MethodGet, "/healthz", d.getHealth)
	return restMux
}

func (d *debugServer) getWatches(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(d.epoll.Snapshot())
}

func (d *debugServer) getHealth(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("OK"))
}

func newMetricsMux() http.Handler {
	mmux := http.NewServeMux()
	mmux.Handle("/metrics", promhttp.Handler())
	return mmux
}
