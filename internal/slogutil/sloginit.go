// Package slogutil provides the structured-logging glue shared by every
// vepoll package: a per-package level tracker, a ring-buffer recorder that
// backs the demo binary's introspection endpoint, and a human-readable line
// formatter for stdout.
package slogutil

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	GlobalRecorder = &lineRecorder{level: -1000}
	ErrorRecorder  = &lineRecorder{level: slog.LevelError}
	globalLevels   = &levelTracker{
		levels: make(map[string]slog.Level),
		descrs: make(map[string]string),
	}
	globalFormatter = &formattingOptions{
		LineFormat: DefaultLineFormat,
	}
	slogDef *slog.Logger
)

func init() {
	var out io.Writer = os.Stdout
	if os.Getenv("VEPOLL_LOG_DISCARD") != "" {
		// Hack to fully silence logging, e.g. while running benchmarks.
		out = io.Discard
	}
	globalFormatter.out = out
	globalFormatter.recs = []*lineRecorder{GlobalRecorder, ErrorRecorder}
	slogDef = slog.New(&formattingHandler{opts: globalFormatter})
	slog.SetDefault(slogDef)

	// VEPOLL_TRACE=epoll,osmux:WARN raises epoll to DEBUG and osmux to WARN.
	pkgs := strings.Split(os.Getenv("VEPOLL_TRACE"), ",")
	for _, pkg := range pkgs {
		pkg = strings.TrimSpace(pkg)
		if pkg == "" {
			continue
		}
		level := slog.LevelDebug
		if cutPkg, levelStr, ok := strings.Cut(pkg, ":"); ok {
			pkg = cutPkg
			if err := level.UnmarshalText([]byte(levelStr)); err != nil {
				slog.Warn("bad log level requested in VEPOLL_TRACE", slog.String("pkg", pkg), slog.String("level", levelStr), Error(err))
				continue
			}
		}
		globalLevels.Set(pkg, level)
	}
}

// Logger returns a package-scoped logger, registering pkg's description for
// the introspection endpoint along the way.
func Logger(pkg, descr string) *slog.Logger {
	globalLevels.SetDescr(pkg, descr)
	return slogDef
}
