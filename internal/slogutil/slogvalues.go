package slogutil

import (
	"log/slog"
	"slices"
)

func Error(err any) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Handle logs a descriptor or epoll handle as an unsigned integer so it
// reads the same whether it came from the virtual or the OS side.
func Handle(name string, h uint64) slog.Attr {
	return slog.Uint64(name, h)
}

func Map[T any](m map[string]T) []any {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	var attrs []any
	for _, key := range keys {
		attrs = append(attrs, slog.Any(key, m[key]))
	}
	return attrs
}
