package schedule

import (
	"context"
	"strings"
	"testing"
)

func TestServiceStopTwicePanics(t *testing.T) {
	name := "foo"
	s := AsService(func(ctx context.Context) {
		<-ctx.Done()
	}, name)

	go s.Serve(context.Background())
	s.Stop()

	defer func() {
		r := recover()
		if r == nil || !strings.Contains(r.(string), name) {
			t.Fatalf(`expected panic containing %q, got %v`, name, r)
		}
	}()
	s.Stop()
}

func TestServiceRuns(t *testing.T) {
	ran := make(chan struct{})
	s := AsService(func(ctx context.Context) {
		close(ran)
		<-ctx.Done()
	}, "runner")

	go s.Serve(context.Background())
	<-ran
	s.Stop()
}
