package natsadapter

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/marcosgeo/marcos/internal/core/domain"
)

func TestEventSubject(t *testing.T) {
	ev := &domain.ImportEvent{PropertyID: "fazenda.santa rita", Status: domain.ImportCompleted}
	if got := EventSubject(ev); got != "marcos.imports.events.fazenda_santa_rita.completed" {
		t.Errorf("unexpected subject %q", got)
	}
	if got := EventSubject(&domain.ImportEvent{Status: domain.ImportFailed}); got != "marcos.imports.events._.failed" {
		t.Errorf("unexpected subject %q", got)
	}
}

func TestEventFilter(t *testing.T) {
	cases := map[[2]string]string{
		{"", ""}:            "marcos.imports.events.*.*",
		{"p1", ""}:          "marcos.imports.events.p1.*",
		{"", "failed"}:      "marcos.imports.events.*.failed",
		{"a.b", "completed"}: "marcos.imports.events.a_b.completed",
	}
	for in, want := range cases {
		if got := EventFilter(in[0], in[1]); got != want {
			t.Errorf("EventFilter(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	for _, err := range []error{nats.ErrNoServers, nats.ErrTimeout, gobreaker.ErrOpenState, context.DeadlineExceeded} {
		if !domain.IsKind(wrapTemporaryIfNeeded(err), domain.ErrTemporary) {
			t.Errorf("%v should be temporary", err)
		}
	}
	plain := errors.New("bad subject")
	if got := wrapTemporaryIfNeeded(plain); got != plain {
		t.Errorf("expected error unchanged, got %v", got)
	}
	if wrapTemporaryIfNeeded(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	cb := newBreaker("test")
	fail := func() (*nats.PubAck, error) { return nil, nats.ErrNoServers }
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(fail)
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", cb.State())
	}
	_, err := cb.Execute(func() (*nats.PubAck, error) { return &nats.PubAck{}, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}
