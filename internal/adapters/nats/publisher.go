package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/marcosgeo/marcos/internal/core/domain"
)

// Subjects used for import traffic.
const (
	SubjectImportRequested = "marcos.imports.requested"
	SubjectImportEvents    = "marcos.imports.events.>"
	subjectEventPrefix     = "marcos.imports.events."
)

// Publisher implements ports.EventPublisher using NATS JetStream. Publishes
// go through a circuit breaker so a dead broker fails fast.
type Publisher struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	breaker *gobreaker.CircuitBreaker[*nats.PubAck]
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, js: js, breaker: newBreaker("nats-publish")}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      "IMPORT_REQUESTS",
			Subjects:  []string{SubjectImportRequested},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "IMPORT_EVENTS",
			Subjects:  []string{SubjectImportEvents},
			Retention: nats.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker[*nats.PubAck] {
	return gobreaker.NewCircuitBreaker[*nats.PubAck](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
}

func (p *Publisher) PublishImportRequested(ctx context.Context, job *domain.ImportJob) error {
	return p.publishJSON(ctx, SubjectImportRequested, job.ID, job)
}

func (p *Publisher) PublishImportCompleted(ctx context.Context, event *domain.ImportEvent) error {
	return p.publishJSON(ctx, EventSubject(event), event.JobID+"."+string(event.Status), event)
}

func (p *Publisher) PublishImportFailed(ctx context.Context, event *domain.ImportEvent) error {
	return p.publishJSON(ctx, EventSubject(event), event.JobID+"."+string(event.Status), event)
}

// EventSubject is the per-property subject of an import event, e.g.
// marcos.imports.events.<property>.completed.
func EventSubject(event *domain.ImportEvent) string {
	return subjectEventPrefix + sanitizeToken(event.PropertyID) + "." + string(event.Status)
}

// EventFilter is a subscription subject for import events of one property
// and status. Empty arguments match any value.
func EventFilter(propertyID, status string) string {
	prop, st := "*", "*"
	if propertyID != "" {
		prop = sanitizeToken(propertyID)
	}
	if status != "" {
		st = sanitizeToken(status)
	}
	return subjectEventPrefix + prop + "." + st
}

func (p *Publisher) publishJSON(ctx context.Context, subject, msgID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.breaker.Execute(func() (*nats.PubAck, error) {
		return p.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(msgID))
	})
	return wrapTemporaryIfNeeded(err)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// sanitizeToken keeps a value usable as a single subject token.
func sanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	b := []byte(s)
	for i, c := range b {
		switch c {
		case '.', '*', '>', ' ', '\t':
			b[i] = '_'
		}
	}
	return string(b)
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, nats.ErrNoServers) || errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
