package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/marcosgeo/marcos/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeImportRequests delivers queued jobs to handler. Failed jobs are
// redelivered up to three times; undecodable messages are terminated.
func (s *Subscriber) SubscribeImportRequests(ctx context.Context, handler func(ctx context.Context, job *domain.ImportJob) error) error {
	sub, err := s.js.QueueSubscribe(SubjectImportRequested, "import-workers", func(msg *nats.Msg) {
		var job domain.ImportJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			slog.Warn("drop malformed import request", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &job); err != nil {
			if domain.IsKind(err, domain.ErrUnprocessable) || domain.IsKind(err, domain.ErrInvalidInput) {
				// bad input, no retry
				_ = msg.Term()
				return
			}
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("import-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.AckWait(2*time.Minute),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
