package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/pkg/metrics"
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
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeFixes consumes raw fixes from the VEHICLE_FIXES stream. Messages
// that cannot be decoded are terminated; handler errors are redelivered up
// to three times.
func (s *Subscriber) SubscribeFixes(ctx context.Context, handler func(ctx context.Context, fix *domain.VehicleFix) error) error {
	sub, err := s.js.Subscribe(FixSubjects, func(msg *nats.Msg) {
		var fix domain.VehicleFix
		if err := json.Unmarshal(msg.Data, &fix); err != nil {
			metrics.DeviceMessagesDropped.WithLabelValues("nats").Inc()
			slog.Warn("dropping undecodable fix", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if fix.Source == "" {
			fix.Source = domain.FixSourceNATS
		}
		if err := handler(ctx, &fix); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("fix-tracker"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
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
