package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// Subject roots. Progress and arrival subjects carry route and vehicle tokens
// so that consumers can filter per route.
const (
	FixSubjects      = "bustrack.fix.>"
	ProgressSubjects = "bustrack.progress.>"
	ArrivalSubjects  = "bustrack.arrival.>"
)

var tokenReplacer = strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")

// subjectToken makes an id safe to use as a single subject token.
func subjectToken(s string) string {
	s = tokenReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		s = "_"
	}
	return s
}

// FixSubject is the subject a vehicle's raw fixes are published on.
func FixSubject(vehicleID string) string {
	return "bustrack.fix." + subjectToken(vehicleID)
}

// ProgressSubject is the subject progress snapshots are published on.
func ProgressSubject(routeID, vehicleID string) string {
	return "bustrack.progress." + subjectToken(routeID) + "." + subjectToken(vehicleID)
}

// ArrivalSubject is the subject stop arrivals are published on.
func ArrivalSubject(routeID, vehicleID string) string {
	return "bustrack.arrival." + subjectToken(routeID) + "." + subjectToken(vehicleID)
}

// RouteProgressSubjects matches the progress of every vehicle on a route.
func RouteProgressSubjects(routeID string) string {
	return "bustrack.progress." + subjectToken(routeID) + ".>"
}

// RouteArrivalSubjects matches the arrivals of every vehicle on a route.
func RouteArrivalSubjects(routeID string) string {
	return "bustrack.arrival." + subjectToken(routeID) + ".>"
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "VEHICLE_FIXES",
			Subjects:  []string{FixSubjects},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "TRACKING_PROGRESS",
			Subjects:  []string{ProgressSubjects},
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.MemoryStorage,
		},
		{
			Name:      "STOP_ARRIVALS",
			Subjects:  []string{ArrivalSubjects},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishFix(ctx context.Context, fix *domain.VehicleFix) error {
	data, err := json.Marshal(fix)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(FixSubject(fix.VehicleID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishProgress(ctx context.Context, snap *domain.TrackingSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ProgressSubject(snap.RouteID, snap.VehicleID), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishArrival(ctx context.Context, arrival *domain.StopArrival) error {
	data, err := json.Marshal(arrival)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ArrivalSubject(arrival.RouteID, arrival.VehicleID), data, nats.Context(ctx))
	return err
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats: %s", p.conn.Status())
	}
	return nil
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
