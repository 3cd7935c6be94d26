// Package kafka consumes on-board device GPS messages.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/pkg/metrics"
)

// deviceMessage is the payload written by the bus trackers. Every field is
// sent as a string; ts is milliseconds since the Unix epoch and speed is km/h.
type deviceMessage struct {
	Latitude  string `json:"lat"`
	Longitude string `json:"lon"`
	Timestamp string `json:"ts"`
	DeviceID  string `json:"dev_id"`
	VehicleID string `json:"veh_id"`
	RouteID   string `json:"route_id"`
	Speed     string `json:"speed"`
	Bearing   string `json:"bearing"`
}

// Config configures a Consumer.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads device messages from a Kafka topic.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a consumer group reader for cfg.Topic.
func NewConsumer(cfg Config) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
		ClientID:  "bustrack-tracker",
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    kafka.LastOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        1 * time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: 1 * time.Second,
		Dialer:         dialer,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Debug(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			slog.Warn(fmt.Sprintf(msg, args...), "component", "kafka")
		}),
		CommitInterval: time.Second,
	})

	return &Consumer{reader: reader, topic: cfg.Topic}, nil
}

// Run reads messages until ctx is cancelled and hands every decodable fix to
// handler. Undecodable messages are counted and skipped; handler errors are
// logged and the offset still advances.
func (c *Consumer) Run(ctx context.Context, handler func(ctx context.Context, fix *domain.VehicleFix) error) error {
	slog.Info("kafka consumer started", "topic", c.topic)

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka read: %w", err)
		}

		fix, err := parseDeviceMessage(msg.Value)
		if err != nil {
			metrics.DeviceMessagesDropped.WithLabelValues("kafka").Inc()
			slog.Warn("dropping device message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		if err := handler(ctx, fix); err != nil {
			slog.Warn("device fix not processed", "vehicle_id", fix.VehicleID, "error", err)
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func parseDeviceMessage(data []byte) (*domain.VehicleFix, error) {
	var raw deviceMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	vehicleID := strings.TrimSpace(raw.VehicleID)
	if vehicleID == "" {
		vehicleID = strings.TrimSpace(raw.DeviceID)
	}
	if vehicleID == "" {
		return nil, errors.New("missing veh_id and dev_id")
	}

	lat, err := strconv.ParseFloat(raw.Latitude, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lat %q: %w", raw.Latitude, err)
	}
	lng, err := strconv.ParseFloat(raw.Longitude, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lon %q: %w", raw.Longitude, err)
	}
	ts, err := strconv.ParseInt(raw.Timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ts %q: %w", raw.Timestamp, err)
	}

	fix := &domain.VehicleFix{
		VehicleID: vehicleID,
		RouteID:   strings.TrimSpace(raw.RouteID),
		Position:  domain.Position{Lat: lat, Lng: lng},
		Time:      time.UnixMilli(ts).UTC(),
		Source:    domain.FixSourceKafka,
	}
	if raw.Speed != "" {
		kmph, err := strconv.ParseFloat(raw.Speed, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid speed %q: %w", raw.Speed, err)
		}
		fix.Speed = kmph / 3.6
	}
	if raw.Bearing != "" {
		bearing, err := strconv.ParseFloat(raw.Bearing, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bearing %q: %w", raw.Bearing, err)
		}
		fix.Bearing = bearing
	}
	return fix, nil
}
