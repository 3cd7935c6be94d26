package domain

import (
	"time"
)

// BusRoute is a school bus route. Its ordered stops are stored separately.
type BusRoute struct {
	ID              string    `json:"id" yaml:"id" validate:"required"`
	Code            string    `json:"code" yaml:"code"`
	Name            string    `json:"name" yaml:"name" validate:"required"`
	EncodedPolyline string    `json:"encoded_polyline,omitempty" yaml:"encoded_polyline"`
	Active          bool      `json:"active" yaml:"active"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
}

// Stop is a fixed waypoint on a bus route. DistanceKm is the cumulative
// distance from the route origin and never decreases along the stop list.
type Stop struct {
	ID         string  `json:"id" yaml:"id" validate:"required"`
	Name       string  `json:"name" yaml:"name"`
	Time       string  `json:"time,omitempty" yaml:"time"`
	DistanceKm float64 `json:"distance_km" yaml:"distance_km" validate:"gte=0"`
	Lat        float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng        float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// Position returns the stop's coordinates as a Position.
func (s Stop) Position() Position {
	return Position{Lat: s.Lat, Lng: s.Lng}
}

// FixSource identifies where a GPS fix came from.
type FixSource string

const (
	FixSourceHTTP   FixSource = "http"
	FixSourceNATS   FixSource = "nats"
	FixSourceKafka  FixSource = "kafka"
	FixSourceGTFSRT FixSource = "gtfsrt"
	FixSourceReplay FixSource = "replay"
)

// VehicleFix is a single GPS reading reported for a bus.
type VehicleFix struct {
	VehicleID string    `json:"vehicle_id" validate:"required"`
	RouteID   string    `json:"route_id,omitempty"`
	Position  Position  `json:"position"`
	Time      time.Time `json:"time"`
	Speed     float64   `json:"speed,omitempty" validate:"gte=0"` // m/s
	Bearing   float64   `json:"bearing,omitempty" validate:"gte=0,lte=360"`
	Source    FixSource `json:"source,omitempty"`
}

// VehiclePosition is a stored position history row.
type VehiclePosition struct {
	Time          time.Time `json:"time"`
	VehicleID     string    `json:"vehicle_id"`
	RouteID       string    `json:"route_id,omitempty"`
	Position      Position  `json:"position"`
	Speed         float64   `json:"speed"`
	Bearing       float64   `json:"bearing"`
	ProgressRatio float64   `json:"progress_ratio"`
	OnRoute       bool      `json:"on_route"`
	NextStopID    string    `json:"next_stop_id,omitempty"`
	Source        FixSource `json:"source,omitempty"`
}

// TrackingSession is the per-vehicle state that survives between fixes.
// NextStopIndex only ever moves forward until the session is reset.
type TrackingSession struct {
	VehicleID     string    `json:"vehicle_id"`
	RouteID       string    `json:"route_id"`
	NextStopIndex int       `json:"next_stop_index"`
	// Seeded is set once the first on-route fix has placed the pointer.
	Seeded        bool      `json:"seeded"`
	LastFixAt     time.Time `json:"last_fix_at"`
	StartedAt     time.Time `json:"started_at"`
}

// TrackingSnapshot is the latest computed state for a vehicle.
type TrackingSnapshot struct {
	VehicleID     string        `json:"vehicle_id"`
	RouteID       string        `json:"route_id"`
	FixTime       time.Time     `json:"fix_time"`
	Position      Position      `json:"position"`
	Progress      RouteProgress `json:"progress"`
	NextStopIndex int           `json:"next_stop_index"`
	Arrived       *Stop         `json:"arrived,omitempty"`
	TripComplete  bool          `json:"trip_complete"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// StopArrival is emitted when a vehicle reaches the stop its session was heading to.
type StopArrival struct {
	VehicleID string    `json:"vehicle_id"`
	RouteID   string    `json:"route_id"`
	Stop      Stop      `json:"stop"`
	StopIndex int       `json:"stop_index"`
	Time      time.Time `json:"time"`
}

// Guardian is a parent or staff member subscribed to arrivals at a stop.
type Guardian struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PushTopic string `json:"push_topic"`
	RouteID   string `json:"route_id"`
	StopID    string `json:"stop_id"`
}
