// Package routefile reads route and GPS track files written in YAML.
//
// A route file holds one route and its ordered stops:
//
//	route:
//	  id: north-loop
//	  code: N1
//	  name: North loop
//	  active: true
//	stops:
//	  - {id: depot, name: Depot, time: "07:10", distance_km: 0, lat: 43.26, lng: -2.93}
//
// A track file holds a sequence of fixes for one vehicle, used by the replay tool.
package routefile

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

var validate = validator.New()

// RouteFile is a route and its ordered stops.
type RouteFile struct {
	Route domain.BusRoute `yaml:"route"`
	Stops []domain.Stop   `yaml:"stops" validate:"min=2,dive"`
}

// TrackPoint is one recorded fix.
type TrackPoint struct {
	Time  time.Time `yaml:"time" validate:"required"`
	Lat   float64   `yaml:"lat" validate:"gte=-90,lte=90"`
	Lng   float64   `yaml:"lng" validate:"gte=-180,lte=180"`
	Speed float64   `yaml:"speed" validate:"gte=0"`
}

// TrackFile is a recorded trip of one vehicle.
type TrackFile struct {
	VehicleID string       `yaml:"vehicle_id" validate:"required"`
	RouteID   string       `yaml:"route_id"`
	Points    []TrackPoint `yaml:"points" validate:"min=1,dive"`
}

// Fixes converts the track into fixes tagged with the replay source.
func (t *TrackFile) Fixes() []domain.VehicleFix {
	fixes := make([]domain.VehicleFix, 0, len(t.Points))
	for _, p := range t.Points {
		fixes = append(fixes, domain.VehicleFix{
			VehicleID: t.VehicleID,
			RouteID:   t.RouteID,
			Position:  domain.Position{Lat: p.Lat, Lng: p.Lng},
			Time:      p.Time,
			Speed:     p.Speed,
			Source:    domain.FixSourceReplay,
		})
	}
	return fixes
}

// LoadRoute reads and validates a route file.
func LoadRoute(path string) (*RouteFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeRoute(f)
}

// DecodeRoute decodes a route file from r. Unknown fields are rejected.
func DecodeRoute(r io.Reader) (*RouteFile, error) {
	var rf RouteFile
	if err := decodeStrict(r, &rf); err != nil {
		return nil, err
	}
	if err := validate.Struct(rf); err != nil {
		return nil, fmt.Errorf("%w: route file: %v", domain.ErrInvalidInput, err)
	}
	return &rf, nil
}

// LoadTrack reads and validates a track file.
func LoadTrack(path string) (*TrackFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeTrack(f)
}

// DecodeTrack decodes a track file from r. Unknown fields are rejected.
func DecodeTrack(r io.Reader) (*TrackFile, error) {
	var tf TrackFile
	if err := decodeStrict(r, &tf); err != nil {
		return nil, err
	}
	if err := validate.Struct(tf); err != nil {
		return nil, fmt.Errorf("%w: track file: %v", domain.ErrInvalidInput, err)
	}
	return &tf, nil
}

func decodeStrict(r io.Reader, out interface{}) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: yaml: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
