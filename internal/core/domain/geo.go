package domain

// Position is a vehicle location (WGS 84). The zero value means no live fix yet.
type Position struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" yaml:"lng" validate:"gte=-180,lte=180"`
}

// IsZero reports whether p is the (0,0) "no fix" sentinel.
func (p Position) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Coordinate is a point of a decoded route path.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RoutePath is the drawable path of a route.
type RoutePath struct {
	RouteID     string       `json:"route_id"`
	Encoded     string       `json:"encoded"`
	Coordinates []Coordinate `json:"coordinates"`
	Source      string       `json:"source"` // stored, directions or stops
	Partial     bool         `json:"partial,omitempty"`
}
