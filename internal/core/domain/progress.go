package domain

// ProgressStatus classifies a route progress computation.
type ProgressStatus string

const (
	StatusOnRoute           ProgressStatus = "on_route"
	StatusOffRoute          ProgressStatus = "off_route"
	StatusNoFix             ProgressStatus = "no_fix"
	StatusInsufficientStops ProgressStatus = "insufficient_stops"
)

// OffRouteLabel is shown in place of an ETA while the bus is off route.
const OffRouteLabel = "Off Route"

// ETASource names how an ETA was obtained.
type ETASource string

const (
	ETASourceConstantSpeed  ETASource = "constant_speed"
	ETASourceDistanceMatrix ETASource = "distance_matrix"
)

// ETA is the distance and time to the next stop. When Available is false
// the numeric fields are meaningless and Label may hold a display sentinel.
type ETA struct {
	Available    bool      `json:"available"`
	DistanceKm   float64   `json:"distance_km,omitempty"`
	Minutes      int       `json:"minutes,omitempty"`
	DistanceText string    `json:"distance_text,omitempty"`
	DurationText string    `json:"duration_text,omitempty"`
	Source       ETASource `json:"source,omitempty"`
	Label        string    `json:"label,omitempty"`
}

// RouteProgress is where a position sits relative to an ordered stop list.
type RouteProgress struct {
	Status              ProgressStatus `json:"status"`
	ClosestSegmentIndex int            `json:"closest_segment_index"`
	MinDistanceMeters   float64        `json:"min_distance_m"`
	ProjectedDistanceKm float64        `json:"projected_distance_km"`
	ProgressRatio       float64        `json:"progress_ratio"`
	OnRoute             bool           `json:"on_route"`
	NextStop            *Stop          `json:"next_stop,omitempty"`
	ETA                 ETA            `json:"eta"`
}

// Enrichment is a distance/duration figure from an external routing service.
type Enrichment struct {
	DistanceKm   float64 `json:"distance_km"`
	DurationMin  float64 `json:"duration_min"`
	DistanceText string  `json:"distance_text,omitempty"`
	DurationText string  `json:"duration_text,omitempty"`
}

// IsEmpty reports whether e carries no usable figure.
func (e Enrichment) IsEmpty() bool {
	return e.DistanceKm <= 0 && e.DurationMin <= 0 && e.DistanceText == "" && e.DurationText == ""
}
