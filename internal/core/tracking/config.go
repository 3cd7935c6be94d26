// Package tracking projects live bus positions onto the ordered stops of a
// route. Everything here is pure computation; callers own the session state
// and any I/O.
package tracking

const (
	DefaultOnRouteThresholdMeters = 1000.0
	DefaultAdvanceThresholdKm     = 0.15
	DefaultAssumedSpeedKmph       = 35.0
)

// Config holds the tunable estimator constants. Zero fields fall back to the defaults.
type Config struct {
	OnRouteThresholdMeters float64
	AdvanceThresholdKm     float64
	AssumedSpeedKmph       float64
}

// DefaultConfig returns the stock estimator constants.
func DefaultConfig() Config {
	return Config{
		OnRouteThresholdMeters: DefaultOnRouteThresholdMeters,
		AdvanceThresholdKm:     DefaultAdvanceThresholdKm,
		AssumedSpeedKmph:       DefaultAssumedSpeedKmph,
	}
}

func (c Config) withDefaults() Config {
	if c.OnRouteThresholdMeters <= 0 {
		c.OnRouteThresholdMeters = DefaultOnRouteThresholdMeters
	}
	if c.AdvanceThresholdKm <= 0 {
		c.AdvanceThresholdKm = DefaultAdvanceThresholdKm
	}
	if c.AssumedSpeedKmph <= 0 {
		c.AssumedSpeedKmph = DefaultAssumedSpeedKmph
	}
	return c
}
