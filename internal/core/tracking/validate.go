package tracking

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

var validate = validator.New()

// ValidateStops rejects stop lists that would corrupt the geometry: missing
// ids, out-of-range coordinates, negative or decreasing cumulative distances
// and duplicate ids. Errors wrap domain.ErrInvalidInput.
func ValidateStops(stops []domain.Stop) error {
	seen := make(map[string]int, len(stops))
	for i, s := range stops {
		if err := validate.Struct(s); err != nil {
			return fmt.Errorf("%w: stop %d: %s", domain.ErrInvalidInput, i, describe(err))
		}
		if j, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: stop %d: id %q already used by stop %d", domain.ErrInvalidInput, i, s.ID, j)
		}
		seen[s.ID] = i

		if i > 0 && s.DistanceKm < stops[i-1].DistanceKm {
			return fmt.Errorf("%w: stop %d (%s): distance %.3f km is less than previous %.3f km",
				domain.ErrInvalidInput, i, s.ID, s.DistanceKm, stops[i-1].DistanceKm)
		}
	}
	return nil
}

// ValidateFix checks a GPS fix before it reaches the estimator. The (0,0)
// sentinel is valid here; LocateOnRoute reports it as no fix.
func ValidateFix(fix domain.VehicleFix) error {
	if err := validate.Struct(fix); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, describe(err))
	}
	if fix.Time.IsZero() {
		return fmt.Errorf("%w: fix time is required", domain.ErrInvalidInput)
	}
	return nil
}

// ValidateRoute checks a route record.
func ValidateRoute(route domain.BusRoute) error {
	if err := validate.Struct(route); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s, got %v", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
}
