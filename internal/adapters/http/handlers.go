package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/pkg/geospatial"
)

// ListRoutesHandler lists bus routes. ?active=true keeps only active routes.
func ListRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routes, err := deps.Routes.List(c.UserContext(), c.QueryBool("active", false))
		if err != nil {
			return errFromService(c, err)
		}

		offset, limit := pageParams(c)
		page, pg := paginate(routes, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetRouteHandler returns a route by ID.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		route, err := deps.Routes.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(route)
	}
}

// RouteStopsHandler returns the ordered stops of a route.
func RouteStopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stops, err := deps.Routes.ListStops(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(stops)
	}
}

// RoutePathHandler returns the encoded and decoded path of a route.
func RoutePathHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path, err := deps.Routes.GetPath(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		if path.Partial {
			c.Set(fiber.HeaderCacheControl, "no-store")
		}
		return c.JSON(path)
	}
}

// GetRouteVehiclesHandler returns live vehicle positions for a route.
func GetRouteVehiclesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vehicles, err := deps.Routes.GetLiveVehicles(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		if vehicles == nil {
			vehicles = []domain.VehiclePosition{}
		}
		return c.JSON(vehicles)
	}
}

// fixRequest is the body of POST /v1/vehicles/:id/fixes. Speed is m/s.
// A missing time means now; lat and lng of 0 report "no fix yet".
type fixRequest struct {
	RouteID string     `json:"route_id"`
	Lat     float64    `json:"lat"`
	Lng     float64    `json:"lng"`
	Time    *time.Time `json:"time"`
	Speed   float64    `json:"speed"`
	Bearing float64    `json:"bearing"`
}

// SubmitFixHandler feeds one GPS fix through the tracker and returns the
// resulting snapshot.
func SubmitFixHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Tracking == nil {
			return newError(c, fiber.StatusServiceUnavailable, "unavailable", "tracking is not enabled")
		}

		tagVehicle(c)

		var req fixRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		fix := domain.VehicleFix{
			VehicleID: c.Params("id"),
			RouteID:   req.RouteID,
			Position:  domain.Position{Lat: req.Lat, Lng: req.Lng},
			Time:      time.Now().UTC(),
			Speed:     req.Speed,
			Bearing:   req.Bearing,
			Source:    domain.FixSourceHTTP,
		}
		if req.Time != nil {
			fix.Time = req.Time.UTC()
		}

		snap, err := deps.Tracking.ProcessFix(c.UserContext(), fix)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(snap)
	}
}

// VehicleProgressHandler returns the latest snapshot of a vehicle.
func VehicleProgressHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Tracking == nil {
			return newError(c, fiber.StatusServiceUnavailable, "unavailable", "tracking is not enabled")
		}
		snap, err := deps.Tracking.Snapshot(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(snap)
	}
}

// StartSessionHandler starts a new trip for a vehicle.
func StartSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Tracking == nil {
			return newError(c, fiber.StatusServiceUnavailable, "unavailable", "tracking is not enabled")
		}

		var req struct {
			RouteID string `json:"route_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.RouteID == "" {
			return errBadRequest(c, "route_id is required")
		}

		tagVehicle(c)
		sess, err := deps.Tracking.StartSession(c.UserContext(), c.Params("id"), req.RouteID)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(sess)
	}
}

// decodeResponse is returned by POST /v1/polyline/decode. A malformed
// polyline yields the points decoded before the fault with partial set.
type decodeResponse struct {
	Coordinates []domain.Coordinate `json:"coordinates"`
	Partial     bool                `json:"partial"`
	Error       string              `json:"error,omitempty"`
}

// DecodePolylineHandler decodes a Google encoded polyline.
func DecodePolylineHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Polyline string `json:"polyline"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		coords, err := geospatial.DecodePolyline(req.Polyline)
		resp := decodeResponse{Coordinates: coords}
		if resp.Coordinates == nil {
			resp.Coordinates = []domain.Coordinate{}
		}
		if err != nil {
			if !errors.Is(err, geospatial.ErrMalformedPolyline) {
				return errFromService(c, err)
			}
			resp.Partial = true
			resp.Error = err.Error()
		}
		return c.JSON(resp)
	}
}
