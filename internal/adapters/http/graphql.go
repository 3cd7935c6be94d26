package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/bustrack/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services. Field names
// follow the JSON tags of the domain types, which graphql-go resolves by default.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	positionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Position",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BusRoute",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"code":             &graphql.Field{Type: graphql.String},
			"name":             &graphql.Field{Type: graphql.String},
			"encoded_polyline": &graphql.Field{Type: graphql.String},
			"active":           &graphql.Field{Type: graphql.Boolean},
		},
	})

	stopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Stop",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"time":        &graphql.Field{Type: graphql.String},
			"distance_km": &graphql.Field{Type: graphql.Float},
			"lat":         &graphql.Field{Type: graphql.Float},
			"lng":         &graphql.Field{Type: graphql.Float},
		},
	})

	pathType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RoutePath",
		Fields: graphql.Fields{
			"route_id":    &graphql.Field{Type: graphql.String},
			"encoded":     &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: graphql.NewList(positionType)},
			"source":      &graphql.Field{Type: graphql.String},
			"partial":     &graphql.Field{Type: graphql.Boolean},
		},
	})

	etaType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ETA",
		Fields: graphql.Fields{
			"available":     &graphql.Field{Type: graphql.Boolean},
			"distance_km":   &graphql.Field{Type: graphql.Float},
			"minutes":       &graphql.Field{Type: graphql.Int},
			"distance_text": &graphql.Field{Type: graphql.String},
			"duration_text": &graphql.Field{Type: graphql.String},
			"source":        &graphql.Field{Type: graphql.String},
			"label":         &graphql.Field{Type: graphql.String},
		},
	})

	progressType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteProgress",
		Fields: graphql.Fields{
			"status":                &graphql.Field{Type: graphql.String},
			"closest_segment_index": &graphql.Field{Type: graphql.Int},
			"min_distance_m":        &graphql.Field{Type: graphql.Float},
			"projected_distance_km": &graphql.Field{Type: graphql.Float},
			"progress_ratio":        &graphql.Field{Type: graphql.Float},
			"on_route":              &graphql.Field{Type: graphql.Boolean},
			"next_stop":             &graphql.Field{Type: stopType},
			"eta":                   &graphql.Field{Type: etaType},
		},
	})

	snapshotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TrackingSnapshot",
		Fields: graphql.Fields{
			"vehicle_id":      &graphql.Field{Type: graphql.String},
			"route_id":        &graphql.Field{Type: graphql.String},
			"fix_time":        &graphql.Field{Type: graphql.DateTime},
			"position":        &graphql.Field{Type: positionType},
			"progress":        &graphql.Field{Type: progressType},
			"next_stop_index": &graphql.Field{Type: graphql.Int},
			"trip_complete":   &graphql.Field{Type: graphql.Boolean},
			"updated_at":      &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"routes": &graphql.Field{
				Type:        graphql.NewList(routeType),
				Description: "List bus routes",
				Args: graphql.FieldConfigArgument{
					"active": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					active, _ := p.Args["active"].(bool)
					return deps.Routes.List(p.Context, active)
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "Get a route by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routes.GetByID(p.Context, p.Args["id"].(string))
				},
			},
			"routeStops": &graphql.Field{
				Type:        graphql.NewList(stopType),
				Description: "Ordered stops of a route",
				Args: graphql.FieldConfigArgument{
					"route_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routes.ListStops(p.Context, p.Args["route_id"].(string))
				},
			},
			"routePath": &graphql.Field{
				Type:        pathType,
				Description: "Drawable path of a route",
				Args: graphql.FieldConfigArgument{
					"route_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Routes.GetPath(p.Context, p.Args["route_id"].(string))
				},
			},
			"vehicleProgress": &graphql.Field{
				Type:        snapshotType,
				Description: "Latest tracking snapshot of a vehicle",
				Args: graphql.FieldConfigArgument{
					"vehicle_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Tracking == nil {
						return nil, errors.New("tracking is not enabled")
					}
					return deps.Tracking.Snapshot(p.Context, p.Args["vehicle_id"].(string))
				},
			},
			"decodePolyline": &graphql.Field{
				Type:        graphql.NewList(positionType),
				Description: "Decode a Google encoded polyline",
				Args: graphql.FieldConfigArgument{
					"polyline": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return geospatial.DecodePolyline(p.Args["polyline"].(string))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
