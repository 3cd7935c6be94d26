package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// RouteRepo implements ports.BusRouteRepository.
type RouteRepo struct {
	db *DB
}

func NewRouteRepo(db *DB) *RouteRepo { return &RouteRepo{db: db} }

func (r *RouteRepo) Upsert(ctx context.Context, route *domain.BusRoute) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO bus_routes (id, code, name, encoded_polyline, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET code = EXCLUDED.code, name = EXCLUDED.name,
		    encoded_polyline = COALESCE(EXCLUDED.encoded_polyline, bus_routes.encoded_polyline),
		    active = EXCLUDED.active
	`, route.ID, route.Code, route.Name, nilIfEmpty(route.EncodedPolyline), route.Active)
	return err
}

func (r *RouteRepo) GetByID(ctx context.Context, id string) (*domain.BusRoute, error) {
	var rt domain.BusRoute
	var polyline sql.NullString
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, code, name, encoded_polyline, active, created_at
		FROM bus_routes WHERE id = $1
	`, id).Scan(&rt.ID, &rt.Code, &rt.Name, &polyline, &rt.Active, &rt.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	rt.EncodedPolyline = polyline.String
	return &rt, nil
}

func (r *RouteRepo) List(ctx context.Context, activeOnly bool) ([]domain.BusRoute, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, code, name, encoded_polyline, active, created_at
		FROM bus_routes
		WHERE NOT $1 OR active
		ORDER BY code, name
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []domain.BusRoute
	for rows.Next() {
		var rt domain.BusRoute
		var polyline sql.NullString
		if err := rows.Scan(&rt.ID, &rt.Code, &rt.Name, &polyline, &rt.Active, &rt.CreatedAt); err != nil {
			return nil, err
		}
		rt.EncodedPolyline = polyline.String
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

// ReplaceStops deletes the route's stops and inserts stops in one transaction.
func (r *RouteRepo) ReplaceStops(ctx context.Context, routeID string, stops []domain.Stop) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM route_stops WHERE route_id = $1`, routeID); err != nil {
		return fmt.Errorf("delete stops: %w", err)
	}

	batch := &pgx.Batch{}
	for i, st := range stops {
		batch.Queue(`
			INSERT INTO route_stops (route_id, seq, stop_id, name, time_label, distance_km, lat, lng)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, routeID, i, st.ID, st.Name, nilIfEmpty(st.Time), st.DistanceKm, st.Lat, st.Lng)
	}
	br := tx.SendBatch(ctx, batch)
	for range stops {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("batch close: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *RouteRepo) ListStops(ctx context.Context, routeID string) ([]domain.Stop, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT stop_id, name, time_label, distance_km, lat, lng
		FROM route_stops
		WHERE route_id = $1
		ORDER BY seq
	`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []domain.Stop
	for rows.Next() {
		var st domain.Stop
		var timeLabel sql.NullString
		if err := rows.Scan(&st.ID, &st.Name, &timeLabel, &st.DistanceKm, &st.Lat, &st.Lng); err != nil {
			return nil, err
		}
		st.Time = timeLabel.String
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

func (r *RouteRepo) UpdatePolyline(ctx context.Context, routeID, encoded string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE bus_routes SET encoded_polyline = $2 WHERE id = $1`, routeID, nilIfEmpty(encoded))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
