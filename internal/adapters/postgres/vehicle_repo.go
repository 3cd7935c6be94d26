package postgres

import (
	"context"
	"database/sql"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// VehiclePositionRepo implements ports.VehiclePositionRepository.
type VehiclePositionRepo struct {
	db *DB
}

func NewVehiclePositionRepo(db *DB) *VehiclePositionRepo {
	return &VehiclePositionRepo{db: db}
}

func (r *VehiclePositionRepo) Insert(ctx context.Context, vp *domain.VehiclePosition) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO vehicle_positions (time, vehicle_id, route_id, lat, lng, bearing, speed,
		                               progress_ratio, on_route, next_stop_id, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, vp.Time, vp.VehicleID, nilIfEmpty(vp.RouteID), vp.Position.Lat, vp.Position.Lng,
		vp.Bearing, vp.Speed, vp.ProgressRatio, vp.OnRoute, nilIfEmpty(vp.NextStopID), string(vp.Source))
	return err
}

func (r *VehiclePositionRepo) LatestByRoute(ctx context.Context, routeID string) ([]domain.VehiclePosition, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT ON (vehicle_id)
			time, vehicle_id, route_id, lat, lng, bearing, speed,
			progress_ratio, on_route, next_stop_id, source
		FROM vehicle_positions
		WHERE route_id = $1 AND time > now() - interval '1 hour'
		ORDER BY vehicle_id, time DESC
	`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.VehiclePosition
	for rows.Next() {
		var vp domain.VehiclePosition
		var routeIDVal, nextStop sql.NullString
		var source string
		if err := rows.Scan(
			&vp.Time, &vp.VehicleID, &routeIDVal, &vp.Position.Lat, &vp.Position.Lng,
			&vp.Bearing, &vp.Speed, &vp.ProgressRatio, &vp.OnRoute, &nextStop, &source,
		); err != nil {
			return nil, err
		}
		vp.RouteID = routeIDVal.String
		vp.NextStopID = nextStop.String
		vp.Source = domain.FixSource(source)
		positions = append(positions, vp)
	}
	return positions, rows.Err()
}
