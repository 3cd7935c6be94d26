package postgres

import (
	"context"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// GuardianRepo implements ports.GuardianRepository.
type GuardianRepo struct {
	db *DB
}

func NewGuardianRepo(db *DB) *GuardianRepo { return &GuardianRepo{db: db} }

// ListByStop returns guardians subscribed to a stop of a route. Guardians
// subscribed to the whole route (empty stop) are included.
func (r *GuardianRepo) ListByStop(ctx context.Context, routeID, stopID string) ([]domain.Guardian, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT g.id, g.name, g.push_topic, s.route_id, COALESCE(s.stop_id, '')
		FROM guardians g
		JOIN guardian_subscriptions s ON s.guardian_id = g.id
		WHERE s.route_id = $1 AND (s.stop_id = $2 OR s.stop_id IS NULL)
		ORDER BY g.name
	`, routeID, stopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guardians []domain.Guardian
	for rows.Next() {
		var g domain.Guardian
		if err := rows.Scan(&g.ID, &g.Name, &g.PushTopic, &g.RouteID, &g.StopID); err != nil {
			return nil, err
		}
		guardians = append(guardians, g)
	}
	return guardians, rows.Err()
}
