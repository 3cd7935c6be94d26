package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/core/ports"
)

// ArrivalActivities holds the activity implementations for the arrival workflow.
type ArrivalActivities struct {
	Guardians ports.GuardianRepository
	Notifier  ports.NotificationService
}

// ListGuardians returns the guardians subscribed to a stop on a route.
func (a *ArrivalActivities) ListGuardians(ctx context.Context, routeID, stopID string) ([]domain.Guardian, error) {
	guardians, err := a.Guardians.ListByStop(ctx, routeID, stopID)
	if err != nil {
		return nil, fmt.Errorf("list guardians for %s/%s: %w", routeID, stopID, err)
	}
	return guardians, nil
}

// SendArrivalPush notifies one guardian that the bus reached their stop.
func (a *ArrivalActivities) SendArrivalPush(ctx context.Context, g domain.Guardian, input ArrivalInput) error {
	if g.PushTopic == "" {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("guardian %s has no push topic", g.ID), "MissingPushTopic", nil)
	}

	title, body := arrivalMessage(input)
	if a.Notifier == nil {
		slog.Info("push (no notifier)", "topic", g.PushTopic, "title", title)
		return nil
	}
	return a.Notifier.SendPush(ctx, g.PushTopic, title, body)
}

func arrivalMessage(input ArrivalInput) (string, string) {
	stop := input.StopName
	if stop == "" {
		stop = input.StopID
	}
	title := fmt.Sprintf("Bus reached %s", stop)
	body := fmt.Sprintf("Bus %s arrived at %s at %s.",
		input.VehicleID, stop, input.ArrivedAt.Format("15:04"))
	return title, body
}
