package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// ArrivalInput is the input for the arrival notification workflow.
type ArrivalInput struct {
	VehicleID string
	RouteID   string
	StopID    string
	StopName  string
	StopIndex int
	ArrivedAt time.Time
}

// ArrivalWorkflow looks up the guardians subscribed to a stop and pushes an
// arrival notice to each of them. A failed push does not stop the others;
// the workflow returns the number of notices sent.
func ArrivalWorkflow(ctx workflow.Context, input ArrivalInput) (int, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting arrival workflow", "vehicleID", input.VehicleID, "stopID", input.StopID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var guardians []domain.Guardian
	err := workflow.ExecuteActivity(ctx, "ListGuardians", input.RouteID, input.StopID).Get(ctx, &guardians)
	if err != nil {
		return 0, err
	}
	if len(guardians) == 0 {
		logger.Info("No guardians subscribed", "stopID", input.StopID)
		return 0, nil
	}

	futures := make([]workflow.Future, len(guardians))
	for i, g := range guardians {
		futures[i] = workflow.ExecuteActivity(ctx, "SendArrivalPush", g, input)
	}

	sent := 0
	for i, f := range futures {
		if err := f.Get(ctx, nil); err != nil {
			logger.Warn("arrival push failed", "guardianID", guardians[i].ID, "error", err)
			continue
		}
		sent++
	}

	logger.Info("Arrival notices sent", "sent", sent, "guardians", len(guardians))
	return sent, nil
}
