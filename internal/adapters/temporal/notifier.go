// Package temporal starts arrival notification workflows.
package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/workflows"
)

// WorkflowStarter is the subset of client.Client the notifier needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Notifier implements ports.ArrivalNotifier by starting an ArrivalWorkflow
// per stop arrival.
type Notifier struct {
	starter   WorkflowStarter
	taskQueue string
}

// NewNotifier creates a Notifier on taskQueue.
func NewNotifier(starter WorkflowStarter, taskQueue string) *Notifier {
	return &Notifier{starter: starter, taskQueue: taskQueue}
}

// WorkflowID is unique per vehicle, stop and service day so that a
// redelivered arrival does not notify guardians twice.
func WorkflowID(a *domain.StopArrival) string {
	return fmt.Sprintf("arrival-%s-%s-%s", a.VehicleID, a.Stop.ID, a.Time.UTC().Format("20060102"))
}

func (n *Notifier) NotifyArrival(ctx context.Context, arrival *domain.StopArrival) error {
	id := WorkflowID(arrival)
	_, err := n.starter.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: n.taskQueue,
	}, workflows.ArrivalWorkflow, workflows.ArrivalInput{
		VehicleID: arrival.VehicleID,
		RouteID:   arrival.RouteID,
		StopID:    arrival.Stop.ID,
		StopName:  arrival.Stop.Name,
		StopIndex: arrival.StopIndex,
		ArrivedAt: arrival.Time,
	})
	if err != nil {
		return fmt.Errorf("start arrival workflow %s: %w", id, err)
	}
	slog.Debug("arrival workflow started", "workflow_id", id)
	return nil
}
