package workflows_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/workflows"
)

type stubGuardians struct {
	guardians []domain.Guardian
	err       error
}

func (s *stubGuardians) ListByStop(ctx context.Context, routeID, stopID string) ([]domain.Guardian, error) {
	return s.guardians, s.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	topics []string
	titles []string
}

func (n *recordingNotifier) SendPush(ctx context.Context, topic, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
	n.titles = append(n.titles, title)
	return nil
}

func arrivalInput() workflows.ArrivalInput {
	return workflows.ArrivalInput{
		VehicleID: "bus-7",
		RouteID:   "r1",
		StopID:    "s1",
		StopName:  "Market",
		StopIndex: 1,
		ArrivedAt: time.Date(2026, 9, 1, 7, 42, 0, 0, time.UTC),
	}
}

func TestArrivalWorkflow_NotifiesGuardians(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	notifier := &recordingNotifier{}
	env.RegisterActivity(&workflows.ArrivalActivities{
		Guardians: &stubGuardians{guardians: []domain.Guardian{
			{ID: "g1", PushTopic: "family-one"},
			{ID: "g2", PushTopic: "family-two"},
		}},
		Notifier: notifier,
	})

	env.ExecuteWorkflow(workflows.ArrivalWorkflow, arrivalInput())

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sent int
	if err := env.GetWorkflowResult(&sent); err != nil {
		t.Fatalf("result: %v", err)
	}
	if sent != 2 {
		t.Errorf("expected 2 notices, got %d", sent)
	}
	if len(notifier.titles) != 2 || notifier.titles[0] != "Bus reached Market" {
		t.Errorf("unexpected titles %v", notifier.titles)
	}
}

func TestArrivalWorkflow_SkipsGuardianWithoutTopic(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	notifier := &recordingNotifier{}
	env.RegisterActivity(&workflows.ArrivalActivities{
		Guardians: &stubGuardians{guardians: []domain.Guardian{
			{ID: "g1"},
			{ID: "g2", PushTopic: "family-two"},
		}},
		Notifier: notifier,
	})

	env.ExecuteWorkflow(workflows.ArrivalWorkflow, arrivalInput())

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sent int
	_ = env.GetWorkflowResult(&sent)
	if sent != 1 {
		t.Errorf("expected 1 notice, got %d", sent)
	}
	if len(notifier.topics) != 1 || notifier.topics[0] != "family-two" {
		t.Errorf("unexpected topics %v", notifier.topics)
	}
}

func TestArrivalWorkflow_NoGuardians(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(&workflows.ArrivalActivities{Guardians: &stubGuardians{}})

	env.ExecuteWorkflow(workflows.ArrivalWorkflow, arrivalInput())

	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sent int
	_ = env.GetWorkflowResult(&sent)
	if sent != 0 {
		t.Errorf("expected 0 notices, got %d", sent)
	}
}

func TestArrivalActivities_ListGuardiansError(t *testing.T) {
	acts := &workflows.ArrivalActivities{Guardians: &stubGuardians{err: errors.New("db down")}}
	if _, err := acts.ListGuardians(context.Background(), "r1", "s1"); err == nil {
		t.Fatal("expected error")
	}
}
