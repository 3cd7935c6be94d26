package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/bustrack/internal/adapters/ntfy"
	"github.com/samirrijal/bustrack/internal/adapters/postgres"
	"github.com/samirrijal/bustrack/internal/pkg/config"
	"github.com/samirrijal/bustrack/internal/pkg/logging"
	"github.com/samirrijal/bustrack/internal/workflows"
)

func main() {
	cfg, err := config.Load("bustrack-notifier")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.ArrivalWorkflow)
	w.RegisterActivity(&workflows.ArrivalActivities{
		Guardians: postgres.NewGuardianRepo(db),
		Notifier:  ntfy.New(cfg.Notify.NtfyURL, &http.Client{Timeout: 10 * time.Second}),
	})

	slog.Info("notifier worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
