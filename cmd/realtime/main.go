package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/samirrijal/bustrack/internal/adapters/gtfsrt"
	natsadapter "github.com/samirrijal/bustrack/internal/adapters/nats"
	"github.com/samirrijal/bustrack/internal/pkg/config"
	"github.com/samirrijal/bustrack/internal/pkg/logging"
	"github.com/samirrijal/bustrack/internal/pkg/metrics"
)

func main() {
	cfg, err := config.Load("bustrack-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Telemetry.ServiceName)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	// Load manifest
	manifestPath := cfg.Realtime.Manifest
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest gtfsrt.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	var feeds []gtfsrt.Feed
	for _, f := range manifest.Feeds {
		if f.URL != "" {
			feeds = append(feeds, f)
		}
	}

	p := &poller{
		fetcher:     gtfsrt.NewFetcher(nil),
		pub:         pub,
		feeds:       feeds,
		concurrency: cfg.Realtime.Concurrency,
	}

	pollInterval := time.Duration(cfg.Realtime.PollInterval) * time.Second
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	slog.Info("realtime poller started", "feeds", len(feeds), "interval", pollInterval.String())

	// Run once immediately
	p.pollAll(ctx)

	for {
		select {
		case <-ticker.C:
			p.pollAll(ctx)
		case <-ctx.Done():
			slog.Info("shutting down realtime poller")
			return
		}
	}
}

type poller struct {
	fetcher     *gtfsrt.Fetcher
	pub         *natsadapter.Publisher
	feeds       []gtfsrt.Feed
	concurrency int
}

// pollAll fetches every feed with at most p.concurrency requests in flight.
func (p *poller) pollAll(ctx context.Context) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)

	for _, f := range p.feeds {
		wg.Add(1)
		go func(feed gtfsrt.Feed) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := p.poll(ctx, feed); err != nil {
				metrics.FeedPollErrors.WithLabelValues(feed.Name).Inc()
				slog.Warn("feed poll failed", "feed", feed.Name, "error", err)
			}
		}(f)
	}

	wg.Wait()
}

// poll republishes the vehicle positions of one feed as fixes.
func (p *poller) poll(ctx context.Context, feed gtfsrt.Feed) error {
	start := time.Now()
	defer func() {
		metrics.FeedPollDuration.WithLabelValues(feed.Name).Observe(time.Since(start).Seconds())
	}()

	msg, err := p.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return err
	}

	published := 0
	for _, fix := range gtfsrt.FixesFromFeed(msg, feed.RouteMap, time.Now()) {
		if err := p.pub.PublishFix(ctx, &fix); err != nil {
			slog.Warn("publish fix failed", "feed", feed.Name, "vehicle_id", fix.VehicleID, "error", err)
			continue
		}
		published++
	}

	if published > 0 {
		slog.Debug("feed polled", "feed", feed.Name, "fixes", published)
	}
	return nil
}
