// Command replay runs a recorded trip through the tracker in-process and
// prints the progress after every fix.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kr/pretty"

	"github.com/samirrijal/bustrack/internal/adapters/memory"
	"github.com/samirrijal/bustrack/internal/core/domain"
	"github.com/samirrijal/bustrack/internal/core/tracking"
	"github.com/samirrijal/bustrack/internal/core/usecases"
	"github.com/samirrijal/bustrack/internal/pkg/logging"
	"github.com/samirrijal/bustrack/internal/pkg/routefile"
)

func main() {
	verbose := flag.Bool("v", false, "dump every snapshot")
	speed := flag.Float64("speed", tracking.DefaultAssumedSpeedKmph, "assumed bus speed in km/h")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: replay [-v] [-speed kmph] <route.yaml> <track.yaml>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	logging.Setup("warn", "text", "bustrack-replay")

	rf, err := routefile.LoadRoute(flag.Arg(0))
	if err != nil {
		log.Fatalf("route: %v", err)
	}
	track, err := routefile.LoadTrack(flag.Arg(1))
	if err != nil {
		log.Fatalf("track: %v", err)
	}
	if track.RouteID == "" {
		track.RouteID = rf.Route.ID
	}

	ctx := context.Background()
	routes := usecases.NewRouteService(memory.NewRouteRepo(), nil, memory.NewCache(), nil)
	stops, err := routes.Import(ctx, &rf.Route, rf.Stops)
	if err != nil {
		log.Fatalf("import route: %v", err)
	}

	svc := usecases.NewTrackingService(usecases.TrackingDeps{
		Routes:    routes,
		Sessions:  memory.NewSessionStore(),
		Cache:     memory.NewCache(),
		Publisher: &arrivalPrinter{},
	}, usecases.TrackingConfig{
		Estimator: tracking.Config{AssumedSpeedKmph: *speed},
	})

	fmt.Printf("%s %q: %d stops, %.2f km\n", rf.Route.ID, rf.Route.Name, len(stops), stops[len(stops)-1].DistanceKm)

	for _, fix := range track.Fixes() {
		snap, err := svc.ProcessFix(ctx, fix)
		if err != nil {
			fmt.Printf("%s  rejected: %v\n", fix.Time.Format("15:04:05"), err)
			continue
		}
		printSnapshot(snap)
		if *verbose {
			pretty.Println(snap)
		}
	}
	svc.Wait()
}

func printSnapshot(s *domain.TrackingSnapshot) {
	p := s.Progress
	next := "-"
	if p.NextStop != nil {
		next = p.NextStop.ID
	}
	eta := p.ETA.Label
	if p.ETA.Available {
		eta = fmt.Sprintf("%.2f km / %d min", p.ETA.DistanceKm, p.ETA.Minutes)
	}
	fmt.Printf("%s  %-18s %5.1f%%  next=%-8s eta=%s\n",
		s.FixTime.Format("15:04:05"), p.Status, p.ProgressRatio*100, next, eta)
}

// arrivalPrinter is an EventPublisher that reports stop arrivals on stdout.
type arrivalPrinter struct{}

func (a *arrivalPrinter) PublishFix(ctx context.Context, fix *domain.VehicleFix) error { return nil }

func (a *arrivalPrinter) PublishProgress(ctx context.Context, snap *domain.TrackingSnapshot) error {
	return nil
}

func (a *arrivalPrinter) PublishArrival(ctx context.Context, arrival *domain.StopArrival) error {
	fmt.Printf("%s  ARRIVED %s (%s) stop #%d\n",
		arrival.Time.Format("15:04:05"), arrival.Stop.ID, arrival.Stop.Name, arrival.StopIndex)
	return nil
}
