// Package gtfsrt turns GTFS-Realtime vehicle position feeds into fixes.
package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/samirrijal/bustrack/internal/core/domain"
)

// Feed is one vehicle positions endpoint from the realtime manifest.
type Feed struct {
	Name string `json:"name"`
	URL  string `json:"vehicle_positions"`
	// RouteMap maps feed route ids to bus route ids. When set, vehicles on
	// unmapped routes are skipped.
	RouteMap map[string]string `json:"route_map,omitempty"`
}

// Manifest lists the feeds the realtime poller follows.
type Manifest struct {
	Feeds []Feed `json:"feeds"`
}

// Fetcher downloads and decodes GTFS-RT feeds.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. A nil client gets a 30 second timeout.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gtfsrtpb.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed := &gtfsrtpb.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("unmarshal protobuf: %w", err)
	}
	return feed, nil
}

// FixesFromFeed extracts one fix per vehicle entity that carries a position.
// Vehicle ids fall back to the label and then the entity id; timestamps fall
// back to the feed header and then now.
func FixesFromFeed(msg *gtfsrtpb.FeedMessage, routeMap map[string]string, now time.Time) []domain.VehicleFix {
	var headerTS uint64
	if msg.GetHeader() != nil {
		headerTS = msg.GetHeader().GetTimestamp()
	}

	fixes := make([]domain.VehicleFix, 0, len(msg.GetEntity()))
	for _, entity := range msg.GetEntity() {
		vp := entity.GetVehicle()
		if vp == nil || vp.GetPosition() == nil || entity.GetIsDeleted() {
			continue
		}

		routeID := vp.GetTrip().GetRouteId()
		if len(routeMap) > 0 {
			mapped, ok := routeMap[routeID]
			if !ok {
				continue
			}
			routeID = mapped
		}

		vehicleID := vp.GetVehicle().GetId()
		if vehicleID == "" {
			vehicleID = vp.GetVehicle().GetLabel()
		}
		if vehicleID == "" {
			vehicleID = entity.GetId()
		}
		if vehicleID == "" {
			continue
		}

		ts := now.UTC()
		switch {
		case vp.Timestamp != nil:
			ts = time.Unix(int64(vp.GetTimestamp()), 0).UTC()
		case headerTS > 0:
			ts = time.Unix(int64(headerTS), 0).UTC()
		}

		pos := vp.GetPosition()
		fixes = append(fixes, domain.VehicleFix{
			VehicleID: vehicleID,
			RouteID:   routeID,
			Position: domain.Position{
				Lat: float64(pos.GetLatitude()),
				Lng: float64(pos.GetLongitude()),
			},
			Time:    ts,
			Speed:   float64(pos.GetSpeed()),
			Bearing: float64(pos.GetBearing()),
			Source:  domain.FixSourceGTFSRT,
		})
	}
	return fixes
}
