package gtfsrt_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/samirrijal/bustrack/internal/adapters/gtfsrt"
	"github.com/samirrijal/bustrack/internal/core/domain"
)

func testFeed() *gtfsrtpb.FeedMessage {
	return &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1788247800),
		},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("e1"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Trip:      &gtfsrtpb.TripDescriptor{RouteId: proto.String("A1")},
					Vehicle:   &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-1")},
					Position:  &gtfsrtpb.Position{Latitude: proto.Float32(43.25), Longitude: proto.Float32(-2.5), Bearing: proto.Float32(90), Speed: proto.Float32(8)},
					Timestamp: proto.Uint64(1788247790),
				},
			},
			{
				Id: proto.String("e2"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Trip:     &gtfsrtpb.TripDescriptor{RouteId: proto.String("B2")},
					Vehicle:  &gtfsrtpb.VehicleDescriptor{Label: proto.String("Bus 2")},
					Position: &gtfsrtpb.Position{Latitude: proto.Float32(43.0), Longitude: proto.Float32(-2.0)},
				},
			},
			{
				Id:      proto.String("e3"),
				Vehicle: &gtfsrtpb.VehiclePosition{Vehicle: &gtfsrtpb.VehicleDescriptor{Id: proto.String("no-position")}},
			},
		},
	}
}

func TestFixesFromFeed(t *testing.T) {
	now := time.Date(2026, 9, 1, 7, 30, 0, 0, time.UTC)
	fixes := gtfsrt.FixesFromFeed(testFeed(), nil, now)
	require.Len(t, fixes, 2)

	assert.Equal(t, "bus-1", fixes[0].VehicleID)
	assert.Equal(t, "A1", fixes[0].RouteID)
	assert.Equal(t, time.Unix(1788247790, 0).UTC(), fixes[0].Time)
	assert.InDelta(t, 43.25, fixes[0].Position.Lat, 1e-6)
	assert.InDelta(t, -2.5, fixes[0].Position.Lng, 1e-6)
	assert.Equal(t, 90.0, fixes[0].Bearing)
	assert.Equal(t, domain.FixSourceGTFSRT, fixes[0].Source)

	assert.Equal(t, "Bus 2", fixes[1].VehicleID)
	assert.Equal(t, time.Unix(1788247800, 0).UTC(), fixes[1].Time, "falls back to header timestamp")
}

func TestFixesFromFeed_RouteMap(t *testing.T) {
	fixes := gtfsrt.FixesFromFeed(testFeed(), map[string]string{"B2": "north-loop"}, time.Now())
	require.Len(t, fixes, 1)
	assert.Equal(t, "north-loop", fixes[0].RouteID)
}

func TestFetcher_Fetch(t *testing.T) {
	body, err := proto.Marshal(testFeed())
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-protobuf")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := gtfsrt.NewFetcher(srv.Client())
	feed, err := f.Fetch(context.Background(), srv.URL+"/vp")
	require.NoError(t, err)
	assert.Len(t, feed.GetEntity(), 3)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "HTTP 404")
}
