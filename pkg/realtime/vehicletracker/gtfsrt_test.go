package vehicletracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fleettracker/pkg/ctdf"
	"google.golang.org/protobuf/proto"
)

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *fakePublisher) PublishBytes(payload ...[]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload...)
	return nil
}

func testFeed(now time.Time) *gtfs.FeedMessage {
	return &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("entity-1"),
				Vehicle: &gtfs.VehiclePosition{
					Vehicle:   &gtfs.VehicleDescriptor{Id: proto.String("bus-1")},
					Timestamp: proto.Uint64(uint64(now.Add(-30 * time.Second).Unix())),
					Position: &gtfs.Position{
						Latitude:  proto.Float32(51.5),
						Longitude: proto.Float32(-0.12),
						Speed:     proto.Float32(10),
						Bearing:   proto.Float32(359.5),
					},
				},
			},
			{
				Id: proto.String("entity-2"),
				Vehicle: &gtfs.VehiclePosition{
					Vehicle: &gtfs.VehicleDescriptor{Label: proto.String("LX12 ABC")},
					Position: &gtfs.Position{
						Latitude:  proto.Float32(52.1),
						Longitude: proto.Float32(-1.5),
					},
				},
			},
			{
				Id: proto.String("stale"),
				Vehicle: &gtfs.VehiclePosition{
					Vehicle:   &gtfs.VehicleDescriptor{Id: proto.String("bus-old")},
					Timestamp: proto.Uint64(uint64(now.Add(-time.Hour).Unix())),
					Position: &gtfs.Position{
						Latitude:  proto.Float32(51.5),
						Longitude: proto.Float32(-0.12),
					},
				},
			},
			{
				Id: proto.String("no-position"),
				Vehicle: &gtfs.VehiclePosition{
					Vehicle: &gtfs.VehicleDescriptor{Id: proto.String("bus-lost")},
				},
			},
		},
	}
}

func TestConvertFeed(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	poller := &FeedPoller{URL: "https://example.com/feed", Provider: "Example", MaxAge: 20 * time.Minute}

	updates := poller.convertFeed(testFeed(now), now)
	require.Len(t, updates, 2)

	first := updates[0]
	assert.Equal(t, ctdf.TrackingUpdateMessageTypeLocation, first.MessageType)
	assert.Equal(t, "bus-1", first.BusRef)
	assert.True(t, now.Add(-30*time.Second).Equal(first.RecordedAt))
	assert.Equal(t, "GTFS-RT", first.DataSource.OriginalFormat)
	assert.Equal(t, "Example", first.DataSource.Provider)
	assert.InDelta(t, 51.5, first.Location.Latitude, 1e-5)
	assert.InDelta(t, 36.0, *first.Location.Speed, 1e-5)
	assert.Equal(t, 0.0, *first.Location.Heading)

	second := updates[1]
	assert.Equal(t, "LX12 ABC", second.BusRef)
	assert.Nil(t, second.Location.Speed)
	assert.Nil(t, second.Location.Heading)
	assert.True(t, now.Equal(second.RecordedAt))
}

func TestPollPublishesUpdates(t *testing.T) {
	feed, err := proto.Marshal(testFeed(time.Now()))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(feed)
	}))
	defer server.Close()

	publisher := &fakePublisher{}
	poller := &FeedPoller{URL: server.URL, MaxAge: 20 * time.Minute, Queue: publisher}

	published, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	require.Len(t, publisher.payloads, 2)

	var event ctdf.TrackingUpdateEvent
	require.NoError(t, json.Unmarshal(publisher.payloads[0], &event))
	assert.Equal(t, "bus-1", event.BusRef)
	require.NotNil(t, event.Location)
}

func TestPollFeedErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.Write([]byte("this is not a protobuf"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	publisher := &fakePublisher{}

	_, err := (&FeedPoller{URL: server.URL, Queue: publisher}).Poll(context.Background())
	assert.Error(t, err)

	_, err = (&FeedPoller{URL: server.URL + "/broken", Queue: publisher}).Poll(context.Background())
	assert.Error(t, err)

	assert.Empty(t, publisher.payloads)
}

func TestGTFSRTUpdatesApplyToTracker(t *testing.T) {
	tracker, clock, _ := newTestTracker(t)
	consumer := NewBatchConsumer(tracker)
	session := startTestSession(t, tracker, StartSessionRequest{BusRef: "bus-1"})

	clock.Advance(time.Minute)
	now := clock.Now()
	poller := &FeedPoller{MaxAge: 20 * time.Minute}

	for _, update := range poller.convertFeed(testFeed(now), now) {
		payload, err := json.Marshal(update)
		require.NoError(t, err)

		err = consumer.handlePayload(string(payload))
		if update.BusRef == "bus-1" {
			require.NoError(t, err)
		} else {
			var notFoundError *NotFoundError
			assert.ErrorAs(t, err, &notFoundError)
		}
	}

	stored, err := tracker.Session(session.PrimaryIdentifier)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalUpdates)
	assert.InDelta(t, 36.0, stored.CurrentState.Speed, 1e-5)
}
