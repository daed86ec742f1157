package vehicletracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/ctdf"
	"google.golang.org/protobuf/proto"
)

// Publisher is satisfied by rmq.Queue
type Publisher interface {
	PublishBytes(payload ...[]byte) error
}

// FeedPoller reads a GTFS-RT vehicle positions feed and forwards each position onto the tracking queue
type FeedPoller struct {
	URL      string
	Provider string

	// Positions older than this are skipped
	MaxAge time.Duration

	Queue  Publisher
	Client *http.Client
}

func (p *FeedPoller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Str("url", p.URL).Str("interval", interval.String()).Msg("Starting GTFS-RT poller")

	for {
		if published, err := p.Poll(ctx); err != nil {
			log.Error().Err(err).Str("url", p.URL).Msg("Failed to poll GTFS-RT feed")
		} else {
			log.Info().Int("published", published).Msg("Polled GTFS-RT feed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll fetches the feed once and returns the number of updates published
func (p *FeedPoller) Poll(ctx context.Context) (int, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return 0, err
	}
	request.Header.Set("user-agent", "curl/7.54.1")

	response, err := client.Do(request)
	if err != nil {
		return 0, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("feed returned status %d", response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, err
	}

	feed := gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, &feed); err != nil {
		return 0, err
	}

	updates := p.convertFeed(&feed, time.Now())

	var payloads [][]byte
	for _, update := range updates {
		payload, err := json.Marshal(update)
		if err != nil {
			return 0, err
		}
		payloads = append(payloads, payload)
	}

	if len(payloads) == 0 {
		return 0, nil
	}

	if err := p.Queue.PublishBytes(payloads...); err != nil {
		return 0, err
	}

	return len(payloads), nil
}

func (p *FeedPoller) convertFeed(feed *gtfs.FeedMessage, now time.Time) []*ctdf.TrackingUpdateEvent {
	var updates []*ctdf.TrackingUpdateEvent

	for _, entity := range feed.GetEntity() {
		vehiclePosition := entity.GetVehicle()
		if vehiclePosition == nil || vehiclePosition.GetPosition() == nil {
			continue
		}

		busRef := vehiclePosition.GetVehicle().GetId()
		if busRef == "" {
			busRef = vehiclePosition.GetVehicle().GetLabel()
		}
		if busRef == "" {
			busRef = entity.GetId()
		}

		recordedAt := now
		if vehiclePosition.Timestamp != nil {
			recordedAt = time.Unix(int64(vehiclePosition.GetTimestamp()), 0)
		}

		if p.MaxAge > 0 && now.Sub(recordedAt) > p.MaxAge {
			continue
		}

		position := vehiclePosition.GetPosition()

		update := &ctdf.LocationUpdate{
			Latitude:  float64(position.GetLatitude()),
			Longitude: float64(position.GetLongitude()),
			Timestamp: recordedAt,
		}

		if position.Speed != nil {
			// GTFS-RT reports meters per second
			speed := float64(position.GetSpeed()) * 3.6
			update.Speed = &speed
		}
		if position.Bearing != nil {
			bearing := math.Mod(float64(position.GetBearing()), 360)
			if bearing > 359 {
				bearing = 0
			}
			update.Heading = &bearing
		}

		updates = append(updates, &ctdf.TrackingUpdateEvent{
			MessageType: ctdf.TrackingUpdateMessageTypeLocation,
			BusRef:      busRef,
			SourceType:  "GTFS-RT",
			RecordedAt:  recordedAt,
			DataSource: &ctdf.DataSource{
				OriginalFormat: "GTFS-RT",
				Provider:       p.Provider,
				Identifier:     p.URL,
				Timestamp:      now,
			},
			Location: update,
		})
	}

	return updates
}
