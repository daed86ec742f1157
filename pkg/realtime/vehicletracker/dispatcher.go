package vehicletracker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

// EventDispatcher receives events after the session lock has been released.
// Dispatch must not block.
type EventDispatcher interface {
	Dispatch(events ...ctdf.Event)
}

// eventBatch collects the events raised while a session is locked
type eventBatch []ctdf.Event

func (b *eventBatch) add(session *ctdf.TrackingSession, eventType ctdf.EventType, now time.Time, fill func(body *ctdf.TrackingEventBody)) {
	body := ctdf.TrackingEventBody{
		SessionRef: session.PrimaryIdentifier,
		TripRef:    session.TripRef,
		BusRef:     session.BusRef,
	}
	if session.Driver != nil {
		body.DriverRef = session.Driver.PrimaryIdentifier
	}
	if fill != nil {
		fill(&body)
	}

	*b = append(*b, ctdf.Event{
		Type:      eventType,
		Timestamp: now,
		Body:      body,
	})
}

type discardDispatcher struct{}

func (discardDispatcher) Dispatch(...ctdf.Event) {}

// EventSink is a destination the async dispatcher fans events out to
type EventSink interface {
	Name() string
	Send(event ctdf.Event) error
}

// AsyncDispatcher hands events to a background goroutine through a bounded channel.
// Events are dropped with a warning when the channel is full.
type AsyncDispatcher struct {
	sinks  []EventSink
	events chan ctdf.Event
	wg     sync.WaitGroup
}

func NewAsyncDispatcher(buffer int, sinks ...EventSink) *AsyncDispatcher {
	return &AsyncDispatcher{
		sinks:  sinks,
		events: make(chan ctdf.Event, buffer),
	}
}

func (d *AsyncDispatcher) Dispatch(events ...ctdf.Event) {
	for _, event := range events {
		select {
		case d.events <- event:
		default:
			eventsDropped.Inc()
			log.Warn().Str("type", string(event.Type)).Msg("Event buffer full, dropping event")
		}
	}
}

// Start delivers events in the background until the context is cancelled, then drains
// whatever is still buffered
func (d *AsyncDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

func (d *AsyncDispatcher) run(ctx context.Context) {
	for {
		select {
		case event := <-d.events:
			d.deliver(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-d.events:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until the background delivery has drained and stopped
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

func (d *AsyncDispatcher) deliver(event ctdf.Event) {
	eventsDispatched.WithLabelValues(string(event.Type)).Inc()

	for _, sink := range d.sinks {
		if err := sink.Send(event); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Str("type", string(event.Type)).Msg("Failed to send event")
		}
	}
}

// QueueSink publishes events onto the events queue, Queue is normally an rmq.Queue
type QueueSink struct {
	Queue Publisher
}

func (s *QueueSink) Name() string {
	return "queue"
}

func (s *QueueSink) Send(event ctdf.Event) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.Queue.PublishBytes(eventBytes)
}
