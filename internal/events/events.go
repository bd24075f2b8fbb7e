// Package events broadcasts course lifecycle events to connected
// streaming clients. Delivery is best-effort and at-most-once: there is
// no replay, and subscribers that fall behind lose events.
package events

import (
	"encoding/json"
	"log/slog"

	"github.com/eldridgejm/classroom-qa/internal/kv"
	"github.com/eldridgejm/classroom-qa/internal/model"
)

// Audience selects which events a subscriber receives.
type Audience int

const (
	// AudienceInstructor receives every event on the course channel.
	AudienceInstructor Audience = iota
	// AudienceStudent receives everything except live tally updates.
	AudienceStudent
)

// Envelope pairs an event type with its encoded payload.
type Envelope struct {
	Event model.EventType `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Bus publishes course events and hands out filtered subscriptions.
type Bus struct {
	broker *kv.Broker
	logger *slog.Logger
}

// NewBus creates a bus with no subscribers.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{broker: kv.NewBroker(), logger: logger}
}

func channelKey(course string) string {
	return "course:" + course + ":events"
}

// Publish broadcasts an event to every subscriber of the course channel.
// Failures to encode are logged and the event dropped.
func (b *Bus) Publish(course string, event model.EventType, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("encode event payload", "course", course, "event", event, "error", err)
		return
	}
	msg, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		b.logger.Error("encode event envelope", "course", course, "event", event, "error", err)
		return
	}
	b.broker.Publish(channelKey(course), string(msg))
}

// Subscription is one subscriber's filtered view of a course event stream.
type Subscription struct {
	bus    *Bus
	course string
	raw    chan string
	ch     chan Envelope
}

// Subscribe attaches a subscriber to the course channel. The caller
// must Close the subscription when done.
func (b *Bus) Subscribe(course string, aud Audience) *Subscription {
	s := &Subscription{
		bus:    b,
		course: course,
		raw:    b.broker.Subscribe(channelKey(course)),
		ch:     make(chan Envelope, 16),
	}
	go s.pump(aud)
	return s
}

// Events returns the channel of decoded envelopes. It is closed when
// the subscription is closed.
func (s *Subscription) Events() <-chan Envelope { return s.ch }

// Close detaches the subscriber and closes its Events channel.
func (s *Subscription) Close() {
	s.bus.broker.Unsubscribe(channelKey(s.course), s.raw)
}

func (s *Subscription) pump(aud Audience) {
	defer close(s.ch)
	for msg := range s.raw {
		var ev Envelope
		if err := json.Unmarshal([]byte(msg), &ev); err != nil {
			s.bus.logger.Warn("skipping malformed event", "course", s.course, "error", err)
			continue
		}
		if aud == AudienceStudent && ev.Event == model.EventCountsUpdated {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			// Drop if the subscriber is too slow.
		}
	}
}
