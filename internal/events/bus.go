/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventSampleRecorded  EventType = "sample.recorded"
	EventSampleFailed    EventType = "sample.failed"
	EventRouteCreated    EventType = "route.created"
	EventRouteDeleted    EventType = "route.deleted"
	EventScheduleChanged EventType = "schedule.changed"
)

// AllTypes lists every event type, in declaration order.
var AllTypes = []EventType{
	EventSampleRecorded,
	EventSampleFailed,
	EventRouteCreated,
	EventRouteDeleted,
	EventScheduleChanged,
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher is implemented by Bus and by the NATS-backed bus.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Bus implements a simple in-process pubsub. Slow subscribers miss events
// rather than block publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 32)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.publish(eventType, payload)
}

// PublishCount is Publish returning the number of deliveries.
func (b *Bus) PublishCount(eventType EventType, payload Payload) int {
	return b.publish(eventType, payload)
}

func (b *Bus) publish(eventType EventType, payload Payload) int {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	delivered := 0
	for _, sub := range subs {
		select {
		case sub <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

// Unsubscribe removes the subscriber and closes it.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}
	b.subs[eventType] = subs
}
