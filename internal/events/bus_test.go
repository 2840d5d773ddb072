/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "testing"

func TestBusDeliversToSubscribersOfType(t *testing.T) {
	b := NewBus()
	deleted := b.Subscribe(EventRouteDeleted)
	created := b.Subscribe(EventRouteCreated)

	if n := b.PublishCount(EventRouteDeleted, Payload{"route_id": int64(4)}); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}

	select {
	case p := <-deleted:
		if p["route_id"] != int64(4) {
			t.Errorf("payload = %v", p)
		}
	default:
		t.Fatal("subscriber did not receive event")
	}

	select {
	case p := <-created:
		t.Fatalf("unexpected delivery %v", p)
	default:
	}
}

func TestBusDropsForFullSubscriber(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventSampleRecorded)
	for i := 0; i < cap(sub); i++ {
		b.Publish(EventSampleRecorded, Payload{"i": i})
	}
	if n := b.PublishCount(EventSampleRecorded, Payload{}); n != 0 {
		t.Errorf("full subscriber should be skipped, delivered = %d", n)
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	sub := b.Subscribe(EventScheduleChanged)
	b.Unsubscribe(EventScheduleChanged, sub)

	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed")
	}
	if n := b.PublishCount(EventScheduleChanged, Payload{}); n != 0 {
		t.Errorf("delivered after unsubscribe = %d", n)
	}
	// A second unsubscribe is a no-op.
	b.Unsubscribe(EventScheduleChanged, sub)
}
