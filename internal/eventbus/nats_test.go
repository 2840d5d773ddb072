/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/farewatch/internal/events"
)

func offlineBus(t *testing.T) *NATSBus {
	t.Helper()
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond
	cfg.MaxReconnects = 0
	return NewNATSBus(cfg, events.NewBus(), zerolog.Nop())
}

func TestNATSBusFallsBackToLocalDelivery(t *testing.T) {
	nb := offlineBus(t)
	defer nb.Close()

	if nb.Connected() {
		t.Fatal("should not be connected")
	}

	sub := nb.Subscribe(events.EventSampleRecorded)
	nb.Publish(events.EventSampleRecorded, events.Payload{"route_id": 1})

	select {
	case p := <-sub:
		if p["route_id"] != 1 {
			t.Errorf("payload = %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered locally")
	}
}

func TestSubject(t *testing.T) {
	nb := offlineBus(t)
	if got := nb.Subject(events.EventRouteDeleted); got != "farewatch.events.route.deleted" {
		t.Errorf("Subject = %q", got)
	}
}

func TestDeliverRemoteSkipsOwnMessages(t *testing.T) {
	nb := offlineBus(t)
	sub := nb.Subscribe(events.EventRouteDeleted)

	own, err := marshalNATSMessage(events.EventRouteDeleted, events.Payload{"route_id": 1}, nb.nodeID)
	if err != nil {
		t.Fatal(err)
	}
	nb.deliverRemote(own)
	select {
	case p := <-sub:
		t.Fatalf("own message relayed: %v", p)
	default:
	}

	other, err := marshalNATSMessage(events.EventRouteDeleted, events.Payload{"route_id": 2}, "other-node")
	if err != nil {
		t.Fatal(err)
	}
	nb.deliverRemote(other)
	select {
	case p := <-sub:
		// JSON numbers decode as float64.
		if p["route_id"] != float64(2) {
			t.Errorf("payload = %v", p)
		}
	default:
		t.Fatal("remote message not relayed")
	}

	nb.deliverRemote([]byte("not json"))
	nb.deliverRemote([]byte(`{"payload":{}}`))
	select {
	case p := <-sub:
		t.Fatalf("malformed message relayed: %v", p)
	default:
	}
}

func TestNATSMessageRoundTrip(t *testing.T) {
	data, err := marshalNATSMessage(events.EventScheduleChanged, events.Payload{"action": "add"}, "n1")
	if err != nil {
		t.Fatal(err)
	}
	msg, err := unmarshalNATSMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if msg.EventType != events.EventScheduleChanged || msg.NodeID != "n1" || msg.MessageID == "" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Payload["action"] != "add" {
		t.Errorf("payload = %v", msg.Payload)
	}
}

func TestGenerateNodeIDUnique(t *testing.T) {
	a, b := generateNodeID(), generateNodeID()
	if a == b {
		t.Errorf("node ids should differ: %s", a)
	}
	if strings.Contains(a, ".") {
		t.Errorf("node id %q contains a dot", a)
	}
}
