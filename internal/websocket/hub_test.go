package websocket

import (
	"encoding/json"
	"testing"
)

func TestHubBroadcastsToRegisteredClient(t *testing.T) {
	hub := NewHub()
	client := &Client{send: make(chan []byte, 1)}
	hub.Register("user-1", client)
	defer hub.Unregister("user-1", client)

	hub.BroadcastSettlement("user-1", SettlementUpdate{
		SettlementID: "stl-1",
		TeamID:       "team-1",
		Status:       "paid",
		Amount:       "50.00",
	})

	select {
	case payload := <-client.send:
		var update SettlementUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if update.SettlementID != "stl-1" || update.Status != "paid" {
			t.Fatalf("unexpected update: %+v", update)
		}
	default:
		t.Fatalf("expected a message on the client channel")
	}
}

func TestHubDropsMessageForFullClient(t *testing.T) {
	hub := NewHub()
	client := &Client{send: make(chan []byte, 1)}
	hub.Register("user-1", client)
	defer hub.Unregister("user-1", client)

	hub.BroadcastSettlement("user-1", SettlementUpdate{SettlementID: "a"})
	// Buffer is full now; this one must be dropped, not block.
	hub.BroadcastSettlement("user-1", SettlementUpdate{SettlementID: "b"})

	if got := len(client.send); got != 1 {
		t.Fatalf("expected 1 buffered message, got %d", got)
	}
}

func TestHubIgnoresUnknownUser(t *testing.T) {
	hub := NewHub()
	// Must not panic with no registered clients.
	hub.BroadcastSettlement("nobody", SettlementUpdate{SettlementID: "a"})
}
