package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, establishmentID uuid.UUID) *Client {
	return &Client{
		hub:             hub,
		establishmentID: establishmentID,
		send:            make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	establishmentID := uuid.New()
	client := mockClient(hub, establishmentID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[establishmentID] == nil {
		t.Fatal("establishment room not created")
	}
	if !hub.rooms[establishmentID][client] {
		t.Fatal("client not registered in establishment room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	establishmentID := uuid.New()
	client := mockClient(hub, establishmentID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[establishmentID] != nil {
		t.Fatal("establishment room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleEstablishment(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	est1 := uuid.New()
	est2 := uuid.New()

	client1 := mockClient(hub, est1)
	client2 := mockClient(hub, est2)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	// Broadcast to est1 only
	testPayload := json.RawMessage(`{"order_id":"test-123"}`)
	event := Event{
		Type:    "order.created",
		Payload: testPayload,
	}
	hub.BroadcastToEstablishment(est1, event)

	// Check client1 receives the message
	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.created" {
			t.Errorf("expected type 'order.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	// Check client2 does NOT receive the message
	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different establishment")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameEstablishment(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	establishmentID := uuid.New()
	client1 := mockClient(hub, establishmentID)
	client2 := mockClient(hub, establishmentID)
	client3 := mockClient(hub, establishmentID)

	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	// Kitchen display, bar display, and a waiter terminal all get the update
	testPayload := json.RawMessage(`{"status":"READY"}`)
	event := Event{
		Type:    "order.updated",
		Payload: testPayload,
	}
	hub.BroadcastToEstablishment(establishmentID, event)

	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "order.updated" {
				t.Errorf("client%d: expected type 'order.updated', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubMultipleEstablishmentsIsolation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	est1 := uuid.New()
	est2 := uuid.New()
	est3 := uuid.New()

	// Create 2 clients per establishment
	clients := map[uuid.UUID][]*Client{
		est1: {mockClient(hub, est1), mockClient(hub, est1)},
		est2: {mockClient(hub, est2), mockClient(hub, est2)},
		est3: {mockClient(hub, est3), mockClient(hub, est3)},
	}

	for _, clientList := range clients {
		for _, client := range clientList {
			hub.register <- client
		}
	}
	time.Sleep(10 * time.Millisecond)

	// Broadcast to est2 only
	event := Event{
		Type:    "order.updated",
		Payload: json.RawMessage(`{"establishment_id":"` + est2.String() + `"}`),
	}
	hub.BroadcastToEstablishment(est2, event)

	// Only est2 clients should receive
	for establishmentID, clientList := range clients {
		for i, client := range clientList {
			select {
			case msg := <-client.send:
				if establishmentID != est2 {
					t.Fatalf("establishment %s client %d should not receive message", establishmentID, i)
				}
				var received Event
				if err := json.Unmarshal(msg, &received); err != nil {
					t.Fatalf("unmarshal error: %v", err)
				}
				if received.Type != "order.updated" {
					t.Errorf("wrong event type: %s", received.Type)
				}
			case <-time.After(50 * time.Millisecond):
				if establishmentID == est2 {
					t.Fatalf("est2 client %d should have received message", i)
				}
				// Expected for other establishments
			}
		}
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	establishmentID := uuid.New()
	client1 := mockClient(hub, establishmentID)
	client2 := mockClient(hub, establishmentID)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[establishmentID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[establishmentID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[establishmentID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[establishmentID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[establishmentID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestBroadcastToNonExistentEstablishment(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	est1 := uuid.New()
	client1 := mockClient(hub, est1)
	hub.register <- client1
	time.Sleep(10 * time.Millisecond)

	// Broadcast to an establishment with no clients
	event := Event{
		Type:    "order.created",
		Payload: json.RawMessage(`{"test":"data"}`),
	}
	hub.BroadcastToEstablishment(uuid.New(), event)

	// client1 should NOT receive anything
	select {
	case <-client1.send:
		t.Fatal("client should not receive message for different establishment")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message
	}
}
