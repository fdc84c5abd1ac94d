package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(newTestLogger(t))
	go hub.Run()
	t.Cleanup(hub.Stop)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /rooms/{id}/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + roomID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	// give the hub goroutine a beat to process the registration
	time.Sleep(50 * time.Millisecond)
	return conn
}

func TestHubDeliversRoomEvents(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dialRoom(t, srv, "r1")

	hub.Publish("r1", "phase_changed", map[string]any{"phase": "night", "day": 1})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev WSEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if ev.Event != "phase_changed" || ev.RoomID != "r1" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestHubFiltersByRoom(t *testing.T) {
	hub, srv := newTestHub(t)
	watching := dialRoom(t, srv, "r1")
	other := dialRoom(t, srv, "r2")

	hub.Publish("r1", "deaths_announced", nil)

	watching.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := watching.ReadMessage(); err != nil {
		t.Fatalf("the r1 watcher should receive the event: %v", err)
	}

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("the r2 watcher must not see r1 events")
	}
}

func TestPublishWithoutListenersDoesNotBlock(t *testing.T) {
	hub, _ := newTestHub(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish("ghost-room", "phase_changed", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no listeners")
	}
}

func TestWebSocketRequiresRoomID(t *testing.T) {
	hub := NewHub(newTestLogger(t))
	go hub.Run()
	t.Cleanup(hub.Stop)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	hub.HandleWebSocket(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a room id, got %d", rec.Code)
	}
}
