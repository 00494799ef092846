package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/faceid/pkg/dto"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() < n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", h.Clients(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubRoomFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	all := dial(t, srv, "")
	room101 := dial(t, srv, "?room=101")
	room202 := dial(t, srv, "?room=202")
	waitClients(t, hub, 3)

	hub.BroadcastEvent(&dto.WSEvent{Type: "recognition", Room: "101", Data: dto.EventResponse{Room: "101", Outcome: "recognized"}})

	for name, conn := range map[string]*websocket.Conn{"all": all, "room 101": room101} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		var got dto.WSEvent
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if got.Room != "101" || got.Data.Outcome != "recognized" {
			t.Errorf("%s: got %+v", name, got)
		}
	}

	_ = room202.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := room202.ReadMessage(); err == nil {
		t.Error("room 202 client received an event for room 101")
	}
}

func TestHubUnregistersOnClose(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn := dial(t, srv, "")
	waitClients(t, hub, 1)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d after close, want 0", hub.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
