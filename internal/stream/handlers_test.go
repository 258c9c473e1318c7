package stream

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func serve(t *testing.T, hub *Hub, snapshot SnapshotFunc) string {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub, snapshot)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = ln.Close()
	})
	return "ws://" + ln.Addr().String() + "/stream/ws/"
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/stream/ws/session-1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 for non-websocket request")
	}
}

func TestStreamHandlersSnapshotThenBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	base := serve(t, hub, func(sessionID string) ([]byte, bool) {
		if sessionID != "session-1" {
			return nil, false
		}
		return []byte(`{"status":"active"}`), true
	})

	conn, _, err := websocket.DefaultDialer.Dial(base+"session-1", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != `{"status":"active"}` {
		t.Fatalf("unexpected snapshot %s", msg)
	}

	// The viewer is registered before the snapshot is written.
	hub.Broadcast("session-1", []byte(`{"status":"paused"}`))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != `{"status":"paused"}` {
		t.Fatalf("unexpected broadcast %s", msg)
	}
}

func TestStreamHandlersUnknownSessionGetsNoSnapshot(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	base := serve(t, hub, func(string) ([]byte, bool) { return nil, false })

	conn, _, err := websocket.DefaultDialer.Dial(base+"session-9", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected no message for unknown session")
	}
}

func TestStreamHandlersClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil, nil)
	defer hub.Close()
	base := serve(t, hub, func(string) ([]byte, bool) { return []byte("{}"), true })

	conn, _, err := websocket.DefaultDialer.Dial(base+"session-3", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read error: %v", err)
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients["session-3"])
		hub.mu.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("viewer still registered after disconnect")
}
