package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
)

func TestHandleWebSocketWelcomeAndBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())
	welcome := func() Message {
		return NewMessage("shopping", "snapshot", 0, map[string]any{"categories": []any{}})
	}
	srv := httptest.NewServer(HandleWebSocket(hub, welcome))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	read := func() Message {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	}

	if got := read(); got.Type != "shopping_snapshot" {
		t.Fatalf("welcome type = %q, want shopping_snapshot", got.Type)
	}

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(NewMessage("category", "deleted", 3, nil))
	got := read()
	if got.Type != "category_deleted" || got.ID != 3 {
		t.Errorf("broadcast = %+v, want category_deleted id 3", got)
	}
}

func TestDroppedClientGetsNormalClosure(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(HandleWebSocket(hub, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatal("client never registered")
	}

	hub.mu.RLock()
	var c *Client
	for c = range hub.clients {
	}
	hub.mu.RUnlock()
	hub.Unregister(c)

	_, _, err = conn.Read(ctx)
	if got := ws.CloseStatus(err); got != ws.StatusNormalClosure {
		t.Errorf("close status = %v (err %v), want normal closure", got, err)
	}
}

func TestPeerCloseUnregisters(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(HandleWebSocket(hub, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	conn.Close(ws.StatusNormalClosure, "bye")

	deadline = time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("clients after peer close = %d, want 0", got)
	}
}
