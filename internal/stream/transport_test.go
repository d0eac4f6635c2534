package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func transportConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.URL = url
	cfg.BufferSize = 100
	return cfg
}

func TestTransport_Connect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr := newTransport(transportConfig(wsURL(server)), nil)

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !tr.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := tr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if tr.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}
}

func TestTransport_Send(t *testing.T) {
	var received []byte
	var mu sync.Mutex

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	tr := newTransport(transportConfig(wsURL(server)), nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close()

	testMsg := []byte(`{"type":"ping","id":"1"}`)
	if err := tr.Send(testMsg); err != nil {
		t.Errorf("Send failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if string(received) != string(testMsg) {
		t.Errorf("received %q, want %q", received, testMsg)
	}
}

func TestTransport_Messages(t *testing.T) {
	testMessages := []string{
		`{"type":"quote_update","id":"a"}`,
		`{"type":"quote_update","id":"b"}`,
		`{"type":"quote_update","id":"c"}`,
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, msg := range testMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	tr := newTransport(transportConfig(wsURL(server)), nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close()

	var received []string
	timeout := time.After(500 * time.Millisecond)

	for i := 0; i < len(testMessages); i++ {
		select {
		case msg := <-tr.Messages():
			received = append(received, string(msg))
		case <-timeout:
			t.Fatalf("timeout waiting for messages, received %d of %d", len(received), len(testMessages))
		}
	}

	for i, want := range testMessages {
		if received[i] != want {
			t.Errorf("message %d: got %q, want %q", i, received[i], want)
		}
	}
}

func TestTransport_SendNotConnected(t *testing.T) {
	tr := newTransport(transportConfig("ws://localhost:12345"), nil)

	if err := tr.Send([]byte("test")); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestTransport_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	tr := newTransport(transportConfig(wsURL(server)), nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestTransport_CloseEndsMessages(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	tr := newTransport(transportConfig(wsURL(server)), nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	tr.Close()

	// The messages channel must close so consumers never block on a dead
	// transport.
	select {
	case _, ok := <-tr.Messages():
		if ok {
			t.Error("expected closed messages channel, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("messages channel still open after Close")
	}
}

func TestTransport_ServerCloseSurfacesError(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Close immediately after upgrade.
	})
	defer server.Close()

	tr := newTransport(transportConfig(wsURL(server)), nil)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer tr.Close()

	select {
	case <-tr.Errors():
	case <-time.After(time.Second):
		t.Fatal("expected error after server closed connection")
	}

	if tr.IsConnected() {
		t.Error("expected IsConnected false after server close")
	}
}
