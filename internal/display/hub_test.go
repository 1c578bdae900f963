package display

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ColonelBlimp/handmorse/internal/metrics"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(h)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("Dial() error = %v", err)
	}
	return conn, func() {
		conn.Close()
		_ = h.Close()
		srv.Close()
	}
}

func readUpdate(t *testing.T, conn *websocket.Conn) Update {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var u Update
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return u
}

func TestHub_SendsLatestOnConnect(t *testing.T) {
	h := NewHub(metrics.New(prometheus.NewRegistry()))
	h.Show(Update{Signal: "..", Sentence: "HI"})

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	if got := readUpdate(t, conn); got.Signal != ".." || got.Sentence != "HI" {
		t.Errorf("initial update = %+v, want .. / HI", got)
	}
}

func TestHub_Broadcasts(t *testing.T) {
	h := NewHub(metrics.New(prometheus.NewRegistry()))

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	if got := readUpdate(t, conn); got != (Update{}) {
		t.Errorf("initial update = %+v, want empty", got)
	}
	if n := h.Clients(); n != 1 {
		t.Errorf("Clients() = %d, want 1", n)
	}

	h.Show(Update{Signal: "-", Sentence: "SOS"})
	if got := readUpdate(t, conn); got.Signal != "-" || got.Sentence != "SOS" {
		t.Errorf("broadcast = %+v, want - / SOS", got)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	h := NewHub(metrics.New(prometheus.NewRegistry()))

	conn, cleanup := dialHub(t, h)
	defer cleanup()
	readUpdate(t, conn)

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := h.Clients(); n != 0 {
		t.Errorf("Clients() = %d after disconnect, want 0", n)
	}

	// Showing with no clients must not block.
	h.Show(Update{Signal: "."})
}

func TestHub_WriterPanicDropsClient(t *testing.T) {
	h := NewHub(metrics.New(prometheus.NewRegistry()))
	h.encode = func(any) ([]byte, error) { panic("encoder failed") }

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("ReadMessage() succeeded, want the connection closed after the writer panicked")
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := h.Clients(); n != 0 {
		t.Errorf("Clients() = %d after writer panic, want 0", n)
	}
}
