package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ColonelBlimp/handmorse/internal/display"
	"github.com/ColonelBlimp/handmorse/internal/metrics"
)

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()
	s := New("127.0.0.1:0", opts)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServer_Healthz(t *testing.T) {
	s := startServer(t, Options{})

	code, body := get(t, "http://"+s.Addr()+"/healthz")
	if code != http.StatusOK || body != "ok" {
		t.Errorf("/healthz = %d %q, want 200 ok", code, body)
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RecordImpulse("dash")

	s := startServer(t, Options{Gatherer: reg})

	code, body := get(t, "http://"+s.Addr()+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("/metrics status = %d", code)
	}
	if !strings.Contains(body, `handmorse_impulses_total{kind="dash"} 1`) {
		t.Errorf("/metrics missing impulse counter:\n%s", body)
	}
}

func TestServer_WebSocketDisplay(t *testing.T) {
	hub := display.NewHub(metrics.New(prometheus.NewRegistry()))
	defer hub.Close()
	hub.Show(display.Update{Signal: "...", Sentence: "SO"})

	s := startServer(t, Options{Display: hub})

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var u display.Update
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if u.Signal != "..." || u.Sentence != "SO" {
		t.Errorf("update = %+v, want ... / SO", u)
	}
}

func TestServer_NoDisplayRoute(t *testing.T) {
	s := startServer(t, Options{})

	code, _ := get(t, "http://"+s.Addr()+"/ws")
	if code != http.StatusNotFound {
		t.Errorf("/ws status = %d without a display, want 404", code)
	}
}

func TestServer_StartFailsOnBusyAddress(t *testing.T) {
	s := startServer(t, Options{})

	other := New(s.Addr(), Options{})
	if err := other.Start(); err == nil {
		t.Error("Start() on a busy address returned nil")
	}
}
