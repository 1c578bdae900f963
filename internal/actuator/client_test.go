package actuator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ColonelBlimp/handmorse/internal/morse"
)

// recordingServer captures the signal query of every request.
type recordingServer struct {
	*httptest.Server
	mu      sync.Mutex
	signals []string
	status  int
}

func newRecordingServer(t *testing.T, status int) *recordingServer {
	t.Helper()
	rs := &recordingServer{status: status}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.signals = append(rs.signals, r.URL.Query().Get("signal"))
		rs.mu.Unlock()
		w.WriteHeader(rs.status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) received() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]string, len(rs.signals))
	copy(out, rs.signals)
	return out
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		timeout time.Duration
		want    error
	}{
		{"valid", "http://192.168.1.80/morse", DefaultTimeout, nil},
		{"https", "https://actuator.local/morse", time.Second, nil},
		{"no scheme", "192.168.1.80/morse", DefaultTimeout, ErrInvalidURL},
		{"wrong scheme", "ftp://host/morse", DefaultTimeout, ErrInvalidURL},
		{"no host", "http:///morse", DefaultTimeout, ErrInvalidURL},
		{"zero timeout", "http://host/morse", 0, ErrInvalidTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.url, tt.timeout)
			if !errors.Is(err, tt.want) {
				t.Errorf("NewClient() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_URL(t *testing.T) {
	c, err := NewClient("http://192.168.1.80/morse", DefaultTimeout)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if got, want := c.URL(morse.Dot), "http://192.168.1.80/morse?signal=dot"; got != want {
		t.Errorf("URL(Dot) = %q, want %q", got, want)
	}
	if got, want := c.URL(morse.Dash), "http://192.168.1.80/morse?signal=dash"; got != want {
		t.Errorf("URL(Dash) = %q, want %q", got, want)
	}
}

func TestClient_URL_KeepsExistingQuery(t *testing.T) {
	c, _ := NewClient("http://host/morse?device=1", DefaultTimeout)
	if got, want := c.URL(morse.Dash), "http://host/morse?device=1&signal=dash"; got != want {
		t.Errorf("URL(Dash) = %q, want %q", got, want)
	}
}

func TestClient_Send(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK)
	c, _ := NewClient(srv.URL+"/morse", time.Second)

	if err := c.Send(context.Background(), morse.Dash); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := srv.received(); len(got) != 1 || got[0] != "dash" {
		t.Errorf("server received %v, want [dash]", got)
	}
}

func TestClient_Send_NonSuccessStatus(t *testing.T) {
	srv := newRecordingServer(t, http.StatusServiceUnavailable)
	c, _ := NewClient(srv.URL, time.Second)

	err := c.Send(context.Background(), morse.Dot)
	if !errors.Is(err, ErrStatus) {
		t.Errorf("Send() error = %v, want %v", err, ErrStatus)
	}
}

func TestClient_Send_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, 30*time.Millisecond)

	start := time.Now()
	if err := c.Send(context.Background(), morse.Dot); err == nil {
		t.Error("Send() to a stalled actuator returned nil")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send() took %v, want it bounded by the timeout", elapsed)
	}
}

func TestClient_Send_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, _ := NewClient(addr, 100*time.Millisecond)
	if err := c.Send(context.Background(), morse.Dot); err == nil {
		t.Error("Send() to a closed endpoint returned nil")
	}
}
