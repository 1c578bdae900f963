package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordFrame("fist")
	m.RecordImpulse("dot")
	m.RecordLetter(true)
	m.RecordActuator(OutcomeOK, 0.01)
	m.ActuatorDropped.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"handmorse_frames_total",
		"handmorse_impulses_total",
		"handmorse_letters_total",
		"handmorse_actuator_requests_total",
		"handmorse_actuator_latency_seconds",
		"handmorse_actuator_dropped_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Two sets on separate registries must not collide.
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())

	a.OverflowTotal.Inc()
	if got := testutil.ToFloat64(b.OverflowTotal); got != 0 {
		t.Errorf("b.OverflowTotal = %v, want 0", got)
	}
}

func TestRecordLetter(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordLetter(true)
	m.RecordLetter(true)
	m.RecordLetter(false)

	if got := testutil.ToFloat64(m.LettersTotal.WithLabelValues("known")); got != 2 {
		t.Errorf("known letters = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LettersTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unknown letters = %v, want 1", got)
	}
}

func TestRecordActuator(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordActuator(OutcomeOK, 0.02)
	m.RecordActuator(OutcomeError, 0.3)

	if got := testutil.ToFloat64(m.ActuatorRequests.WithLabelValues(OutcomeError)); got != 1 {
		t.Errorf("error requests = %v, want 1", got)
	}

	expected := `
# HELP handmorse_actuator_requests_total Total number of actuator notifications attempted
# TYPE handmorse_actuator_requests_total counter
handmorse_actuator_requests_total{outcome="error"} 1
handmorse_actuator_requests_total{outcome="ok"} 1
`
	if err := testutil.CollectAndCompare(m.ActuatorRequests, strings.NewReader(expected)); err != nil {
		t.Errorf("CollectAndCompare() error = %v", err)
	}
}
