package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusRecordsAndExposes(t *testing.T) {
	p := NewPrometheus()
	p.AlertReceived()
	p.AlertReceived()
	p.AlertDropped()
	p.SetActiveAlertCount(3)
	p.ObserveTickDuration(10 * time.Millisecond)
	p.MuxCommandFailed()
	p.StreamRestarted("audio0")
	p.SetStreamState("audio0", "Running")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"capdabd_alerts_received_total 2",
		"capdabd_alerts_dropped_total 1",
		"capdabd_active_alerts 3",
		"capdabd_mux_command_failures_total 1",
		`capdabd_stream_restarts_total{stream="audio0"} 1`,
		`capdabd_stream_state{stream="audio0",state="Running"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

func TestNoopSatisfiesInterface(t *testing.T) {
	var m Metrics = Noop{}
	m.AlertReceived()
	m.AlertDropped()
	m.SetActiveAlertCount(1)
	m.ObserveTickDuration(time.Second)
	m.ObserveMuxCommandLatency(time.Second)
	m.MuxCommandFailed()
	m.StreamRestarted("x")
	m.SetStreamState("x", "Running")
}
