package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MessageSent("CON")
	m.MessageSent("CON")
	m.MessageSent("ACK")
	m.MessageReceived("ACK")
	m.Retransmission()
	m.Timeout()
	m.DecodeError()
	m.SendError()
	m.Duplicate()
	m.ObserveNotification()
	m.ObserveNotification()
	m.ObserveStale()
	m.BlockReceived()

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"sent CON", m.MessagesSent.WithLabelValues("CON"), 2},
		{"sent ACK", m.MessagesSent.WithLabelValues("ACK"), 1},
		{"received ACK", m.MessagesReceived.WithLabelValues("ACK"), 1},
		{"retransmissions", m.Retransmissions, 1},
		{"timeouts", m.Timeouts, 1},
		{"decode errors", m.DecodeErrors, 1},
		{"send errors", m.SendErrors, 1},
		{"duplicates", m.Duplicates, 1},
		{"observe accepted", m.ObserveNotifications.WithLabelValues("accepted"), 2},
		{"observe stale", m.ObserveNotifications.WithLabelValues("stale"), 1},
		{"blocks", m.BlocksReceived, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tc.c); got != tc.want {
				t.Errorf("value = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	// Must not panic.
	m.MessageSent("CON")
	m.MessageReceived("ACK")
	m.Retransmission()
	m.Timeout()
	m.DecodeError()
	m.SendError()
	m.Duplicate()
	m.ObserveNotification()
	m.ObserveStale()
	m.BlockReceived()
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Retransmission()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "coap_retransmissions_total 1") {
		t.Errorf("metrics output missing retransmission counter:\n%s", rec.Body.String())
	}
}
