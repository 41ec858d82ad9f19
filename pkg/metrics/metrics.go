// Package metrics provides Prometheus instrumentation for CoAP exchanges.
//
// A nil *Metrics is valid and records nothing, so components take it as an
// optional config field.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "coap"

// Metrics holds the exchange counters.
type Metrics struct {
	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	Retransmissions  prometheus.Counter
	Timeouts         prometheus.Counter
	DecodeErrors     prometheus.Counter
	SendErrors       prometheus.Counter
	Duplicates       prometheus.Counter

	ObserveNotifications *prometheus.CounterVec
	BlocksReceived       prometheus.Counter
}

// New registers the metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "messages_sent_total",
				Help:      "Total number of CoAP messages written to the socket",
			},
			[]string{"type"},
		),
		MessagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "messages_received_total",
				Help:      "Total number of decoded CoAP messages received",
			},
			[]string{"type"},
		),
		Retransmissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "retransmissions_total",
			Help:      "Total number of Confirmable retransmissions",
		}),
		Timeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "timeouts_total",
			Help:      "Total number of exchanges closed by the max transmit wait",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decode_errors_total",
			Help:      "Total number of inbound datagrams that failed to decode",
		}),
		SendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "send_errors_total",
			Help:      "Total number of socket write failures",
		}),
		Duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "duplicates_total",
			Help:      "Total number of duplicate messages detected",
		}),
		ObserveNotifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "observe_notifications_total",
				Help:      "Total number of Observe notifications by outcome",
			},
			[]string{"outcome"},
		),
		BlocksReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "blocks_received_total",
			Help:      "Total number of Block2 blocks accepted",
		}),
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// MessageSent counts one outbound message of the given type ("CON", "ACK", ...).
func (m *Metrics) MessageSent(typ string) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(typ).Inc()
}

// MessageReceived counts one decoded inbound message.
func (m *Metrics) MessageReceived(typ string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(typ).Inc()
}

func (m *Metrics) Retransmission() {
	if m == nil {
		return
	}
	m.Retransmissions.Inc()
}

func (m *Metrics) Timeout() {
	if m == nil {
		return
	}
	m.Timeouts.Inc()
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

func (m *Metrics) SendError() {
	if m == nil {
		return
	}
	m.SendErrors.Inc()
}

func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.Duplicates.Inc()
}

// ObserveNotification counts an accepted notification.
func (m *Metrics) ObserveNotification() {
	if m == nil {
		return
	}
	m.ObserveNotifications.WithLabelValues("accepted").Inc()
}

// ObserveStale counts a notification dropped as older than the last one.
func (m *Metrics) ObserveStale() {
	if m == nil {
		return
	}
	m.ObserveNotifications.WithLabelValues("stale").Inc()
}

func (m *Metrics) BlockReceived() {
	if m == nil {
		return
	}
	m.BlocksReceived.Inc()
}
