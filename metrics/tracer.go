// Package metrics exposes the dispatch layer's events as Prometheus metrics.
package metrics

import (
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/masa-koz/quic-dispatch/logging"
)

const metricNamespace = "quicdispatch"

func getIPVersion(addr netip.AddrPort) string {
	if addr.Addr().Unmap().Is4() {
		return "ipv4"
	}
	return "ipv6"
}

// NewTracer creates a tracer registering its metrics with the default
// Prometheus registerer.
func NewTracer() *logging.Tracer {
	return NewTracerWithRegisterer(prometheus.DefaultRegisterer)
}

// NewTracerWithRegisterer creates a tracer registering its metrics with a
// custom Prometheus registerer.
func NewTracerWithRegisterer(registerer prometheus.Registerer) *logging.Tracer {
	packetsReceived := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "received_packets_total",
			Help:      "Packets received",
		},
		[]string{"ip_version"},
	)
	packetsDropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "dropped_packets_total",
			Help:      "Packets dropped without a reply",
		},
		[]string{"ip_version", "reason"},
	)
	versionNegotiations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "sent_version_negotiation_total",
			Help:      "Version Negotiation packets sent",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "sent_retry_total",
			Help:      "Retry packets sent",
		},
	)
	connsAccepted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "accepted_connections_total",
			Help:      "Connections accepted",
		},
	)
	connsLive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "live_connections",
			Help:      "Connections currently tracked",
		},
	)
	for _, c := range []prometheus.Collector{
		packetsReceived, packetsDropped, versionNegotiations, retries, connsAccepted, connsLive,
	} {
		registerer.MustRegister(c)
	}

	return &logging.Tracer{
		ReceivedPacket: func(from netip.AddrPort, size int) {
			packetsReceived.WithLabelValues(getIPVersion(from)).Inc()
		},
		DroppedPacket: func(from netip.AddrPort, size int, reason logging.PacketDropReason) {
			packetsDropped.WithLabelValues(getIPVersion(from), reason.String()).Inc()
		},
		SentVersionNegotiation: func(to netip.AddrPort) {
			versionNegotiations.Inc()
		},
		SentRetry: func(to netip.AddrPort) {
			retries.Inc()
		},
		AcceptedConnection: func(dcid logging.ConnectionID, from netip.AddrPort) {
			connsAccepted.Inc()
			connsLive.Inc()
		},
		CollectedConnection: func(traceID string, stats logging.ConnectionStats) {
			connsLive.Dec()
		},
	}
}
