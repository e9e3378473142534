// Package metrics exposes the server's Prometheus collectors. Everything is
// registered on the default registry and served by the ops listener.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wordduel_connections_accepted_total",
			Help: "Total client connections accepted by the game listener",
		},
	)
	HandshakeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wordduel_handshake_failures_total",
			Help: "Total connections dropped during the password handshake",
		},
	)
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wordduel_active_sessions",
			Help: "Client sessions currently connected",
		},
	)
	CommandsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wordduel_commands_executed_total",
			Help: "Total commands executed, by command name",
		},
		[]string{"command"},
	)
	EnvelopesPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wordduel_envelopes_published_total",
			Help: "Total envelopes fanned out by the dispatcher",
		},
	)
	SubscribersPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wordduel_subscribers_pruned_total",
			Help: "Total subscribers dropped for not draining their buffer",
		},
	)
	FramesRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wordduel_frames_rejected_total",
			Help: "Total inbound frames rejected as malformed",
		},
	)
	DebugPagesServed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wordduel_debug_pages_served_total",
			Help: "Total debug HTML pages served to HTTP probes on the game port",
		},
	)
)

func init() {
	prometheus.MustRegister(ConnectionsAccepted)
	prometheus.MustRegister(HandshakeFailures)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(CommandsExecuted)
	prometheus.MustRegister(EnvelopesPublished)
	prometheus.MustRegister(SubscribersPruned)
	prometheus.MustRegister(FramesRejected)
	prometheus.MustRegister(DebugPagesServed)
}
