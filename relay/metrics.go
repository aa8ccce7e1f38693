package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// serverMetrics holds the relay's observability counters on a per-server
// registry so multiple relays can coexist in one process.
type serverMetrics struct {
	registry        *prometheus.Registry
	connectedAgents prometheus.Gauge
	framesRouted    prometheus.Counter
	framesQueued    prometheus.Counter
	routeFailures   prometheus.Counter
	decodeErrors    prometheus.Counter
}

func newServerMetrics() *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		connectedAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opacus_relay_connected_agents",
			Help: "Number of agents currently registered in the routing table.",
		}),
		framesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opacus_relay_frames_routed_total",
			Help: "Frames forwarded to a connected recipient.",
		}),
		framesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opacus_relay_frames_queued_total",
			Help: "Frames placed in the offline queue.",
		}),
		routeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opacus_relay_route_failures_total",
			Help: "Transient datagram send failures while routing.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opacus_relay_decode_errors_total",
			Help: "Inbound datagrams that failed to decode.",
		}),
	}
	m.registry.MustRegister(
		m.connectedAgents,
		m.framesRouted,
		m.framesQueued,
		m.routeFailures,
		m.decodeErrors,
	)
	return m
}
