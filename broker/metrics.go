package broker

import "github.com/prometheus/client_golang/prometheus"

// brokerMetrics counts protocol activity. The broker only creates the
// collectors; the host decides whether and where to expose them (see
// Broker.Collectors).
type brokerMetrics struct {
	requestsReceived   prometheus.Counter
	requestsDispatched prometheus.Counter
	repliesForwarded   prometheus.Counter
	workersExpired     prometheus.Counter
	heartbeatsSent     prometheus.Counter
	liveWorkers        prometheus.Gauge
}

func newBrokerMetrics() *brokerMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "majordomo",
			Subsystem: "broker",
			Name:      name,
			Help:      help,
		})
	}

	return &brokerMetrics{
		requestsReceived:   counter("requests_received_total", "Client requests accepted into a pending queue."),
		requestsDispatched: counter("requests_dispatched_total", "Requests delivered to a worker."),
		repliesForwarded:   counter("replies_forwarded_total", "Worker replies forwarded to clients."),
		workersExpired:     counter("workers_expired_total", "Workers removed because their TTL ran out."),
		heartbeatsSent:     counter("heartbeats_sent_total", "Heartbeats sent to live workers."),
		liveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "majordomo",
			Subsystem: "broker",
			Name:      "live_workers",
			Help:      "Workers currently registered and unexpired.",
		}),
	}
}

func (m *brokerMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestsReceived,
		m.requestsDispatched,
		m.repliesForwarded,
		m.workersExpired,
		m.heartbeatsSent,
		m.liveWorkers,
	}
}
