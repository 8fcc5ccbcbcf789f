package status

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "ionode"

// metrics holds the Prometheus collectors for the node.
type metrics struct {
	registry *prometheus.Registry

	info            *prometheus.GaugeVec
	bootCount       prometheus.Gauge
	linkState       *prometheus.GaugeVec
	linkTransitions prometheus.Counter
	sessionState    *prometheus.GaugeVec
	buttonPressed   prometheus.Gauge
	buttonChanges   prometheus.Counter
	ledLevel        prometheus.Gauge
	commands        *prometheus.CounterVec
	publishDropped  prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "info",
			Help:      "Node build and identity information",
		}, []string{"version", "device_id"}),
		bootCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "boot_count",
			Help:      "Number of times the node has started",
		}),
		linkState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "link",
			Name:      "state",
			Help:      "Current link state (1 for the active state)",
		}, []string{"state"}),
		linkTransitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "link",
			Name:      "connect_attempts_total",
			Help:      "Total number of link connect attempts",
		}),
		sessionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Current session state (1 for the active state)",
		}, []string{"state"}),
		buttonPressed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "button",
			Name:      "pressed",
			Help:      "1 while the button is pressed",
		}),
		buttonChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "button",
			Name:      "transitions_total",
			Help:      "Total number of debounced button transitions",
		}),
		ledLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "led",
			Name:      "level",
			Help:      "Current LED output level",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "command",
			Name:      "received_total",
			Help:      "Total number of command payloads by decoded command",
		}, []string{"command"}),
		publishDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "publish_dropped_total",
			Help:      "Total number of publishes dropped while the session was not open",
		}),
	}

	m.registry.MustRegister(
		m.info,
		m.bootCount,
		m.linkState,
		m.linkTransitions,
		m.sessionState,
		m.buttonPressed,
		m.buttonChanges,
		m.ledLevel,
		m.commands,
		m.publishDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// setOneHot sets the label matching active to 1 and every other to 0.
func setOneHot(vec *prometheus.GaugeVec, states []string, active string) {
	for _, s := range states {
		v := 0.0
		if s == active {
			v = 1
		}
		vec.WithLabelValues(s).Set(v)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
