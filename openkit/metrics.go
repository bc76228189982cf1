package openkit

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/openkit-go/openkit/caching"
	"github.com/openkit-go/openkit/communication"
	"github.com/openkit-go/openkit/watchdog"
)

// metrics bundles the Prometheus collectors exposed by one OpenKit
// instance: gauges sampled on scrape from the live cache/sender/watchdog
// (no extra bookkeeping needed in those packages) plus counters
// incremented at the facade's own call sites.
type metrics struct {
	registry *prometheus.Registry

	sessionsCreated prometheus.Counter
	sessionsEnded   prometheus.Counter
}

func newMetrics(cache *caching.BeaconCache, sender *communication.SenderContext, wd *watchdog.SessionWatchdogContext) *metrics {
	reg := prometheus.NewRegistry()

	m := &metrics{
		registry: reg,
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openkit", Name: "sessions_created_total",
			Help: "Number of sessions created via CreateSession.",
		}),
		sessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openkit", Name: "sessions_ended_total",
			Help: "Number of sessions explicitly ended by the caller.",
		}),
	}

	cacheBytes := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "openkit", Name: "cache_bytes",
		Help: "Current size of buffered-but-not-yet-sent beacon data.",
	}, func() float64 { return float64(cache.NumBytesInCache()) })

	senderState := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "openkit", Name: "sender_state",
		Help: "Current sender state machine state (ordinal, see StateKind).",
	}, func() float64 { return float64(sender.CurrentStateKind()) })

	watchdogClosing := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "openkit", Name: "watchdog_closing_queue_length",
		Help: "Sessions awaiting a forced close by the watchdog.",
	}, func() float64 { return float64(wd.ClosingQueueLen()) })

	watchdogSplitting := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "openkit", Name: "watchdog_splitting_queue_length",
		Help: "Sessions awaiting a time-based split by the watchdog.",
	}, func() float64 { return float64(wd.SplittingQueueLen()) })

	reg.MustRegister(m.sessionsCreated, m.sessionsEnded, cacheBytes, senderState, watchdogClosing, watchdogSplitting)
	return m
}

// Registry exposes the Prometheus registry so a host application can serve
// it (e.g. via promhttp.HandlerFor).
func (m *metrics) Registry() *prometheus.Registry { return m.registry }
