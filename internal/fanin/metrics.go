package fanin

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks correlation core statistics: how many requests are in
// flight and how they terminate, plus the listener/dispatcher failure
// counters that feed the health picture.
type Metrics struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	registered bool

	inFlight              prometheus.Gauge
	completionsTotal      *prometheus.CounterVec
	lateRepliesTotal      *prometheus.CounterVec
	decodeFailuresTotal   *prometheus.CounterVec
	dispatchRetriesTotal  *prometheus.CounterVec
	dispatchFailuresTotal *prometheus.CounterVec
}

func newCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photomood",
			Subsystem: "orchestrator",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewMetrics creates the collector set. A nil registerer falls back to the
// Prometheus default registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		registerer: registerer,
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "photomood",
			Subsystem: "orchestrator",
			Name:      "inflight_requests",
			Help:      "Current number of correlation ids in the pending request table",
		}),
		completionsTotal:      newCounterVec("completions_total", "Total completed requests by terminal status", []string{"status"}),
		lateRepliesTotal:      newCounterVec("late_replies_total", "Replies discarded because their correlation id was no longer in flight", []string{"service"}),
		decodeFailuresTotal:   newCounterVec("decode_failures_total", "Malformed result messages dropped by the listener", []string{"topic"}),
		dispatchRetriesTotal:  newCounterVec("dispatch_retries_total", "Job publish attempts that failed and were retried", []string{"queue"}),
		dispatchFailuresTotal: newCounterVec("dispatch_failures_total", "Job dispatches that exhausted their retry budget", []string{"queue"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *Metrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.inFlight,
		m.completionsTotal,
		m.lateRepliesTotal,
		m.decodeFailuresTotal,
		m.dispatchRetriesTotal,
		m.dispatchFailuresTotal,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Admitted records a new in-flight request.
func (m *Metrics) Admitted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// Completed records a terminal outcome and releases the in-flight slot.
func (m *Metrics) Completed(status Status) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.completionsTotal.WithLabelValues(string(status)).Inc()
}

// LateReply records a reply for a correlation id no longer in the table.
func (m *Metrics) LateReply(service string) {
	if m == nil {
		return
	}
	m.lateRepliesTotal.WithLabelValues(service).Inc()
}

// DecodeFailure records a malformed result message dropped by the listener.
func (m *Metrics) DecodeFailure(topic string) {
	if m == nil {
		return
	}
	m.decodeFailuresTotal.WithLabelValues(topic).Inc()
}

// DispatchRetry records one failed publish attempt that will be retried.
func (m *Metrics) DispatchRetry(queue string) {
	if m == nil {
		return
	}
	m.dispatchRetriesTotal.WithLabelValues(queue).Inc()
}

// DispatchFailure records a dispatch that exhausted its retry budget.
func (m *Metrics) DispatchFailure(queue string) {
	if m == nil {
		return
	}
	m.dispatchFailuresTotal.WithLabelValues(queue).Inc()
}
