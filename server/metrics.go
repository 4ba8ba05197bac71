package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blockberries/abci/types"
)

// Termination reasons reported by the sessions_closed_total metric.
const (
	reasonEOF       = "eof"
	reasonFraming   = "framing"
	reasonDecode    = "decode"
	reasonFault     = "fault"
	reasonTransport = "transport"
	reasonClosed    = "closed"
)

// Metrics collects per-server Prometheus metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	sessions        prometheus.Gauge
	sessionsClosed  *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	resultCodes     *prometheus.CounterVec
	cycleViolations *prometheus.CounterVec
}

// NewMetrics creates the server metrics and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "abci",
			Name:      "sessions",
			Help:      "Open ABCI connections.",
		}),
		sessionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "abci",
				Name:      "sessions_closed_total",
				Help:      "Terminated ABCI connections by reason.",
			},
			[]string{"reason"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "abci",
				Name:      "requests_total",
				Help:      "Dispatched requests by kind.",
			},
			[]string{"kind"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "abci",
				Name:      "request_duration_seconds",
				Help:      "Application callback duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		resultCodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "abci",
				Name:      "nonzero_codes_total",
				Help:      "Responses carrying a nonzero result code, by kind.",
			},
			[]string{"kind"},
		),
		cycleViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "abci",
				Name:      "block_cycle_violations_total",
				Help:      "Consensus requests received out of block-cycle order, by kind.",
			},
			[]string{"kind"},
		),
	}
	reg.MustRegister(m.sessions, m.sessionsClosed, m.requests, m.requestDuration, m.resultCodes, m.cycleViolations)
	return m
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() *Metrics { return nil }

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) sessionClosed(reason string) {
	if m != nil {
		m.sessions.Dec()
		m.sessionsClosed.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) observeRequest(resp types.Response, kind types.Kind, d time.Duration) {
	if m == nil {
		return
	}
	k := kind.String()
	m.requests.WithLabelValues(k).Inc()
	m.requestDuration.WithLabelValues(k).Observe(d.Seconds())
	if resp != nil && resp.ResultCode() != types.CodeTypeOK {
		m.resultCodes.WithLabelValues(k).Inc()
	}
}

func (m *Metrics) cycleViolation(kind types.Kind) {
	if m != nil {
		m.cycleViolations.WithLabelValues(kind.String()).Inc()
	}
}
