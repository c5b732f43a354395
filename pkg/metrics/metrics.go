package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "chainfeed"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	Feed = "feed"
	RPC  = "rpc"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple feed server instances.
type Labels struct {
	Network       string // Chain network (e.g., "main", "test")
	Environment   string // Deployment environment (e.g., "production", "staging", "development")
	Region        string // Cloud region (e.g., "us-east-1", "eu-west-1")
	CloudProvider string // Cloud provider (e.g., "aws", "oci", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Network != "" {
		labels["network"] = l.Network
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// Feed window state, by feed name
	highest     *prometheus.GaugeVec
	lowest      *prometheus.GaugeVec
	windowItems *prometheus.GaugeVec

	// Sync operations
	syncs             *prometheus.CounterVec // by feed, op, status
	itemsMerged       *prometheus.CounterVec // by feed, direction
	duplicatesDropped *prometheus.CounterVec // by feed, direction
	errors            *prometheus.CounterVec

	// RPC metrics
	rpcCalls    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	rpcInFlight prometheus.Gauge
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels (e.g., network), use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		highest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Feed,
			Name:      "highest",
			Help:      "Highest loaded position of the feed window (head cursor)",
		}, []string{"feed"}),
		lowest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Feed,
			Name:      "lowest",
			Help:      "Lowest loaded position of the feed window (tail cursor)",
		}, []string{"feed"}),
		windowItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Feed,
			Name:      "window_items",
			Help:      "Number of items currently cached in the feed window",
		}, []string{"feed"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Feed,
			Name:      "syncs_total",
			Help:      "Total sync operations by feed, operation and outcome",
		}, []string{"feed", "op", "status"}),
		itemsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Feed,
			Name:      "items_merged_total",
			Help:      "Total items inserted into the feed window by direction",
		}, []string{"feed", "direction"}),
		duplicatesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Feed,
			Name:      "duplicates_dropped_total",
			Help:      "Total fetched items dropped because their key was already cached",
		}, []string{"feed", "direction"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "calls_total",
			Help:      "Total RPC calls by method and status",
		}, []string{"method", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "duration_seconds",
			Help:      "RPC call duration in seconds",
			// Buckets cover typical RPC latencies: 1ms, 5ms, 10ms, 25ms, 50ms,
			// 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),
		rpcInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: RPC,
			Name:      "in_flight",
			Help:      "Number of RPC calls currently in progress",
		}),
	}

	err := errors.Join(
		reg.Register(m.highest),
		reg.Register(m.lowest),
		reg.Register(m.windowItems),
		reg.Register(m.syncs),
		reg.Register(m.itemsMerged),
		reg.Register(m.duplicatesDropped),
		reg.Register(m.errors),
		reg.Register(m.rpcCalls),
		reg.Register(m.rpcDuration),
		reg.Register(m.rpcInFlight),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants for non-RPC errors (RPC errors are tracked via rpcCalls{status="error"}).
const (
	ErrTypeTransport         = "transport"
	ErrTypeMalformedResponse = "malformed_response"
	ErrTypeNotInitialized    = "not_initialized"
	ErrTypeOther             = "other"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// RecordSync records the outcome of one sync operation (initialize, poll_head,
// extend_tail). fetched is the raw number of items returned by the data source,
// added the number that survived deduplication.
func (m *Metrics) RecordSync(feed, op, direction, status string, fetched, added int) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(feed, op, status).Inc()
	if added > 0 {
		m.itemsMerged.WithLabelValues(feed, direction).Add(float64(added))
	}
	if dropped := fetched - added; dropped > 0 {
		m.duplicatesDropped.WithLabelValues(feed, direction).Add(float64(dropped))
	}
}

// UpdateWindowMetrics updates feed window gauges.
func (m *Metrics) UpdateWindowMetrics(feed string, highest, lowest int64, items int) {
	if m == nil {
		return
	}
	m.highest.WithLabelValues(feed).Set(float64(highest))
	m.lowest.WithLabelValues(feed).Set(float64(lowest))
	m.windowItems.WithLabelValues(feed).Set(float64(items))
}

// IncRPCInFlight increments the in-flight RPC gauge.
func (m *Metrics) IncRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Inc()
}

// DecRPCInFlight decrements the in-flight RPC gauge.
func (m *Metrics) DecRPCInFlight() {
	if m == nil {
		return
	}
	m.rpcInFlight.Dec()
}

// RecordRPCCall records an RPC call outcome.
func (m *Metrics) RecordRPCCall(method string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.rpcCalls.WithLabelValues(method, status).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(durationSeconds)
}
