package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"buildweaver/internal/artifact"
)

// DefaultNamespace prefixes every metric name unless configured otherwise.
const DefaultNamespace = "buildweaver"

// Session outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded"
)

// Collector holds the analysis metrics of one process.
type Collector struct {
	artifactsInterned *prometheus.CounterVec
	kindConflicts     *prometheus.CounterVec
	actionsRegistered *prometheus.CounterVec
	actionConflicts   *prometheus.CounterVec
	middlemanLookups  *prometheus.CounterVec
	orphans           prometheus.Counter
	sessionsTotal     *prometheus.CounterVec
	sessionDuration   prometheus.Histogram

	logger *zap.Logger
}

// NewCollector creates the metrics and registers them on reg. A nil reg
// leaves them unregistered, which is what tests and library callers without a
// metrics endpoint want.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.artifactsInterned = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_interned_total",
			Help:      "Artifact identities interned, by kind",
		},
		[]string{"kind"},
	)

	c.kindConflicts = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_kind_conflicts_total",
			Help:      "Requests for an existing artifact with a different kind",
		},
		[]string{"existing", "requested"},
	)

	c.actionsRegistered = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_registered_total",
			Help:      "Actions registered, by mnemonic",
		},
		[]string{"mnemonic"},
	)

	c.actionConflicts = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generating_action_conflicts_total",
			Help:      "Registrations rejected because an output already had a generating action",
		},
		[]string{"mnemonic"},
	)

	c.middlemanLookups = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "middleman_lookups_total",
			Help:      "Middleman requests by cache result",
		},
		[]string{"result"},
	)

	c.orphans = f.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphan_artifacts_total",
			Help:      "Declared artifacts left without a generating action",
		},
	)

	c.sessionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_sessions_total",
			Help:      "Analysis sessions by outcome",
		},
		[]string{"outcome"},
	)

	c.sessionDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_session_duration_seconds",
			Help:      "Time from session creation to finish or discard",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	return c
}

// ArtifactInterned implements artifact.Observer.
func (c *Collector) ArtifactInterned(kind artifact.Kind) {
	c.artifactsInterned.WithLabelValues(kind.String()).Inc()
}

// ArtifactKindConflict implements artifact.Observer.
func (c *Collector) ArtifactKindConflict(existing, requested artifact.Kind) {
	c.kindConflicts.WithLabelValues(existing.String(), requested.String()).Inc()
}

// ActionRegistered implements action.Observer.
func (c *Collector) ActionRegistered(mnemonic string) {
	c.actionsRegistered.WithLabelValues(mnemonic).Inc()
}

// ActionConflict implements action.Observer.
func (c *Collector) ActionConflict(mnemonic string) {
	c.actionConflicts.WithLabelValues(mnemonic).Inc()
}

// MiddlemanHit implements middleman.Observer.
func (c *Collector) MiddlemanHit() { c.middlemanLookups.WithLabelValues("hit").Inc() }

// MiddlemanMiss implements middleman.Observer.
func (c *Collector) MiddlemanMiss() { c.middlemanLookups.WithLabelValues("miss").Inc() }

// RecordOrphans adds n orphan artifacts.
func (c *Collector) RecordOrphans(n int) {
	if n <= 0 {
		return
	}
	c.orphans.Add(float64(n))
}

// RecordSession records a concluded session.
func (c *Collector) RecordSession(outcome string, d time.Duration) {
	c.sessionsTotal.WithLabelValues(outcome).Inc()
	c.sessionDuration.Observe(d.Seconds())
	c.logger.Debug("session concluded",
		zap.String("outcome", outcome),
		zap.Duration("duration", d))
}
