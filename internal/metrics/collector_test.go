package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"buildweaver/internal/action"
	"buildweaver/internal/artifact"
	"buildweaver/internal/middleman"
)

var (
	_ artifact.Observer  = (*Collector)(nil)
	_ action.Observer    = (*Collector)(nil)
	_ middleman.Observer = (*Collector)(nil)
)

func TestNewCollector_RegistersOnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg, zap.NewNop())
	c.RecordSession(OutcomeSuccess, time.Millisecond)
	c.ArtifactInterned(artifact.KindDerived)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_analysis_sessions_total")
	assert.Contains(t, names, "test_artifacts_interned_total")
}

func TestNewCollector_NilRegistererDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		a := NewCollector("", nil, nil)
		b := NewCollector("", nil, nil)
		a.MiddlemanHit()
		b.MiddlemanHit()
	})
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test", nil, nil)

	c.ArtifactInterned(artifact.KindDerived)
	c.ArtifactInterned(artifact.KindDerived)
	c.ArtifactInterned(artifact.KindMiddleman)
	c.ArtifactKindConflict(artifact.KindDerived, artifact.KindFileset)
	c.ActionRegistered("Compile")
	c.ActionConflict("Compile2")
	c.MiddlemanMiss()
	c.MiddlemanHit()
	c.MiddlemanHit()
	c.RecordOrphans(3)
	c.RecordOrphans(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.artifactsInterned.WithLabelValues("derived")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.artifactsInterned.WithLabelValues("middleman")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.kindConflicts.WithLabelValues("derived", "fileset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.actionsRegistered.WithLabelValues("Compile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.actionConflicts.WithLabelValues("Compile2")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.middlemanLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.middlemanLookups.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.orphans))
}

func TestCollector_RecordSession(t *testing.T) {
	c := NewCollector("test", nil, nil)
	c.RecordSession(OutcomeSuccess, 2*time.Millisecond)
	c.RecordSession(OutcomeError, time.Millisecond)
	c.RecordSession(OutcomeSuccess, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsTotal.WithLabelValues(OutcomeError)))

	expected := `
# HELP test_analysis_sessions_total Analysis sessions by outcome
# TYPE test_analysis_sessions_total counter
test_analysis_sessions_total{outcome="error"} 1
test_analysis_sessions_total{outcome="success"} 2
`
	require.NoError(t, testutil.CollectAndCompare(c.sessionsTotal, strings.NewReader(expected)))
	assert.Equal(t, 1, testutil.CollectAndCount(c.sessionDuration))
}
