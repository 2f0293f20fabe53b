package middleman

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"buildweaver/internal/action"
	"buildweaver/internal/artifact"
)

var binRoot = artifact.NewDerivedRoot("bin", "buildweaver-out/k8-fastbuild/bin")

type fixture struct {
	table *artifact.Table
	gen   *action.GeneratingMap
	agg   *Aggregator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	table := artifact.NewTable()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return &fixture{
		table: table,
		gen:   action.NewGeneratingMap(nil),
		agg:   NewAggregator(table, opts...),
	}
}

func (f *fixture) artifacts(t testing.TB, names ...string) []artifact.Artifact {
	t.Helper()
	out := make([]artifact.Artifact, 0, len(names))
	for _, n := range names {
		a, err := f.table.GetOrCreate(binRoot, n, artifact.KindDerived)
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func TestAggregate_SameSetAnyOrder(t *testing.T) {
	f := newFixture(t)
	reg := action.NewRegistry("s1", f.gen, nil)
	abc := f.artifacts(t, "A", "B", "C")

	m1, err := f.agg.Aggregate(reg, "//pkg:x", "runfiles", abc)
	require.NoError(t, err)
	m2, err := f.agg.Aggregate(reg, "//pkg:x", "runfiles", []artifact.Artifact{abc[2], abc[1], abc[0]})
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
	assert.Equal(t, artifact.KindMiddleman, m1.Kind())
	assert.Equal(t, artifact.MiddlemanRoot, m1.Root())
	assert.Len(t, reg.RegisteredActions(), 1)

	act, ok := reg.GeneratingActionOf(m1)
	require.True(t, ok)
	assert.Equal(t, Mnemonic, act.Mnemonic)
	assert.ElementsMatch(t, abc, act.Inputs)
	assert.Equal(t, []artifact.Artifact{m1}, act.Outputs)
	assert.Equal(t, 1, f.agg.Len())
}

func TestAggregate_DedupAcrossSessions(t *testing.T) {
	f := newFixture(t)
	s1 := action.NewRegistry("s1", f.gen, nil)
	s2 := action.NewRegistry("s2", f.gen, nil)
	in := f.artifacts(t, "x", "y")

	m1, err := f.agg.Aggregate(s1, "//a", "", in)
	require.NoError(t, err)
	m2, err := f.agg.Aggregate(s2, "//b", "", []artifact.Artifact{in[1], in[0], in[1]})
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
	assert.Len(t, s1.RegisteredActions(), 1)
	assert.Empty(t, s2.RegisteredActions())
	assert.Equal(t, s1.RegisteredActions(), s2.SharedActions())
	assert.Empty(t, s1.SharedActions())
	assert.Equal(t, 1, f.gen.Len())

	_, ok := s2.GeneratingActionOf(m2)
	assert.False(t, ok, "shared actions stay owned by the creating session")
}

func TestAggregate_HitOnClosedRegistryFails(t *testing.T) {
	f := newFixture(t)
	in := f.artifacts(t, "x", "y")
	_, err := f.agg.Aggregate(action.NewRegistry("s1", f.gen, nil), "//a", "", in)
	require.NoError(t, err)

	closed := action.NewRegistry("s2", f.gen, nil)
	closed.Close()
	_, err = f.agg.Aggregate(closed, "//b", "", in)
	require.ErrorIs(t, err, action.ErrRegistryClosed)
}

func TestAggregate_DifferentSetsOrPurposes(t *testing.T) {
	f := newFixture(t)
	reg := action.NewRegistry("s1", f.gen, nil)
	in := f.artifacts(t, "a", "b", "c")

	ab, err := f.agg.Aggregate(reg, "//x", "", in[:2])
	require.NoError(t, err)
	abc, err := f.agg.Aggregate(reg, "//x", "", in)
	require.NoError(t, err)
	abTools, err := f.agg.Aggregate(reg, "//x", "tools", in[:2])
	require.NoError(t, err)

	assert.NotEqual(t, ab, abc)
	assert.NotEqual(t, ab, abTools)
	assert.Len(t, reg.RegisteredActions(), 3)
}

func TestAggregate_EdgeCases(t *testing.T) {
	f := newFixture(t)
	reg := action.NewRegistry("s1", f.gen, nil)
	in := f.artifacts(t, "only")

	_, err := f.agg.Aggregate(reg, "//x", "", nil)
	assert.ErrorIs(t, err, ErrEmptyInputs)

	single, err := f.agg.Aggregate(reg, "//x", "", []artifact.Artifact{in[0], in[0]})
	require.NoError(t, err)
	assert.Equal(t, in[0], single)
	assert.Empty(t, reg.RegisteredActions())

	_, err = f.agg.Aggregate(reg, "//x", "bad/purpose", f.artifacts(t, "p", "q"))
	assert.ErrorIs(t, err, ErrInvalidPurpose)
}

func TestAggregate_ClosedRegistryNotCached(t *testing.T) {
	f := newFixture(t)
	closed := action.NewRegistry("s1", f.gen, nil)
	closed.Close()
	in := f.artifacts(t, "a", "b")

	_, err := f.agg.Aggregate(closed, "//x", "", in)
	require.ErrorIs(t, err, action.ErrRegistryClosed)
	assert.Equal(t, 0, f.agg.Len())

	open := action.NewRegistry("s2", f.gen, nil)
	mm, err := f.agg.Aggregate(open, "//x", "", in)
	require.NoError(t, err)
	assert.False(t, mm.IsZero())
}

type countingObserver struct {
	hits, misses atomic.Int64
}

func (o *countingObserver) MiddlemanHit()  { o.hits.Add(1) }
func (o *countingObserver) MiddlemanMiss() { o.misses.Add(1) }

func TestAggregate_ConcurrentCallersShareOneAction(t *testing.T) {
	obs := &countingObserver{}
	f := newFixture(t, WithObserver(obs))
	in := f.artifacts(t, "a", "b", "c", "d")

	const sessions = 32
	regs := make([]*action.Registry, sessions)
	got := make([]artifact.Artifact, sessions)
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		regs[i] = action.NewRegistry(fmt.Sprintf("s%d", i), f.gen, nil)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			perm := []artifact.Artifact{in[i%4], in[(i+1)%4], in[(i+2)%4], in[(i+3)%4]}
			mm, err := f.agg.Aggregate(regs[i], fmt.Sprintf("//t%d", i), "", perm)
			if err != nil {
				t.Errorf("session %d: %v", i, err)
				return
			}
			got[i] = mm
		}(i)
	}
	wg.Wait()

	total, shared := 0, 0
	for i := range regs {
		assert.Equal(t, got[0], got[i])
		total += len(regs[i].RegisteredActions())
		shared += len(regs[i].SharedActions())
	}
	assert.Equal(t, 1, total)
	assert.Equal(t, sessions-1, shared)
	assert.Equal(t, int64(1), obs.misses.Load())
	assert.Equal(t, int64(sessions-1), obs.hits.Load())
}

func TestProperty_MiddlemanDedup(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		table := artifact.NewTable()
		gen := action.NewGeneratingMap(nil)
		agg := NewAggregator(table)
		reg := action.NewRegistry("s", gen, nil)

		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 2, 8, rapid.ID[string]).Draw(rt, "names")
		in := make([]artifact.Artifact, 0, len(names))
		for _, n := range names {
			a, err := table.GetOrCreate(binRoot, n, artifact.KindDerived)
			require.NoError(rt, err)
			in = append(in, a)
		}
		perm := rapid.Permutation(in).Draw(rt, "perm")

		m1, err := agg.Aggregate(reg, "//x", "", in)
		require.NoError(rt, err)
		m2, err := agg.Aggregate(reg, "//x", "", perm)
		require.NoError(rt, err)
		require.Equal(rt, m1, m2)
		require.Len(rt, reg.RegisteredActions(), 1)
	})
}
