package rule

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"buildweaver/internal/action"
	"buildweaver/internal/analysis"
	"buildweaver/internal/artifact"
	"buildweaver/internal/event"
	"buildweaver/internal/middleman"
)

func loadTestdata(t *testing.T) *Description {
	t.Helper()
	d, err := Load(filepath.Join("testdata", "build.yaml"))
	require.NoError(t, err)
	return d
}

func analyze(t *testing.T, b *analysis.Build, d *Description, label string) (analysis.Snapshot, error) {
	t.Helper()
	target, ok := d.Target(label)
	require.True(t, ok, label)
	cfg, err := target.ConfigurationOf()
	require.NoError(t, err)
	s, err := b.NewSession(label, cfg)
	require.NoError(t, err)
	analyzeErr := target.Analyze(s)
	snap, err := s.Finish()
	require.NoError(t, err)
	return snap, analyzeErr
}

func TestLoad(t *testing.T) {
	d := loadTestdata(t)

	assert.Equal(t, []string{"//app:main", "//lib:core"}, d.Labels())
	cfg, ok := d.Configuration("k8-fastbuild")
	require.True(t, ok)
	assert.Equal(t, "buildweaver-out/k8-fastbuild/bin", cfg.BinRoot.ExecPath)
	assert.Len(t, d.Keys(), 2)

	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "targets:\n  - label: //a\n    bogus: 1\n",
			want: "bogus",
		},
		{
			name: "unknown configuration",
			yaml: "targets:\n  - label: //a\n    configuration: nope\n",
			want: `unknown configuration "nope"`,
		},
		{
			name: "bad label",
			yaml: "configurations: [{name: c}]\ntargets:\n  - label: a\n    configuration: c\n",
			want: "must start with //",
		},
		{
			name: "duplicate name",
			yaml: `configurations: [{name: c}]
targets:
  - label: //a
    configuration: c
    sources: [{name: x, path: x.c}]
    artifacts: [{name: x, path: x.o}]
`,
			want: `name "x" is defined twice`,
		},
		{
			name: "undeclared output",
			yaml: `configurations: [{name: c}]
targets:
  - label: //a
    configuration: c
    sources: [{name: s, path: s.c}]
    actions: [{mnemonic: Cc, inputs: [s], outputs: [s]}]
`,
			want: `output "s" is not a declared artifact`,
		},
		{
			name: "unknown reference",
			yaml: `configurations: [{name: c}]
targets:
  - label: //a
    configuration: c
    artifacts: [{name: o, path: o}]
    actions: [{mnemonic: Cc, inputs: [ghost], outputs: [o]}]
`,
			want: `unknown reference "ghost"`,
		},
		{
			name: "unknown target reference",
			yaml: `configurations: [{name: c}]
targets:
  - label: //a
    configuration: c
    artifacts: [{name: o, path: o}]
    actions: [{mnemonic: Cc, inputs: ["//b#x"], outputs: [o]}]
`,
			want: "unknown target //b",
		},
		{
			name: "bad kind",
			yaml: `configurations: [{name: c}]
targets:
  - label: //a
    configuration: c
    artifacts: [{name: o, path: o, kind: middleman}]
`,
			want: "cannot be declared",
		},
		{
			name: "bad root",
			yaml: `configurations: [{name: c}]
targets:
  - label: //a
    configuration: c
    artifacts: [{name: o, path: o, root: tmp}]
`,
			want: `unknown root "tmp"`,
		},
		{
			name: "bad build info key",
			yaml: "build_info_keys: [lower]\n",
			want: "build_info_keys",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAnalyze_Testdata(t *testing.T) {
	d := loadTestdata(t)
	b, err := analysis.NewBuild(
		analysis.WithLogger(zaptest.NewLogger(t)),
		analysis.WithBuildInfoKeys(d.Keys()...),
	)
	require.NoError(t, err)

	app, err := analyze(t, b, d, "//app:main")
	require.NoError(t, err)
	lib, err := analyze(t, b, d, "//lib:core")
	require.NoError(t, err)

	assert.False(t, app.HasErrors)
	assert.False(t, lib.HasErrors)

	mnemonics := func(s analysis.Snapshot) []string {
		var out []string
		for _, a := range s.Actions {
			out = append(out, a.Mnemonic)
		}
		return out
	}
	assert.Equal(t, []string{middleman.Mnemonic, "Link", "Manifest"}, mnemonics(app))
	assert.Equal(t, []string{"Compile", "Archive"}, mnemonics(lib))

	require.Len(t, app.Orphans, 1)
	assert.Equal(t, "buildweaver-out/k8-fastbuild/bin/app/main.runfiles", app.Orphans[0].ExecPath())
	assert.Empty(t, lib.Orphans)

	link := app.Actions[1]
	var kinds []artifact.Kind
	for _, in := range link.Inputs {
		kinds = append(kinds, in.Kind())
	}
	assert.Contains(t, kinds, artifact.KindMiddleman)
	assert.Contains(t, kinds, artifact.KindEmbeddedTool)
	assert.Contains(t, kinds, artifact.KindConstantMetadata)

	cfg, _ := d.Configuration("k8-fastbuild")
	archive, ok := b.Table().Lookup(cfg.BinRoot, "lib/libcore.a")
	require.True(t, ok)
	producer, found := b.GeneratingMap().Producer(archive)
	require.True(t, found)
	assert.Equal(t, "//lib:core", producer.Owner)
}

func TestAnalyze_ConflictAcrossTargets(t *testing.T) {
	d, err := Parse([]byte(`configurations: [{name: c}]
targets:
  - label: //a
    configuration: c
    artifacts: [{name: o, path: out/foo.o}]
    actions: [{mnemonic: Compile, outputs: [o]}]
  - label: //b
    configuration: c
    artifacts: [{name: o, path: out/foo.o}]
    actions: [{mnemonic: Compile2, outputs: [o]}]
`))
	require.NoError(t, err)
	b, err := analysis.NewBuild()
	require.NoError(t, err)

	first, err := analyze(t, b, d, "//a")
	require.NoError(t, err)
	second, err := analyze(t, b, d, "//b")
	require.ErrorIs(t, err, action.ErrConflictingGeneratingAction)

	assert.Len(t, first.Actions, 1)
	assert.Empty(t, second.Actions)
	assert.True(t, second.HasErrors)
	require.Len(t, second.Events, 1)
	assert.Equal(t, event.CodeConflictingGeneratingAction, second.Events[0].Code)
	assert.Empty(t, second.Orphans)
}

func TestAnalyze_ContinuesAfterErrors(t *testing.T) {
	d, err := Parse([]byte(`configurations: [{name: c}]
targets:
  - label: //a
    configuration: c
    artifacts:
      - {name: o, path: o}
      - {name: p, path: p}
    build_info: [{name: stamp, key: NOT_CONFIGURED}]
    actions:
      - {mnemonic: Stamp, inputs: [stamp], outputs: [o]}
      - {mnemonic: Plain, outputs: [p]}
`))
	require.NoError(t, err)
	b, err := analysis.NewBuild()
	require.NoError(t, err)

	snap, err := analyze(t, b, d, "//a")
	require.Error(t, err)
	assert.True(t, snap.HasErrors)
	require.Len(t, snap.Actions, 1)
	assert.Equal(t, "Plain", snap.Actions[0].Mnemonic)

	codes := make([]event.Code, 0, len(snap.Events))
	for _, e := range snap.Events {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []event.Code{event.CodeInvalidRequest, event.CodeRuleError}, codes)
	assert.Len(t, snap.Orphans, 1)
}
