package buildconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RootsUnderOutputBase(t *testing.T) {
	cfg, err := New("", "k8-fastbuild")
	require.NoError(t, err)

	assert.Equal(t, "buildweaver-out/k8-fastbuild/bin", cfg.BinRoot.ExecPath)
	assert.Equal(t, "buildweaver-out/k8-fastbuild/genfiles", cfg.GenfilesRoot.ExecPath)

	again, err := New("buildweaver-out/", "k8-fastbuild")
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestNew_RejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "  ", "a/b", `a\b`} {
		_, err := New("", name)
		assert.Error(t, err, "name %q", name)
	}
}

func TestRoot(t *testing.T) {
	cfg, err := New("out", "opt")
	require.NoError(t, err)

	r, ok := cfg.Root("genfiles")
	require.True(t, ok)
	assert.Equal(t, cfg.GenfilesRoot, r)

	r, ok = cfg.Root("")
	require.True(t, ok)
	assert.Equal(t, cfg.BinRoot, r)

	_, ok = cfg.Root("testlogs")
	assert.False(t, ok)
}
