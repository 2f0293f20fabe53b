package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string   `cbor:"name"`
	Count int      `cbor:"count"`
	Tags  []string `cbor:"tags,omitempty"`
}

func TestMarshal_MapKeyOrderIsDeterministic(t *testing.T) {
	a := map[string]int{"zeta": 1, "alpha": 2, "mid": 3}
	b := map[string]int{"mid": 3, "zeta": 1, "alpha": 2}

	da, err := Marshal(a)
	require.NoError(t, err)
	db, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	diag, err := Diagnose(da)
	require.NoError(t, err)
	// Shorter encoded keys sort first.
	assert.Less(t, strings.Index(diag, `"mid"`), strings.Index(diag, `"zeta"`))
	assert.Less(t, strings.Index(diag, `"zeta"`), strings.Index(diag, `"alpha"`))
}

func TestMarshal_Struct(t *testing.T) {
	in := sample{Name: "graph", Count: 2, Tags: []string{"a"}}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(in))
	assert.Equal(t, data, buf.Bytes())
}
