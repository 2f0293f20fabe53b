package action

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"

	"buildweaver/internal/artifact"
)

// Key is the deterministic content identity of an action.
//
// It covers the owner, mnemonic and the exec paths and kinds of inputs and
// outputs. Inputs and outputs are treated as sets, so declaration order does
// not matter.
type Key string

func (k Key) String() string { return string(k) }

// ComputeKey hashes the action's declared content. All fields are
// length-prefixed to avoid ambiguity.
func ComputeKey(a *Action) Key {
	h := sha256.New()

	writeField(h, []byte(a.Owner))
	writeField(h, []byte(a.Mnemonic))

	for _, set := range [][]string{artifactFields(a.Inputs), artifactFields(a.Outputs)} {
		writeCount(h, len(set))
		for _, f := range set {
			writeField(h, []byte(f))
		}
	}

	return Key(hex.EncodeToString(h.Sum(nil)))
}

func artifactFields(arts []artifact.Artifact) []string {
	out := make([]string, 0, len(arts))
	for _, a := range arts {
		out = append(out, a.Kind().String()+":"+a.ExecPath())
	}
	sort.Strings(out)
	return out
}

func writeCount(h hash.Hash, n int) {
	writeField(h, []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
}

func writeField(h hash.Hash, data []byte) {
	length := uint64(len(data))
	h.Write([]byte{
		byte(length >> 56),
		byte(length >> 48),
		byte(length >> 40),
		byte(length >> 32),
		byte(length >> 24),
		byte(length >> 16),
		byte(length >> 8),
		byte(length),
	})
	h.Write(data)
}
