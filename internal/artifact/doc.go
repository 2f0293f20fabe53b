// Package artifact is the build-global artifact identity table.
//
// An artifact is identified by (Root, root-relative path). The Table interns
// each identity exactly once per build, so every analysis session that asks for
// the same derived file receives the same handle, and handle equality (==) is
// identity equality.
//
// The table is shared by all concurrently running analysis sessions:
//   - Inserts are insert-if-absent; a losing concurrent writer adopts the
//     winner's record instead of overwriting it.
//   - Entries are never removed. A new build uses a new Table.
//   - Requesting an identity with a kind that differs from the interned one is
//     reported as ErrInconsistentArtifactKind, never silently resolved.
package artifact
