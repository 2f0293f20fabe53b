// Package action records which action generates each derived artifact.
//
// There are two layers:
//   - GeneratingMap is build-global and shared by all sessions. It maps an
//     output artifact to the single action that declared it, using an atomic
//     insert-if-absent so concurrent sessions can never both win.
//   - Registry is per analysis session. It is the only way to insert into the
//     GeneratingMap and remembers the actions its session registered, in order.
//
// Lookups through a Registry only see that registry's own actions; an artifact
// produced by another session's action looks unproduced.
package action
