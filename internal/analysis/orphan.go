package analysis

import "buildweaver/internal/artifact"

// Producers reports whether an artifact has a generating action.
// *action.GeneratingMap implements it.
type Producers interface {
	HasProducer(a artifact.Artifact) bool
}

// Orphans returns the artifacts of an orphan-eligible kind in artifacts that
// have no producer, sorted by exec path. Duplicates are reported once.
func Orphans(artifacts []artifact.Artifact, producers Producers) []artifact.Artifact {
	seen := make(map[artifact.Artifact]struct{}, len(artifacts))
	var out []artifact.Artifact
	for _, a := range artifacts {
		if a.IsZero() || !a.Kind().OrphanEligible() {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		if !producers.HasProducer(a) {
			out = append(out, a)
		}
	}
	sortArtifacts(out)
	return out
}
