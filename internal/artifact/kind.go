package artifact

// Kind classifies what an artifact handle refers to.
//
// The kind of an identity is fixed by its first request; see Table.GetOrCreate.
type Kind uint8

const (
	KindSource Kind = iota + 1
	KindDerived
	KindConstantMetadata
	KindFileset
	KindMiddleman
	KindEmbeddedTool
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindDerived:
		return "derived"
	case KindConstantMetadata:
		return "constant-metadata"
	case KindFileset:
		return "fileset"
	case KindMiddleman:
		return "middleman"
	case KindEmbeddedTool:
		return "embedded-tool"
	default:
		return "unknown"
	}
}

// IsDerived reports whether artifacts of this kind are expected to have a
// generating action.
func (k Kind) IsDerived() bool {
	switch k {
	case KindDerived, KindConstantMetadata, KindFileset, KindMiddleman:
		return true
	default:
		return false
	}
}

// OrphanEligible reports whether an artifact of this kind is reported as an
// orphan when no action produces it.
//
// Middlemen always come with their action, and source/embedded tool artifacts
// never have one.
func (k Kind) OrphanEligible() bool {
	switch k {
	case KindDerived, KindConstantMetadata, KindFileset:
		return true
	default:
		return false
	}
}

// ParseKind maps the textual form used in build descriptions to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "source":
		return KindSource, true
	case "", "derived":
		return KindDerived, true
	case "constant-metadata", "constant_metadata":
		return KindConstantMetadata, true
	case "fileset":
		return KindFileset, true
	case "middleman":
		return KindMiddleman, true
	case "embedded-tool", "embedded_tool":
		return KindEmbeddedTool, true
	default:
		return 0, false
	}
}
