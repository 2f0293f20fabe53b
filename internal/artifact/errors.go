package artifact

import (
	"errors"
	"fmt"
)

var (
	ErrInconsistentArtifactKind = errors.New("inconsistent artifact kind")
	ErrInvalidPath              = errors.New("invalid artifact path")
	ErrInvalidRoot              = errors.New("invalid artifact root")
	ErrSourceArtifact           = errors.New("source artifacts are referenced, not created")
)

// KindError reports a request for an existing identity with a different kind.
type KindError struct {
	Root      Root
	Path      string
	Existing  Kind
	Requested Kind
}

func (e *KindError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s%s already interned as %s, requested as %s",
		ErrInconsistentArtifactKind, e.Root, e.Path, e.Existing, e.Requested)
}

func (e *KindError) Unwrap() error { return ErrInconsistentArtifactKind }

// RequestError wraps validation failures of a GetOrCreate request.
type RequestError struct {
	Kind error
	Msg  string
}

func (e *RequestError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *RequestError) Unwrap() error { return e.Kind }

func requestErrorf(kind error, format string, args ...any) error {
	return &RequestError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
