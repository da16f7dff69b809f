package chain

import (
	"errors"
	"fmt"
)

// Kind classifies an adapter failure. The distinction that matters is
// fallback-worthy (transport never delivered an authoritative answer) versus
// authoritative (the chain itself answered, and asking another backend would
// not change the result).
type Kind int

const (
	// KindUnreachable means the backend could not be reached at all.
	KindUnreachable Kind = iota

	// KindTimeout means the call exceeded its deadline.
	KindTimeout

	// KindNotFound means the chain does not have the resource.
	KindNotFound

	// KindRejected means a submitted deploy was refused by chain rules.
	KindRejected

	// KindInvalidResponse means the backend answered with something the
	// adapter could not interpret.
	KindInvalidResponse

	// KindAmbiguousSubmit means a deploy submission timed out after the
	// request may have been accepted. Never retried automatically.
	KindAmbiguousSubmit
)

func (k Kind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindRejected:
		return "rejected"
	case KindInvalidResponse:
		return "invalid_response"
	case KindAmbiguousSubmit:
		return "ambiguous_submit"
	default:
		return "unknown"
	}
}

// Error is the tagged failure type returned by every adapter operation.
type Error struct {
	Kind    Kind
	Backend Backend
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Backend, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Backend, e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a tagged adapter error.
func NewError(kind Kind, backend Backend, op string, err error) *Error {
	return &Error{Kind: kind, Backend: backend, Op: op, Err: err}
}

// KindOf extracts the failure kind, defaulting to unreachable for untagged
// errors (a transport-level failure is the safe assumption).
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnreachable
}

// IsFallbackWorthy reports whether the node path should be tried after a
// sidecar failure. NotFound and Rejected are authoritative answers from the
// chain; retrying them elsewhere would not change the result.
func IsFallbackWorthy(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindUnreachable, KindInvalidResponse:
		return true
	default:
		return false
	}
}

// BothFailedError aggregates the sidecar and node failures when fallback was
// exhausted.
type BothFailedError struct {
	Op         string
	SidecarErr error
	NodeErr    error
}

func (e *BothFailedError) Error() string {
	return fmt.Sprintf("%s failed on both backends: sidecar: %v; node: %v", e.Op, e.SidecarErr, e.NodeErr)
}

func (e *BothFailedError) Unwrap() error {
	return e.NodeErr
}
