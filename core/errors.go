package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Ambiguous references are deliberately absent: an
// unresolved ReferenceResolution is a value, not an error.
var (
	// ErrUnresolvedTemporalExpression signals a time expression that could
	// not be parsed. Callers recover locally by treating the expression as
	// an opaque literal with low confidence.
	ErrUnresolvedTemporalExpression = errors.New("unresolved temporal expression")

	// ErrUnknownEntityID signals an operation referencing an id not present
	// in the registry. This is a caller contract violation, fatal to the
	// operation but not to the conversation.
	ErrUnknownEntityID = errors.New("unknown entity id")

	// ErrHandlerTimeout signals a handler call that exceeded its deadline.
	// Retryable; conversation state is not rolled back.
	ErrHandlerTimeout = errors.New("handler timeout")

	// ErrHandlerFailure signals a handler call that returned a failure.
	// Retried by the dispatcher at most once with backoff.
	ErrHandlerFailure = errors.New("handler failure")

	// ErrUnknownHandler signals dispatch to a handler id that was never registered.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrNotFound signals a missing conversation snapshot in a ContextStore.
	ErrNotFound = errors.New("not found")
)

// UnknownEntityIDError wraps ErrUnknownEntityID with the offending id.
func UnknownEntityIDError(id string) error {
	return fmt.Errorf("%w: %q", ErrUnknownEntityID, id)
}
