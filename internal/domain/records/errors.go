package records

import (
	"context"
	"errors"
)

var (
	ErrUnknownParentType = errors.New("unknown parent type")
	ErrParentNotFound    = errors.New("parent record not found")
	// ErrKeyKind is returned when a natural-key operation is asked of a
	// record-key parent type, or the reverse.
	ErrKeyKind = errors.New("operation does not match parent key kind")
)

// Resolver follows a polymorphic (parent_type, parent_reference) pair to the
// record it names.
type Resolver interface {
	Resolve(ctx context.Context, t ParentType, reference string) (ParentHandle, error)
}
