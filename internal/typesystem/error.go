package typesystem

import "fmt"

// TypeMismatchError reports a structural unification failure between two
// types, with an optional reason for the innermost conflict.
type TypeMismatchError struct {
	Expected Type
	Actual   Type
	Reason   string
}

func (e *TypeMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot unify %s with %s: %s", e.Expected, e.Actual, e.Reason)
	}
	return fmt.Sprintf("cannot unify %s with %s", e.Expected, e.Actual)
}

func errUnify(t1, t2 Type) error {
	return &TypeMismatchError{Expected: t1, Actual: t2}
}

func errUnifyMsg(t1, t2 Type, reason string) error {
	return &TypeMismatchError{Expected: t1, Actual: t2, Reason: reason}
}

func errUnifyContext(ctx string, err error) error {
	return fmt.Errorf("in %s: %w", ctx, err)
}
