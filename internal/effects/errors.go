package effects

import (
	"fmt"
	"strings"
)

// RowMismatchError reports an effect-row unification failure, naming the
// atoms each side requires that the other cannot provide.
type RowMismatchError struct {
	Left    Row
	Right   Row
	Missing []string // offending atoms
}

func (e *RowMismatchError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("cannot unify effect rows %s and %s", e.Left, e.Right)
	}
	return fmt.Sprintf("cannot unify effect rows %s and %s: no row can absorb %s",
		e.Left, e.Right, strings.Join(e.Missing, ", "))
}
