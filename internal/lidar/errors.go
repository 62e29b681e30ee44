package lidar

import (
	"errors"
	"fmt"
)

// ErrEmptyPointSet is returned by operations that need at least one point.
var ErrEmptyPointSet = errors.New("empty point set")

// ShapeMismatchError reports parallel arrays of differing length, such as
// points against labels or a mask against the cloud it selects from. It is an
// internal invariant violation: callers that honour the filter contract never
// see it.
type ShapeMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %s: want %d, got %d", e.What, e.Want, e.Got)
}

// SingularMatrixError reports a transform that cannot be inverted.
type SingularMatrixError struct {
	Det float64
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("singular matrix (det=%g)", e.Det)
}

// CheckLen returns a ShapeMismatchError when got != want.
func CheckLen(what string, want, got int) error {
	if want != got {
		return &ShapeMismatchError{What: what, Want: want, Got: got}
	}
	return nil
}
