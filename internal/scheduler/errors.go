package scheduler

import (
	"errors"
	"fmt"
)

// ErrMissingResource matches every MissingResourceError via errors.Is.
var ErrMissingResource = errors.New("missing resource")

// ResourceKind names the input collection that was empty.
type ResourceKind string

const (
	ResourceCourses     ResourceKind = "courses"
	ResourceRooms       ResourceKind = "rooms"
	ResourceInstructors ResourceKind = "instructors"
)

// MissingResourceError aborts a run before any phase starts.
type MissingResourceError struct {
	Kind   ResourceKind
	Cohort Cohort
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("no %s available for cohort %s", e.Kind, e.Cohort.Key())
}

// Is lets callers match with errors.Is(err, ErrMissingResource).
func (e *MissingResourceError) Is(target error) bool {
	return target == ErrMissingResource
}
