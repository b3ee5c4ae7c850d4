package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Parse when the page does not describe a course,
// which is expected for most ids in a sparse range.
var ErrNotFound = errors.New("catalog: no course for id")

// MalformedError is returned by Parse when a course page exists but a required
// field could not be extracted from it.
type MalformedError struct {
	Field  string
	Detail string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("catalog: malformed course page: could not extract %s", e.Field)
}

func malformed(field, detail string) error {
	return &MalformedError{Field: field, Detail: detail}
}
