package store

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by every backend.
var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// DuplicateKeyError reports a unique index violation.
type DuplicateKeyError struct {
	Fields []string
	Value  string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key on %s: %s", strings.Join(e.Fields, ","), e.Value)
}

// Is makes errors.Is(err, ErrDuplicate) match.
func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicate
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
