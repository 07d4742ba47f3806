package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key is not present in an index.
	ErrNotFound = errors.New("key not found")
	// ErrCorruptStream is the sentinel wrapped by CorruptStreamError.
	ErrCorruptStream = errors.New("corrupt compressed stream")
	// ErrInvalidDegree is returned when a B-Tree is constructed with t < 2.
	ErrInvalidDegree = errors.New("btree minimum degree must be at least 2")
	// ErrCatalogClosed is returned by catalog operations after Close.
	ErrCatalogClosed = errors.New("catalog is closed")
	// ErrEmptyKey is returned when an empty string is used as an index key.
	ErrEmptyKey = errors.New("empty key")
)

// CorruptStreamError reports a compressed stream that failed integrity
// or structural checks during decode.
type CorruptStreamError struct {
	Offset int64  // byte offset where the problem was detected, -1 if unknown
	Reason string
}

func (e *CorruptStreamError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("corrupt compressed stream at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("corrupt compressed stream: %s", e.Reason)
}

func (e *CorruptStreamError) Unwrap() error {
	return ErrCorruptStream
}

// NewCorruptStreamError builds a CorruptStreamError with a formatted reason.
func NewCorruptStreamError(offset int64, format string, args ...interface{}) *CorruptStreamError {
	return &CorruptStreamError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// IsCorruptStream checks if an error (or any error in its chain) marks a
// corrupt compressed stream.
func IsCorruptStream(err error) bool {
	return errors.Is(err, ErrCorruptStream)
}
