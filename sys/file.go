// Package sys holds the platform-specific filesystem helpers the rest of
// the codebase stays portable by not knowing about. Today that is file
// preallocation: reserving space for a compressed output before its
// payload is streamed in, so large batch runs fragment less.
package sys

import (
	"io"
	"os"
)

// FileHandle is the subset of *os.File the preallocation helpers need.
// Implementations that additionally expose Fd() uintptr get a real
// syscall-backed reservation; anything else reports
// ErrPreallocNotSupported.
type FileHandle interface {
	io.Writer
	io.Closer
	Name() string
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
}
