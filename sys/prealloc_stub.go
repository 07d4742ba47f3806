//go:build !linux && !windows && !darwin

package sys

// Preallocate has no implementation on this platform.
func Preallocate(f FileHandle, size int64) error {
	preallocUnsupportedInc()
	return ErrPreallocNotSupported
}
