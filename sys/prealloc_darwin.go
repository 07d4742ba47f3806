//go:build darwin

package sys

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Preallocate reserves size bytes for f through the F_PREALLOCATE
// fcntl, asking for contiguous space first and settling for scattered
// blocks when the volume is fragmented. APFS and HFS+ honor the call;
// anything else reports ErrPreallocNotSupported.
func Preallocate(f FileHandle, size int64) error {
	if size <= 0 {
		return nil
	}
	fg, ok := f.(interface{ Fd() uintptr })
	if !ok {
		preallocUnsupportedInc()
		return ErrPreallocNotSupported
	}
	fd := fg.Fd()

	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATECONTIG,
		Posmode: unix.F_PEOFPOSMODE,
		Offset:  0,
		Length:  size,
	}
	if _, _, errno := unix.Syscall(unix.SYS_FCNTL, fd, uintptr(unix.F_PREALLOCATE), uintptr(unsafe.Pointer(&fst))); errno == 0 {
		preallocSuccessInc()
		return nil
	}

	fst.Flags = unix.F_ALLOCATEALL
	if _, _, errno := unix.Syscall(unix.SYS_FCNTL, fd, uintptr(unix.F_PREALLOCATE), uintptr(unsafe.Pointer(&fst))); errno == 0 {
		preallocSuccessInc()
		return nil
	}

	preallocUnsupportedInc()
	return ErrPreallocNotSupported
}
