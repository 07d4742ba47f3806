//go:build windows

package sys

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Preallocate asks NTFS to assign clusters for f up front via
// SetFileInformationByHandle with FILE_ALLOCATION_INFO. The logical
// file size is unchanged; only the allocation grows.
func Preallocate(f FileHandle, size int64) error {
	if size <= 0 {
		return nil
	}
	fg, ok := f.(interface{ Fd() uintptr })
	if !ok {
		preallocUnsupportedInc()
		return ErrPreallocNotSupported
	}

	info := struct {
		AllocationSize int64
	}{AllocationSize: size}

	err := windows.SetFileInformationByHandle(
		windows.Handle(fg.Fd()),
		windows.FileAllocationInfo,
		(*byte)(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	)
	if err == nil {
		preallocSuccessInc()
		return nil
	}
	preallocFailureInc()
	return fmt.Errorf("preallocate %s: %w", f.Name(), err)
}
