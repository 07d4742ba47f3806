//go:build linux

package sys

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// Filesystem magic numbers fallocate is known to behave on. Network
// mounts, FUSE and pseudo filesystems are skipped without a syscall
// attempt.
var fallocateFilesystems = map[int64]bool{
	0xEF53:     true, // ext2/3/4
	0x58465342: true, // xfs
	0x9123683E: true, // btrfs
	0x01021994: true, // tmpfs
	0x794C7630: true, // overlayfs
	0xF2F52010: true, // f2fs
	0x2FC12FC1: true, // zfs
}

// Preallocate reserves size bytes for f using fallocate, preferring
// FALLOC_FL_KEEP_SIZE so the visible file length does not change before
// the data lands. Whether a device supports fallocate is cached per
// device ID after the first probe.
func Preallocate(f FileHandle, size int64) error {
	if size <= 0 {
		return nil
	}
	fg, ok := f.(interface{ Fd() uintptr })
	if !ok {
		preallocUnsupportedInc()
		return ErrPreallocNotSupported
	}
	fd := int(fg.Fd())

	// WSL exposes Windows drives under /mnt through a 9p server that
	// rejects fallocate inconsistently; skip them outright.
	if strings.HasPrefix(f.Name(), "/mnt/") {
		preallocUnsupportedInc()
		return ErrPreallocNotSupported
	}

	var dev uint64
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err == nil {
		dev = uint64(st.Dev)
		if allowed, found := preallocCacheLoad(dev); found {
			preallocCacheHit()
			if !allowed {
				preallocUnsupportedInc()
				return ErrPreallocNotSupported
			}
			return fallocate(fd, dev, size)
		}
		preallocCacheMiss()
	}

	var sfs unix.Statfs_t
	if err := unix.Fstatfs(fd, &sfs); err != nil {
		preallocUnsupportedInc()
		return ErrPreallocNotSupported
	}
	if !fallocateFilesystems[int64(sfs.Type)] {
		if dev != 0 {
			preallocCacheStore(dev, false)
		}
		preallocUnsupportedInc()
		return ErrPreallocNotSupported
	}
	return fallocate(fd, dev, size)
}

// fallocate tries KEEP_SIZE first, then a plain allocation that may
// extend the file. Errnos the kernel uses for "not supported here" map
// to ErrPreallocNotSupported and poison the device cache.
func fallocate(fd int, dev uint64, size int64) error {
	for _, mode := range []uint32{unix.FALLOC_FL_KEEP_SIZE, 0} {
		err := unix.Fallocate(fd, mode, 0, size)
		if err == nil {
			if dev != 0 {
				preallocCacheStore(dev, true)
			}
			preallocSuccessInc()
			return nil
		}
		if errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS) ||
			errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTTY) {
			continue
		}
		preallocFailureInc()
		return fmt.Errorf("fallocate %d bytes: %w", size, err)
	}
	if dev != 0 {
		preallocCacheStore(dev, false)
	}
	preallocUnsupportedInc()
	return ErrPreallocNotSupported
}
