package sys

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrPreallocNotSupported reports that the file or the filesystem under
// it cannot reserve space ahead of writes. Callers treat it as
// informational and fall back to plain writes.
var ErrPreallocNotSupported = errors.New("preallocation not supported on this file or filesystem")

// preallocCache remembers per device ID whether preallocation works, so
// a batch run touching thousands of files on one mount probes the
// filesystem once instead of per file.
var preallocCache sync.Map // uint64 device ID -> bool

var (
	preallocCacheHits   atomic.Uint64
	preallocCacheMisses atomic.Uint64
	preallocSuccesses   atomic.Uint64
	preallocFailures    atomic.Uint64
	preallocUnsupported atomic.Uint64
)

func preallocCacheLoad(dev uint64) (allowed, found bool) {
	v, ok := preallocCache.Load(dev)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b && ok, ok
}

func preallocCacheStore(dev uint64, allowed bool) {
	preallocCache.Store(dev, allowed)
}

func preallocCacheHit()       { preallocCacheHits.Add(1) }
func preallocCacheMiss()      { preallocCacheMisses.Add(1) }
func preallocSuccessInc()     { preallocSuccesses.Add(1) }
func preallocFailureInc()     { preallocFailures.Add(1) }
func preallocUnsupportedInc() { preallocUnsupported.Add(1) }

// PreallocStats is a snapshot of the preallocation counters. The cache
// counters only move on platforms that consult the device cache.
type PreallocStats struct {
	CacheHits   uint64
	CacheMisses uint64
	Successes   uint64
	Failures    uint64
	Unsupported uint64
}

// ReadPreallocStats returns the current counter values.
func ReadPreallocStats() PreallocStats {
	return PreallocStats{
		CacheHits:   preallocCacheHits.Load(),
		CacheMisses: preallocCacheMisses.Load(),
		Successes:   preallocSuccesses.Load(),
		Failures:    preallocFailures.Load(),
		Unsupported: preallocUnsupported.Load(),
	}
}
