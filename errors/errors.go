package errors

import "github.com/cockroachdb/errors"

// Sentinel errors for the installed-source cache subsystem.
// Callers test for these with errors.Is; the builder keeps the mark
// intact through wrapping.
var (
	// ErrWrongSourceType is returned when a factory is asked to create a
	// source of a type it does not serve. This is an argument error and
	// never part of the fallback cascade.
	ErrWrongSourceType = errors.New("requested source type is not served by this factory")

	// ErrNotSupported is returned for lifecycle operations that are
	// meaningless on a system-derived source (add, update, remove).
	ErrNotSupported = errors.New("operation not supported for this source type")

	// ErrLockAcquire indicates a cross-process lock could not be acquired.
	ErrLockAcquire = errors.New("failed to acquire cross-process lock")

	// ErrLockTimeout indicates a bounded lock wait elapsed.
	ErrLockTimeout = errors.New("timed out waiting for cross-process lock")

	// ErrCacheDir indicates the cache directory could not be resolved or created.
	ErrCacheDir = errors.New("failed to create cache directory")

	// ErrIndexOpen indicates the cache index file could not be opened.
	ErrIndexOpen = errors.New("failed to open cache index")

	// ErrIndexCreate indicates a new cache index could not be created.
	ErrIndexCreate = errors.New("failed to create cache index")

	// ErrIndexStale indicates the cache index failed the freshness check
	// and must be recreated.
	ErrIndexStale = errors.New("cache index is stale")

	// ErrIndexQuery indicates an index read or write statement failed.
	ErrIndexQuery = errors.New("cache index query failed")

	// ErrIndexReadOnly indicates a mutation was attempted on an index
	// opened for read.
	ErrIndexReadOnly = errors.New("cache index is opened read-only")

	// ErrRecordNotFound indicates no record exists for the given id.
	ErrRecordNotFound = errors.New("record not found in cache index")

	// ErrEnumeration indicates an entire inventory scope failed to
	// enumerate. Per-entry failures are swallowed; this one propagates.
	ErrEnumeration = errors.New("failed to enumerate inventory")

	// ErrInvalidScope indicates an unrecognized inventory scope value.
	ErrInvalidScope = errors.New("invalid inventory scope")
)
