package source

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"

	errUtils "github.com/sysinv/sysinv/errors"
	"github.com/sysinv/sysinv/pkg/config"
	"github.com/sysinv/sysinv/pkg/index"
	"github.com/sysinv/sysinv/pkg/inventory"
	"github.com/sysinv/sysinv/pkg/lock"
	log "github.com/sysinv/sysinv/pkg/logger"
)

// TypeInstalled is the factory type key for the installed source.
const TypeInstalled = "installed"

// installedSourceName is the well-known name of the installed source.
const installedSourceName = "*PredefinedInstalled"

// cacheDirPerm is used for the cache and lock directories.
const cacheDirPerm = 0o755

// InstalledFactory builds the source representing everything installed
// on the machine outside this package manager's own bookkeeping.
//
// Building that view is slow, so it is cached in an on-disk index
// shared by every process. Two cross-process locks synchronize the
// cache: the structural lock guards the file's existence (replace vs
// use), and the contents lock elects a single updater among processes
// that concurrently open a valid cache. Create walks the tiers:
//
//  1. Acquire a SHARED structural lock and open the existing index.
//  2. If the index is fresh, try an EXCLUSIVE contents lock without
//     blocking. Winning it makes this process the updater; losing it
//     means another process is already updating, so wait on a SHARED
//     contents hold purely for it to finish. Either way, return the
//     index still holding the shared structural lock.
//  3. Otherwise acquire an EXCLUSIVE structural lock, wipe and recreate
//     the cache directory, build a new index from a full inventory
//     pass, release, then re-acquire SHARED and reopen for reading.
//  4. If even that fails, build an in-memory index to hobble along.
//
// Only the final tier's own failure escapes to the caller.
type InstalledFactory struct {
	cfg config.CacheConfig
	agg *inventory.Aggregator

	forceRecreate bool
	now           func() time.Time
}

// InstalledFactoryOption configures an InstalledFactory.
type InstalledFactoryOption func(*InstalledFactory)

// WithForceRecreate makes every Create rebuild the cache from scratch,
// skipping the reuse tier.
func WithForceRecreate() InstalledFactoryOption {
	return func(f *InstalledFactory) {
		f.forceRecreate = true
	}
}

// WithClock overrides the time source used by the freshness check.
func WithClock(now func() time.Time) InstalledFactoryOption {
	return func(f *InstalledFactory) {
		f.now = now
	}
}

// NewInstalledFactory creates the factory over the two system
// inventories.
func NewInstalledFactory(cfg config.CacheConfig, scanner inventory.Scanner, platform inventory.PlatformEnumerator, opts ...InstalledFactoryOption) *InstalledFactory {
	f := &InstalledFactory{
		cfg: cfg,
		agg: inventory.NewAggregator(scanner, platform),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a usable installed source, falling through the cache
// tiers on any recoverable failure. Requesting a different source type
// is an argument error and is never absorbed by the cascade.
func (f *InstalledFactory) Create(details Details) (*Source, error) {
	if details.Type != TypeInstalled {
		return nil, errUtils.Build(errUtils.ErrWrongSourceType).
			WithContext("requested", details.Type).
			WithContext("served", TypeInstalled).
			Err()
	}

	cacheDir, err := f.cfg.CacheDir()
	if err != nil {
		log.Debug("Cannot resolve installed cache directory", "error", err)
		return f.createEphemeral(details)
	}
	cacheFile, err := f.cfg.CacheFile()
	if err != nil {
		log.Debug("Cannot resolve installed cache file", "error", err)
		return f.createEphemeral(details)
	}
	lockDir, err := f.cfg.LockDir()
	if err == nil {
		err = os.MkdirAll(lockDir, cacheDirPerm)
	}
	if err != nil {
		log.Debug("Cannot prepare lock directory for installed cache", "error", err)
		return f.createEphemeral(details)
	}

	coord := lock.NewCoordinator(lockDir)

	// Attempt to use the cached index.
	src, err := f.tryUseExisting(details, coord, cacheFile)
	if err == nil {
		return src, nil
	}
	log.Debug("Cannot reuse existing installed cache", "error", err)

	// The existing cache was unusable; attempt to create it anew.
	src, err = f.recreate(details, coord, cacheDir, cacheFile)
	if err == nil {
		return src, nil
	}
	log.Debug("Cannot recreate installed cache", "error", err)

	// Fall back to an in-memory index to hobble along.
	log.Info("Creating installed source in memory")
	return f.createEphemeral(details)
}

// tryUseExisting opens the current cache under a shared structural
// hold, refreshes its contents (or waits for the process already doing
// so), and returns it with the shared hold still attached.
func (f *InstalledFactory) tryUseExisting(details Details, coord *lock.Coordinator, cacheFile string) (src *Source, err error) {
	shared, err := coord.AcquireShared(f.cfg.StructuralLockName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			shared.Release()
		}
	}()

	// The shared hold covers writing too: contents updates happen in
	// place and never replace the file.
	idx, err := index.Open(cacheFile, index.ReadWrite)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			idx.Close()
		}
	}()

	if reason, stale := f.isStale(idx); stale {
		return nil, errUtils.Build(errUtils.ErrIndexStale).
			WithContext("reason", reason).
			Err()
	}

	contents, elected, err := coord.TryAcquireExclusive(f.cfg.ContentsLockName)
	if err != nil {
		return nil, err
	}
	if elected {
		updateErr := f.agg.UpdatePopulate(idx)
		contents.Release()
		if updateErr != nil {
			err = updateErr
			return nil, err
		}
	} else {
		// Another process holds the contents lock; the shared acquire
		// is only to wait for its update to finish.
		waitGuard, waitErr := coord.AcquireSharedTimeout(f.cfg.ContentsLockName, f.cfg.ContentsWaitTimeout)
		if waitErr != nil {
			if !errors.Is(waitErr, errUtils.ErrLockTimeout) {
				err = waitErr
				return nil, err
			}
			log.Warn("Timed out waiting for in-flight cache update; serving current contents",
				"timeout", f.cfg.ContentsWaitTimeout)
		} else {
			waitGuard.Release()
		}
	}

	log.Debug("Using existing installed cache", "path", cacheFile)
	return &Source{
		details: details,
		name:    installedSourceName,
		index:   idx,
		guard:   shared,
		tier:    TierSharedPersistent,
	}, nil
}

// recreate replaces the cache wholesale under an exclusive structural
// hold, then reopens it for reading under a fresh shared hold.
func (f *InstalledFactory) recreate(details Details, coord *lock.Coordinator, cacheDir, cacheFile string) (*Source, error) {
	excl, err := coord.AcquireExclusive(f.cfg.StructuralLockName)
	if err != nil {
		return nil, err
	}

	err = func() error {
		// Remove everything in the cache directory before proceeding.
		if err := os.RemoveAll(cacheDir); err != nil {
			return errUtils.Build(errUtils.ErrCacheDir).
				WithCause(err).
				WithContext("path", cacheDir).
				Err()
		}
		if err := os.MkdirAll(cacheDir, cacheDirPerm); err != nil {
			return errUtils.Build(errUtils.ErrCacheDir).
				WithCause(err).
				WithContext("path", cacheDir).
				Err()
		}

		idx, err := index.CreateNew(cacheFile)
		if err != nil {
			return err
		}
		defer idx.Close()
		return f.agg.FullPopulate(idx)
	}()
	excl.Release()
	if err != nil {
		return nil, err
	}

	// Reacquire a shared hold and reopen the index for further use.
	shared, err := coord.AcquireShared(f.cfg.StructuralLockName)
	if err != nil {
		return nil, err
	}
	idx, err := index.Open(cacheFile, index.Read)
	if err != nil {
		shared.Release()
		return nil, err
	}

	log.Debug("Recreated installed cache", "path", cacheFile)
	return &Source{
		details: details,
		name:    installedSourceName,
		index:   idx,
		guard:   shared,
		tier:    TierRecreatedPersistent,
	}, nil
}

// createEphemeral builds the in-memory last-resort source. Its own
// failure is the only one Create lets escape.
func (f *InstalledFactory) createEphemeral(details Details) (*Source, error) {
	idx, err := index.CreateInMemory()
	if err != nil {
		return nil, err
	}
	if err := f.agg.FullPopulate(idx); err != nil {
		idx.Close()
		return nil, err
	}
	return &Source{
		details: details,
		name:    installedSourceName,
		index:   idx,
		tier:    TierEphemeral,
	}, nil
}

// isStale decides whether the existing index may be reused or must be
// recreated: the stamped schema version has to match exactly, and the
// index may not be older than the configured maximum age.
func (f *InstalledFactory) isStale(idx *index.Index) (string, bool) {
	if f.forceRecreate {
		return "recreate forced", true
	}

	schema, err := idx.SchemaVersion()
	if err != nil || schema != index.SchemaVersion {
		return "schema version mismatch", true
	}

	createdAt, err := idx.CreatedAt()
	if err != nil || createdAt.IsZero() {
		return "creation stamp missing", true
	}
	if f.cfg.MaxAge > 0 && f.now().Sub(createdAt) > f.cfg.MaxAge {
		return "maximum age exceeded", true
	}

	return "", false
}

// Add is not supported: the installed source is derived from system
// state and cannot be added.
func (f *InstalledFactory) Add(details Details) error {
	return notSupported("add")
}

// Update is not supported through the factory contract; contents
// refresh happens inside Create.
func (f *InstalledFactory) Update(details Details) error {
	return notSupported("update")
}

// Remove is not supported: the installed source is predefined.
func (f *InstalledFactory) Remove(details Details) error {
	return notSupported("remove")
}

func notSupported(operation string) error {
	return errUtils.Build(errUtils.ErrNotSupported).
		WithContext("operation", operation).
		WithContext("type", TypeInstalled).
		Err()
}
