// Package config carries the configuration for the installed-source
// cache. Lock names, cache paths, and freshness budgets were fixed
// constants in earlier designs; making them fields lets tests redirect
// the cache location and lock namespace without touching global state.
package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/sysinv/sysinv/pkg/xdg"
)

const (
	// DefaultCacheDirPerm is the default permission for cache directories.
	DefaultCacheDirPerm = 0o755

	// defaultMaxAge bounds how old a cache index may be before it is
	// rebuilt from scratch.
	defaultMaxAge = 168 * time.Hour

	// defaultContentsWaitTimeout bounds the shared wait for another
	// process's in-flight update.
	defaultContentsWaitTimeout = 2 * time.Minute
)

// CacheConfig identifies the on-disk cache and its lock namespace.
type CacheConfig struct {
	// BaseDir overrides XDG resolution entirely when set. Used by tests.
	BaseDir string `mapstructure:"base_dir"`

	// RelativeDir is the cache subdirectory under the application cache home.
	RelativeDir string `mapstructure:"relative_dir"`

	// FileName is the index file name inside the cache directory.
	FileName string `mapstructure:"file_name"`

	// StructuralLockName guards the cache file's existence and identity.
	StructuralLockName string `mapstructure:"structural_lock_name"`

	// ContentsLockName elects a single updater among concurrent readers.
	ContentsLockName string `mapstructure:"contents_lock_name"`

	// MaxAge is the maximum index age before a full rebuild is forced.
	MaxAge time.Duration `mapstructure:"max_age"`

	// ContentsWaitTimeout bounds waiting for another process's update.
	// Zero means wait indefinitely.
	ContentsWaitTimeout time.Duration `mapstructure:"contents_wait_timeout"`
}

// NewCacheConfig returns the default cache configuration, with
// SYSINV_-prefixed environment overrides applied.
func NewCacheConfig() CacheConfig {
	v := viper.New()
	v.SetEnvPrefix("SYSINV")
	v.AutomaticEnv()

	v.SetDefault("cache_max_age", defaultMaxAge)
	v.SetDefault("cache_contents_wait_timeout", defaultContentsWaitTimeout)

	return CacheConfig{
		RelativeDir:         "installed",
		FileName:            "cache.db",
		StructuralLockName:  "sysinv-installed-file",
		ContentsLockName:    "sysinv-installed-contents",
		MaxAge:              v.GetDuration("cache_max_age"),
		ContentsWaitTimeout: v.GetDuration("cache_contents_wait_timeout"),
	}
}

// CacheDir resolves the cache directory path. The directory is not
// created; creation is the lifecycle controller's job and happens under
// the appropriate lock.
func (c CacheConfig) CacheDir() (string, error) {
	if c.BaseDir != "" {
		return filepath.Join(c.BaseDir, c.RelativeDir), nil
	}
	return xdg.ResolveCacheDir(c.RelativeDir)
}

// CacheFile resolves the full path of the index file.
func (c CacheConfig) CacheFile() (string, error) {
	dir, err := c.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.FileName), nil
}

// LockDir resolves the directory holding the cross-process lock files.
// Lock files live in the parent of the cache directory: recreating the
// cache wipes that directory recursively, and a lock file deleted out
// from under its holders would silently split the lock namespace.
func (c CacheConfig) LockDir() (string, error) {
	dir, err := c.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Dir(dir), nil
}
