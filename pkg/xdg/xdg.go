// Package xdg resolves per-user directories for the sysinv cache.
// It respects SYSINV_XDG_CACHE_HOME over XDG_CACHE_HOME so operators and
// tests can redirect the cache without disturbing other XDG consumers.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"

	adrg "github.com/adrg/xdg"
	"github.com/spf13/viper"

	errUtils "github.com/sysinv/sysinv/errors"
)

// appDirName is the application subdirectory under the XDG base dirs.
const appDirName = "sysinv"

// ResolveCacheDir returns the cache directory path for the given
// subpath without creating it. The result is <cache-home>/sysinv/<subpath>.
func ResolveCacheDir(subpath string) (string, error) {
	v := viper.New()
	if err := v.BindEnv("XDG_CACHE_HOME", "SYSINV_XDG_CACHE_HOME", "XDG_CACHE_HOME"); err != nil {
		return "", fmt.Errorf("error binding XDG_CACHE_HOME environment variables: %w", err)
	}

	var cacheDir string
	if customCacheHome := v.GetString("XDG_CACHE_HOME"); customCacheHome != "" {
		cacheDir = filepath.Join(customCacheHome, appDirName)
	} else {
		cacheDir = filepath.Join(adrg.CacheHome, appDirName)
	}

	if subpath != "" {
		cacheDir = filepath.Join(cacheDir, subpath)
	}

	return cacheDir, nil
}

// EnsureCacheDir resolves the cache directory for the given subpath and
// creates it with the given permissions if needed.
func EnsureCacheDir(subpath string, perm os.FileMode) (string, error) {
	cacheDir, err := ResolveCacheDir(subpath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cacheDir, perm); err != nil {
		return "", errUtils.Build(errUtils.ErrCacheDir).
			WithCause(err).
			WithContext("path", cacheDir).
			Err()
	}

	return cacheDir, nil
}
