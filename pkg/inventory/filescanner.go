package inventory

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/sysinv/sysinv/pkg/index"
	log "github.com/sysinv/sysinv/pkg/logger"
)

// FileScanner is a legacy-install Scanner reading YAML manifests from a
// directory tree with one subdirectory per scope:
//
//	<root>/machine/*.yaml
//	<root>/user/*.yaml
//
// Each manifest carries the identity, display name, and version of one
// installed application. A missing scope directory is an empty scope,
// not an error.
type FileScanner struct {
	root string
}

// NewFileScanner creates a FileScanner rooted at dir.
func NewFileScanner(dir string) *FileScanner {
	return &FileScanner{root: dir}
}

type legacyManifest struct {
	Identity string `yaml:"identity"`
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
}

// Populate inserts every entry of the given scope into the index.
func (s *FileScanner) Populate(idx *index.Index, scope Scope) error {
	return s.scan(idx, scope, nil)
}

// Update re-scans the given scope, updating or inserting every entry
// and striking re-encountered ids from live.
func (s *FileScanner) Update(idx *index.Index, scope Scope, live map[int64]struct{}) error {
	return s.scan(idx, scope, live)
}

func (s *FileScanner) scan(idx *index.Index, scope Scope, live map[int64]struct{}) error {
	dir := filepath.Join(s.root, string(scope))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading inventory directory %s", dir)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isManifestName(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		manifest, err := readLegacyManifest(path)
		if err != nil {
			// A single broken manifest never aborts the scan.
			log.Info("Skipping unreadable inventory manifest", "path", path, "error", err)
			continue
		}
		if manifest.Identity == "" {
			log.Info("Skipping inventory manifest without identity", "path", path)
			continue
		}

		rec := index.Record{
			Identity: manifest.Identity,
			Name:     manifest.Name,
			Version:  manifest.Version,
			Scope:    string(scope),
			PathHint: path,
		}
		if err := UpsertRecord(idx, rec, InstalledTypeLegacy, live); err != nil {
			return err
		}
	}
	return nil
}

func readLegacyManifest(path string) (legacyManifest, error) {
	var manifest legacyManifest
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest, err
	}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return manifest, err
	}
	return manifest, nil
}

func isManifestName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// FilePlatformEnumerator is a PlatformEnumerator reading YAML manifests
// from a flat directory, one per installed platform package.
type FilePlatformEnumerator struct {
	dir string
}

// NewFilePlatformEnumerator creates an enumerator over dir.
func NewFilePlatformEnumerator(dir string) *FilePlatformEnumerator {
	return &FilePlatformEnumerator{dir: dir}
}

type platformManifest struct {
	FamilyName  string `yaml:"family_name"`
	DisplayName string `yaml:"display_name"`
	RawName     string `yaml:"raw_name"`
	Version     string `yaml:"version"`
	System      bool   `yaml:"system"`
}

// Packages returns every platform package described under the
// enumerator's directory. A missing directory is an empty inventory.
func (e *FilePlatformEnumerator) Packages() ([]PlatformPackage, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading platform inventory directory %s", e.dir)
	}

	var packages []PlatformPackage
	for _, entry := range entries {
		if entry.IsDir() || !isManifestName(entry.Name()) {
			continue
		}
		path := filepath.Join(e.dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			log.Info("Skipping unreadable platform manifest", "path", path, "error", err)
			continue
		}
		var manifest platformManifest
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			log.Info("Skipping unparsable platform manifest", "path", path, "error", err)
			continue
		}
		if manifest.FamilyName == "" {
			log.Info("Skipping platform manifest without family name", "path", path)
			continue
		}

		version, err := parseVersionQuad(manifest.Version)
		if err != nil {
			// Version is metadata; substitute the zero quad and keep going.
			log.Info("Invalid platform package version", "path", path, "version", manifest.Version, "error", err)
			version = [4]uint16{}
		}

		displayName := manifest.DisplayName
		packages = append(packages, PlatformPackage{
			FamilyName: manifest.FamilyName,
			RawName:    manifest.RawName,
			DisplayName: func() (string, error) {
				if displayName == "" {
					return "", errors.New("no localized display name")
				}
				return displayName, nil
			},
			Version:     version,
			SystemOwned: manifest.System,
		})
	}
	return packages, nil
}

func parseVersionQuad(raw string) ([4]uint16, error) {
	var quad [4]uint16
	if raw == "" {
		return quad, errors.New("empty version")
	}

	parts := strings.Split(raw, ".")
	if len(parts) > 4 {
		return quad, errors.Newf("version %q has more than four parts", raw)
	}
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return quad, errors.Wrapf(err, "version part %q", part)
		}
		quad[i] = uint16(n)
	}
	return quad, nil
}
