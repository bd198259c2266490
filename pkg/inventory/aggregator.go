package inventory

import (
	"fmt"

	errUtils "github.com/sysinv/sysinv/errors"
	"github.com/sysinv/sysinv/pkg/index"
	log "github.com/sysinv/sysinv/pkg/logger"
)

// Aggregator builds index content from the legacy-install scanner and
// the platform package enumerator.
type Aggregator struct {
	scanner  Scanner
	platform PlatformEnumerator
}

// NewAggregator creates an Aggregator over the two inventories.
func NewAggregator(scanner Scanner, platform PlatformEnumerator) *Aggregator {
	return &Aggregator{scanner: scanner, platform: platform}
}

// FullPopulate fills an empty index with every installed package.
func (a *Aggregator) FullPopulate(idx *index.Index) error {
	for _, scope := range registryScopes {
		if err := a.scanner.Populate(idx, scope); err != nil {
			return errUtils.Build(errUtils.ErrEnumeration).
				WithCause(err).
				WithContext("inventory", "legacy").
				WithContext("scope", scope).
				Err()
		}
	}

	return a.populatePlatform(idx, nil)
}

// UpdatePopulate reconciles an existing index against live system
// state. It captures the full id set, re-scans both inventories
// (updating or inserting every entry seen, and striking its id from the
// captured set), and only after both scans succeed deletes the ids that
// were never re-encountered. Deleting earlier would drop records
// belonging to the not-yet-scanned inventory.
func (a *Aggregator) UpdatePopulate(idx *index.Index) error {
	matches, err := idx.Search(index.Filter{})
	if err != nil {
		return err
	}

	live := make(map[int64]struct{}, len(matches))
	for _, m := range matches {
		live[m.ID] = struct{}{}
	}

	for _, scope := range registryScopes {
		if err := a.scanner.Update(idx, scope, live); err != nil {
			return errUtils.Build(errUtils.ErrEnumeration).
				WithCause(err).
				WithContext("inventory", "legacy").
				WithContext("scope", scope).
				Err()
		}
	}

	if err := a.populatePlatform(idx, live); err != nil {
		return err
	}

	// Anything still in the set was not found during inventory.
	for id := range live {
		if err := idx.RemoveByID(id); err != nil {
			return err
		}
	}
	return nil
}

// populatePlatform records every non-system platform package. When live
// is non-nil, ids of re-encountered packages are struck from it.
func (a *Aggregator) populatePlatform(idx *index.Index, live map[int64]struct{}) error {
	packages, err := a.platform.Packages()
	if err != nil {
		return errUtils.Build(errUtils.ErrEnumeration).
			WithCause(err).
			WithContext("inventory", "platform").
			Err()
	}

	for _, pkg := range packages {
		// System packages are part of the OS and cannot be managed by
		// the user; showing them in a package manager has no point.
		if pkg.SystemOwned {
			continue
		}

		name, err := pkg.DisplayName()
		if err != nil {
			// Localized name retrieval is allowed to fail; fall back to
			// the raw package name rather than skipping the package.
			log.Info("Failed to get display name for platform package",
				"family", pkg.FamilyName, "error", err)
			name = ""
		}
		if name == "" {
			name = pkg.RawName
		}

		rec := index.Record{
			Identity: pkg.FamilyName,
			Name:     name,
			Version:  FormatVersionQuad(pkg.Version),
			PathHint: pkg.FamilyName,
		}
		if err := UpsertRecord(idx, rec, InstalledTypePlatform, live); err != nil {
			return err
		}
	}
	return nil
}

// FormatVersionQuad renders a platform package version as four
// dot-separated unsigned integers.
func FormatVersionQuad(v [4]uint16) string {
	return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
}

// UpsertRecord inserts rec, or updates the existing record carrying the
// same identity and scope so repeated passes never duplicate a logical
// package. The installed-type tag is stored as record metadata. When
// live is non-nil, a re-encountered record's id is struck from it.
func UpsertRecord(idx *index.Index, rec index.Record, installedType string, live map[int64]struct{}) error {
	id, found, err := idx.FindByIdentity(rec.Identity, rec.Scope)
	if err != nil {
		return err
	}

	if found {
		if err := idx.UpdateRecord(id, rec); err != nil {
			return err
		}
		delete(live, id)
	} else {
		id, err = idx.AddRecord(rec)
		if err != nil {
			return err
		}
	}

	return idx.SetMetadata(id, MetadataInstalledType, installedType)
}
