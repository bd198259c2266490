// Package inventory populates and reconciles the installed-package
// index from the two system inventories: the registry-style listing of
// legacy installs and the platform package listing.
package inventory

import (
	"github.com/sysinv/sysinv/pkg/index"
)

// Scope is the machine/user axis of the legacy-install inventory.
// Platform packages carry no scope.
type Scope string

const (
	ScopeMachine Scope = "machine"
	ScopeUser    Scope = "user"
)

// registryScopes is the scan order for the legacy-install inventory.
var registryScopes = []Scope{ScopeMachine, ScopeUser}

// MetadataInstalledType is the metadata key tagging how a record's
// package was installed.
const MetadataInstalledType = "installed_type"

// Installed-type metadata values.
const (
	InstalledTypeLegacy   = "legacy"
	InstalledTypePlatform = "platform"
)

// Scanner enumerates the legacy-install inventory for one scope.
//
// Update removes from live the id of every entry it re-encounters,
// updating or inserting the entry's record as it goes. Ids left in live
// after every inventory has been scanned belong to packages no longer
// on the system.
type Scanner interface {
	Populate(idx *index.Index, scope Scope) error
	Update(idx *index.Index, scope Scope, live map[int64]struct{}) error
}

// PlatformPackage is one installed platform package.
//
// DisplayName retrieves the localized name and may fail; callers fall
// back to RawName. SystemOwned packages are part of the OS and are
// never recorded.
type PlatformPackage struct {
	FamilyName  string
	RawName     string
	DisplayName func() (string, error)
	Version     [4]uint16
	SystemOwned bool
}

// PlatformEnumerator lists every installed platform package.
type PlatformEnumerator interface {
	Packages() ([]PlatformPackage, error)
}
