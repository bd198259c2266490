// Package source implements the provider of installed-package records
// and the cache lifecycle behind it. A Source is created through the
// uniform factory contract shared by all source kinds; the installed
// kind is system-derived and supports only Create.
package source

import (
	"github.com/sysinv/sysinv/pkg/index"
	"github.com/sysinv/sysinv/pkg/lock"
)

// Tier identifies which lifecycle stage produced a Source. It is
// diagnostic only; callers get the same contract from every tier.
type Tier int

const (
	// TierSharedPersistent is the reused on-disk cache.
	TierSharedPersistent Tier = iota
	// TierRecreatedPersistent is an on-disk cache rebuilt from scratch.
	TierRecreatedPersistent
	// TierEphemeral is the in-memory last resort.
	TierEphemeral
)

func (t Tier) String() string {
	switch t {
	case TierSharedPersistent:
		return "shared-persistent"
	case TierRecreatedPersistent:
		return "recreated-persistent"
	case TierEphemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// Source is a queryable provider of installed-package records. A
// persistent Source keeps a shared structural hold on the cache file so
// no other process can replace it while this one is reading.
type Source struct {
	details Details
	name    string
	index   *index.Index
	guard   *lock.Guard
	tier    Tier
}

// Name returns the well-known source name.
func (s *Source) Name() string {
	return s.name
}

// Details returns the details the source was created from.
func (s *Source) Details() Details {
	return s.details
}

// Tier reports which lifecycle tier produced this source.
func (s *Source) Tier() Tier {
	return s.tier
}

// Index exposes the underlying record index.
func (s *Source) Index() *index.Index {
	return s.index
}

// Search queries the source's records.
func (s *Source) Search(filter index.Filter) ([]index.Match, error) {
	return s.index.Search(filter)
}

// Close releases the index and, for persistent sources, the shared
// structural hold keeping the cache file alive.
func (s *Source) Close() error {
	err := s.index.Close()
	s.guard.Release()
	return err
}
