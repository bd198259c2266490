package inventory

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errUtils "github.com/sysinv/sysinv/errors"
	"github.com/sysinv/sysinv/pkg/index"
)

// fakeScanner serves a fixed set of legacy entries per scope.
type fakeScanner struct {
	entries map[Scope][]index.Record
	// failScope makes enumeration of that scope fail entirely.
	failScope Scope
	updates   int
}

func (s *fakeScanner) Populate(idx *index.Index, scope Scope) error {
	return s.scan(idx, scope, nil)
}

func (s *fakeScanner) Update(idx *index.Index, scope Scope, live map[int64]struct{}) error {
	s.updates++
	return s.scan(idx, scope, live)
}

func (s *fakeScanner) scan(idx *index.Index, scope Scope, live map[int64]struct{}) error {
	if s.failScope == scope {
		return errors.New("registry unavailable")
	}
	for _, rec := range s.entries[scope] {
		rec.Scope = string(scope)
		if err := UpsertRecord(idx, rec, InstalledTypeLegacy, live); err != nil {
			return err
		}
	}
	return nil
}

// fakeEnumerator serves a fixed set of platform packages.
type fakeEnumerator struct {
	packages []PlatformPackage
	err      error
}

func (e *fakeEnumerator) Packages() ([]PlatformPackage, error) {
	return e.packages, e.err
}

func okName(name string) func() (string, error) {
	return func() (string, error) { return name, nil }
}

func failingName() func() (string, error) {
	return func() (string, error) { return "", errors.New("no localized resource") }
}

func newMemIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.CreateInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func identities(t *testing.T, idx *index.Index) []string {
	t.Helper()
	matches, err := idx.Search(index.Filter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.Record.Identity)
	}
	sort.Strings(ids)
	return ids
}

func TestFullPopulate(t *testing.T) {
	scanner := &fakeScanner{entries: map[Scope][]index.Record{
		ScopeMachine: {{Identity: "app.a", Name: "App A", Version: "1.0"}},
		ScopeUser:    {{Identity: "app.b", Name: "App B", Version: "2.0"}},
	}}
	enum := &fakeEnumerator{packages: []PlatformPackage{
		{FamilyName: "Pkg.C_abc", RawName: "PkgC", DisplayName: okName("Package C"), Version: [4]uint16{1, 2, 3, 4}},
		{FamilyName: "OS.Shell_xyz", RawName: "Shell", DisplayName: okName("Shell"), SystemOwned: true},
	}}

	idx := newMemIndex(t)
	require.NoError(t, NewAggregator(scanner, enum).FullPopulate(idx))

	assert.Equal(t, []string{"Pkg.C_abc", "app.a", "app.b"}, identities(t, idx))

	matches, err := idx.Search(index.Filter{Identity: "Pkg.C_abc"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Package C", matches[0].Record.Name)
	assert.Equal(t, "1.2.3.4", matches[0].Record.Version)
	assert.Empty(t, matches[0].Record.Scope, "platform packages carry no scope")

	installedType, err := idx.GetMetadata(matches[0].ID, MetadataInstalledType)
	require.NoError(t, err)
	assert.Equal(t, InstalledTypePlatform, installedType)
}

func TestFullPopulate_SystemPackagesExcluded(t *testing.T) {
	enum := &fakeEnumerator{packages: []PlatformPackage{
		{FamilyName: "OS.Core_1", RawName: "Core", DisplayName: okName("Core"), SystemOwned: true},
	}}

	idx := newMemIndex(t)
	require.NoError(t, NewAggregator(&fakeScanner{}, enum).FullPopulate(idx))
	assert.Empty(t, identities(t, idx))
}

func TestFullPopulate_DisplayNameFallback(t *testing.T) {
	enum := &fakeEnumerator{packages: []PlatformPackage{
		{FamilyName: "Pkg.D_1", RawName: "PkgD", DisplayName: failingName(), Version: [4]uint16{1, 0, 0, 0}},
	}}

	idx := newMemIndex(t)
	require.NoError(t, NewAggregator(&fakeScanner{}, enum).FullPopulate(idx),
		"a failing display name must not abort the pass")

	matches, err := idx.Search(index.Filter{Identity: "Pkg.D_1"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "PkgD", matches[0].Record.Name)
}

func TestFullPopulate_ScopeFailurePropagates(t *testing.T) {
	scanner := &fakeScanner{failScope: ScopeUser}
	err := NewAggregator(scanner, &fakeEnumerator{}).FullPopulate(newMemIndex(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUtils.ErrEnumeration))
}

func TestFullPopulate_Idempotent(t *testing.T) {
	scanner := &fakeScanner{entries: map[Scope][]index.Record{
		ScopeMachine: {{Identity: "app.a", Name: "App A", Version: "1.0"}},
	}}
	enum := &fakeEnumerator{packages: []PlatformPackage{
		{FamilyName: "Pkg.C_abc", RawName: "PkgC", DisplayName: okName("Package C"), Version: [4]uint16{3, 1, 0, 0}},
	}}
	agg := NewAggregator(scanner, enum)

	first := newMemIndex(t)
	require.NoError(t, agg.FullPopulate(first))
	second := newMemIndex(t)
	require.NoError(t, agg.FullPopulate(second))

	assert.Equal(t, identities(t, first), identities(t, second))
}

func TestFullPopulate_RepeatedPassNoDuplicates(t *testing.T) {
	scanner := &fakeScanner{entries: map[Scope][]index.Record{
		ScopeMachine: {{Identity: "app.a", Name: "App A", Version: "1.0"}},
	}}
	agg := NewAggregator(scanner, &fakeEnumerator{})

	idx := newMemIndex(t)
	require.NoError(t, agg.FullPopulate(idx))
	require.NoError(t, agg.FullPopulate(idx))

	assert.Equal(t, []string{"app.a"}, identities(t, idx))
}

func TestUpdatePopulate_RemovesUninstalled(t *testing.T) {
	scanner := &fakeScanner{entries: map[Scope][]index.Record{
		ScopeMachine: {
			{Identity: "app.a", Name: "App A", Version: "1.0"},
			{Identity: "app.b", Name: "App B", Version: "1.0"},
			{Identity: "app.c", Name: "App C", Version: "1.0"},
		},
	}}
	agg := NewAggregator(scanner, &fakeEnumerator{})

	idx := newMemIndex(t)
	require.NoError(t, agg.FullPopulate(idx))
	require.Equal(t, []string{"app.a", "app.b", "app.c"}, identities(t, idx))

	// B was uninstalled; the next scan sees only A (updated) and C.
	scanner.entries[ScopeMachine] = []index.Record{
		{Identity: "app.a", Name: "App A", Version: "1.1"},
		{Identity: "app.c", Name: "App C", Version: "1.0"},
	}
	require.NoError(t, agg.UpdatePopulate(idx))

	assert.Equal(t, []string{"app.a", "app.c"}, identities(t, idx))
	matches, err := idx.Search(index.Filter{Identity: "app.a"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "1.1", matches[0].Record.Version)
}

func TestUpdatePopulate_CrossInventorySurvival(t *testing.T) {
	// A legacy record and a platform record must each survive a pass in
	// which only the other inventory re-encounters its own entries.
	scanner := &fakeScanner{entries: map[Scope][]index.Record{
		ScopeMachine: {{Identity: "app.a", Name: "App A", Version: "1.0"}},
	}}
	enum := &fakeEnumerator{packages: []PlatformPackage{
		{FamilyName: "Pkg.C_abc", RawName: "PkgC", DisplayName: okName("Package C"), Version: [4]uint16{1, 0, 0, 0}},
	}}
	agg := NewAggregator(scanner, enum)

	idx := newMemIndex(t)
	require.NoError(t, agg.FullPopulate(idx))
	require.NoError(t, agg.UpdatePopulate(idx))

	assert.Equal(t, []string{"Pkg.C_abc", "app.a"}, identities(t, idx))
}

func TestUpdatePopulate_PartialScanDeletesNothing(t *testing.T) {
	scanner := &fakeScanner{entries: map[Scope][]index.Record{
		ScopeMachine: {{Identity: "app.a", Name: "App A", Version: "1.0"}},
	}}
	enum := &fakeEnumerator{packages: []PlatformPackage{
		{FamilyName: "Pkg.C_abc", RawName: "PkgC", DisplayName: okName("Package C"), Version: [4]uint16{1, 0, 0, 0}},
	}}
	agg := NewAggregator(scanner, enum)

	idx := newMemIndex(t)
	require.NoError(t, agg.FullPopulate(idx))

	// The platform enumeration fails after the legacy scan succeeded.
	// Nothing may be deleted: the platform record's absence from the
	// scan is a scan failure, not an uninstall.
	enum.err = errors.New("platform enumeration unavailable")
	err := agg.UpdatePopulate(idx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUtils.ErrEnumeration))

	assert.Equal(t, []string{"Pkg.C_abc", "app.a"}, identities(t, idx))
}

func TestFormatVersionQuad(t *testing.T) {
	assert.Equal(t, "1.2.3.4", FormatVersionQuad([4]uint16{1, 2, 3, 4}))
	assert.Equal(t, "0.0.0.0", FormatVersionQuad([4]uint16{}))
}
