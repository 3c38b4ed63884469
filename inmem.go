package libretto

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// A MapFetcher serves package metadata from memory. It is safe for
// concurrent use and implements Fetcher; useful for tests and for
// resolving against a pre-baked snapshot.
type MapFetcher struct {
	mu        sync.RWMutex
	tree      packageTrie
	providers map[PackageName]map[PackageName]bool
}

func NewMapFetcher() *MapFetcher {
	return &MapFetcher{
		tree:      newPackageTrie(),
		providers: make(map[PackageName]map[PackageName]bool),
	}
}

// Add registers or replaces a package's metadata. Provide and replace
// declarations in its records are indexed so the provided names answer
// fetches as virtual packages.
func (m *MapFetcher) Add(data PackageData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tree.Insert(data.Name, data)
	for _, r := range data.Versions {
		for _, pv := range r.Provides {
			m.link(pv.Name, data.Name)
		}
		for _, pv := range r.Replaces {
			m.link(pv.Name, data.Name)
		}
	}
}

// AddVersion appends one version record to a package, creating the
// package if needed.
func (m *MapFetcher) AddVersion(name PackageName, rec VersionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := m.tree.Get(name)
	data.Name = name
	data.Versions = append(data.Versions, rec)
	m.tree.Insert(name, data)
	for _, pv := range rec.Provides {
		m.link(pv.Name, name)
	}
	for _, pv := range rec.Replaces {
		m.link(pv.Name, name)
	}
}

func (m *MapFetcher) link(virtual, provider PackageName) {
	if virtual == provider {
		return
	}
	set := m.providers[virtual]
	if set == nil {
		set = make(map[PackageName]bool)
		m.providers[virtual] = set
	}
	set[provider] = true
}

// Remove drops a package and any provider links it registered, reporting
// whether the package was present.
func (m *MapFetcher) Remove(name PackageName) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, had := m.tree.Delete(name)
	for virtual, set := range m.providers {
		delete(set, name)
		if len(set) == 0 {
			delete(m.providers, virtual)
		}
	}
	return had
}

// FetchPackage returns the stored metadata. A name with neither its own
// versions nor any registered provider is an error.
func (m *MapFetcher) FetchPackage(_ context.Context, name PackageName) (PackageData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, found := m.tree.Get(name)
	data.Name = name
	for p := range m.providers[name] {
		data.Providers = append(data.Providers, p)
	}
	sortPackageNames(data.Providers)

	if !found && len(data.Providers) == 0 {
		return PackageData{}, errors.Errorf("unknown package %s", name)
	}
	return data, nil
}

// Packages lists stored package names under the given prefix, in order.
func (m *MapFetcher) Packages(prefix string) []PackageName {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PackageName, 0, m.tree.Len())
	m.tree.WalkPrefix(prefix, func(name PackageName, _ PackageData) bool {
		out = append(out, name)
		return false
	})
	return out
}
