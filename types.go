package libretto

import (
	"context"
	"sort"
	"strings"
)

// PackageName identifies a package in its registry's namespace, typically
// "vendor/project".
type PackageName string

func (n PackageName) String() string { return string(n) }

// rootPackage is the pseudo-package standing for the project being
// resolved. It never reaches a Fetcher and never appears in a Resolution.
const rootPackage PackageName = "(root)"

// IsPlatform reports whether the name denotes a platform requirement:
// the runtime itself, its extensions, system libraries, or the tooling
// API pseudo-packages. Platform packages are never resolved against a
// registry; the solver records them and moves on.
func (n PackageName) IsPlatform() bool {
	s := string(n)
	switch s {
	case "php", "composer", "composer-plugin-api", "composer-runtime-api":
		return true
	}
	return strings.HasPrefix(s, "php-") ||
		strings.HasPrefix(s, "ext-") ||
		strings.HasPrefix(s, "lib-")
}

// Dependency is one edge of a requirement graph: a package name and the
// constraint the depender places on it.
type Dependency struct {
	Name       PackageName
	Constraint Constraint
}

func (d Dependency) String() string {
	return string(d.Name) + " " + d.Constraint.String()
}

// ProvidePair declares that a package stands in for another name at a
// particular version.
type ProvidePair struct {
	Name    PackageName
	Version Version
}

// DistInfo locates a prebuilt archive for a version.
type DistInfo struct {
	Type      string
	URL       string
	Reference string
	Shasum    string
}

// SourceInfo locates the VCS origin of a version.
type SourceInfo struct {
	Type      string
	URL       string
	Reference string
}

// VersionRecord is the metadata for one available version of a package.
type VersionRecord struct {
	Version     Version
	Requires    []Dependency
	DevRequires []Dependency
	Provides    []ProvidePair
	Replaces    []ProvidePair
	Dist        *DistInfo
	Source      *SourceInfo
}

// PackageData is everything a Fetcher knows about one package name:
// its own versions, plus the names of other packages that declare they
// provide or replace it.
type PackageData struct {
	Name      PackageName
	Versions  []VersionRecord
	Providers []PackageName
}

func sortPackageNames(names []PackageName) {
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
}

// sortedVersions returns the records ordered from highest version to
// lowest, branches last. Fetchers may return versions in any order.
func (d PackageData) sortedVersions() []VersionRecord {
	out := make([]VersionRecord, len(d.Versions))
	copy(out, d.Versions)
	sort.SliceStable(out, func(i, j int) bool {
		return compareVersions(out[i].Version, out[j].Version) > 0
	})
	return out
}

// A Fetcher retrieves package metadata. Implementations must be safe for
// concurrent use; the solver issues overlapping calls up to its
// configured concurrency limit. Returning an error for a package that is
// not unconditionally required by the root is not fatal to the solve.
type Fetcher interface {
	FetchPackage(ctx context.Context, name PackageName) (PackageData, error)
}
