// Package sources provides Fetcher implementations: an HTTP registry
// client, a persistent metadata cache, a VCS-backed fetcher, and a local
// directory fetcher. They compose; see Chain.
package sources

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/countradooku/libretto"
)

// versionJSON is the wire form of one package version, shared by the
// registry protocol and the cache encoding.
type versionJSON struct {
	Version    string            `json:"version"`
	Require    map[string]string `json:"require,omitempty"`
	RequireDev map[string]string `json:"require-dev,omitempty"`
	Provide    map[string]string `json:"provide,omitempty"`
	Replace    map[string]string `json:"replace,omitempty"`
	Dist       *distJSON         `json:"dist,omitempty"`
	Source     *sourceJSON       `json:"source,omitempty"`
}

type distJSON struct {
	Type      string `json:"type,omitempty"`
	URL       string `json:"url,omitempty"`
	Reference string `json:"reference,omitempty"`
	Shasum    string `json:"shasum,omitempty"`
}

type sourceJSON struct {
	Type      string `json:"type,omitempty"`
	URL       string `json:"url,omitempty"`
	Reference string `json:"reference,omitempty"`
}

type packageJSON struct {
	Name      string        `json:"name"`
	Versions  []versionJSON `json:"versions"`
	Providers []string      `json:"providers,omitempty"`
}

func (v versionJSON) toRecord() (libretto.VersionRecord, error) {
	ver, err := libretto.NewVersion(v.Version)
	if err != nil {
		return libretto.VersionRecord{}, err
	}
	rec := libretto.VersionRecord{Version: ver}

	if rec.Requires, err = toDependencies(v.Require); err != nil {
		return libretto.VersionRecord{}, err
	}
	if rec.DevRequires, err = toDependencies(v.RequireDev); err != nil {
		return libretto.VersionRecord{}, err
	}
	if rec.Provides, err = toProvides(v.Provide); err != nil {
		return libretto.VersionRecord{}, err
	}
	if rec.Replaces, err = toProvides(v.Replace); err != nil {
		return libretto.VersionRecord{}, err
	}
	if v.Dist != nil {
		rec.Dist = &libretto.DistInfo{
			Type: v.Dist.Type, URL: v.Dist.URL,
			Reference: v.Dist.Reference, Shasum: v.Dist.Shasum,
		}
	}
	if v.Source != nil {
		rec.Source = &libretto.SourceInfo{
			Type: v.Source.Type, URL: v.Source.URL, Reference: v.Source.Reference,
		}
	}
	return rec, nil
}

func toDependencies(block map[string]string) ([]libretto.Dependency, error) {
	names := make([]string, 0, len(block))
	for n := range block {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]libretto.Dependency, 0, len(names))
	for _, n := range names {
		c, err := libretto.ParseConstraint(block[n])
		if err != nil {
			return nil, errors.Wrapf(err, "requirement on %s", n)
		}
		out = append(out, libretto.Dependency{Name: libretto.PackageName(n), Constraint: c})
	}
	return out, nil
}

func toProvides(block map[string]string) ([]libretto.ProvidePair, error) {
	names := make([]string, 0, len(block))
	for n := range block {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]libretto.ProvidePair, 0, len(names))
	for _, n := range names {
		v, err := libretto.NewVersion(block[n])
		if err != nil {
			return nil, errors.Wrapf(err, "provided version of %s", n)
		}
		out = append(out, libretto.ProvidePair{Name: libretto.PackageName(n), Version: v})
	}
	return out, nil
}

func toPackageData(name libretto.PackageName, pj packageJSON) (libretto.PackageData, error) {
	data := libretto.PackageData{Name: name}
	for _, vj := range pj.Versions {
		rec, err := vj.toRecord()
		if err != nil {
			return libretto.PackageData{}, errors.Wrapf(err, "package %s", name)
		}
		data.Versions = append(data.Versions, rec)
	}
	for _, p := range pj.Providers {
		data.Providers = append(data.Providers, libretto.PackageName(p))
	}
	return data, nil
}

func fromPackageData(data libretto.PackageData) packageJSON {
	pj := packageJSON{Name: string(data.Name)}
	for _, rec := range data.Versions {
		vj := versionJSON{Version: rec.Version.String()}
		if len(rec.Requires) > 0 {
			vj.Require = fromDependencies(rec.Requires)
		}
		if len(rec.DevRequires) > 0 {
			vj.RequireDev = fromDependencies(rec.DevRequires)
		}
		if len(rec.Provides) > 0 {
			vj.Provide = fromProvides(rec.Provides)
		}
		if len(rec.Replaces) > 0 {
			vj.Replace = fromProvides(rec.Replaces)
		}
		if rec.Dist != nil {
			vj.Dist = &distJSON{
				Type: rec.Dist.Type, URL: rec.Dist.URL,
				Reference: rec.Dist.Reference, Shasum: rec.Dist.Shasum,
			}
		}
		if rec.Source != nil {
			vj.Source = &sourceJSON{
				Type: rec.Source.Type, URL: rec.Source.URL, Reference: rec.Source.Reference,
			}
		}
		pj.Versions = append(pj.Versions, vj)
	}
	for _, p := range data.Providers {
		pj.Providers = append(pj.Providers, string(p))
	}
	return pj
}

func fromDependencies(deps []libretto.Dependency) map[string]string {
	out := make(map[string]string, len(deps))
	for _, d := range deps {
		out[string(d.Name)] = d.Constraint.String()
	}
	return out
}

func fromProvides(pairs []libretto.ProvidePair) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[string(p.Name)] = p.Version.String()
	}
	return out
}
