package sources

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/countradooku/libretto"
)

// PathFetcher serves metadata from a directory tree of manifests laid
// out as <root>/<vendor>/<project>/<version>/libretto.yaml. Useful for
// monorepos and tests. The tree is indexed once, on first fetch.
type PathFetcher struct {
	Root string

	once  sync.Once
	index map[libretto.PackageName]libretto.PackageData
	err   error
}

// FetchPackage implements libretto.Fetcher.
func (f *PathFetcher) FetchPackage(ctx context.Context, name libretto.PackageName) (libretto.PackageData, error) {
	f.once.Do(f.scan)
	if f.err != nil {
		return libretto.PackageData{}, f.err
	}
	if err := ctx.Err(); err != nil {
		return libretto.PackageData{}, err
	}
	data, ok := f.index[name]
	if !ok {
		return libretto.PackageData{}, errors.Errorf("no package %s under %s", name, f.Root)
	}
	return data, nil
}

func (f *PathFetcher) scan() {
	f.index = make(map[libretto.PackageName]libretto.PackageData)
	root, err := filepath.Abs(f.Root)
	if err != nil {
		f.err = errors.Wrap(err, "resolving fetcher root")
		return
	}

	f.err = godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || de.Name() != libretto.ManifestName {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			parts := strings.Split(filepath.ToSlash(rel), "/")
			// vendor/project/version/libretto.yaml
			if len(parts) != 4 {
				return nil
			}
			name := libretto.PackageName(parts[0] + "/" + parts[1])
			rec, err := f.readRecord(path, parts[2])
			if err != nil {
				return errors.Wrapf(err, "reading %s", rel)
			}

			data := f.index[name]
			data.Name = name
			data.Versions = append(data.Versions, rec)
			f.index[name] = data
			return nil
		},
	})
}

func (f *PathFetcher) readRecord(path, version string) (libretto.VersionRecord, error) {
	v, err := libretto.NewVersion(version)
	if err != nil {
		return libretto.VersionRecord{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return libretto.VersionRecord{}, err
	}
	defer file.Close()

	m, err := libretto.ReadManifest(file)
	if err != nil {
		return libretto.VersionRecord{}, err
	}
	requires, err := m.Dependencies()
	if err != nil {
		return libretto.VersionRecord{}, err
	}
	devRequires, err := m.DevDependencies()
	if err != nil {
		return libretto.VersionRecord{}, err
	}
	return libretto.VersionRecord{
		Version:     v,
		Requires:    requires,
		DevRequires: devRequires,
		Dist:        &libretto.DistInfo{Type: "path", URL: filepath.Dir(path)},
	}, nil
}
