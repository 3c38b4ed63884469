package sources

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/countradooku/libretto"
)

// VCSFetcher derives package versions from repository tags and branches:
// each parsable tag becomes a version, each branch a dev-<branch>
// pseudo-version, all carrying source info pointing back at the
// repository. It knows nothing about requirements; compose it behind a
// registry with Chain when dependency metadata matters.
type VCSFetcher struct {
	// Remotes maps package names to repository URLs.
	Remotes map[libretto.PackageName]string

	// Dir is where clones are kept, one subdirectory per package.
	Dir string

	// Update refreshes an existing clone before listing versions.
	Update bool

	Logger *logrus.Logger

	mu    sync.Mutex
	repos map[libretto.PackageName]vcs.Repo
}

// FetchPackage implements libretto.Fetcher.
func (f *VCSFetcher) FetchPackage(ctx context.Context, name libretto.PackageName) (libretto.PackageData, error) {
	remote, ok := f.Remotes[name]
	if !ok {
		return libretto.PackageData{}, errors.Errorf("no repository known for %s", name)
	}
	if err := ctx.Err(); err != nil {
		return libretto.PackageData{}, err
	}

	repo, err := f.repo(name, remote)
	if err != nil {
		return libretto.PackageData{}, err
	}

	tags, err := repo.Tags()
	if err != nil {
		return libretto.PackageData{}, errors.Wrapf(err, "listing tags of %s", remote)
	}
	branches, err := repo.Branches()
	if err != nil {
		return libretto.PackageData{}, errors.Wrapf(err, "listing branches of %s", remote)
	}

	data := libretto.PackageData{Name: name}
	vtype := string(repo.Vcs())
	for _, tag := range tags {
		v, err := libretto.NewVersion(tag)
		if err != nil {
			// Repos accumulate tags that aren't versions; skip them.
			if f.Logger != nil && f.Logger.Level >= logrus.DebugLevel {
				f.Logger.WithFields(logrus.Fields{
					"package": name,
					"tag":     tag,
				}).Debug("skipping unparsable tag")
			}
			continue
		}
		data.Versions = append(data.Versions, libretto.VersionRecord{
			Version: v,
			Source:  &libretto.SourceInfo{Type: vtype, URL: remote, Reference: tag},
		})
	}
	for _, branch := range branches {
		v, err := libretto.NewVersion("dev-" + branch)
		if err != nil {
			continue
		}
		data.Versions = append(data.Versions, libretto.VersionRecord{
			Version: v,
			Source:  &libretto.SourceInfo{Type: vtype, URL: remote, Reference: branch},
		})
	}
	return data, nil
}

func (f *VCSFetcher) repo(name libretto.PackageName, remote string) (vcs.Repo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.repos[name]; ok {
		return r, nil
	}

	local := filepath.Join(f.Dir, strings.ReplaceAll(string(name), "/", string(os.PathSeparator)))
	r, err := vcs.NewRepo(remote, local)
	if err != nil {
		return nil, errors.Wrapf(err, "setting up repository for %s", name)
	}
	if !r.CheckLocal() {
		if err := r.Get(); err != nil {
			return nil, errors.Wrapf(err, "cloning %s", remote)
		}
	} else if f.Update {
		if err := r.Update(); err != nil {
			return nil, errors.Wrapf(err, "updating %s", remote)
		}
	}

	if f.repos == nil {
		f.repos = make(map[libretto.PackageName]vcs.Repo)
	}
	f.repos[name] = r
	return r, nil
}
