package libretto

import (
	"io"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// LockName is the file a finished resolution is recorded in.
const LockName = "libretto.lock"

// A Lock is the serialized form of a Resolution: enough to reproduce the
// exact package set and to prefer the same versions on the next solve.
type Lock struct {
	Packages []LockedPackage  `yaml:"packages"`
	Platform []LockedPlatform `yaml:"platform,omitempty"`
}

// LockedPackage pins one package, in installation order within the lock.
type LockedPackage struct {
	Name    PackageName `yaml:"name"`
	Version string      `yaml:"version"`
	Dev     bool        `yaml:"dev,omitempty"`
	Dist    *DistInfo   `yaml:"dist,omitempty"`
	Source  *SourceInfo `yaml:"source,omitempty"`
}

// LockedPlatform records a platform requirement the graph declared.
type LockedPlatform struct {
	Name       PackageName `yaml:"name"`
	Constraint string      `yaml:"constraint"`
}

// LockFromResolution captures a resolution as a lock.
func LockFromResolution(res *Resolution) *Lock {
	l := &Lock{}
	for _, p := range res.Packages() {
		l.Packages = append(l.Packages, LockedPackage{
			Name:    p.Name,
			Version: p.Version.String(),
			Dev:     p.Dev,
			Dist:    p.Record.Dist,
			Source:  p.Record.Source,
		})
	}
	for _, d := range res.Platform() {
		l.Platform = append(l.Platform, LockedPlatform{
			Name:       d.Name,
			Constraint: d.Constraint.String(),
		})
	}
	return l
}

// ReadLock decodes a lock from YAML.
func ReadLock(r io.Reader) (*Lock, error) {
	var l Lock
	if err := yaml.NewDecoder(r).Decode(&l); err != nil {
		if err == io.EOF {
			return &l, nil
		}
		return nil, errors.Wrap(err, "unable to parse lock")
	}
	return &l, nil
}

// Write encodes the lock as YAML.
func (l *Lock) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w, yaml.Indent(2))
	defer enc.Close()
	return errors.Wrap(enc.Encode(l), "unable to write lock")
}

// Pins converts the lock into the solver's locked-version map.
func (l *Lock) Pins() (map[PackageName]Version, error) {
	out := make(map[PackageName]Version, len(l.Packages))
	for _, p := range l.Packages {
		v, err := NewVersion(p.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "locked version of %s", p.Name)
		}
		out[p.Name] = v
	}
	return out, nil
}
