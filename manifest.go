package libretto

import (
	"io"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// ManifestName is the file a project's requirements live in.
const ManifestName = "libretto.yaml"

// Manifest is the project's requirement file.
type Manifest struct {
	Name             PackageName       `yaml:"name,omitempty"`
	Require          map[string]string `yaml:"require,omitempty"`
	RequireDev       map[string]string `yaml:"require-dev,omitempty"`
	MinimumStability string            `yaml:"minimum-stability,omitempty"`
}

// ReadManifest decodes a manifest from YAML.
func ReadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r, yaml.Strict()).Decode(&m); err != nil {
		if err == io.EOF {
			return &m, nil
		}
		return nil, errors.Wrap(err, "unable to parse manifest")
	}
	return &m, nil
}

// Write encodes the manifest as YAML.
func (m *Manifest) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w, yaml.Indent(2))
	defer enc.Close()
	return errors.Wrap(enc.Encode(m), "unable to write manifest")
}

// Dependencies parses the require block into solver input, in name
// order.
func (m *Manifest) Dependencies() ([]Dependency, error) {
	return parseRequireBlock(m.Require)
}

// DevDependencies parses the require-dev block.
func (m *Manifest) DevDependencies() ([]Dependency, error) {
	return parseRequireBlock(m.RequireDev)
}

func parseRequireBlock(block map[string]string) ([]Dependency, error) {
	names := make([]string, 0, len(block))
	for n := range block {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]Dependency, 0, len(names))
	for _, n := range names {
		c, err := ParseConstraint(block[n])
		if err != nil {
			return nil, errors.Wrapf(err, "requirement on %s", n)
		}
		out = append(out, Dependency{Name: PackageName(n), Constraint: c})
	}
	return out, nil
}

// Stability resolves the manifest's minimum-stability field, defaulting
// to stable.
func (m *Manifest) Stability() (Stability, error) {
	if m.MinimumStability == "" {
		return StabilityStable, nil
	}
	return ParseStability(m.MinimumStability)
}
