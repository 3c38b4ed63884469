package libretto

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Stability classifies the maturity of a version. Stabilities are
// ordered, so a plain >= comparison answers "is this at least as stable
// as that". The zero value is reserved as "unset" so that callers who
// leave a Stability field blank get the stable default rather than dev.
type Stability uint8

const (
	stabilityUnset Stability = iota
	StabilityDev
	StabilityAlpha
	StabilityBeta
	StabilityRC
	StabilityStable
)

func (s Stability) String() string {
	switch s {
	case StabilityDev:
		return "dev"
	case StabilityAlpha:
		return "alpha"
	case StabilityBeta:
		return "beta"
	case StabilityRC:
		return "RC"
	case StabilityStable:
		return "stable"
	default:
		return fmt.Sprintf("Stability(%d)", uint8(s))
	}
}

// ParseStability interprets a stability name as written in constraint
// suffixes (`@beta`) and manifest minimum-stability fields. Matching is
// case-insensitive.
func ParseStability(text string) (Stability, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "dev":
		return StabilityDev, nil
	case "alpha", "a":
		return StabilityAlpha, nil
	case "beta", "b":
		return StabilityBeta, nil
	case "rc":
		return StabilityRC, nil
	case "stable", "":
		return StabilityStable, nil
	default:
		return StabilityStable, &ParseError{Input: text, Msg: "unknown stability"}
	}
}

// stabilityOf derives a Stability from a semver prerelease tag, following
// the composer rules: the tag's leading alphabetic run decides, and
// unrecognized tags (e.g. "patch") count as stable.
func stabilityOf(sv *semver.Version) Stability {
	pre := strings.ToLower(sv.Prerelease())
	if pre == "" {
		return StabilityStable
	}

	var i int
	for i < len(pre) && pre[i] >= 'a' && pre[i] <= 'z' {
		i++
	}

	switch pre[:i] {
	case "dev":
		return StabilityDev
	case "alpha", "a":
		return StabilityAlpha
	case "beta", "b":
		return StabilityBeta
	case "rc":
		return StabilityRC
	default:
		return StabilityStable
	}
}

// Version is either a numeric version (major.minor.patch with optional
// prerelease and build metadata) or a branch pseudo-version like dev-main.
// Branch versions are never ordered against numeric versions; they compare
// only by name equality and always carry dev stability.
type Version struct {
	raw       string
	sv        *semver.Version
	branch    string
	stability Stability
}

// NewVersion parses a version string. Accepted forms: numeric versions with
// an optional leading "v" and up to three dotted components ("1", "1.2",
// "v1.2.3", "1.0.0-beta2+build"), branch pseudo-versions ("dev-main"), and
// branch alias forms ("2.x-dev"), which normalize to the branch form.
func NewVersion(text string) (Version, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Version{}, &ParseError{Input: text, Msg: "empty version"}
	}

	if name, ok := strings.CutPrefix(raw, "dev-"); ok {
		if name == "" {
			return Version{}, &ParseError{Input: text, Msg: "branch version with empty name"}
		}
		return Version{raw: raw, branch: name, stability: StabilityDev}, nil
	}
	if alias, ok := strings.CutSuffix(raw, "-dev"); ok && isBranchAlias(alias) {
		// "2.x-dev" and friends behave as a branch named after the alias.
		// Fully numeric "-dev" versions are numeric with dev stability.
		return Version{raw: "dev-" + alias, branch: alias, stability: StabilityDev}, nil
	}

	sv, err := semver.NewVersion(strings.TrimPrefix(raw, "v"))
	if err != nil {
		return Version{}, &ParseError{Input: text, Msg: "malformed version", Err: err}
	}

	return Version{raw: sv.Original(), sv: sv, stability: stabilityOf(sv)}, nil
}

// isBranchAlias reports whether a "-dev" suffixed version names a branch
// alias like "2.x" rather than a concrete numeric version.
func isBranchAlias(alias string) bool {
	for _, part := range strings.Split(alias, ".") {
		if part == "x" || part == "X" || part == "*" {
			return true
		}
	}
	return false
}

// mustVersion is a parse helper for internal literals; panics on bad input.
func mustVersion(text string) Version {
	v, err := NewVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	if v.raw != "" {
		return v.raw
	}
	return "(empty)"
}

// IsBranch indicates whether this is a branch pseudo-version.
func (v Version) IsBranch() bool { return v.branch != "" }

// Branch returns the branch name, or "" for numeric versions.
func (v Version) Branch() string { return v.branch }

// Stability reports the stability classification of the version.
func (v Version) Stability() Stability { return v.stability }

// Semver exposes the underlying numeric version; nil for branches.
func (v Version) Semver() *semver.Version { return v.sv }

func (v Version) empty() bool { return v.sv == nil && v.branch == "" }

// Equal reports exact equality: branch versions by name, numeric versions
// by full semver comparison including prerelease.
func (v Version) Equal(o Version) bool {
	if v.branch != "" || o.branch != "" {
		return v.branch == o.branch
	}
	if v.sv == nil || o.sv == nil {
		return v.sv == o.sv
	}
	return v.sv.Equal(o.sv)
}

// compareVersions imposes the total order used for candidate sorting and
// deterministic output: numeric versions order by semver, branch versions
// order below all numerics and among themselves by name. The order is not
// meaningful across the numeric/branch divide; it exists so sorts are
// stable and repeatable.
func compareVersions(a, b Version) int {
	switch {
	case a.branch != "" && b.branch != "":
		return strings.Compare(a.branch, b.branch)
	case a.branch != "":
		return -1
	case b.branch != "":
		return 1
	default:
		return a.sv.Compare(b.sv)
	}
}
