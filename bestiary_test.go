package libretto

// Fixture helpers for solver tests. A fixture declares a package
// universe in a compact string form:
//
//	"a 1.0.0: b ^1.0, provide:v/i 1.0.0, replace:old/pkg 1.0.0, dev:t *"
//
// The left of the colon is "name version"; the right is a comma list of
// requirements, with provide:/replace:/dev: prefixes for the non-require
// relations. Root requirements are plain "name constraint" strings.

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type basicFixture struct {
	n string
	// pkgs is the package universe.
	pkgs []string
	// r and devr are the root's requirements.
	r    []string
	devr []string
	// locked pins, "name version".
	locked []string
	mode   SelectionMode
	min    Stability
	// want is the expected resolution, "name version" with an optional
	// trailing "dev" marker, in installation order.
	want []string
	// wantPlatform is the expected platform listing, "name constraint".
	wantPlatform []string
	// wantConflict lists substrings the conflict explanation must
	// contain; non-empty means the solve must fail with ConflictError.
	wantConflict []string
	// wantFetchFail names the package whose fetch failure must abort
	// the solve.
	wantFetchFail PackageName
}

func mkdep(t *testing.T, s string) Dependency {
	t.Helper()
	name, rest, ok := strings.Cut(s, " ")
	if !ok {
		t.Fatalf("malformed dependency %q", s)
	}
	c, err := ParseConstraint(strings.TrimSpace(rest))
	if err != nil {
		t.Fatalf("dependency %q: %s", s, err)
	}
	return Dependency{Name: PackageName(name), Constraint: c}
}

func mkpair(t *testing.T, s string) ProvidePair {
	t.Helper()
	name, rest, ok := strings.Cut(s, " ")
	if !ok {
		t.Fatalf("malformed provide %q", s)
	}
	return ProvidePair{Name: PackageName(name), Version: mustVersion(strings.TrimSpace(rest))}
}

func mkrecord(t *testing.T, spec string) (PackageName, VersionRecord) {
	t.Helper()
	head, rest, _ := strings.Cut(spec, ":")
	name, ver, ok := strings.Cut(strings.TrimSpace(head), " ")
	if !ok {
		t.Fatalf("malformed package spec %q", spec)
	}
	rec := VersionRecord{Version: mustVersion(ver)}

	if strings.TrimSpace(rest) != "" {
		for _, item := range strings.Split(rest, ",") {
			item = strings.TrimSpace(item)
			switch {
			case strings.HasPrefix(item, "provide:"):
				rec.Provides = append(rec.Provides, mkpair(t, item[len("provide:"):]))
			case strings.HasPrefix(item, "replace:"):
				rec.Replaces = append(rec.Replaces, mkpair(t, item[len("replace:"):]))
			case strings.HasPrefix(item, "dev:"):
				rec.DevRequires = append(rec.DevRequires, mkdep(t, item[len("dev:"):]))
			default:
				rec.Requires = append(rec.Requires, mkdep(t, item))
			}
		}
	}
	return PackageName(name), rec
}

func mkfetcher(t *testing.T, specs []string) *MapFetcher {
	t.Helper()
	f := NewMapFetcher()
	for _, spec := range specs {
		name, rec := mkrecord(t, spec)
		f.AddVersion(name, rec)
	}
	return f
}

func mkdeps(t *testing.T, specs []string) []Dependency {
	t.Helper()
	out := make([]Dependency, 0, len(specs))
	for _, s := range specs {
		out = append(out, mkdep(t, s))
	}
	return out
}

func (fix basicFixture) params(t *testing.T) SolveParameters {
	t.Helper()
	params := SolveParameters{
		RootDependencies:    mkdeps(t, fix.r),
		RootDevDependencies: mkdeps(t, fix.devr),
		Mode:                fix.mode,
		MinimumStability:    fix.min,
	}
	if len(fix.locked) > 0 {
		params.Locked = make(map[PackageName]Version)
		for _, s := range fix.locked {
			name, ver, ok := strings.Cut(s, " ")
			if !ok {
				t.Fatalf("malformed lock entry %q", s)
			}
			params.Locked[PackageName(name)] = mustVersion(strings.TrimSpace(ver))
		}
	}
	return params
}

func (fix basicFixture) solve(t *testing.T) (*Resolution, error) {
	t.Helper()
	s, err := Prepare(fix.params(t), mkfetcher(t, fix.pkgs))
	if err != nil {
		t.Fatalf("Prepare errored: %s", err)
	}
	defer s.Release()
	return s.Solve(context.Background())
}

func fixtureCheck(t *testing.T, fix basicFixture) {
	t.Helper()
	res, err := fix.solve(t)

	if len(fix.wantConflict) > 0 {
		conflict, ok := err.(*ConflictError)
		if !ok {
			t.Fatalf("wanted a conflict, got res=%v err=%v", res, err)
		}
		expl := conflict.Explanation()
		for _, want := range fix.wantConflict {
			if !strings.Contains(expl, want) {
				t.Errorf("explanation missing %q:\n%s", want, expl)
			}
		}
		return
	}
	if fix.wantFetchFail != "" {
		fe, ok := err.(*FetchError)
		if !ok {
			t.Fatalf("wanted a fetch failure, got res=%v err=%v", res, err)
		}
		if fe.Package != fix.wantFetchFail {
			t.Errorf("fetch failure names %s, want %s", fe.Package, fix.wantFetchFail)
		}
		return
	}
	if err != nil {
		t.Fatalf("solve errored: %s", err)
	}

	got := renderResolution(res)
	if len(got) != len(fix.want) {
		t.Fatalf("resolved %v, want %v", got, fix.want)
	}
	for i := range got {
		if got[i] != fix.want[i] {
			t.Fatalf("resolved %v, want %v", got, fix.want)
		}
	}

	if fix.wantPlatform != nil {
		var gotPlat []string
		for _, d := range res.Platform() {
			gotPlat = append(gotPlat, fmt.Sprintf("%s %s", d.Name, d.Constraint))
		}
		if len(gotPlat) != len(fix.wantPlatform) {
			t.Fatalf("platform %v, want %v", gotPlat, fix.wantPlatform)
		}
		for i := range gotPlat {
			if gotPlat[i] != fix.wantPlatform[i] {
				t.Fatalf("platform %v, want %v", gotPlat, fix.wantPlatform)
			}
		}
	}
}

func renderResolution(res *Resolution) []string {
	var out []string
	for _, p := range res.Packages() {
		s := fmt.Sprintf("%s %s", p.Name, p.Version)
		if p.Dev {
			s += " dev"
		}
		out = append(out, s)
	}
	return out
}
