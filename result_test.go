package libretto

import (
	"reflect"
	"testing"
)

func orderFixture(edges map[PackageName][]PackageName, extra ...PackageName) []PackageName {
	var names []PackageName
	seen := map[PackageName]bool{}
	add := func(n PackageName) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for n, ds := range edges {
		add(n)
		for _, d := range ds {
			add(d)
		}
	}
	for _, n := range extra {
		add(n)
	}
	sortPackageNames(names)

	dependents := map[PackageName][]PackageName{}
	for n, ds := range edges {
		for _, d := range ds {
			dependents[d] = append(dependents[d], n)
		}
	}
	return installationOrder(names, edges, dependents)
}

func TestInstallationOrder(t *testing.T) {
	cases := []struct {
		name  string
		edges map[PackageName][]PackageName
		extra []PackageName
		want  []PackageName
	}{
		{
			name: "dependencies before dependents",
			edges: map[PackageName][]PackageName{
				"app": {"lib", "util"},
				"lib": {"util"},
			},
			want: []PackageName{"util", "lib", "app"},
		},
		{
			name:  "independent packages in name order",
			extra: []PackageName{"c", "a", "b"},
			edges: map[PackageName][]PackageName{},
			want:  []PackageName{"a", "b", "c"},
		},
		{
			name: "cycle members contiguous",
			edges: map[PackageName][]PackageName{
				"x": {"y"},
				"y": {"x"},
				"z": {"x"},
			},
			want: []PackageName{"x", "y", "z"},
		},
		{
			name: "cycle does not starve unrelated packages",
			edges: map[PackageName][]PackageName{
				"m": {"n"},
				"n": {"m"},
			},
			extra: []PackageName{"a"},
			want:  []PackageName{"a", "m", "n"},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := orderFixture(c.edges, c.extra...)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("order = %v, want %v", got, c.want)
			}
		})
	}
}

func TestResolutionIntrospection(t *testing.T) {
	fix := basicFixture{
		pkgs: []string{
			"app 1.0.0: lib ^1.0, virt/log ^1.0",
			"lib 1.0.0: provide:virt/log 1.0.0",
		},
		r: []string{"app *"},
	}
	res, err := fix.solve(t)
	if err != nil {
		t.Fatalf("solve errored: %s", err)
	}

	if res.Len() != 2 {
		t.Fatalf("resolved %d packages, want 2", res.Len())
	}
	if p, ok := res.Get("lib"); !ok || p.Version.String() != "1.0.0" {
		t.Errorf("Get(lib) = %+v, %v", p, ok)
	}
	if _, ok := res.Get("virt/log"); ok {
		t.Error("virtual name appears as a resolved package")
	}
	if !res.Contains("virt/log") {
		t.Error("Contains(virt/log) = false, want true via provider")
	}
	if p, ok := res.ProviderOf("virt/log"); !ok || p != "lib" {
		t.Errorf("ProviderOf(virt/log) = %s, %v, want lib", p, ok)
	}

	// The virtual requirement collapses onto its provider, deduplicated
	// with the direct requirement.
	if got := res.DependenciesOf("app"); !reflect.DeepEqual(got, []PackageName{"lib"}) {
		t.Errorf("DependenciesOf(app) = %v, want [lib]", got)
	}
	if got := res.DependentsOf("lib"); !reflect.DeepEqual(got, []PackageName{"app"}) {
		t.Errorf("DependentsOf(lib) = %v, want [app]", got)
	}

	st := res.Stats()
	if st.Decisions < 2 {
		t.Errorf("stats report %d decisions, want at least 2", st.Decisions)
	}
	if st.Fetch.Requested < 2 {
		t.Errorf("stats report %d fetches, want at least 2", st.Fetch.Requested)
	}
}
