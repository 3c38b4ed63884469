package libretto

import "sort"

// ResolvedPackage is one entry of a finished resolution.
type ResolvedPackage struct {
	Name    PackageName
	Version Version
	// Dev marks packages reachable only through the root's dev
	// requirements. A package needed both ways is not dev.
	Dev    bool
	Record VersionRecord
}

// ResolutionStats summarizes the work a solve performed.
type ResolutionStats struct {
	Fetch      FetchStats
	Decisions  int
	Backtracks int
}

// A Resolution is the immutable outcome of a successful solve: every
// selected package in installation order, the platform requirements the
// dependency graph declared, and solve statistics. Virtual names
// satisfied through provide or replace do not appear as packages; they
// are reachable through Contains and ProviderOf.
type Resolution struct {
	pkgs       []ResolvedPackage
	byName     map[PackageName]int
	providedBy map[PackageName]PackageName
	deps       map[PackageName][]PackageName
	dependents map[PackageName][]PackageName
	platform   []Dependency
	stats      ResolutionStats
}

// assemble builds the Resolution from the finished partial solution.
// Only packages still decided in the partial solution survive; s.records
// can hold leftovers from choices the solver backtracked away from.
func (s *Solver) assemble() *Resolution {
	decided := s.ps.decisions()
	names := make([]PackageName, 0, len(decided))
	records := make(map[PackageName]VersionRecord, len(decided))
	for name, v := range decided {
		rec, ok := s.records[name]
		if !ok || !rec.Version.Equal(v) {
			// Pinned virtual names have no record of their own; stale
			// records belong to unwound decisions.
			continue
		}
		names = append(names, name)
		records[name] = rec
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	providedBy := make(map[PackageName]PackageName)
	for _, name := range names {
		rec := records[name]
		for _, pv := range rec.Provides {
			if pv.Name != name {
				providedBy[pv.Name] = name
			}
		}
		for _, pv := range rec.Replaces {
			if pv.Name != name {
				providedBy[pv.Name] = name
			}
		}
	}
	resolveTarget := func(dep PackageName) (PackageName, bool) {
		if _, ok := records[dep]; ok {
			return dep, true
		}
		p, ok := providedBy[dep]
		return p, ok
	}

	// Edges run dependency -> dependent so installation order comes out
	// of a plain topological sort.
	deps := make(map[PackageName][]PackageName, len(names))
	dependents := make(map[PackageName][]PackageName, len(names))
	for _, name := range names {
		seen := map[PackageName]bool{name: true}
		for _, d := range records[name].Requires {
			target, ok := resolveTarget(d.Name)
			if !ok || seen[target] {
				continue
			}
			seen[target] = true
			deps[name] = append(deps[name], target)
			dependents[target] = append(dependents[target], name)
		}
		sort.Slice(deps[name], func(i, j int) bool { return deps[name][i] < deps[name][j] })
	}
	for _, l := range dependents {
		sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })
	}

	order := installationOrder(names, deps, dependents)

	nonDev := reachable(s.rootTargets(s.params.RootDependencies, resolveTarget), deps)
	devOnly := reachable(s.rootTargets(s.params.RootDevDependencies, resolveTarget), deps)

	res := &Resolution{
		byName:     make(map[PackageName]int, len(order)),
		providedBy: providedBy,
		deps:       deps,
		dependents: dependents,
		stats: ResolutionStats{
			Fetch:      s.fm.stats(),
			Decisions:  s.ps.decisionCount,
			Backtracks: s.backtracks,
		},
	}
	for _, name := range order {
		rec := records[name]
		res.byName[name] = len(res.pkgs)
		res.pkgs = append(res.pkgs, ResolvedPackage{
			Name:    name,
			Version: rec.Version,
			Dev:     devOnly[name] && !nonDev[name],
			Record:  rec,
		})
	}

	platNames := make([]PackageName, 0, len(s.platform))
	for name := range s.platform {
		platNames = append(platNames, name)
	}
	sort.Slice(platNames, func(i, j int) bool { return platNames[i] < platNames[j] })
	for _, name := range platNames {
		res.platform = append(res.platform, Dependency{Name: name, Constraint: s.platform[name]})
	}

	s.traceFinish(res)
	return res
}

func (s *Solver) rootTargets(deps []Dependency, resolve func(PackageName) (PackageName, bool)) []PackageName {
	var out []PackageName
	for _, d := range deps {
		if d.Name.IsPlatform() {
			continue
		}
		if t, ok := resolve(d.Name); ok {
			out = append(out, t)
		}
	}
	return out
}

func reachable(roots []PackageName, deps map[PackageName][]PackageName) map[PackageName]bool {
	seen := make(map[PackageName]bool)
	stack := append([]PackageName(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, deps[n]...)
	}
	return seen
}

// installationOrder is Kahn's algorithm with deterministic tie-breaking:
// among ready nodes the lowest name goes first. When a cycle stalls the
// queue, the lowest-named member of the lowest remaining in-degree is
// forced, which keeps each cycle's members contiguous in the output.
func installationOrder(names []PackageName, deps, dependents map[PackageName][]PackageName) []PackageName {
	indeg := make(map[PackageName]int, len(names))
	remaining := make(map[PackageName]bool, len(names))
	for _, n := range names {
		indeg[n] = len(deps[n])
		remaining[n] = true
	}

	order := make([]PackageName, 0, len(names))
	for len(remaining) > 0 {
		var best PackageName
		bestDeg := -1
		for _, n := range names {
			if !remaining[n] {
				continue
			}
			if bestDeg < 0 || indeg[n] < bestDeg {
				best, bestDeg = n, indeg[n]
			}
		}
		delete(remaining, best)
		order = append(order, best)
		for _, d := range dependents[best] {
			if remaining[d] {
				indeg[d]--
			}
		}
	}
	return order
}

// Packages returns the resolved packages in installation order.
func (r *Resolution) Packages() []ResolvedPackage {
	out := make([]ResolvedPackage, len(r.pkgs))
	copy(out, r.pkgs)
	return out
}

// Len is the number of resolved packages.
func (r *Resolution) Len() int { return len(r.pkgs) }

// Get looks a package up by name.
func (r *Resolution) Get(name PackageName) (ResolvedPackage, bool) {
	if i, ok := r.byName[name]; ok {
		return r.pkgs[i], true
	}
	return ResolvedPackage{}, false
}

// Contains reports whether the name is satisfied by the resolution,
// directly or through a provider.
func (r *Resolution) Contains(name PackageName) bool {
	if _, ok := r.byName[name]; ok {
		return true
	}
	_, ok := r.providedBy[name]
	return ok
}

// ProviderOf names the resolved package standing in for a virtual name.
func (r *Resolution) ProviderOf(name PackageName) (PackageName, bool) {
	p, ok := r.providedBy[name]
	return p, ok
}

// DependenciesOf lists the resolved packages the named package depends
// on, in name order.
func (r *Resolution) DependenciesOf(name PackageName) []PackageName {
	return append([]PackageName(nil), r.deps[name]...)
}

// DependentsOf lists the resolved packages depending on the named
// package, in name order.
func (r *Resolution) DependentsOf(name PackageName) []PackageName {
	return append([]PackageName(nil), r.dependents[name]...)
}

// Platform lists the platform requirements encountered across the
// resolved graph, each with the intersection of every constraint placed
// on it.
func (r *Resolution) Platform() []Dependency {
	return append([]Dependency(nil), r.platform...)
}

// Stats reports counters from the solve that produced this resolution.
func (r *Resolution) Stats() ResolutionStats { return r.stats }
