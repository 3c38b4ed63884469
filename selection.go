package libretto

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// decision performs one decision step: wait for metadata on every
// package the partial solution positively mentions, turn metadata-level
// facts (missing packages, exhausted constraints, virtual packages) into
// incompatibilities, then pin the package with the fewest candidates to
// its preferred version. Returns done=true when nothing is left to
// decide.
//
// Awaiting all undecided packages before choosing keeps the decision
// order independent of fetch completion order, so identical inputs give
// identical resolutions.
func (s *Solver) decision(ctx context.Context) (PackageName, bool, error) {
	undecided := s.ps.undecided()
	if len(undecided) == 0 {
		return "", true, nil
	}

	for _, d := range undecided {
		s.fm.request(ctx, d.Name)
	}

	type candidate struct {
		dep    Dependency
		record VersionRecord
		count  int
	}
	var best *candidate

	for _, d := range undecided {
		data, err := s.fm.await(ctx, d.Name)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return "", false, err
			}
			if s.rootDeps[d.Name] {
				return "", false, err
			}
			if s.noteMissing(d, err) {
				return d.Name, false, nil
			}
			continue
		}

		rec, n, ok := s.selectVersion(data, d.Constraint)
		if ok {
			if best == nil || n < best.count ||
				(n == best.count && d.Name < best.dep.Name) {
				best = &candidate{dep: d, record: rec, count: n}
			}
			continue
		}

		// No directly usable version; try providers, else record the
		// exhaustion and let propagation conflict on it.
		if added, pkg := s.noteProviders(ctx, d, data); added {
			return pkg, false, nil
		}
		if prov, ok := s.selectProviderVersion(ctx, d, data); ok {
			if best == nil || len(data.Providers) < best.count ||
				(len(data.Providers) == best.count && d.Name < best.dep.Name) {
				best = &candidate{
					dep:    Dependency{Name: prov.provider, Constraint: prov.allowed},
					record: prov.record,
					count:  len(data.Providers),
				}
			}
			continue
		}
		if s.noteNoVersions(d, data) {
			return d.Name, false, nil
		}
	}

	if best == nil {
		// Every undecided package already has its failure recorded;
		// propagate from the first to surface the conflict.
		return undecided[0].Name, false, nil
	}

	return s.expand(ctx, best.dep.Name, best.record), false, nil
}

// selectVersion picks the preferred record among those the constraint
// admits, honoring a locked pin first. Returns the admitted count for the
// fewest-candidates heuristic. PreferLatest considers every version the
// constraint names, with no stability gating beyond the constraint
// itself.
func (s *Solver) selectVersion(data PackageData, c Constraint) (VersionRecord, int, bool) {
	records := data.sortedVersions()

	member := c.admits
	if s.params.Mode == PreferLatest {
		member = c.Matches
	}
	var admitted []VersionRecord
	for _, r := range records {
		if member(r.Version) {
			admitted = append(admitted, r)
		}
	}
	if len(admitted) == 0 {
		return VersionRecord{}, 0, false
	}

	// A locked version that still falls inside the constraint wins over
	// stability preference; membership alone suffices, the lock already
	// vouched for it once.
	if s.params.Mode != PreferLatest {
		if lv, ok := s.params.Locked[data.Name]; ok && c.Matches(lv) {
			for _, r := range records {
				if r.Version.Equal(lv) {
					return r, len(admitted), true
				}
			}
		}
	}

	switch s.params.Mode {
	case PreferLowest:
		// Lowest numeric first; a branch only when nothing numeric is
		// admitted.
		for i := len(admitted) - 1; i >= 0; i-- {
			if !admitted[i].Version.IsBranch() {
				return admitted[i], len(admitted), true
			}
		}
		return admitted[len(admitted)-1], len(admitted), true
	default:
		return admitted[0], len(admitted), true
	}
}

// noteMissing records a fetch failure as an incompatibility the first
// time it is seen. Reports whether a new clause was added.
func (s *Solver) noteMissing(d Dependency, err error) bool {
	key := "missing|" + string(d.Name) + "|" + d.Constraint.String()
	if s.noted[key] {
		return false
	}
	s.noted[key] = true

	ic := newIncompatibility(CauseMissing,
		term{pkg: d.Name, constraint: d.Constraint, positive: true})
	ic.err = err
	s.store.add(ic)
	s.traceMissing(d.Name, err)
	return true
}

// noteNoVersions records that no available version of the package
// satisfies the accumulated constraint.
func (s *Solver) noteNoVersions(d Dependency, data PackageData) bool {
	key := "noversions|" + string(d.Name) + "|" + d.Constraint.String()
	if s.noted[key] {
		return false
	}
	s.noted[key] = true

	nve := &noVersionError{pkg: d.Name, constraint: d.Constraint}
	for _, r := range data.Versions {
		why := "does not match"
		if d.Constraint.Matches(r.Version) {
			why = "below minimum stability"
		}
		nve.fails = append(nve.fails, failedVersion{v: r.Version, why: why})
	}

	ic := newIncompatibility(CauseNoVersions,
		term{pkg: d.Name, constraint: d.Constraint, positive: true})
	ic.err = nve
	s.store.add(ic)
	s.traceExhausted(nve)

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"package":    d.Name,
			"constraint": d.Constraint.String(),
			"available":  len(data.Versions),
		}).Debug("constraint exhausted")
	}
	return true
}

// noteProviders adds the clause tying a virtual package to the versions
// of the packages that provide it: the requirement cannot hold unless
// one of them is selected. Returns (true, pkg) when a new clause was
// added and propagation should run from pkg.
func (s *Solver) noteProviders(ctx context.Context, d Dependency, data PackageData) (bool, PackageName) {
	if len(data.Providers) == 0 {
		return false, ""
	}
	key := "provider|" + string(d.Name) + "|" + d.Constraint.String()
	if s.noted[key] {
		return false, ""
	}
	s.noted[key] = true

	terms := []term{{pkg: d.Name, constraint: d.Constraint, positive: true}}
	any := false
	for _, p := range data.Providers {
		set := s.providingSet(ctx, p, d)
		if set.IsEmpty() {
			continue
		}
		any = true
		terms = append(terms, term{pkg: p, constraint: set, positive: false})
	}
	if !any {
		// Providers exist but none covers the required region; fall
		// through to the plain no-versions clause.
		return false, ""
	}

	ic := newIncompatibility(CauseProvider, terms...)
	s.store.add(ic)
	return true, d.Name
}

// providingSet is the set of p's versions that provide or replace the
// required name at a version inside the requirement.
func (s *Solver) providingSet(ctx context.Context, p PackageName, d Dependency) Constraint {
	data, err := s.fm.await(ctx, p)
	if err != nil {
		return Constraint{}
	}
	out := Constraint{}
	covers := func(pv ProvidePair) bool {
		return pv.Name == d.Name && d.Constraint.Matches(pv.Version)
	}
	for _, r := range data.Versions {
		for _, pv := range r.Provides {
			if covers(pv) {
				out = out.Union(exactConstraint(r.Version))
			}
		}
		for _, pv := range r.Replaces {
			if covers(pv) {
				out = out.Union(exactConstraint(r.Version))
			}
		}
	}
	return out
}

type providerPick struct {
	provider PackageName
	allowed  Constraint
	record   VersionRecord
}

// selectProviderVersion picks a concrete provider version for a virtual
// requirement: lowest provider name first, within the provider's own
// accumulated state.
func (s *Solver) selectProviderVersion(ctx context.Context, d Dependency, data PackageData) (providerPick, bool) {
	for _, p := range data.Providers {
		set := s.providingSet(ctx, p, d)
		if st := s.ps.state(p); st != nil {
			if !st.positive {
				set = set.Difference(st.set)
			} else {
				set = set.Intersect(st.set)
			}
			if st.decided {
				continue
			}
		}
		if set.IsEmpty() {
			continue
		}
		pdata, err := s.fm.await(ctx, p)
		if err != nil {
			continue
		}
		if rec, _, ok := s.selectVersion(pdata, set); ok {
			return providerPick{provider: p, allowed: set, record: rec}, true
		}
	}
	return providerPick{}, false
}

// expand registers the chosen version's requirements as clauses, then
// pins the decision unless one of the new clauses already rules the
// version out, in which case propagation takes over.
func (s *Solver) expand(ctx context.Context, pkg PackageName, rec VersionRecord) PackageName {
	self := term{pkg: pkg, constraint: exactConstraint(rec.Version), positive: true}

	var ics []*Incompatibility
	for _, dep := range rec.Requires {
		if dep.Name.IsPlatform() {
			s.notePlatform(dep)
			continue
		}
		c := dep.Constraint.withFloor(s.params.MinimumStability)
		ic := newIncompatibility(CauseDependency, self,
			term{pkg: dep.Name, constraint: c, positive: false})
		ic.depender = pkg
		ics = append(ics, ic)
		s.fm.request(ctx, dep.Name)
	}

	var pins []ProvidePair
	for _, pv := range rec.Provides {
		if !pv.Name.IsPlatform() {
			pins = append(pins, pv)
		}
	}
	for _, pv := range rec.Replaces {
		if !pv.Name.IsPlatform() {
			pins = append(pins, pv)
		}
	}
	pinICs := make([]*Incompatibility, len(pins))
	for i, pv := range pins {
		ic := newIncompatibility(CauseDependency, self,
			term{pkg: pv.Name, constraint: exactConstraint(pv.Version), positive: false})
		ic.depender = pkg
		pinICs[i] = ic
		ics = append(ics, ic)
	}

	conflicted := false
	for _, ic := range ics {
		s.store.add(ic)
		if s.wouldConflict(ic, pkg, rec.Version) {
			conflicted = true
		}
	}

	if conflicted {
		// One of the version's own requirements is already impossible;
		// let propagation exclude the version instead of deciding it.
		return pkg
	}

	s.ps.decide(pkg, rec.Version)
	s.records[pkg] = rec
	for i, pv := range pins {
		if st := s.ps.state(pv.Name); st == nil || !st.decided {
			s.ps.pinProvided(pv.Name, pv.Version, pinICs[i])
		}
	}
	s.traceSelect(pkg, rec.Version)
	return pkg
}

// wouldConflict reports whether the clause would be fully satisfied by
// the current partial solution extended with pkg pinned to v.
func (s *Solver) wouldConflict(ic *Incompatibility, pkg PackageName, v Version) bool {
	hyp := applyTerm(s.ps.state(pkg),
		term{pkg: pkg, constraint: exactConstraint(v), positive: true})
	for _, t := range ic.terms {
		st := s.ps.state(t.pkg)
		if t.pkg == pkg {
			st = hyp
		}
		if relate(st, t) != relationSatisfied {
			return false
		}
	}
	return true
}
