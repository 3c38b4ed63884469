package libretto

import "sort"

type assignmentKind uint8

const (
	decisionAssignment assignmentKind = iota
	derivationAssignment
	pinAssignment
)

// An assignment is one entry in the solver's chronological log: a
// decision (a package pinned to an exact version), a derivation (a term
// forced by unit propagation, with the clause that forced it), or a pin
// (a provided name fixed by a provider's decision, with the provide
// clause as its cause).
type assignment struct {
	term

	kind  assignmentKind
	level int
	index int
	cause *Incompatibility

	// version is set on decisions and pins only.
	version Version
}

// packageState is the accumulated knowledge about one package. While
// positive, set is the exact allowed region (intersection of positive
// terms minus all negative ones). While negative, set is the union of
// excluded regions.
type packageState struct {
	positive bool
	set      Constraint
	decided  bool
	decision Version
}

// partialSolution is the assignment log plus per-package accumulated
// state, the mutable heart of the solve.
type partialSolution struct {
	assignments []assignment
	states      map[PackageName]*packageState
	level       int

	// decisionCount is monotone across backtracking, for stats.
	decisionCount int
}

func newPartialSolution() *partialSolution {
	return &partialSolution{states: make(map[PackageName]*packageState)}
}

type setRelation uint8

const (
	relationSatisfied setRelation = iota
	relationContradicted
	relationInconclusive
)

// relate classifies a term against accumulated state. A nil state is
// always inconclusive: nothing is known about the package yet.
func relate(st *packageState, t term) setRelation {
	if st == nil {
		return relationInconclusive
	}
	if st.positive {
		if t.positive {
			switch {
			case st.set.SubsetOf(t.constraint):
				return relationSatisfied
			case !st.set.MatchesAny(t.constraint):
				return relationContradicted
			}
			return relationInconclusive
		}
		switch {
		case !st.set.MatchesAny(t.constraint):
			return relationSatisfied
		case st.set.SubsetOf(t.constraint):
			return relationContradicted
		}
		return relationInconclusive
	}

	// Negative state: set is what the package is known NOT to be.
	if t.positive {
		if t.constraint.SubsetOf(st.set) {
			return relationContradicted
		}
		return relationInconclusive
	}
	if t.constraint.SubsetOf(st.set) {
		return relationSatisfied
	}
	return relationInconclusive
}

func (ps *partialSolution) state(pkg PackageName) *packageState {
	return ps.states[pkg]
}

// applyTerm folds a term into a package's accumulated state.
func applyTerm(st *packageState, t term) *packageState {
	if st == nil {
		return &packageState{positive: t.positive, set: t.constraint}
	}
	next := *st
	switch {
	case st.positive && t.positive:
		next.set = st.set.Intersect(t.constraint)
	case st.positive:
		next.set = st.set.Difference(t.constraint)
	case t.positive:
		next.positive = true
		next.set = t.constraint.Difference(st.set)
	default:
		next.set = st.set.Union(t.constraint)
	}
	return &next
}

// decide pins a package to a version at a fresh decision level.
func (ps *partialSolution) decide(pkg PackageName, v Version) {
	ps.level++
	ps.decisionCount++
	ps.record(pkg, v, decisionAssignment, nil)
}

// pinProvided fixes a provided or replaced name at the current level, so
// it unwinds together with the decision that implied it. The pin carries
// the provide clause as its cause; conflict resolution treats it like a
// derivation, not a decision.
func (ps *partialSolution) pinProvided(pkg PackageName, v Version, cause *Incompatibility) {
	ps.record(pkg, v, pinAssignment, cause)
}

func (ps *partialSolution) record(pkg PackageName, v Version, kind assignmentKind, cause *Incompatibility) {
	t := term{pkg: pkg, constraint: exactConstraint(v), positive: true}
	ps.assignments = append(ps.assignments, assignment{
		term:    t,
		kind:    kind,
		level:   ps.level,
		index:   len(ps.assignments),
		cause:   cause,
		version: v,
	})
	st := applyTerm(ps.states[pkg], t)
	st.decided = true
	st.decision = v
	ps.states[pkg] = st
}

// derive records a term forced by the given clause.
func (ps *partialSolution) derive(t term, cause *Incompatibility) {
	ps.assignments = append(ps.assignments, assignment{
		term:  t,
		kind:  derivationAssignment,
		level: ps.level,
		index: len(ps.assignments),
		cause: cause,
	})
	ps.states[t.pkg] = applyTerm(ps.states[t.pkg], t)
}

// backtrack drops every assignment above the given level and rebuilds
// package states by replay.
func (ps *partialSolution) backtrack(level int) {
	keep := ps.assignments
	for len(keep) > 0 && keep[len(keep)-1].level > level {
		keep = keep[:len(keep)-1]
	}
	ps.assignments = keep
	ps.level = level

	ps.states = make(map[PackageName]*packageState, len(keep))
	for _, a := range keep {
		st := applyTerm(ps.states[a.pkg], a.term)
		if a.kind != derivationAssignment {
			st.decided = true
			st.decision = a.version
		}
		ps.states[a.pkg] = st
	}
}

type clauseCheck uint8

const (
	clauseNone clauseCheck = iota
	clauseConflict
	clauseUnit
)

// check classifies an incompatibility against the partial solution: fully
// satisfied means conflict; all but one term satisfied means the last
// term's negation can be derived.
func (ps *partialSolution) check(ic *Incompatibility) (clauseCheck, term) {
	var unit term
	units := 0
	for _, t := range ic.terms {
		switch relate(ps.state(t.pkg), t) {
		case relationContradicted:
			return clauseNone, term{}
		case relationInconclusive:
			if units++; units > 1 {
				return clauseNone, term{}
			}
			unit = t
		}
	}
	if units == 0 {
		return clauseConflict, term{}
	}
	return clauseUnit, unit
}

// firstSatisfyingIndex finds the earliest assignment index at which the
// log, replayed cumulatively, satisfies the term. Returns -1 if it never
// does.
func (ps *partialSolution) firstSatisfyingIndex(t term) int {
	var st *packageState
	for i, a := range ps.assignments {
		if a.pkg != t.pkg {
			continue
		}
		st = applyTerm(st, a.term)
		if relate(st, t) == relationSatisfied {
			return i
		}
	}
	return -1
}

// firstSatisfyingWith finds the earliest index j < limit such that the
// package's assignments up to j, combined with the extra term, satisfy t.
// Returns -1 when the extra term alone suffices.
func (ps *partialSolution) firstSatisfyingWith(t term, limit int, extra term) int {
	st := applyTerm(nil, extra)
	if relate(st, t) == relationSatisfied {
		return -1
	}
	var base *packageState
	for i := 0; i < limit; i++ {
		a := ps.assignments[i]
		if a.pkg != t.pkg {
			continue
		}
		base = applyTerm(base, a.term)
		combined := applyTerm(base, extra)
		if relate(combined, t) == relationSatisfied {
			return i
		}
	}
	return -1
}

// undecided lists packages with a positive accumulated state but no
// decision yet, in name order, each with its currently allowed set.
func (ps *partialSolution) undecided() []Dependency {
	var out []Dependency
	for pkg, st := range ps.states {
		if st.positive && !st.decided {
			out = append(out, Dependency{Name: pkg, Constraint: st.set})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// decisions returns every decided package and its version, excluding the
// root pseudo-package.
func (ps *partialSolution) decisions() map[PackageName]Version {
	out := make(map[PackageName]Version)
	for pkg, st := range ps.states {
		if st.decided && pkg != rootPackage {
			out[pkg] = st.decision
		}
	}
	return out
}
