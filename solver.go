package libretto

import (
	"context"
	"log"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SelectionMode governs which candidate the solver prefers when several
// versions of a package satisfy the accumulated constraint.
type SelectionMode uint8

const (
	// PreferStable picks the highest admissible version, honoring locked
	// pins. The default.
	PreferStable SelectionMode = iota
	// PreferLowest picks the lowest admissible version, useful for
	// testing minimum declared constraints.
	PreferLowest
	// PreferLatest picks the highest version matching the constraint,
	// ignoring both stability gating and locked pins, for upgrade runs.
	PreferLatest
)

// SolveParameters holds the complete input to a solve.
type SolveParameters struct {
	// RootDependencies are the project's requirements.
	RootDependencies []Dependency
	// RootDevDependencies are requirements needed only for development.
	// They are resolved together with RootDependencies; the Resolution
	// marks which packages are reachable only through them.
	RootDevDependencies []Dependency

	// Locked pins packages to previously resolved versions. A locked
	// version is preferred whenever it still satisfies the accumulated
	// constraint, regardless of its stability.
	Locked map[PackageName]Version

	Mode SelectionMode

	// MinimumStability gates candidate versions whose constraints carry
	// no explicit @stability suffix. The zero value means stable; pass
	// StabilityDev explicitly to admit everything.
	MinimumStability Stability

	// MaxConcurrent caps in-flight metadata fetches. Zero means a
	// CPU-derived default.
	MaxConcurrent int

	// Trace enables the step log on TraceLogger.
	Trace       bool
	TraceLogger *log.Logger

	// Logger receives structured diagnostics. Nil discards them.
	Logger *logrus.Logger
}

// A Solver is prepared once against a Fetcher and run once. Release must
// be called when done with it.
type Solver struct {
	params SolveParameters
	fm     *fetchManager
	ps     *partialSolution
	store  *incompatibilityStore
	tl     *log.Logger
	l      *logrus.Logger

	// rootDeps indexes the root's unconditional requirements; a fetch
	// failure on one of these aborts the solve instead of degrading.
	rootDeps map[PackageName]bool

	// incorporated marks packages whose metadata-level facts (missing,
	// no versions, providers) have been turned into incompatibilities.
	records map[PackageName]VersionRecord

	// noted deduplicates metadata-level clauses by package and
	// constraint.
	noted map[string]bool

	platform   map[PackageName]Constraint
	backtracks int
	solved     bool
}

// Prepare validates parameters and readies a Solver. Metadata fetching
// for the root's requirements begins immediately.
func Prepare(params SolveParameters, f Fetcher) (*Solver, error) {
	if f == nil {
		return nil, badOptsFailure("no Fetcher provided")
	}
	if params.Trace && params.TraceLogger == nil {
		return nil, badOptsFailure("trace requested, but no trace logger provided")
	}
	for _, d := range append(params.RootDependencies, params.RootDevDependencies...) {
		if d.Name == "" {
			return nil, badOptsFailure("dependency with empty package name")
		}
		if d.Name == rootPackage {
			return nil, badOptsFailure("root project cannot depend on itself")
		}
	}
	if params.MinimumStability == stabilityUnset {
		params.MinimumStability = StabilityStable
	}

	s := &Solver{
		params:   params,
		fm:       newFetchManager(f, params.MaxConcurrent),
		ps:       newPartialSolution(),
		store:    newIncompatibilityStore(),
		l:        params.Logger,
		rootDeps: make(map[PackageName]bool),
		records:  make(map[PackageName]VersionRecord),
		noted:    make(map[string]bool),
		platform: make(map[PackageName]Constraint),
	}
	if s.l == nil {
		s.l = logrus.New()
		s.l.SetLevel(logrus.PanicLevel)
	}
	if params.Trace {
		s.tl = params.TraceLogger
	}
	return s, nil
}

// Release cancels in-flight fetches and frees the solver.
func (s *Solver) Release() {
	s.fm.release()
}

// Solve runs resolution to completion. It returns a Resolution, a
// *ConflictError when no version assignment can satisfy the root
// requirements, a *FetchError when a root requirement cannot be fetched,
// or ErrCancelled when ctx ends first.
func (s *Solver) Solve(ctx context.Context) (*Resolution, error) {
	if s.solved {
		return nil, errors.New("solver has already run")
	}
	s.solved = true

	rootV := mustVersion("0.0.0")
	s.ps.decide(rootPackage, rootV)
	rootTerm := term{pkg: rootPackage, constraint: exactConstraint(rootV), positive: true}

	seed := func(deps []Dependency, unconditional bool) {
		for _, d := range deps {
			if d.Name.IsPlatform() {
				s.notePlatform(d)
				continue
			}
			c := d.Constraint.withFloor(s.params.MinimumStability)
			ic := newIncompatibility(CauseRoot, rootTerm,
				term{pkg: d.Name, constraint: c, positive: false})
			ic.depender = rootPackage
			s.store.add(ic)
			if unconditional {
				s.rootDeps[d.Name] = true
			}
			s.fm.request(ctx, d.Name)
		}
	}
	seed(s.params.RootDependencies, true)
	seed(s.params.RootDevDependencies, true)

	next := rootPackage
	for {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		default:
		}

		if err := s.propagate(next); err != nil {
			return nil, err
		}

		pkg, done, err := s.decision(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			return s.assemble(), nil
		}
		next = pkg
	}
}

// propagate runs unit propagation starting from the given package until
// no clause is unit and none is violated.
func (s *Solver) propagate(pkg PackageName) error {
	worklist := []PackageName{pkg}
work:
	for len(worklist) > 0 {
		current := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		clauses := s.store.forPackage(current)
		for i := len(clauses) - 1; i >= 0; i-- {
			ic := clauses[i]
			switch kind, unit := s.ps.check(ic); kind {
			case clauseConflict:
				learned, err := s.resolveConflict(ic)
				if err != nil {
					return err
				}
				// The learned clause is unit after backjumping; derive
				// from it and restart propagation there. Anything else
				// on the worklist predates the backjump.
				kind, unit := s.ps.check(learned)
				if kind != clauseUnit {
					return errors.Errorf("internal: learned clause %s not unit after backjump", learned)
				}
				s.ps.derive(unit.negate(), learned)
				s.traceDerive(unit.negate())
				worklist = []PackageName{unit.pkg}
				continue work

			case clauseUnit:
				s.ps.derive(unit.negate(), ic)
				s.traceDerive(unit.negate())
				worklist = append(worklist, unit.pkg)
			}
		}
	}
	return nil
}

// resolveConflict walks satisfiers backward, resolving the violated
// clause against the causes of the derivations that satisfied it, until
// reaching a clause that allows a backjump. Returns the learned clause
// with the trail already rewound, or the terminal ConflictError.
func (s *Solver) resolveConflict(ic *Incompatibility) (*Incompatibility, error) {
	s.traceConflict(ic)
	learnedNew := false

	for {
		if ic.isTerminal() {
			return nil, &ConflictError{root: ic}
		}

		satIdx := -1
		var satTerm term
		for _, t := range ic.terms {
			idx := s.ps.firstSatisfyingIndex(t)
			if idx > satIdx {
				satIdx = idx
				satTerm = t
			}
		}
		if satIdx < 0 {
			return nil, errors.Errorf("internal: conflict %s not satisfied by trail", ic)
		}
		satisfier := s.ps.assignments[satIdx]

		prevLevel := 1
		for _, t := range ic.terms {
			if t.pkg == satisfier.pkg && t.pkg == satTerm.pkg {
				if j := s.ps.firstSatisfyingWith(t, satIdx, satisfier.term); j >= 0 {
					if l := s.ps.assignments[j].level; l > prevLevel {
						prevLevel = l
					}
				}
				continue
			}
			if idx := s.ps.firstSatisfyingIndex(t); idx >= 0 && idx < satIdx {
				if l := s.ps.assignments[idx].level; l > prevLevel {
					prevLevel = l
				}
			}
		}

		if satisfier.kind == decisionAssignment || prevLevel != satisfier.level {
			s.backtracks++
			s.ps.backtrack(prevLevel)
			s.traceBackjump(prevLevel)
			if learnedNew {
				s.store.add(ic)
				s.traceLearn(ic)
			}
			return ic, nil
		}

		ic = resolveClauses(ic, satisfier.cause, satisfier.pkg)
		learnedNew = true
	}
}

// resolveClauses derives a new incompatibility from a violated clause and
// the cause of the derivation satisfying it. The pivot package (the one
// whose derivation is being resolved away) merges by union; any other
// package appearing in both clauses keeps the conjunction of its terms,
// so those merge by intersection. Trivially true terms drop out.
func resolveClauses(a, b *Incompatibility, pivot PackageName) *Incompatibility {
	merged := make(map[PackageName]term, len(a.terms)+len(b.terms))
	for _, t := range a.terms {
		merged[t.pkg] = t
	}
	for _, t := range b.terms {
		if prev, ok := merged[t.pkg]; ok {
			if t.pkg == pivot {
				merged[t.pkg] = prev.union(t)
			} else {
				merged[t.pkg] = prev.intersect(t)
			}
		} else {
			merged[t.pkg] = t
		}
	}

	var terms []term
	for _, t := range merged {
		// A negative term with an empty set excludes nothing.
		if !t.positive && t.constraint.IsEmpty() {
			continue
		}
		terms = append(terms, t)
	}
	out := newIncompatibility(CauseDerived, terms...)
	out.Cause1, out.Cause2 = a, b
	return out
}

func (s *Solver) notePlatform(d Dependency) {
	if prev, ok := s.platform[d.Name]; ok {
		s.platform[d.Name] = prev.Intersect(d.Constraint)
		return
	}
	s.platform[d.Name] = d.Constraint
}
