package libretto

import (
	"fmt"
	"sort"
	"strings"
)

// IncompatibilityCause tags how an incompatibility came to be known.
type IncompatibilityCause uint8

const (
	// CauseRoot marks a requirement of the root project.
	CauseRoot IncompatibilityCause = iota
	// CauseDependency marks a requirement declared by a package version.
	CauseDependency
	// CauseNoVersions marks a constraint no available version satisfies.
	CauseNoVersions
	// CauseMissing marks a package whose metadata could not be fetched.
	CauseMissing
	// CauseProvider marks a virtual package satisfiable only through its
	// providers.
	CauseProvider
	// CauseDerived marks a clause learned during conflict resolution.
	CauseDerived
)

// An Incompatibility is a set of terms that cannot all hold at once. The
// store is append-only; derived incompatibilities keep pointers to the
// two clauses they were resolved from, forming the proof tree a
// ConflictError retraces.
type Incompatibility struct {
	terms []term
	Cause IncompatibilityCause

	Cause1, Cause2 *Incompatibility

	// depender is the requiring side of a CauseDependency clause, kept
	// for rendering.
	depender PackageName
	err      error
}

// newIncompatibility normalizes the term list: at most one term per
// package (same-package terms must hold jointly, so they intersect) and
// deterministic order.
func newIncompatibility(cause IncompatibilityCause, terms ...term) *Incompatibility {
	byPkg := make(map[PackageName]term, len(terms))
	for _, t := range terms {
		if prev, ok := byPkg[t.pkg]; ok {
			byPkg[t.pkg] = prev.intersect(t)
		} else {
			byPkg[t.pkg] = t
		}
	}

	out := make([]term, 0, len(byPkg))
	for _, t := range byPkg {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].pkg < out[j].pkg })
	return &Incompatibility{terms: out, Cause: cause}
}

// Terms returns the normalized term list.
func (ic *Incompatibility) Terms() []term { return ic.terms }

// termFor returns the clause's term on pkg, if any.
func (ic *Incompatibility) termFor(pkg PackageName) (term, bool) {
	for _, t := range ic.terms {
		if t.pkg == pkg {
			return t, true
		}
	}
	return term{}, false
}

// isTerminal reports whether the clause proves the whole solve
// unsatisfiable: no terms at all, or a single positive term on the
// root pseudo-package.
func (ic *Incompatibility) isTerminal() bool {
	switch len(ic.terms) {
	case 0:
		return true
	case 1:
		return ic.terms[0].positive && ic.terms[0].pkg == rootPackage
	}
	return false
}

func (ic *Incompatibility) String() string {
	parts := make([]string, len(ic.terms))
	for i, t := range ic.terms {
		parts[i] = t.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// explain renders the clause as the human-readable fact it encodes.
func (ic *Incompatibility) explain() string {
	switch ic.Cause {
	case CauseRoot:
		if dep, ok := ic.dependencyTerms(); ok {
			return fmt.Sprintf("the root project requires %s %s", dep.pkg, dep.constraint)
		}
	case CauseDependency:
		if dep, ok := ic.dependencyTerms(); ok {
			if from, ok2 := ic.termFor(ic.depender); ok2 {
				return fmt.Sprintf("%s %s requires %s %s",
					from.pkg, from.constraint, dep.pkg, dep.constraint)
			}
		}
	case CauseNoVersions:
		t := ic.terms[0]
		return fmt.Sprintf("no versions of %s satisfy %s", t.pkg, t.constraint)
	case CauseMissing:
		t := ic.terms[0]
		if ic.err != nil {
			return fmt.Sprintf("%s is unavailable: %s", t.pkg, ic.err)
		}
		return fmt.Sprintf("%s does not exist", t.pkg)
	case CauseProvider:
		var virtual term
		var providers []string
		for _, t := range ic.terms {
			if t.positive {
				virtual = t
			} else {
				providers = append(providers, fmt.Sprintf("%s %s", t.pkg, t.constraint))
			}
		}
		return fmt.Sprintf("%s %s is only provided by %s",
			virtual.pkg, virtual.constraint, strings.Join(providers, " or "))
	}

	// Derived clauses and anything unmatched above render as the raw
	// impossibility.
	if len(ic.terms) == 0 {
		return "version solving is impossible"
	}
	parts := make([]string, len(ic.terms))
	for i, t := range ic.terms {
		parts[i] = t.String()
	}
	return "incompatible: " + strings.Join(parts, " with ")
}

// dependencyTerms pulls the negative (required) side out of a two-term
// dependency clause.
func (ic *Incompatibility) dependencyTerms() (required term, ok bool) {
	for _, t := range ic.terms {
		if !t.positive {
			return t.negate(), true
		}
	}
	return term{}, false
}

// incompatibilityStore holds every known clause, indexed by the packages
// their terms mention so propagation touches only relevant clauses.
type incompatibilityStore struct {
	all   []*Incompatibility
	byPkg map[PackageName][]*Incompatibility
}

func newIncompatibilityStore() *incompatibilityStore {
	return &incompatibilityStore{byPkg: make(map[PackageName][]*Incompatibility)}
}

func (s *incompatibilityStore) add(ic *Incompatibility) {
	s.all = append(s.all, ic)
	for _, t := range ic.terms {
		s.byPkg[t.pkg] = append(s.byPkg[t.pkg], ic)
	}
}

func (s *incompatibilityStore) forPackage(pkg PackageName) []*Incompatibility {
	return s.byPkg[pkg]
}
