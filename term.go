package libretto

// A term is a statement about one package: positive asserts the selected
// version lies in the constraint, negative asserts it does not (or the
// package is absent). Incompatibilities and assignments are built from
// terms.
type term struct {
	pkg        PackageName
	constraint Constraint
	positive   bool
}

func (t term) negate() term {
	return term{pkg: t.pkg, constraint: t.constraint, positive: !t.positive}
}

// intersect combines two terms on the same package into the term holding
// exactly when both hold.
func (t term) intersect(o term) term {
	switch {
	case t.positive && o.positive:
		return term{pkg: t.pkg, constraint: t.constraint.Intersect(o.constraint), positive: true}
	case t.positive:
		return term{pkg: t.pkg, constraint: t.constraint.Difference(o.constraint), positive: true}
	case o.positive:
		return term{pkg: t.pkg, constraint: o.constraint.Difference(t.constraint), positive: true}
	default:
		return term{pkg: t.pkg, constraint: t.constraint.Union(o.constraint), positive: false}
	}
}

// union combines two terms on the same package into the term holding
// whenever either holds. Defined as the negation of the intersection of
// the negations.
func (t term) union(o term) term {
	return t.negate().intersect(o.negate()).negate()
}

func (t term) String() string {
	s := string(t.pkg) + " " + t.constraint.String()
	if !t.positive {
		return "not " + s
	}
	return s
}
