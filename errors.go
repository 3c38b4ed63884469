package libretto

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrCancelled is returned by Solve when the caller's context is done
// before a resolution is reached.
var ErrCancelled = errors.New("resolution cancelled")

// traceError is a failure that can render a multi-line form for the
// solver's trace output.
type traceError interface {
	traceString() string
}

// ParseError describes malformed version or constraint input.
type ParseError struct {
	Input string
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing %q: %s: %s", e.Input, e.Msg, e.Err)
	}
	return fmt.Sprintf("parsing %q: %s", e.Input, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// badOptsFailure reports invalid SolveParameters.
type badOptsFailure string

func (e badOptsFailure) Error() string { return string(e) }

// FetchError wraps a failure to retrieve package metadata. For packages
// that are not unconditionally required by the root it degrades to a
// missing-package fact; for root requirements it aborts the solve.
type FetchError struct {
	Package PackageName
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching metadata for %s: %s", e.Package, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// noVersionError records why every candidate for a package was rejected.
type noVersionError struct {
	pkg        PackageName
	constraint Constraint
	fails      []failedVersion
}

type failedVersion struct {
	v   Version
	why string
}

func (e *noVersionError) Error() string {
	if len(e.fails) == 0 {
		return fmt.Sprintf("no versions of %s match %s", e.pkg, e.constraint)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no versions of %s met constraint %s:", e.pkg, e.constraint)
	for _, f := range e.fails {
		fmt.Fprintf(&buf, "\n\t%s: %s", f.v, f.why)
	}
	return buf.String()
}

func (e *noVersionError) traceString() string {
	if len(e.fails) == 0 {
		return fmt.Sprintf("no versions of %s match %s", e.pkg, e.constraint)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "no versions of %s met constraint %s", e.pkg, e.constraint)
	for _, f := range e.fails {
		fmt.Fprintf(&buf, "\n  %s: %s", f.v, f.why)
	}
	return buf.String()
}

// ConflictError is the terminal failure of a solve: the root
// incompatibility derived when the solver proves no set of versions can
// satisfy the root requirements. Its cause tree retraces the derivation.
type ConflictError struct {
	root *Incompatibility
}

func (e *ConflictError) Error() string {
	return "version solving failed: " + e.root.String()
}

// Explanation renders the derivation chain, external facts first, in
// human-readable lines.
func (e *ConflictError) Explanation() string {
	var lines []string
	seen := make(map[*Incompatibility]bool)

	var walk func(ic *Incompatibility)
	walk = func(ic *Incompatibility) {
		if ic == nil || seen[ic] {
			return
		}
		seen[ic] = true
		walk(ic.Cause1)
		walk(ic.Cause2)
		lines = append(lines, ic.explain())
	}
	walk(e.root)
	return strings.Join(lines, "\n")
}

func (e *ConflictError) traceString() string {
	return "solving failed:\n" + e.Explanation()
}

// Conflict exposes the root incompatibility for programmatic inspection.
func (e *ConflictError) Conflict() *Incompatibility { return e.root }
