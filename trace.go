package libretto

import (
	"fmt"
	"strings"
)

const (
	successChar = "✓"
	failChar    = "✗"
	backChar    = "←"
	innerIndent = "  "
)

func (s *Solver) traceSelect(pkg PackageName, v Version) {
	if s.tl == nil {
		return
	}
	s.tl.Printf("%s select %s at %s (level %d)", successChar, pkg, v, s.ps.level)
}

func (s *Solver) traceDerive(t term) {
	if s.tl == nil {
		return
	}
	s.tl.Printf("%s| derive %s", innerIndent, t)
}

func (s *Solver) traceConflict(ic *Incompatibility) {
	if s.tl == nil {
		return
	}
	s.tl.Printf("%s conflict: %s", failChar, ic.explain())
}

func (s *Solver) traceLearn(ic *Incompatibility) {
	if s.tl == nil {
		return
	}
	s.tl.Printf("%s| learn %s", innerIndent, ic)
}

func (s *Solver) traceBackjump(level int) {
	if s.tl == nil {
		return
	}
	s.tl.Printf("%s backjump to level %d", backChar, level)
}

func (s *Solver) traceMissing(pkg PackageName, err error) {
	if s.tl == nil {
		return
	}
	if te, ok := err.(traceError); ok {
		s.traceLines(te)
		return
	}
	s.tl.Printf("%s unable to fetch %s: %s", failChar, pkg, err)
}

func (s *Solver) traceExhausted(nve *noVersionError) {
	if s.tl == nil {
		return
	}
	s.traceLines(nve)
}

func (s *Solver) traceLines(te traceError) {
	for i, line := range strings.Split(te.traceString(), "\n") {
		if i == 0 {
			s.tl.Printf("%s %s", failChar, line)
		} else {
			s.tl.Printf("%s%s", innerIndent, line)
		}
	}
}

func (s *Solver) traceFinish(res *Resolution) {
	if s.tl == nil {
		return
	}
	st := res.Stats()
	s.tl.Printf("%s found solution with %d packages after %d decisions and %d backjumps",
		successChar, res.Len(), st.Decisions, st.Backtracks)
	for _, p := range res.Packages() {
		suffix := ""
		if p.Dev {
			suffix = " (dev)"
		}
		s.tl.Printf("%s%s", innerIndent, fmt.Sprintf("%s %s%s", p.Name, p.Version, suffix))
	}
}
