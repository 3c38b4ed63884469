package libretto

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// interval is a contiguous range over the numeric version order. A nil
// bound is unbounded on that side. floor is the stability gate for
// candidates drawn from this interval; explicit records whether the gate
// came from an `@stability` suffix (as opposed to the solver's configured
// minimum, applied later via withFloor).
type interval struct {
	lo, hi       *semver.Version
	incLo, incHi bool
	floor        Stability
	explicit     bool
}

// A Constraint is a canonical set of versions: a sorted list of disjoint
// numeric intervals plus a sorted list of admitted branch names. The zero
// value is the empty set. Constraints are immutable; all operations return
// new values.
type Constraint struct {
	intervals []interval
	branches  []string
	raw       string
}

// ParseConstraint parses composer-style constraint syntax: exact versions,
// comparator ranges (>= > < <=), wildcards (1.0.*), tilde (~1.2), caret
// (^1.2.3), hyphen ranges (1.0 - 2.0), disjunction (||), conjunction by
// comma or whitespace, stability suffixes (@dev @alpha @beta @RC @stable)
// and branch pseudo-constraints (dev-name). Fails with *ParseError on
// malformed input.
func ParseConstraint(text string) (Constraint, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Constraint{}, &ParseError{Input: text, Msg: "empty constraint"}
	}

	out := Constraint{}
	for _, group := range splitDisjuncts(trimmed) {
		c, err := parseGroup(group)
		if err != nil {
			return Constraint{}, err
		}
		out = out.Union(c)
	}
	out.raw = trimmed
	return out, nil
}

// MustParseConstraint is ParseConstraint for known-good literals; panics on
// error.
func MustParseConstraint(text string) Constraint {
	c, err := ParseConstraint(text)
	if err != nil {
		panic(err)
	}
	return c
}

// anyVersions matches every numeric version (no branches).
func anyVersions() Constraint {
	return Constraint{intervals: []interval{{}}, raw: "*"}
}

// exactConstraint matches exactly one version.
func exactConstraint(v Version) Constraint {
	if v.IsBranch() {
		return Constraint{branches: []string{v.Branch()}, raw: v.String()}
	}
	return Constraint{
		intervals: []interval{{lo: v.sv, hi: v.sv, incLo: true, incHi: true}},
		raw:       v.String(),
	}
}

// splitDisjuncts breaks the constraint on "||" (or a single "|").
func splitDisjuncts(text string) []string {
	if strings.Contains(text, "||") {
		return strings.Split(text, "||")
	}
	if strings.Contains(text, "|") {
		return strings.Split(text, "|")
	}
	return []string{text}
}

// parseGroup parses one disjunct: a hyphen range, or a conjunction of
// simple tokens separated by commas or spaces.
func parseGroup(group string) (Constraint, error) {
	group = strings.TrimSpace(group)
	if group == "" {
		return Constraint{}, &ParseError{Input: group, Msg: "empty constraint group"}
	}

	body, floor, explicit, err := splitStability(group)
	if err != nil {
		return Constraint{}, err
	}

	if lo, hi, ok := strings.Cut(body, " - "); ok {
		return parseHyphen(strings.TrimSpace(lo), strings.TrimSpace(hi), floor, explicit)
	}

	tokens := strings.FieldsFunc(body, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(tokens) == 0 {
		return Constraint{}, &ParseError{Input: group, Msg: "empty constraint group"}
	}

	numeric := anyVersions()
	numeric.intervals[0].floor, numeric.intervals[0].explicit = floor, explicit
	sawNumeric := false
	var branches []string
	for _, tok := range tokens {
		c, err := parseSimple(tok, floor, explicit)
		if err != nil {
			return Constraint{}, err
		}
		if len(c.branches) > 0 {
			// A branch token cannot be narrowed by numeric conjuncts;
			// it rides alongside the intersection.
			branches = append(branches, c.branches...)
			continue
		}
		numeric = numeric.Intersect(c)
		sawNumeric = true
	}
	sort.Strings(branches)
	out := Constraint{branches: branches}
	// A branch-only group names branches and nothing else; the numeric
	// seed only survives when a numeric token narrowed it.
	if sawNumeric {
		out.intervals = numeric.intervals
	}
	return out, nil
}

// splitStability strips a trailing @stability suffix from a constraint
// chunk.
func splitStability(text string) (body string, floor Stability, explicit bool, err error) {
	at := strings.LastIndexByte(text, '@')
	if at < 0 {
		return text, StabilityStable, false, nil
	}
	if at == len(text)-1 {
		return "", 0, false, &ParseError{Input: text, Msg: "empty stability suffix"}
	}
	floor, err = ParseStability(text[at+1:])
	if err != nil {
		return "", 0, false, err
	}
	body = strings.TrimSpace(text[:at])
	if body == "" {
		body = "*"
	}
	return body, floor, true, nil
}

// parseSimple parses a single constraint token.
func parseSimple(tok string, floor Stability, explicit bool) (Constraint, error) {
	tok = strings.TrimSpace(tok)

	// Per-token stability suffix overrides a group-level one.
	if strings.ContainsRune(tok, '@') {
		body, f, e, err := splitStability(tok)
		if err != nil {
			return Constraint{}, err
		}
		tok, floor, explicit = body, f, e
	}

	switch {
	case tok == "*" || tok == "x":
		c := anyVersions()
		c.intervals[0].floor, c.intervals[0].explicit = floor, explicit
		return c, nil

	case strings.HasPrefix(tok, "dev-"):
		v, err := NewVersion(tok)
		if err != nil {
			return Constraint{}, err
		}
		return Constraint{branches: []string{v.Branch()}}, nil

	case strings.HasSuffix(tok, ".*") || strings.HasSuffix(tok, ".x"):
		return parseWildcard(tok[:len(tok)-2], floor, explicit)

	case strings.HasPrefix(tok, "^"):
		return parseCaret(tok[1:], floor, explicit)

	case strings.HasPrefix(tok, "~"):
		return parseTilde(tok[1:], floor, explicit)

	case strings.HasPrefix(tok, ">="):
		return parseBound(tok[2:], floor, explicit, boundGTE)
	case strings.HasPrefix(tok, "<="):
		return parseBound(tok[2:], floor, explicit, boundLTE)
	case strings.HasPrefix(tok, ">"):
		return parseBound(tok[1:], floor, explicit, boundGT)
	case strings.HasPrefix(tok, "<"):
		return parseBound(tok[1:], floor, explicit, boundLT)

	default:
		body := strings.TrimPrefix(strings.TrimPrefix(tok, "=="), "=")
		v, err := NewVersion(body)
		if err != nil {
			return Constraint{}, err
		}
		c := exactConstraint(v)
		for i := range c.intervals {
			c.intervals[i].floor, c.intervals[i].explicit = floor, explicit
		}
		c.raw = ""
		return c, nil
	}
}

type boundKind uint8

const (
	boundGTE boundKind = iota
	boundGT
	boundLTE
	boundLT
)

func parseBound(body string, floor Stability, explicit bool, kind boundKind) (Constraint, error) {
	v, err := NewVersion(strings.TrimSpace(body))
	if err != nil {
		return Constraint{}, err
	}
	if v.IsBranch() {
		return Constraint{}, &ParseError{Input: body, Msg: "comparator applied to branch version"}
	}

	iv := interval{floor: floor, explicit: explicit}
	switch kind {
	case boundGTE:
		iv.lo, iv.incLo = v.sv, true
	case boundGT:
		iv.lo = v.sv
	case boundLTE:
		iv.hi, iv.incHi = v.sv, true
	case boundLT:
		iv.hi = v.sv
	}
	return Constraint{intervals: []interval{iv}}, nil
}

// partialVersion reads up to three dotted numeric components plus an
// optional prerelease tag, reporting how many components were written.
func partialVersion(text string) (nums [3]uint64, precision int, pre string, err error) {
	body := strings.TrimPrefix(strings.TrimSpace(text), "v")
	if body == "" {
		return nums, 0, "", &ParseError{Input: text, Msg: "empty version"}
	}
	if i := strings.IndexByte(body, '+'); i >= 0 {
		body = body[:i]
	}
	if i := strings.IndexByte(body, '-'); i >= 0 {
		pre = body[i+1:]
		body = body[:i]
	}

	parts := strings.Split(body, ".")
	if len(parts) > 3 {
		return nums, 0, "", &ParseError{Input: text, Msg: "too many version components"}
	}
	for i, p := range parts {
		n, perr := strconv.ParseUint(p, 10, 64)
		if perr != nil {
			return nums, 0, "", &ParseError{Input: text, Msg: "malformed version component", Err: perr}
		}
		nums[i] = n
	}
	return nums, len(parts), pre, nil
}

// nextBound builds the canonical exclusive upper bound X.Y.Z-0; the "-0"
// prerelease keeps prereleases of the bound itself out of the range.
func nextBound(major, minor, patch uint64) *semver.Version {
	return semver.New(major, minor, patch, "0", "")
}

func parseWildcard(prefix string, floor Stability, explicit bool) (Constraint, error) {
	nums, prec, pre, err := partialVersion(prefix)
	if err != nil {
		return Constraint{}, err
	}
	if pre != "" || prec > 2 {
		return Constraint{}, &ParseError{Input: prefix + ".*", Msg: "malformed wildcard constraint"}
	}

	iv := interval{
		lo:    semver.New(nums[0], nums[1], 0, "", ""),
		incLo: true, floor: floor, explicit: explicit,
	}
	if prec == 1 {
		iv.hi = nextBound(nums[0]+1, 0, 0)
	} else {
		iv.hi = nextBound(nums[0], nums[1]+1, 0)
	}
	return Constraint{intervals: []interval{iv}}, nil
}

func parseCaret(body string, floor Stability, explicit bool) (Constraint, error) {
	nums, prec, pre, err := partialVersion(body)
	if err != nil {
		return Constraint{}, err
	}

	iv := interval{
		lo:    semver.New(nums[0], nums[1], nums[2], pre, ""),
		incLo: true, floor: floor, explicit: explicit,
	}
	// Caret fixes the leftmost non-zero component (semver rules, with the
	// 0.x special cases).
	switch {
	case nums[0] > 0 || prec == 1:
		iv.hi = nextBound(nums[0]+1, 0, 0)
	case nums[1] > 0 || prec == 2:
		iv.hi = nextBound(0, nums[1]+1, 0)
	default:
		iv.hi = nextBound(0, 0, nums[2]+1)
	}
	return Constraint{intervals: []interval{iv}}, nil
}

func parseTilde(body string, floor Stability, explicit bool) (Constraint, error) {
	nums, prec, pre, err := partialVersion(body)
	if err != nil {
		return Constraint{}, err
	}

	iv := interval{
		lo:    semver.New(nums[0], nums[1], nums[2], pre, ""),
		incLo: true, floor: floor, explicit: explicit,
	}
	// Tilde fixes everything but the last specified component.
	switch prec {
	case 1:
		iv.hi = nextBound(nums[0]+1, 0, 0)
	case 2:
		iv.hi = nextBound(nums[0]+1, 0, 0)
	default:
		iv.hi = nextBound(nums[0], nums[1]+1, 0)
	}
	return Constraint{intervals: []interval{iv}}, nil
}

func parseHyphen(lo, hi string, floor Stability, explicit bool) (Constraint, error) {
	loNums, _, loPre, err := partialVersion(lo)
	if err != nil {
		return Constraint{}, err
	}
	hiNums, hiPrec, hiPre, err := partialVersion(hi)
	if err != nil {
		return Constraint{}, err
	}

	iv := interval{
		lo:    semver.New(loNums[0], loNums[1], loNums[2], loPre, ""),
		incLo: true, floor: floor, explicit: explicit,
	}
	// A complete upper version is inclusive; a partial one widens to the
	// next significant release, exclusive.
	switch {
	case hiPrec >= 3 || hiPre != "":
		iv.hi = semver.New(hiNums[0], hiNums[1], hiNums[2], hiPre, "")
		iv.incHi = true
	case hiPrec == 2:
		iv.hi = nextBound(hiNums[0], hiNums[1]+1, 0)
	default:
		iv.hi = nextBound(hiNums[0]+1, 0, 0)
	}
	return Constraint{intervals: []interval{iv}}, nil
}

// ---- set algebra ----

// cmpLo orders two lower bounds; nil is -inf.
func cmpLo(a *semver.Version, aInc bool, b *semver.Version, bInc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c := a.Compare(b); c != 0 {
		return c
	}
	switch {
	case aInc == bInc:
		return 0
	case aInc:
		return -1
	default:
		return 1
	}
}

// cmpHi orders two upper bounds; nil is +inf.
func cmpHi(a *semver.Version, aInc bool, b *semver.Version, bInc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if c := a.Compare(b); c != 0 {
		return c
	}
	switch {
	case aInc == bInc:
		return 0
	case aInc:
		return 1
	default:
		return -1
	}
}

func (iv interval) contains(sv *semver.Version) bool {
	if iv.lo != nil {
		if c := sv.Compare(iv.lo); c < 0 || (c == 0 && !iv.incLo) {
			return false
		}
	}
	if iv.hi != nil {
		if c := sv.Compare(iv.hi); c > 0 || (c == 0 && !iv.incHi) {
			return false
		}
	}
	return true
}

func (iv interval) isEmpty() bool {
	if iv.lo == nil || iv.hi == nil {
		return false
	}
	c := iv.lo.Compare(iv.hi)
	return c > 0 || (c == 0 && !(iv.incLo && iv.incHi))
}

func intersectIntervals(a, b interval) (interval, bool) {
	out := a
	if cmpLo(b.lo, b.incLo, a.lo, a.incLo) > 0 {
		out.lo, out.incLo = b.lo, b.incLo
	}
	if cmpHi(b.hi, b.incHi, a.hi, a.incHi) < 0 {
		out.hi, out.incHi = b.hi, b.incHi
	}
	if out.isEmpty() {
		return interval{}, false
	}
	out.floor = maxStability(a.floor, b.floor)
	out.explicit = a.explicit || b.explicit
	return out, true
}

// overlapsOrTouches reports whether two intervals can merge into one.
// Callers pass intervals already sorted by lower bound.
func overlapsOrTouches(a, b interval) bool {
	if a.hi == nil || b.lo == nil {
		return true
	}
	c := a.hi.Compare(b.lo)
	if c > 0 {
		return true
	}
	if c < 0 {
		return false
	}
	return a.incHi || b.incLo
}

func maxStability(a, b Stability) Stability {
	if a > b {
		return a
	}
	return b
}

func minStability(a, b Stability) Stability {
	if a < b {
		return a
	}
	return b
}

// canonicalize sorts intervals and merges overlapping or touching ones.
// Merging intervals whose stability floors differ keeps the more
// permissive floor; membership is unaffected either way.
func canonicalize(ivs []interval) []interval {
	out := make([]interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.isEmpty() {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := cmpLo(out[i].lo, out[i].incLo, out[j].lo, out[j].incLo); c != 0 {
			return c < 0
		}
		return cmpHi(out[i].hi, out[i].incHi, out[j].hi, out[j].incHi) < 0
	})

	merged := out[:0]
	for _, iv := range out {
		if len(merged) == 0 {
			merged = append(merged, iv)
			continue
		}
		last := &merged[len(merged)-1]
		if overlapsOrTouches(*last, iv) {
			if cmpHi(iv.hi, iv.incHi, last.hi, last.incHi) > 0 {
				last.hi, last.incHi = iv.hi, iv.incHi
			}
			last.floor = minStability(last.floor, iv.floor)
			last.explicit = last.explicit || iv.explicit
		} else {
			merged = append(merged, iv)
		}
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func intersectStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		seen[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := seen[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func subtractStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		seen[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// IsEmpty reports whether the constraint matches no version at all.
func (c Constraint) IsEmpty() bool {
	return len(c.intervals) == 0 && len(c.branches) == 0
}

// Matches indicates whether the version is a member of the constraint's
// version set. Stability gating is not applied here; see admits.
func (c Constraint) Matches(v Version) bool {
	if v.IsBranch() {
		for _, b := range c.branches {
			if b == v.Branch() {
				return true
			}
		}
		return false
	}
	if v.sv == nil {
		return false
	}
	for _, iv := range c.intervals {
		if iv.contains(v.sv) {
			return true
		}
	}
	return false
}

// admits is Matches plus stability gating: the version must fall in an
// interval whose floor its stability meets. Branch membership always
// admits (naming a branch is the most explicit gate there is).
func (c Constraint) admits(v Version) bool {
	if v.IsBranch() {
		return c.Matches(v)
	}
	if v.sv == nil {
		return false
	}
	for _, iv := range c.intervals {
		if iv.contains(v.sv) && v.stability >= iv.floor {
			return true
		}
	}
	return false
}

// MatchesAny indicates whether the intersection with the other constraint
// is non-empty.
func (c Constraint) MatchesAny(o Constraint) bool {
	return !c.Intersect(o).IsEmpty()
}

// Intersect computes the canonical intersection of two constraints.
func (c Constraint) Intersect(o Constraint) Constraint {
	var ivs []interval
	for _, a := range c.intervals {
		for _, b := range o.intervals {
			if r, ok := intersectIntervals(a, b); ok {
				ivs = append(ivs, r)
			}
		}
	}
	return Constraint{
		intervals: canonicalize(ivs),
		branches:  intersectStrings(c.branches, o.branches),
	}
}

// Union computes the canonical union of two constraints.
func (c Constraint) Union(o Constraint) Constraint {
	ivs := make([]interval, 0, len(c.intervals)+len(o.intervals))
	ivs = append(ivs, c.intervals...)
	ivs = append(ivs, o.intervals...)
	return Constraint{
		intervals: canonicalize(ivs),
		branches:  unionStrings(c.branches, o.branches),
	}
}

// Difference removes the other constraint's version set from this one.
func (c Constraint) Difference(o Constraint) Constraint {
	ivs := c.intervals
	for _, b := range o.intervals {
		var next []interval
		for _, a := range ivs {
			next = append(next, subtractInterval(a, b)...)
		}
		ivs = next
	}
	return Constraint{
		intervals: canonicalize(ivs),
		branches:  subtractStrings(c.branches, o.branches),
	}
}

// subtractInterval returns a minus b: zero, one, or two intervals.
func subtractInterval(a, b interval) []interval {
	if _, ok := intersectIntervals(a, b); !ok {
		return []interval{a}
	}

	var out []interval
	// Piece of a below b.
	if cmpLo(a.lo, a.incLo, b.lo, b.incLo) < 0 {
		left := a
		left.hi, left.incHi = b.lo, !b.incLo
		if !left.isEmpty() && left.hi != nil {
			out = append(out, left)
		}
	}
	// Piece of a above b.
	if cmpHi(a.hi, a.incHi, b.hi, b.incHi) > 0 {
		right := a
		right.lo, right.incLo = b.hi, !b.incHi
		if !right.isEmpty() && right.lo != nil {
			out = append(out, right)
		}
	}
	return out
}

// SubsetOf reports whether every version in c is also in o.
func (c Constraint) SubsetOf(o Constraint) bool {
	return c.Difference(o).IsEmpty()
}

// withFloor applies the configured minimum stability to every interval
// that did not carry an explicit @suffix.
func (c Constraint) withFloor(min Stability) Constraint {
	ivs := make([]interval, len(c.intervals))
	copy(ivs, c.intervals)
	for i := range ivs {
		if !ivs[i].explicit {
			ivs[i].floor = min
		}
	}
	return Constraint{intervals: ivs, branches: c.branches, raw: c.raw}
}

func (c Constraint) String() string {
	if c.raw != "" {
		return c.raw
	}
	if c.IsEmpty() {
		return "(none)"
	}

	parts := make([]string, 0, len(c.intervals)+len(c.branches))
	for _, iv := range c.intervals {
		parts = append(parts, iv.String())
	}
	for _, b := range c.branches {
		parts = append(parts, "dev-"+b)
	}
	return strings.Join(parts, " || ")
}

func (iv interval) String() string {
	if iv.lo == nil && iv.hi == nil {
		return "*"
	}
	if iv.lo != nil && iv.hi != nil && iv.incLo && iv.incHi && iv.lo.Equal(iv.hi) {
		return iv.lo.String()
	}

	var sb strings.Builder
	if iv.lo != nil {
		if iv.incLo {
			sb.WriteString(">=")
		} else {
			sb.WriteString(">")
		}
		sb.WriteString(iv.lo.String())
	}
	if iv.hi != nil {
		if iv.lo != nil {
			sb.WriteByte(' ')
		}
		if iv.incHi {
			sb.WriteString("<=")
		} else {
			sb.WriteString("<")
		}
		sb.WriteString(iv.hi.String())
	}
	if iv.explicit {
		fmt.Fprintf(&sb, "@%s", iv.floor)
	}
	return sb.String()
}
