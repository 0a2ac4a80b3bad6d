// Package filter implements the metadata predicate evaluator used to
// include or exclude chunks by their metadata during upsert/delete/search.
//
// A Filter is a mapping from metadata key to a Condition. A Condition
// carries exactly one comparison operator (eq, ne, gt, gte, lt, lte,
// contains). A metadata mapping satisfies a Filter iff every key in the
// Filter is present in the metadata and its Condition holds.
package filter

import (
	"fmt"
	"strings"

	"github.com/orneryd/vecstore/pkg/vserr"
)

// Kind tags the scalar type carried by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

// Value is a tagged scalar: string, integer, real, or boolean. It backs
// both chunk metadata and Condition operands so the two compare cleanly.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Flt  float64
	Bool bool
}

// String returns the Value rendered as a string, used for case-insensitive
// substring ("contains") comparisons regardless of the Value's own Kind.
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Flt)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return ""
	}
}

// numeric returns a natural-order numeric form for gt/gte/lt/lte
// comparisons: the stored value's own type, with bool treated as 0/1.
func (v Value) numeric() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Flt, true
	case KindBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Equal reports whether v and other represent the same scalar value,
// comparing by tag and value rather than by Go equality of the struct
// (so a KindInt 3 and a KindFloat 3.0 are treated as distinct, matching
// "ordered comparison on the stored value's own type").
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == other.Str
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Flt == other.Flt
	case KindBool:
		return v.Bool == other.Bool
	default:
		return false
	}
}

// compare returns -1, 0, or 1 if v is less than, equal to, or greater than
// other, and false if the two are not ordered-comparable (mixed
// string/non-string types without a shared numeric form).
func (v Value) compare(other Value) (int, bool) {
	if v.Kind == KindString || other.Kind == KindString {
		if v.Kind != KindString || other.Kind != KindString {
			return 0, false
		}
		switch {
		case v.Str < other.Str:
			return -1, true
		case v.Str > other.Str:
			return 1, true
		default:
			return 0, true
		}
	}

	a, okA := v.numeric()
	b, okB := other.numeric()
	if !okA || !okB {
		return 0, false
	}
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	default:
		return 0, true
	}
}

// Condition is the predicate DTO: it carries the seven operators as
// optional fields. It has no JSON field tags or custom decoding, so on the
// wire it is written with its Go field names, e.g.
// {"GteVal": {"Kind": 1, "Int": 5}}; a short form such as {"gte": 5} does
// not decode into it. Exactly one must be populated; Validate enforces
// this.
type Condition struct {
	EqVal       *Value
	NeVal       *Value
	GtVal       *Value
	GteVal      *Value
	LtVal       *Value
	LteVal      *Value
	ContainsVal *Value
}

func Eq(v Value) Condition       { return Condition{EqVal: &v} }
func Ne(v Value) Condition       { return Condition{NeVal: &v} }
func Gt(v Value) Condition       { return Condition{GtVal: &v} }
func Gte(v Value) Condition      { return Condition{GteVal: &v} }
func Lt(v Value) Condition       { return Condition{LtVal: &v} }
func Lte(v Value) Condition      { return Condition{LteVal: &v} }
func Contains(v Value) Condition { return Condition{ContainsVal: &v} }

// populated counts how many of the seven operator fields are set.
func (c Condition) populated() int {
	n := 0
	for _, p := range []*Value{c.EqVal, c.NeVal, c.GtVal, c.GteVal, c.LtVal, c.LteVal, c.ContainsVal} {
		if p != nil {
			n++
		}
	}
	return n
}

// Validate reports vserr.ErrBadPredicate if the Condition does not carry
// exactly one populated operator.
func (c Condition) Validate() error {
	if n := c.populated(); n != 1 {
		return fmt.Errorf("condition has %d operators populated, want exactly 1: %w", n, vserr.ErrBadPredicate)
	}
	return nil
}

// holds evaluates the Condition against a single metadata Value. Callers
// must have already validated the Condition. holds returns false when no
// operator field is set; when several are set, only the first in the
// order eq, ne, gt, gte, lt, lte, contains is evaluated.
func (c Condition) holds(actual Value) bool {
	switch {
	case c.EqVal != nil:
		return actual.Equal(*c.EqVal)
	case c.NeVal != nil:
		return !actual.Equal(*c.NeVal)
	case c.GtVal != nil:
		cmp, ok := actual.compare(*c.GtVal)
		return ok && cmp > 0
	case c.GteVal != nil:
		cmp, ok := actual.compare(*c.GteVal)
		return ok && cmp >= 0
	case c.LtVal != nil:
		cmp, ok := actual.compare(*c.LtVal)
		return ok && cmp < 0
	case c.LteVal != nil:
		cmp, ok := actual.compare(*c.LteVal)
		return ok && cmp <= 0
	case c.ContainsVal != nil:
		return strings.Contains(strings.ToLower(actual.String()), strings.ToLower(c.ContainsVal.String()))
	default:
		return false
	}
}

// Filter is a predicate set: a mapping from metadata key to a Condition.
type Filter map[string]Condition

// Validate checks every Condition in the Filter, returning
// vserr.ErrBadPredicate on the first violation.
func (f Filter) Validate() error {
	for key, cond := range f {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("filter key %q: %w", key, err)
		}
	}
	return nil
}

// Passes reports whether metadata satisfies every Condition in the
// Filter. Missing keys yield false. An empty/nil Filter always passes.
func Passes(metadata map[string]Value, f Filter) bool {
	for key, cond := range f {
		actual, ok := metadata[key]
		if !ok {
			return false
		}
		if !cond.holds(actual) {
			return false
		}
	}
	return true
}
