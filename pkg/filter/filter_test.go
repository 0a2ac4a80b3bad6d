package filter

import (
	"errors"
	"testing"

	"github.com/orneryd/vecstore/pkg/vserr"
)

func TestConditionValidate(t *testing.T) {
	if err := Eq(Value{Kind: KindInt, Int: 3}).Validate(); err != nil {
		t.Errorf("valid condition rejected: %v", err)
	}

	// A Condition with zero operators populated fails validation.
	var empty Condition
	if err := empty.Validate(); !errors.Is(err, vserr.ErrBadPredicate) {
		t.Errorf("expected ErrBadPredicate, got %v", err)
	}
}

func TestConditionBothEqAndGteRejected(t *testing.T) {
	// Scenario 4 from spec.md §8: a Condition with both eq and gte
	// populated is rejected at validation time.
	eqVal := Value{Kind: KindInt, Int: 3}
	gteVal := Value{Kind: KindInt, Int: 1}
	c := Condition{EqVal: &eqVal, GteVal: &gteVal}
	if err := c.Validate(); !errors.Is(err, vserr.ErrBadPredicate) {
		t.Errorf("expected ErrBadPredicate for over-populated condition, got %v", err)
	}
}

func TestPassesMissingKeyFails(t *testing.T) {
	f := Filter{"priority": Gte(Value{Kind: KindInt, Int: 5})}
	meta := map[string]Value{"other": {Kind: KindString, Str: "x"}}
	if Passes(meta, f) {
		t.Error("Passes should be false when the predicate key is absent")
	}
}

func TestPassesOrderedComparison(t *testing.T) {
	// Scenario 3 from spec.md §8: delete with filter {priority: {gte: 5}}.
	cases := []struct {
		priority int64
		want     bool
	}{
		{8, true},
		{3, false},
		{5, true},
	}
	f := Filter{"priority": Gte(Value{Kind: KindInt, Int: 5})}
	for _, c := range cases {
		meta := map[string]Value{"priority": {Kind: KindInt, Int: c.priority}}
		if got := Passes(meta, f); got != c.want {
			t.Errorf("priority=%d: Passes=%v, want %v", c.priority, got, c.want)
		}
	}
}

func TestContainsCaseInsensitive(t *testing.T) {
	f := Filter{"title": Contains(Value{Kind: KindString, Str: "ALPHA"})}
	meta := map[string]Value{"title": {Kind: KindString, Str: "Project Alphabet"}}
	if !Passes(meta, f) {
		t.Error("Contains should match case-insensitively")
	}
}

func TestEqDistinguishesIntAndFloat(t *testing.T) {
	f := Filter{"n": Eq(Value{Kind: KindFloat, Flt: 3})}
	meta := map[string]Value{"n": {Kind: KindInt, Int: 3}}
	if Passes(meta, f) {
		t.Error("Eq should not treat KindInt 3 and KindFloat 3.0 as equal")
	}
}

func TestBoolOrderedAsZeroOne(t *testing.T) {
	f := Filter{"active": Gt(Value{Kind: KindBool, Bool: false})}
	meta := map[string]Value{"active": {Kind: KindBool, Bool: true}}
	if !Passes(meta, f) {
		t.Error("true should compare greater than false under bool-as-0/1 ordering")
	}
}

func TestEmptyFilterAlwaysPasses(t *testing.T) {
	if !Passes(map[string]Value{"a": {Kind: KindInt, Int: 1}}, nil) {
		t.Error("nil/empty filter should always pass")
	}
}

func TestFilterValidatePropagates(t *testing.T) {
	f := Filter{"bad": {}}
	if err := f.Validate(); !errors.Is(err, vserr.ErrBadPredicate) {
		t.Errorf("expected ErrBadPredicate, got %v", err)
	}
}
