package task

import "testing"

func TestParseOperator(t *testing.T) {
	cases := []struct {
		raw  string
		want RuleOperator
	}{
		{"==", OpEqual},
		{"equal", OpEqual},
		{"EQ", OpEqual},
		{"not_contains", OpNotContains},
		{" >= ", OpGreaterEqual},
		{"greater_than_equal", OpGreaterEqual},
	}
	for _, c := range cases {
		got, err := ParseOperator(c.raw)
		if err != nil {
			t.Fatalf("ParseOperator(%q) returned error: %v", c.raw, err)
		}
		if got != c.want {
			t.Errorf("ParseOperator(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestParseOperatorUnrecognised(t *testing.T) {
	if _, err := ParseOperator("whatever"); err == nil {
		t.Fatal("expected error for unrecognised operator")
	}
}

func TestRuleTreeEvaluate(t *testing.T) {
	tree := RuleTree{
		Join: JoinAnd,
		Rules: []Rule{
			{Key: "highway", Op: OpEqual, Value: "residential", Type: TypeString},
			{Key: "lanes", Op: OpGreaterThan, Value: "2", Type: TypeInteger},
		},
	}

	if !tree.Evaluate(map[string]string{"highway": "residential", "lanes": "3"}) {
		t.Error("expected tree to match")
	}
	if tree.Evaluate(map[string]string{"highway": "residential", "lanes": "1"}) {
		t.Error("expected tree not to match when lanes rule fails")
	}
	if tree.Evaluate(map[string]string{"lanes": "3"}) {
		t.Error("expected tree not to match when highway key is missing")
	}
}

func TestRuleTreeEvaluateOr(t *testing.T) {
	tree := RuleTree{
		Join: JoinOr,
		Rules: []Rule{
			{Key: "surface", Op: OpEqual, Value: "paved", Type: TypeString},
			{Key: "surface", Op: OpEqual, Value: "asphalt", Type: TypeString},
		},
	}
	if !tree.Evaluate(map[string]string{"surface": "asphalt"}) {
		t.Error("expected OR tree to match on second rule")
	}
	if tree.Evaluate(map[string]string{"surface": "gravel"}) {
		t.Error("expected OR tree not to match")
	}
}

func TestRuleTreeIsEmptyMissingKey(t *testing.T) {
	tree := RuleTree{Rules: []Rule{{Key: "name", Op: OpIsEmpty}}}
	if !tree.Evaluate(map[string]string{}) {
		t.Error("is_empty should match a missing key")
	}
	if tree.Evaluate(map[string]string{"name": "x"}) {
		t.Error("is_empty should not match a populated key")
	}
}

func TestRuleTreeNestedChildren(t *testing.T) {
	tree := RuleTree{
		Join: JoinAnd,
		Rules: []Rule{{Key: "highway", Op: OpEqual, Value: "residential", Type: TypeString}},
		Children: []RuleTree{
			{
				Join: JoinOr,
				Rules: []Rule{
					{Key: "surface", Op: OpEqual, Value: "paved", Type: TypeString},
					{Key: "surface", Op: OpEqual, Value: "unpaved", Type: TypeString},
				},
			},
		},
	}
	if !tree.Evaluate(map[string]string{"highway": "residential", "surface": "unpaved"}) {
		t.Error("expected nested OR child to satisfy overall AND")
	}
	if tree.Evaluate(map[string]string{"highway": "residential", "surface": "cobblestone"}) {
		t.Error("expected nested OR child to fail overall AND")
	}
}

func TestResolvePrefersHighThenMediumThenLow(t *testing.T) {
	high := RuleTree{Rules: []Rule{{Key: "severity", Op: OpEqual, Value: "high", Type: TypeString}}}
	medium := RuleTree{Rules: []Rule{{Key: "severity", Op: OpEqual, Value: "medium", Type: TypeString}}}
	low := RuleTree{Rules: []Rule{{Key: "severity", Op: OpEqual, Value: "low", Type: TypeString}}}

	if got := Resolve(high, medium, low, map[string]string{"severity": "high"}); got != PriorityHigh {
		t.Errorf("got %d, want PriorityHigh", got)
	}
	if got := Resolve(high, medium, low, map[string]string{"severity": "medium"}); got != PriorityMedium {
		t.Errorf("got %d, want PriorityMedium", got)
	}
	if got := Resolve(high, medium, low, map[string]string{"severity": "low"}); got != PriorityLow {
		t.Errorf("got %d, want PriorityLow", got)
	}
	if got := Resolve(high, medium, low, map[string]string{"severity": "unknown"}); got != PriorityMedium {
		t.Errorf("got %d, want PriorityMedium default", got)
	}
}

func TestResolveEmptyTreesDefaultMedium(t *testing.T) {
	if got := Resolve(RuleTree{}, RuleTree{}, RuleTree{}, map[string]string{"anything": "x"}); got != PriorityMedium {
		t.Errorf("got %d, want PriorityMedium", got)
	}
}
