package task

import (
	"strconv"
	"strings"

	"github.com/maproulette/backend/internal/apperr"
)

// Priority values, lower is more urgent.
const (
	PriorityHigh   = 0
	PriorityMedium = 1
	PriorityLow    = 2
)

// RuleOperator is the canonical symbolic form every predicate is normalised
// to at parse time, resolving the spec's ambiguity between symbolic ("==")
// and word-form ("equal") rule authoring.
type RuleOperator string

const (
	OpEqual        RuleOperator = "=="
	OpNotEqual     RuleOperator = "!="
	OpLessThan     RuleOperator = "<"
	OpLessEqual    RuleOperator = "<="
	OpGreaterThan  RuleOperator = ">"
	OpGreaterEqual RuleOperator = ">="
	OpContains     RuleOperator = "contains"
	OpNotContains  RuleOperator = "not_contains"
	OpIsEmpty      RuleOperator = "is_empty"
	OpIsNotEmpty   RuleOperator = "is_not_empty"
)

var wordFormAliases = map[string]RuleOperator{
	"==": OpEqual, "equal": OpEqual, "eq": OpEqual,
	"!=": OpNotEqual, "not_equal": OpNotEqual, "ne": OpNotEqual,
	"<": OpLessThan, "less_than": OpLessThan, "lt": OpLessThan,
	"<=": OpLessEqual, "less_than_equal": OpLessEqual, "lte": OpLessEqual,
	">": OpGreaterThan, "greater_than": OpGreaterThan, "gt": OpGreaterThan,
	">=": OpGreaterEqual, "greater_than_equal": OpGreaterEqual, "gte": OpGreaterEqual,
	"contains": OpContains, "not_contains": OpNotContains,
	"is_empty": OpIsEmpty, "is_not_empty": OpIsNotEmpty,
}

// ValueType names the comparison type a rule's literal value is parsed as.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeDouble  ValueType = "double"
	TypeLong    ValueType = "long"
)

// Rule is a leaf predicate over a task's property map.
type Rule struct {
	Key   string
	Op    RuleOperator
	Value string
	Type  ValueType
}

// ParseOperator accepts either the symbolic or word form and normalises to
// the canonical RuleOperator.
func ParseOperator(raw string) (RuleOperator, error) {
	op, ok := wordFormAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", apperr.Invalidf("operator", "unrecognised priority rule operator %q", raw)
	}
	return op, nil
}

// RuleTreeJoin is the boolean combinator between sibling rules at one level.
type RuleTreeJoin string

const (
	JoinAnd RuleTreeJoin = "AND"
	JoinOr  RuleTreeJoin = "OR"
)

// RuleTree is a boolean expression over Rules, evaluated against a task's
// property map.
type RuleTree struct {
	Join     RuleTreeJoin
	Rules    []Rule
	Children []RuleTree
}

// Evaluate returns true if props satisfies the tree.
func (t RuleTree) Evaluate(props map[string]string) bool {
	results := make([]bool, 0, len(t.Rules)+len(t.Children))
	for _, r := range t.Rules {
		results = append(results, evaluateRule(r, props))
	}
	for _, c := range t.Children {
		results = append(results, c.Evaluate(props))
	}
	if len(results) == 0 {
		return true
	}

	if t.Join == JoinOr {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

func evaluateRule(r Rule, props map[string]string) bool {
	actual, present := props[r.Key]

	switch r.Op {
	case OpIsEmpty:
		return !present || actual == ""
	case OpIsNotEmpty:
		return present && actual != ""
	}

	if !present {
		return r.Op == OpNotEqual || r.Op == OpNotContains
	}

	switch r.Op {
	case OpEqual:
		return compareEqual(actual, r.Value, r.Type)
	case OpNotEqual:
		return !compareEqual(actual, r.Value, r.Type)
	case OpContains:
		return strings.Contains(actual, r.Value)
	case OpNotContains:
		return !strings.Contains(actual, r.Value)
	case OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual:
		return compareOrdered(actual, r.Value, r.Type, r.Op)
	default:
		return false
	}
}

func compareEqual(actual, want string, t ValueType) bool {
	if t == TypeString || t == "" {
		return actual == want
	}
	a, aok := parseNumeric(actual, t)
	w, wok := parseNumeric(want, t)
	if !aok || !wok {
		return actual == want
	}
	return a == w
}

func compareOrdered(actual, want string, t ValueType, op RuleOperator) bool {
	a, aok := parseNumeric(actual, t)
	w, wok := parseNumeric(want, t)
	if !aok || !wok {
		return false
	}
	switch op {
	case OpLessThan:
		return a < w
	case OpLessEqual:
		return a <= w
	case OpGreaterThan:
		return a > w
	case OpGreaterEqual:
		return a >= w
	default:
		return false
	}
}

func parseNumeric(s string, t ValueType) (float64, bool) {
	switch t {
	case TypeInteger, TypeLong:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	default:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}

// Resolve evaluates high, then medium, then low, returning the first
// matching priority; Medium is the documented default when none match (and
// whenever a tree has no rules of its own, since an empty RuleTree
// trivially evaluates true and would otherwise swallow every task).
func Resolve(high, medium, low RuleTree, props map[string]string) int {
	switch {
	case high.nonEmpty() && high.Evaluate(props):
		return PriorityHigh
	case medium.nonEmpty() && medium.Evaluate(props):
		return PriorityMedium
	case low.nonEmpty() && low.Evaluate(props):
		return PriorityLow
	default:
		return PriorityMedium
	}
}

func (t RuleTree) nonEmpty() bool {
	return len(t.Rules) > 0 || len(t.Children) > 0
}
