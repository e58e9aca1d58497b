package query

import "strings"

// JoinKey is the boolean conjunction/disjunction used to combine predicates.
type JoinKey string

const (
	AND JoinKey = "AND"
	OR  JoinKey = "OR"
)

// Predicate is anything renderable inside a FilterGroup: a Parameter or a
// SubQueryFilter.
type Predicate interface {
	SQL(b *Bindings) string
}

// FilterGroup conjoins/disjoins a set of Predicates. When Condition is false
// the whole group contributes nothing to the surrounding filter, which is
// how callers express "only apply this block of predicates if X".
type FilterGroup struct {
	Parameters []Predicate
	Join       JoinKey
	Condition  bool
}

// NewFilterGroup builds a group that is always active.
func NewFilterGroup(join JoinKey, params ...Predicate) FilterGroup {
	return FilterGroup{Parameters: params, Join: join, Condition: true}
}

// NewConditionalFilterGroup builds a group gated on condition.
func NewConditionalFilterGroup(join JoinKey, condition bool, params ...Predicate) FilterGroup {
	return FilterGroup{Parameters: params, Join: join, Condition: condition}
}

// SQL renders the group, skipping no-op parameters and collapsing to "" if
// none remain or Condition is false.
func (g FilterGroup) SQL(b *Bindings) string {
	if !g.Condition || len(g.Parameters) == 0 {
		return ""
	}

	join := g.Join
	if join == "" {
		join = AND
	}

	frags := make([]string, 0, len(g.Parameters))
	for _, p := range g.Parameters {
		if frag := p.SQL(b); frag != "" {
			frags = append(frags, frag)
		}
	}
	if len(frags) == 0 {
		return ""
	}
	if len(frags) == 1 {
		return frags[0]
	}
	return "(" + strings.Join(frags, " "+string(join)+" ") + ")"
}
