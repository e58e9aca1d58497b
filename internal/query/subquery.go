package query

import "fmt"

// SubQueryFilter nests a Query inside a predicate, namespacing the inner
// query's placeholders by rendering it through the same Bindings as the
// outer query rather than a fresh one.
type SubQueryFilter struct {
	Column string
	Inner  Query
	Op     Operator // IN, EXISTS, EQ, NEQ, GT, GTE, LT, LTE
	Negate bool
}

func NewSubQueryFilter(column string, inner Query, op Operator) (SubQueryFilter, error) {
	if op != EXISTS {
		if err := ValidateColumn(column); err != nil {
			return SubQueryFilter{}, err
		}
	}
	return SubQueryFilter{Column: column, Inner: inner, Op: op}, nil
}

func (s SubQueryFilter) SQL(b *Bindings) string {
	inner := s.Inner.renderWith(b)

	var frag string
	switch s.Op {
	case EXISTS:
		frag = fmt.Sprintf("EXISTS (%s)", inner)
	case IN:
		frag = fmt.Sprintf("%s IN (%s)", s.Column, inner)
	default:
		sym, ok := comparisonSQL[s.Op]
		if !ok {
			sym = "="
		}
		frag = fmt.Sprintf("%s %s (%s)", s.Column, sym, inner)
	}

	if s.Negate {
		return fmt.Sprintf("NOT (%s)", frag)
	}
	return frag
}
