package query

import "strings"

// Filter is the top-level conjunction/disjunction of FilterGroups.
type Filter struct {
	Groups []FilterGroup
	Join   JoinKey
}

func NewFilter(join JoinKey, groups ...FilterGroup) Filter {
	return Filter{Groups: groups, Join: join}
}

// SQL renders every effective group, parenthesising the combination whenever
// more than one group contributes — so a Filter nested inside a larger
// expression (e.g. a SubQueryFilter's EXISTS clause) is never ambiguous with
// respect to operator precedence.
func (f Filter) SQL(b *Bindings) string {
	join := f.Join
	if join == "" {
		join = AND
	}

	frags := make([]string, 0, len(f.Groups))
	for _, g := range f.Groups {
		if frag := g.SQL(b); frag != "" {
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
