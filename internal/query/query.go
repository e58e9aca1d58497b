package query

import "strings"

// Query assembles a full SELECT statement from a base statement plus the
// composable Filter/Grouping/Order/Paging clauses. Base supplies everything
// before WHERE (e.g. "SELECT t.* FROM tasks t JOIN challenges c ON ...").
//
// ForceBase makes the WHERE clause always present (as "WHERE TRUE") even when
// Filter renders empty, so callers that string-append additional raw
// conditions after Build() never have to special-case "was there a WHERE
// already".
type Query struct {
	Base      string
	Filter    Filter
	Grouping  Grouping
	Order     Order
	Paging    Paging
	ForceBase bool
}

func New(base string) Query {
	return Query{Base: base}
}

func (q Query) WithFilter(f Filter) Query      { q.Filter = f; return q }
func (q Query) WithGrouping(g Grouping) Query  { q.Grouping = g; return q }
func (q Query) WithOrder(o Order) Query        { q.Order = o; return q }
func (q Query) WithPaging(p Paging) Query      { q.Paging = p; return q }
func (q Query) WithForceBase(force bool) Query { q.ForceBase = force; return q }

// Build renders the full statement with a fresh Bindings, returning SQL text
// with $1.. placeholders and the positionally matched argument slice.
func (q Query) Build() (string, []any) {
	b := NewBindings()
	sql := q.renderWith(b)
	return sql, b.Args()
}

// renderWith renders using a caller-supplied Bindings, letting a
// SubQueryFilter splice an inner Query's placeholders into the same
// positional sequence as the outer query.
func (q Query) renderWith(b *Bindings) string {
	var sb strings.Builder
	sb.WriteString(q.Base)

	where := q.Filter.SQL(b)
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	} else if q.ForceBase {
		sb.WriteString(" WHERE TRUE")
	}

	if g := q.Grouping.SQL(b); g != "" {
		sb.WriteString(" ")
		sb.WriteString(g)
	}
	if o := q.Order.SQL(b); o != "" {
		sb.WriteString(" ")
		sb.WriteString(o)
	}
	if p := q.Paging.SQL(b); p != "" {
		sb.WriteString(" ")
		sb.WriteString(p)
	}
	return sb.String()
}
