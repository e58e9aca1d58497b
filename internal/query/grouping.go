package query

import "strings"

// Grouping renders GROUP BY over the given columns.
type Grouping struct {
	Columns []string
}

func NewGrouping(columns ...string) Grouping {
	return Grouping{Columns: columns}
}

func (g Grouping) SQL(_ *Bindings) string {
	if len(g.Columns) == 0 {
		return ""
	}
	for _, c := range g.Columns {
		if err := ValidateColumn(c); err != nil {
			return ""
		}
	}
	return "GROUP BY " + strings.Join(g.Columns, ", ")
}
