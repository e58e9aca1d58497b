package query

import (
	"fmt"
	"strings"
)

type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

// OrderField names one ORDER BY term. IsColumn distinguishes a bare column
// reference from an expression/alias that must not be table-qualified.
type OrderField struct {
	Name      string
	Direction Direction
	Table     string
	IsColumn  bool
}

func (f OrderField) ref() string {
	if f.IsColumn && f.Table != "" {
		return f.Table + "." + f.Name
	}
	return f.Name
}

// Order renders ORDER BY, consolidating to a single trailing direction when
// every field shares it, and falling back to a per-field direction list
// otherwise.
type Order struct {
	Fields []OrderField
}

func NewOrder(fields ...OrderField) Order {
	return Order{Fields: fields}
}

func (o Order) SQL(_ *Bindings) string {
	if len(o.Fields) == 0 {
		return ""
	}

	for _, f := range o.Fields {
		if err := ValidateColumn(f.Name); err != nil {
			return ""
		}
	}

	allSame := true
	first := o.Fields[0].Direction
	for _, f := range o.Fields[1:] {
		if f.Direction != first {
			allSame = false
			break
		}
	}

	refs := make([]string, len(o.Fields))
	if allSame {
		for i, f := range o.Fields {
			refs[i] = f.ref()
		}
		dir := first
		if dir == "" {
			dir = ASC
		}
		return fmt.Sprintf("ORDER BY %s %s", strings.Join(refs, ", "), dir)
	}

	for i, f := range o.Fields {
		dir := f.Direction
		if dir == "" {
			dir = ASC
		}
		refs[i] = fmt.Sprintf("%s %s", f.ref(), dir)
	}
	return "ORDER BY " + strings.Join(refs, ", ")
}
