package query

import (
	"fmt"
	"strings"
)

// Operator enumerates the predicate shapes a Parameter can render.
type Operator string

const (
	EQ         Operator = "EQ"
	NEQ        Operator = "NEQ"
	GT         Operator = "GT"
	GTE        Operator = "GTE"
	LT         Operator = "LT"
	LTE        Operator = "LTE"
	IN         Operator = "IN"
	LIKE       Operator = "LIKE"
	ILIKE      Operator = "ILIKE"
	BETWEEN    Operator = "BETWEEN"
	NULL       Operator = "NULL"
	SIMILAR_TO Operator = "SIMILAR_TO"
	EXISTS     Operator = "EXISTS"
	BOOL       Operator = "BOOL"
	CUSTOM     Operator = "CUSTOM"
)

var comparisonSQL = map[Operator]string{
	EQ: "=", NEQ: "<>", GT: ">", GTE: ">=", LT: "<", LTE: "<=",
	LIKE: "LIKE", ILIKE: "ILIKE", SIMILAR_TO: "SIMILAR TO",
}

// Parameter is a typed predicate over one column.
type Parameter struct {
	Column     string
	Op         Operator
	Value      any
	Negate     bool
	Table      string
	UseLiteral bool // CUSTOM/EXISTS: Value is raw SQL, not a bound literal
}

// NewParameter constructs a Parameter, returning a column-name validation
// error eagerly rather than deferring it to render time.
func NewParameter(column string, op Operator, value any) (Parameter, error) {
	if op != CUSTOM && op != EXISTS {
		if err := ValidateColumn(column); err != nil {
			return Parameter{}, err
		}
	}
	return Parameter{Column: column, Op: op, Value: value}, nil
}

func (p Parameter) qualifiedColumn() string {
	if p.Table != "" {
		return p.Table + "." + p.Column
	}
	return p.Column
}

// SQL renders the predicate fragment, binding any literal values into b. An
// empty string return means "no-op" (e.g. an empty IN list) and the caller
// must exclude it from surrounding AND/OR joins rather than splice it in.
func (p Parameter) SQL(b *Bindings) string {
	switch p.Op {
	case NULL:
		if p.Negate {
			return fmt.Sprintf("%s IS NOT NULL", p.qualifiedColumn())
		}
		return fmt.Sprintf("%s IS NULL", p.qualifiedColumn())

	case BOOL:
		if p.Negate {
			return fmt.Sprintf("NOT %s", p.qualifiedColumn())
		}
		return p.qualifiedColumn()

	case CUSTOM:
		frag, _ := p.Value.(string)
		if frag == "" {
			return ""
		}
		if p.Negate {
			return fmt.Sprintf("NOT (%s)", frag)
		}
		return frag

	case EXISTS:
		frag, _ := p.Value.(string)
		if frag == "" {
			return ""
		}
		if p.Negate {
			return fmt.Sprintf("NOT EXISTS (%s)", frag)
		}
		return fmt.Sprintf("EXISTS (%s)", frag)

	case IN:
		items := toSlice(p.Value)
		if len(items) == 0 {
			return ""
		}
		placeholders := make([]string, len(items))
		for i, it := range items {
			placeholders[i] = b.Bind(p.Column, it)
		}
		frag := fmt.Sprintf("%s IN (%s)", p.qualifiedColumn(), strings.Join(placeholders, ","))
		if p.Negate {
			return fmt.Sprintf("NOT (%s)", frag)
		}
		return frag

	case BETWEEN:
		bounds, ok := p.Value.([2]any)
		if !ok {
			return ""
		}
		lo := b.Bind(p.Column+"_lo", bounds[0])
		hi := b.Bind(p.Column+"_hi", bounds[1])
		frag := fmt.Sprintf("%s BETWEEN %s AND %s", p.qualifiedColumn(), lo, hi)
		if p.Negate {
			return fmt.Sprintf("NOT (%s)", frag)
		}
		return frag

	default:
		sym, ok := comparisonSQL[p.Op]
		if !ok {
			return ""
		}
		ph := b.Bind(p.Column, p.Value)
		frag := fmt.Sprintf("%s %s %s", p.qualifiedColumn(), sym, ph)
		if p.Negate {
			return fmt.Sprintf("NOT (%s)", frag)
		}
		return frag
	}
}

func toSlice(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case []int:
		out := make([]any, len(vv))
		for i, x := range vv {
			out[i] = x
		}
		return out
	case []int64:
		out := make([]any, len(vv))
		for i, x := range vv {
			out[i] = x
		}
		return out
	case []string:
		out := make([]any, len(vv))
		for i, x := range vv {
			out[i] = x
		}
		return out
	default:
		return nil
	}
}
