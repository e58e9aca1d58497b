package query

import "fmt"

// Paging emits LIMIT/OFFSET. Per the resolved retrieval-contract ambiguity
// (SPEC_FULL.md C.5), any non-positive Limit means "unlimited" and Paging
// renders to "" — callers that truly want LIMIT 0 must filter upstream.
type Paging struct {
	Limit int
	Page  int
}

func NewPaging(limit, page int) Paging {
	if page < 0 {
		page = 0
	}
	return Paging{Limit: limit, Page: page}
}

func (p Paging) SQL(b *Bindings) string {
	if p.Limit <= 0 {
		return ""
	}
	limitPh := b.Bind("limit", p.Limit)
	offsetPh := b.Bind("offset", p.Limit*p.Page)
	return fmt.Sprintf("LIMIT %s OFFSET %s", limitPh, offsetPh)
}
