// Package task implements the task selection and lifecycle engine: choosing
// a next task under arbitrary filters, locking, status transitions, scoring,
// and spatial clustering.
package task

import "github.com/maproulette/backend/internal/store"

// PropertyOp enumerates the comparison a PropertyPredicate applies against a
// task's free-form property map.
type PropertyOp string

const (
	PropertyEquals    PropertyOp = "equals"
	PropertyNotEquals PropertyOp = "not_equals"
	PropertyContains  PropertyOp = "contains"
	PropertyExists    PropertyOp = "exists"
	PropertyMissing   PropertyOp = "missing"
)

// PropertyPredicate tests one key in a task's property map.
type PropertyPredicate struct {
	Key   string
	Op    PropertyOp
	Value string
}

// FuzzySearch bundles the tolerances for the Levenshtein/Metaphone/Soundex
// fuzzy-match expansion (see internal/query/fuzzy.go).
type FuzzySearch struct {
	Text  string
	Score int
	Size  int
}

// SearchParameters is the composite filter object threaded through every
// task/review list-and-select operation.
type SearchParameters struct {
	ProjectIDs   []int64
	ChallengeIDs []int64
	Statuses     []int
	Priorities   []int

	OwnerSearch    string
	ReviewerSearch string
	MapperSearch   string

	Tags       []string
	TagTypes   []string
	Properties []PropertyPredicate

	BoundingBox         *store.BoundingBox
	BoundingGeometries  []store.Point // simplified polygon/linestring vertex set for point-in-polygon tests
	RequiresLocal       bool
	Fuzzy               *FuzzySearch
	InvertFields        map[string]bool
}

func (p SearchParameters) isInverted(field string) bool {
	return p.InvertFields != nil && p.InvertFields[field]
}
