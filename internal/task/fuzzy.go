package task

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

// RankedName pairs a candidate name with its Levenshtein distance from a
// search query, ascending (closest match first).
type RankedName struct {
	Name     string
	Distance int
}

// RankByNameSimilarity orders candidates by edit distance to query, a cheap
// in-memory complement to the heavier SQL-side fuzzy predicate
// (internal/query/fuzzy.go) that Postgres applies during the main candidate
// scan.
func RankByNameSimilarity(candidates []string, queryStr string) []RankedName {
	out := make([]RankedName, len(candidates))
	for i, c := range candidates {
		out[i] = RankedName{Name: c, Distance: levenshtein.ComputeDistance(c, queryStr)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}
