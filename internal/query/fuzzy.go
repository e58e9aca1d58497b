package query

import "fmt"

// FuzzyDefaults are the tolerances applied when a SearchParameters fuzzy
// search block doesn't override them.
const (
	DefaultFuzzyScore = 3
	DefaultFuzzySize  = 4
)

// fuzzyParameter renders the three-way fuzzy-match predicate: Levenshtein
// distance under score, or a matching Metaphone/Soundex code. It binds the
// comparison value three times (once per clause) rather than abusing
// Parameter/CUSTOM's "value is raw SQL" contract, since it needs access to a
// Bindings to bind a literal.
type fuzzyParameter struct {
	column string
	value  string
	score  int
	size   int
}

func (f fuzzyParameter) SQL(b *Bindings) string {
	v1 := b.Bind(f.column+"_fuzzy_lev", f.value)
	v2 := b.Bind(f.column+"_fuzzy_meta", f.value)
	v3 := b.Bind(f.column+"_fuzzy_sound", f.value)
	return fmt.Sprintf(
		"(LEVENSHTEIN(lower(%[1]s), lower(%[2]s)) < %[3]d OR METAPHONE(lower(%[1]s), %[4]d) = METAPHONE(lower(%[5]s), %[4]d) OR SOUNDEX(lower(%[1]s)) = SOUNDEX(lower(%[6]s)))",
		f.column, v1, f.score, f.size, v2, v3,
	)
}

// NewFuzzyPredicate constructs the fuzzy-search Predicate described in
// SearchParameters, applying DefaultFuzzyScore/DefaultFuzzySize when score or
// size is non-positive.
func NewFuzzyPredicate(column, value string, score, size int) (Predicate, error) {
	if err := ValidateColumn(column); err != nil {
		return nil, err
	}
	if score <= 0 {
		score = DefaultFuzzyScore
	}
	if size <= 0 {
		size = DefaultFuzzySize
	}
	return fuzzyParameter{column: column, value: value, score: score, size: size}, nil
}
