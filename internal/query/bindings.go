// Package query implements the composable, type-safe SQL filter/group/order/
// paging builder that internal/store's list and search methods compose their
// SQL with, in place of StringBuilder-based SQL fragments: a single builder
// every list endpoint's filters flow through.
package query

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/maproulette/backend/internal/apperr"
)

var columnNameRE = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

// ValidateColumn rejects any column/table-qualified name containing
// characters outside [A-Za-z0-9_.], raising apperr.Invalid before any SQL is
// emitted.
func ValidateColumn(name string) error {
	if !columnNameRE.MatchString(name) {
		return apperr.Invalidf("column", "invalid column name %q", name)
	}
	return nil
}

// Bindings accumulates bound parameter values for one Query build and
// assigns pgx-style positional placeholders ($1, $2, ...). Each Query.Build
// call gets a fresh, randomly salted Bindings so two builds of the same
// logical query never share placeholder identity, and a Parameter embedded
// in a sub-query never collides with its parent's bindings — both are walked
// through the same Bindings instance, so positional numbering is naturally
// unique without requiring named-parameter rewriting.
type Bindings struct {
	salt string
	args []any
	keys []string // salted debug names, parallel to args; aids tests/introspection
}

// NewBindings returns a Bindings seeded with a fresh random salt.
func NewBindings() *Bindings {
	return &Bindings{salt: randomSalt()}
}

func randomSalt() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable on any real
		// platform; fall back to a fixed salt rather than panic so SQL
		// building degrades to "placeholders are unique but not obfuscated"
		// instead of crashing a read path.
		return "fallback"
	}
	return hex.EncodeToString(b[:])
}

// Bind records value under a salted logical name and returns the positional
// placeholder text to splice into the emitted SQL.
func (b *Bindings) Bind(name string, value any) string {
	b.args = append(b.args, value)
	b.keys = append(b.keys, fmt.Sprintf("%s_%s", name, b.salt))
	return fmt.Sprintf("$%d", len(b.args))
}

// Args returns the bound values in placeholder order, ready for pgx.
func (b *Bindings) Args() []any { return b.args }

// Keys returns the salted logical names in binding order (test/debug use).
func (b *Bindings) Keys() []string { return b.keys }
