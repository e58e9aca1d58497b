package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFoundf("task %d", 42)
	wrapped := fmt.Errorf("loading task: %w", base)

	if got := KindOf(wrapped); got != NotFound {
		t.Fatalf("KindOf(wrapped) = %v, want %v", got, NotFound)
	}
	if !Is(wrapped, NotFound) {
		t.Fatalf("Is(wrapped, NotFound) = false, want true")
	}
}

func TestKindOfUnknownDefaultsFatal(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != Fatal {
		t.Fatalf("KindOf(plain error) = %v, want %v", got, Fatal)
	}
}

func TestInvalidfCarriesField(t *testing.T) {
	err := Invalidf("status", "unknown status %q", "bogus")
	if err.Field != "status" {
		t.Fatalf("Field = %q, want %q", err.Field, "status")
	}
	if err.Kind != Invalid {
		t.Fatalf("Kind = %v, want %v", err.Kind, Invalid)
	}
}
