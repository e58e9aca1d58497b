package task

import (
	"testing"

	"github.com/maproulette/backend/internal/store"
)

func TestIsLegalTransition(t *testing.T) {
	cases := []struct {
		name      string
		from, to  int
		superuser bool
		want      bool
	}{
		{"created to fixed", store.StatusCreated, store.StatusFixed, false, true},
		{"created to validated direct", store.StatusCreated, store.StatusValidated, false, false},
		{"fixed to validated", store.StatusFixed, store.StatusValidated, false, false},
		{"false positive to fixed", store.StatusFalsePositive, store.StatusFixed, false, true},
		{"false positive to skipped", store.StatusFalsePositive, store.StatusSkipped, false, false},
		{"skipped to validated", store.StatusSkipped, store.StatusValidated, false, true},
		{"skipped to deleted", store.StatusSkipped, store.StatusDeleted, false, true},
		{"skipped to created", store.StatusSkipped, store.StatusCreated, false, false},
		{"same status", store.StatusCreated, store.StatusCreated, false, false},
		{"superuser bypasses", store.StatusValidated, store.StatusCreated, true, true},
		{"too hard to already fixed", store.StatusTooHard, store.StatusAlreadyFixed, false, true},
		{"fixed to fixed is idempotent", store.StatusFixed, store.StatusFixed, false, true},
		{"validated to validated is idempotent", store.StatusValidated, store.StatusValidated, false, true},
		{"deleted to deleted is idempotent", store.StatusDeleted, store.StatusDeleted, false, true},
		{"disabled to disabled is idempotent", store.StatusDisabled, store.StatusDisabled, false, true},
		{"answered to answered is idempotent", store.StatusAnswered, store.StatusAnswered, false, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsLegalTransition(c.from, c.to, c.superuser); got != c.want {
				t.Errorf("IsLegalTransition(%d, %d, %v) = %v, want %v", c.from, c.to, c.superuser, got, c.want)
			}
		})
	}
}
