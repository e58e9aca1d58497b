package task

import (
	"testing"

	"github.com/maproulette/backend/internal/store"
)

func TestRollbackThenApply(t *testing.T) {
	cases := []struct {
		name               string
		oldStatus, newStatus int
		want               int64
	}{
		{"created to fixed credits fixed score", store.StatusCreated, store.StatusFixed, 5},
		{"fixed to false positive rolls back then credits", store.StatusFixed, store.StatusFalsePositive, 3 - 5},
		{"skipped to fixed credits fixed score", store.StatusSkipped, store.StatusFixed, 5},
		{"no-op when uncredited statuses both zero", store.StatusCreated, store.StatusDeleted, 0},
		{"fixed to too hard loses most credit", store.StatusFixed, store.StatusTooHard, 1 - 5},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := rollbackThenApply(c.oldStatus, c.newStatus); got != c.want {
				t.Errorf("rollbackThenApply(%d, %d) = %d, want %d", c.oldStatus, c.newStatus, got, c.want)
			}
		})
	}
}
