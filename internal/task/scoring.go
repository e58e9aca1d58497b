package task

import "github.com/maproulette/backend/internal/store"

// scoreForStatus is the point credit awarded when a task lands on status,
// per the documented scoring table. Statuses with no entry credit nothing.
var scoreForStatus = map[int]int64{
	store.StatusFixed:         5,
	store.StatusFalsePositive: 3,
	store.StatusAlreadyFixed:  3,
	store.StatusTooHard:       1,
	store.StatusSkipped:       0,
	store.StatusAnswered:      3,
}

// rollbackThenApply returns the net score delta to apply when a task moves
// from oldStatus to newStatus: the previous credit (if any) is rolled back
// before the new one is applied.
func rollbackThenApply(oldStatus, newStatus int) int64 {
	return scoreForStatus[newStatus] - scoreForStatus[oldStatus]
}
