package task

import "github.com/maproulette/backend/internal/store"

// legalTransitions is the status transition table; a status absent from the
// map (or mapping to an empty set) is terminal except via the superuser
// override the engine applies separately.
var legalTransitions = map[int]map[int]bool{
	store.StatusCreated: set(store.StatusFixed, store.StatusFalsePositive, store.StatusSkipped,
		store.StatusAlreadyFixed, store.StatusTooHard, store.StatusDisabled, store.StatusAnswered),
	store.StatusFalsePositive: set(store.StatusFixed, store.StatusTooHard),
	// Skipped may move to any status except back to Created.
	store.StatusSkipped: set(store.StatusFixed, store.StatusFalsePositive, store.StatusAlreadyFixed,
		store.StatusTooHard, store.StatusDisabled, store.StatusAnswered, store.StatusValidated, store.StatusDeleted),
	store.StatusAlreadyFixed: set(store.StatusFixed, store.StatusFalsePositive, store.StatusTooHard),
	store.StatusTooHard:      set(store.StatusFixed, store.StatusFalsePositive, store.StatusAlreadyFixed),
}

func set(vals ...int) map[int]bool {
	m := make(map[int]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// IsLegalTransition reports whether from -> to is permitted by the status
// transition table. superuser bypasses the check entirely, per the terminal
// statuses' documented "unless superuser override" exception. A no-op
// transition (from == to) succeeds when from is terminal: re-applying a
// terminal status is idempotent rather than illegal.
func IsLegalTransition(from, to int, superuser bool) bool {
	if superuser {
		return true
	}
	targets, ok := legalTransitions[from]
	if from == to {
		return !ok || len(targets) == 0
	}
	return ok && targets[to]
}
