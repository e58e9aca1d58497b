// Package review implements the task review workflow: the state machine a
// completed task's review record moves through, reviewer queueing, and the
// visibility rules that decide which reviews a given user may see.
package review

import "github.com/maproulette/backend/internal/store"

// legalTransitions is the review-status transition table. Unnecessary is
// terminal; Requested is reachable again only from Rejected (a contested
// rejection sent back for another look).
var legalTransitions = map[int]map[int]bool{
	store.ReviewStatusRequested: set(store.ReviewStatusApproved, store.ReviewStatusRejected,
		store.ReviewStatusAssisted, store.ReviewStatusUnnecessary),
	store.ReviewStatusRejected: set(store.ReviewStatusRequested, store.ReviewStatusDisputed),
	store.ReviewStatusApproved: set(store.ReviewStatusDisputed),
	store.ReviewStatusAssisted: set(store.ReviewStatusDisputed),
	store.ReviewStatusDisputed: set(store.ReviewStatusApproved, store.ReviewStatusRejected),
}

func set(vals ...int) map[int]bool {
	m := make(map[int]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

// IsLegalTransition reports whether a review may move from -> to.
func IsLegalTransition(from, to int) bool {
	if from == to {
		return false
	}
	targets, ok := legalTransitions[from]
	return ok && targets[to]
}
