package review

import "github.com/maproulette/backend/internal/query"

// CandidateSet names which review queue a NextReviewTask/List call is
// drawing from; each maps to a different visibility rule.
type CandidateSet int

const (
	// ReviewRequested lists reviews awaiting a reviewer, excluding ones the
	// caller themselves requested.
	ReviewRequested CandidateSet = iota
	// ReviewedByMe lists reviews the caller has already claimed or decided.
	ReviewedByMe
	// AllReviews lists every review regardless of requester/reviewer, for
	// project managers auditing a challenge.
	AllReviews
)

// VisibilityParams is the filter vocabulary for review list/claim endpoints.
type VisibilityParams struct {
	TaskStatuses          []int
	ExcludeOtherReviewers bool
	UserID                int64
	Set                   CandidateSet
}

// BuildFilter lowers VisibilityParams to the query builder's Filter,
// joining the tasks and task_review tables by task id at the call site.
func BuildFilter(p VisibilityParams) (query.Filter, error) {
	var groups []query.FilterGroup

	if len(p.TaskStatuses) > 0 {
		param, err := query.NewParameter("status", query.IN, toAnySlice(p.TaskStatuses))
		if err != nil {
			return query.Filter{}, err
		}
		param.Table = "tasks"
		groups = append(groups, query.NewFilterGroup(query.AND, param))
	}

	if p.ExcludeOtherReviewers {
		isNull, err := query.NewParameter("reviewed_by", query.NULL, nil)
		if err != nil {
			return query.Filter{}, err
		}
		isNull.Table = "task_review"
		isMe, err := query.NewParameter("reviewed_by", query.EQ, p.UserID)
		if err != nil {
			return query.Filter{}, err
		}
		isMe.Table = "task_review"
		groups = append(groups, query.NewFilterGroup(query.OR, isNull, isMe))
	}

	switch p.Set {
	case ReviewRequested:
		notMine, err := query.NewParameter("review_requested_by", query.NEQ, p.UserID)
		if err != nil {
			return query.Filter{}, err
		}
		notMine.Table = "task_review"
		groups = append(groups, query.NewFilterGroup(query.AND, notMine))

	case ReviewedByMe:
		mine, err := query.NewParameter("reviewed_by", query.EQ, p.UserID)
		if err != nil {
			return query.Filter{}, err
		}
		mine.Table = "task_review"
		groups = append(groups, query.NewFilterGroup(query.AND, mine))
	}

	return query.NewFilter(query.AND, groups...), nil
}

func toAnySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// Visible reports whether identity may see a review of the given task, per
// the standalone (non-SQL) visibility rule applied once a row is already in
// hand: the project/challenge pair must both be enabled, unless the caller
// manages the project or is the requester or the assigned reviewer.
func Visible(projectEnabled, challengeEnabled bool, userManagesProject, userIsRequester, userIsReviewer bool) bool {
	return (projectEnabled && challengeEnabled) || userManagesProject || userIsRequester || userIsReviewer
}
