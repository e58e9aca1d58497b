package review

import (
	"context"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/authz"
	"github.com/maproulette/backend/internal/cache"
	"github.com/maproulette/backend/internal/store"
)

// Engine implements the review workflow operations.
type Engine struct {
	reviews              *store.TaskReviewRepository
	tasks                *store.TaskRepository
	challenges           *store.ChallengeRepository
	projects             *store.ProjectRepository
	metrics              *store.UserMetricsRepository
	checker              *authz.Checker
	onReviewStatusChange func(taskID, challengeID, requestedBy int64, newStatus int)

	// challengeCache and projectCache back the cache-aside lookups
	// projectOf runs on every review operation. Either may be nil to
	// disable caching for that aggregate.
	challengeCache *cache.Cache[store.Challenge]
	projectCache   *cache.Cache[store.Project]
}

// NewEngine wires the review engine to its repositories and the
// authorisation checker. onReviewStatusChange, if non-nil, runs after a
// successful SetReviewStatus so callers (e.g. internal/ws for notifying the
// requester) can react without the engine depending on them directly.
// challengeCache and projectCache may be nil to disable caching.
func NewEngine(reviews *store.TaskReviewRepository, tasks *store.TaskRepository, challenges *store.ChallengeRepository,
	projects *store.ProjectRepository, metrics *store.UserMetricsRepository, checker *authz.Checker,
	challengeCache *cache.Cache[store.Challenge], projectCache *cache.Cache[store.Project],
	onReviewStatusChange func(taskID, challengeID, requestedBy int64, newStatus int)) *Engine {
	return &Engine{reviews: reviews, tasks: tasks, challenges: challenges, projects: projects, metrics: metrics,
		checker: checker, challengeCache: challengeCache, projectCache: projectCache,
		onReviewStatusChange: onReviewStatusChange}
}

func (e *Engine) challengeByID(ctx context.Context, id int64) (store.Challenge, error) {
	if e.challengeCache == nil {
		return e.challenges.ByID(ctx, id)
	}
	result, err := cache.WithOptionCaching(e.challengeCache, id, func() (store.Challenge, bool, error) {
		ch, err := e.challenges.ByID(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				return store.Challenge{}, false, nil
			}
			return store.Challenge{}, false, err
		}
		return ch, true, nil
	})
	if err != nil {
		return store.Challenge{}, err
	}
	if !result.Valid {
		return store.Challenge{}, apperr.NotFoundf("challenge %d not found", id)
	}
	return result.Value, nil
}

func (e *Engine) projectByID(ctx context.Context, id int64) (store.Project, error) {
	if e.projectCache == nil {
		return e.projects.ByID(ctx, id)
	}
	result, err := cache.WithOptionCaching(e.projectCache, id, func() (store.Project, bool, error) {
		p, err := e.projects.ByID(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				return store.Project{}, false, nil
			}
			return store.Project{}, false, err
		}
		return p, true, nil
	})
	if err != nil {
		return store.Project{}, err
	}
	if !result.Valid {
		return store.Project{}, apperr.NotFoundf("project %d not found", id)
	}
	return result.Value, nil
}

// projectOf resolves a task's owning challenge and project together, the
// pair StartReview and Visible both need.
func (e *Engine) projectOf(ctx context.Context, taskID int64) (store.Task, store.Challenge, store.Project, error) {
	t, err := e.tasks.ByID(ctx, taskID)
	if err != nil {
		return store.Task{}, store.Challenge{}, store.Project{}, err
	}
	ch, err := e.challengeByID(ctx, t.ChallengeID)
	if err != nil {
		return store.Task{}, store.Challenge{}, store.Project{}, err
	}
	p, err := e.projectByID(ctx, ch.ProjectID)
	if err != nil {
		return store.Task{}, store.Challenge{}, store.Project{}, err
	}
	return t, ch, p, nil
}

// StartReview acquires the reviewer-scoped lease on a task awaiting review.
// The review record itself is created by the task engine when the mapper
// sets the task to Fixed (see task.Engine.SetStatus); this only claims it
// for a reviewer, rejecting the original requester (unless superuser) and
// any caller racing another reviewer for the same claim.
func (e *Engine) StartReview(ctx context.Context, identity authz.Identity, taskID int64) (store.TaskReview, error) {
	if identity.IsGuest() {
		return store.TaskReview{}, apperr.NotAuthorizedf("guests cannot review tasks")
	}
	rv, err := e.reviews.ByTaskID(ctx, taskID)
	if err != nil {
		return store.TaskReview{}, err
	}
	if rv.ReviewStatus != store.ReviewStatusRequested {
		return store.TaskReview{}, apperr.Invalidf("status", "review %d is not awaiting a reviewer", rv.ID)
	}
	if rv.RequestedBy == identity.ID && !identity.Superuser {
		return store.TaskReview{}, apperr.Forbiddenf("a reviewer may not review their own requested task")
	}
	_, _, p, err := e.projectOf(ctx, taskID)
	if err != nil {
		return store.TaskReview{}, err
	}
	if err := e.checker.HasWriteAccess(ctx, authz.ItemTask, identity, p.ID, 0); err != nil {
		return store.TaskReview{}, err
	}

	if err := e.reviews.ClaimTask(ctx, rv.ID, identity.ID); err != nil {
		return store.TaskReview{}, err
	}
	return e.reviews.ByTaskID(ctx, taskID)
}

// CancelReview releases a reviewer's claim without discarding the review
// record itself; only the claiming reviewer, the original requester, or a
// project admin may do so.
func (e *Engine) CancelReview(ctx context.Context, identity authz.Identity, taskID int64) error {
	rv, err := e.reviews.ByTaskID(ctx, taskID)
	if err != nil {
		return err
	}
	if rv.ReviewStatus != store.ReviewStatusRequested {
		return apperr.Invalidf("status", "review %d is not in Requested status", rv.ID)
	}
	if rv.ReviewClaimedBy == nil || *rv.ReviewClaimedBy != identity.ID {
		if err := e.requireRequesterOrAdmin(ctx, identity, taskID, rv); err != nil {
			return err
		}
	}
	return e.reviews.ClearClaim(ctx, rv.ID)
}

// NextReviewTask claims the oldest unclaimed review visible to identity
// under params, using SELECT ... FOR UPDATE SKIP LOCKED so concurrent
// reviewers never collide on the same task.
func (e *Engine) NextReviewTask(ctx context.Context, identity authz.Identity, params VisibilityParams) (store.TaskReview, error) {
	if identity.IsGuest() {
		return store.TaskReview{}, apperr.NotAuthorizedf("guests cannot review tasks")
	}
	params.UserID = identity.ID
	filter, err := BuildFilter(params)
	if err != nil {
		return store.TaskReview{}, err
	}
	return e.reviews.ClaimNext(ctx, identity.ID, filter)
}

// SetReviewStatus records a reviewer's decision, updates the requester's
// review score counters (per the "rollback never applies to review scoring,
// only cumulative totals" rule: approvals/rejections/assists only ever add),
// and fires onReviewStatusChange.
func (e *Engine) SetReviewStatus(ctx context.Context, identity authz.Identity, taskID int64, newStatus int, comment string) (store.TaskReview, error) {
	rv, err := e.reviews.ByTaskID(ctx, taskID)
	if err != nil {
		return store.TaskReview{}, err
	}
	if !IsLegalTransition(rv.ReviewStatus, newStatus) {
		return store.TaskReview{}, apperr.Invalidf("reviewStatus", "illegal review transition from %d to %d", rv.ReviewStatus, newStatus)
	}
	if rv.RequestedBy == identity.ID && !identity.Superuser {
		return store.TaskReview{}, apperr.Forbiddenf("a reviewer may not decide their own review request")
	}
	t, _, p, err := e.projectOf(ctx, taskID)
	if err != nil {
		return store.TaskReview{}, err
	}
	if err := e.checker.HasWriteAccess(ctx, authz.ItemTask, identity, p.ID, 0); err != nil {
		return store.TaskReview{}, err
	}

	if err := e.reviews.SetStatus(ctx, rv.ID, newStatus, identity.ID, comment); err != nil {
		return store.TaskReview{}, err
	}

	switch newStatus {
	case store.ReviewStatusApproved, store.ReviewStatusAssisted:
		_ = e.metrics.IncrementReview(ctx, rv.RequestedBy, true)
	case store.ReviewStatusRejected:
		_ = e.metrics.IncrementReview(ctx, rv.RequestedBy, false)
	}

	if e.onReviewStatusChange != nil {
		e.onReviewStatusChange(taskID, t.ChallengeID, rv.RequestedBy, newStatus)
	}
	return e.reviews.ByTaskID(ctx, taskID)
}

// SetMetaReviewStatus records a meta-reviewer's sign-off over an already
// reviewed task; restricted to project admins.
func (e *Engine) SetMetaReviewStatus(ctx context.Context, identity authz.Identity, taskID int64, status int) error {
	rv, err := e.reviews.ByTaskID(ctx, taskID)
	if err != nil {
		return err
	}
	_, _, p, err := e.projectOf(ctx, taskID)
	if err != nil {
		return err
	}
	if err := e.checker.HasAdminAccess(ctx, authz.ItemTask, identity, p.ID); err != nil {
		return err
	}
	return e.reviews.SetMetaStatus(ctx, rv.ID, status, identity.ID)
}

// ClearReviewRequest marks a review Unnecessary without deleting its
// history, used when a project manager decides a task never needed review
// (e.g. the challenge's review setting changed after the task completed).
func (e *Engine) ClearReviewRequest(ctx context.Context, identity authz.Identity, taskID int64) error {
	rv, err := e.reviews.ByTaskID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := e.requireRequesterOrAdmin(ctx, identity, taskID, rv); err != nil {
		return err
	}
	return e.reviews.SetStatus(ctx, rv.ID, store.ReviewStatusUnnecessary, identity.ID, "")
}

func (e *Engine) requireRequesterOrAdmin(ctx context.Context, identity authz.Identity, taskID int64, rv store.TaskReview) error {
	if identity.Superuser || rv.RequestedBy == identity.ID {
		return nil
	}
	_, _, p, err := e.projectOf(ctx, taskID)
	if err != nil {
		return err
	}
	return e.checker.HasAdminAccess(ctx, authz.ItemTask, identity, p.ID)
}
