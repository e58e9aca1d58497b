package task

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/authz"
	"github.com/maproulette/backend/internal/cache"
	"github.com/maproulette/backend/internal/osm"
	"github.com/maproulette/backend/internal/query"
	"github.com/maproulette/backend/internal/store"
)

// CooperativeSubmitter schedules a cooperative task's pre-computed OSM edit
// into the changeset pipeline when the task completes. Implementations pull
// whatever per-caller OSM credential they need (an OAuth token) out of ctx
// themselves, since the engine only ever has the domain identity in hand;
// internal/api supplies the concrete implementation, reading the token it
// already attaches to every request's context.
type CooperativeSubmitter interface {
	Submit(ctx context.Context, identity authz.Identity, taskID int64, comment string, change osm.TagChange) error
}

// SelectionStrategy picks among candidate tasks in nextTask.
type SelectionStrategy struct {
	Mode            string // "random", "proximity", "sequential"
	ReferenceTaskID int64
	CurrentTaskID   int64
	Forward         bool
}

// Engine implements the task selection and lifecycle operations.
type Engine struct {
	tasks           *store.TaskRepository
	challenges      *store.ChallengeRepository
	locks           *store.LockRepository
	reviews         *store.TaskReviewRepository
	metrics         *store.UserMetricsRepository
	actions         *store.StatusActionRepository
	checker         *authz.Checker
	onStatusChange  func(taskID, challengeID, userID int64, newStatus int)
	onReviewCreated func(taskID, challengeID, requestedBy int64)
	cooperative     CooperativeSubmitter

	// challengeCache is consulted before every challenges.ByID call this
	// engine makes (requireTaskWriteAccess runs on every write operation,
	// so an uncached lookup would hit the challenges table on every task
	// status change). Nil disables caching.
	challengeCache *cache.Cache[store.Challenge]
}

// NewEngine wires the task engine to its repositories and the authorisation
// checker. onStatusChange, if non-nil, is invoked after a successful status
// transition so callers (e.g. internal/ws) can react without the engine
// depending on them directly; onReviewCreated fires the same way when
// SetStatus auto-creates a review request on a Fixed transition.
// challengeCache may be nil to disable the cache-aside challenge lookup.
// cooperative may be nil, in which case cooperative tasks complete without
// scheduling an OSM submission (no challenge in the deployment uses
// cooperative-type tasks).
func NewEngine(tasks *store.TaskRepository, challenges *store.ChallengeRepository, locks *store.LockRepository,
	reviews *store.TaskReviewRepository, metrics *store.UserMetricsRepository, actions *store.StatusActionRepository,
	checker *authz.Checker, challengeCache *cache.Cache[store.Challenge], cooperative CooperativeSubmitter,
	onStatusChange func(taskID, challengeID, userID int64, newStatus int),
	onReviewCreated func(taskID, challengeID, requestedBy int64)) *Engine {
	return &Engine{tasks: tasks, challenges: challenges, locks: locks, reviews: reviews, metrics: metrics,
		actions: actions, checker: checker, challengeCache: challengeCache, cooperative: cooperative,
		onStatusChange: onStatusChange, onReviewCreated: onReviewCreated}
}

// challengeByID is a cache-aside read over e.challenges.ByID.
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

// requireTaskWriteAccess resolves taskID's owning challenge, checks
// identity holds at least Write on its project, and returns the challenge
// so callers needing it (e.g. SetStatus, for review-enabled/cooperative-type)
// don't look it up twice.
func (e *Engine) requireTaskWriteAccess(ctx context.Context, identity authz.Identity, t store.Task) (store.Challenge, error) {
	ch, err := e.challengeByID(ctx, t.ChallengeID)
	if err != nil {
		return store.Challenge{}, err
	}
	if err := e.checker.HasWriteAccess(ctx, authz.ItemTask, identity, ch.ProjectID, 0); err != nil {
		return store.Challenge{}, err
	}
	return ch, nil
}

// BuildFilter translates SearchParameters into the query builder's Filter,
// the one place the domain's filter vocabulary is lowered to SQL predicates.
func BuildFilter(p SearchParameters) (query.Filter, error) {
	var groups []query.FilterGroup

	if len(p.ProjectIDs) > 0 {
		param, err := query.NewParameter("project_id", query.IN, toAnySlice(p.ProjectIDs))
		if err != nil {
			return query.Filter{}, err
		}
		groups = append(groups, query.NewFilterGroup(query.AND, param))
	}

	if len(p.ChallengeIDs) > 0 {
		param, err := query.NewParameter("challenge_id", query.IN, toAnySlice(p.ChallengeIDs))
		if err != nil {
			return query.Filter{}, err
		}
		param.Negate = p.isInverted("challengeIds")
		groups = append(groups, query.NewFilterGroup(query.AND, param))
	}

	if len(p.Statuses) > 0 {
		param, err := query.NewParameter("status", query.IN, toAnySlice(p.Statuses))
		if err != nil {
			return query.Filter{}, err
		}
		param.Negate = p.isInverted("status")
		groups = append(groups, query.NewFilterGroup(query.AND, param))
	}

	if len(p.Priorities) > 0 {
		param, err := query.NewParameter("priority", query.IN, toAnySlice(p.Priorities))
		if err != nil {
			return query.Filter{}, err
		}
		groups = append(groups, query.NewFilterGroup(query.AND, param))
	}

	if p.Fuzzy != nil && p.Fuzzy.Text != "" {
		pred, err := query.NewFuzzyPredicate("name", p.Fuzzy.Text, p.Fuzzy.Score, p.Fuzzy.Size)
		if err != nil {
			return query.Filter{}, err
		}
		groups = append(groups, query.FilterGroup{Parameters: []query.Predicate{pred}, Join: query.AND, Condition: true})
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

// TaskByID returns a task by id, with no authorisation check beyond what
// the caller already applies; used by callers (e.g. internal/api) that
// need a task's challenge id to route a WebSocket event after a mutation.
func (e *Engine) TaskByID(ctx context.Context, id int64) (store.Task, error) {
	return e.tasks.ByID(ctx, id)
}

// NextTask selects a task for user matching params under strategy. It
// returns apperr.NotFound (wrapped as "no task available") when the
// candidate set is empty.
func (e *Engine) NextTask(ctx context.Context, identity authz.Identity, params SearchParameters, strategy SelectionStrategy, excludeLocked bool) (store.Task, error) {
	filter, err := BuildFilter(params)
	if err != nil {
		return store.Task{}, err
	}

	switch strategy.Mode {
	case "proximity":
		ref, err := e.tasks.ByID(ctx, strategy.ReferenceTaskID)
		if err != nil {
			return store.Task{}, err
		}
		if ref.Centroid == nil {
			return store.Task{}, apperr.Invalidf("referenceTaskId", "reference task has no centroid")
		}
		ids, err := e.tasks.NearestAvailable(ctx, ref.ChallengeID, *ref.Centroid, 1)
		if err != nil {
			return store.Task{}, err
		}
		if len(ids) == 0 {
			return store.Task{}, apperr.NotFoundf("no task available")
		}
		return e.tasks.ByID(ctx, ids[0])

	case "sequential":
		return e.sequentialNext(ctx, strategy, filter)

	default: // random
		candidates, err := e.tasks.Find(ctx, filter, query.NewOrder(query.OrderField{Name: "id", IsColumn: true}), 0, 0)
		if err != nil {
			return store.Task{}, err
		}
		candidates = e.filterLocked(ctx, candidates, excludeLocked)
		if len(candidates) == 0 {
			return store.Task{}, apperr.NotFoundf("no task available")
		}
		idx, err := randomIndex(len(candidates))
		if err != nil {
			return store.Task{}, err
		}
		return candidates[idx], nil
	}
}

func (e *Engine) sequentialNext(ctx context.Context, strategy SelectionStrategy, filter query.Filter) (store.Task, error) {
	order := query.NewOrder(query.OrderField{Name: "id", IsColumn: true, Direction: query.ASC})
	candidates, err := e.tasks.Find(ctx, filter, order, 0, 0)
	if err != nil {
		return store.Task{}, err
	}
	if len(candidates) == 0 {
		return store.Task{}, apperr.NotFoundf("no task available")
	}

	idx := -1
	for i, t := range candidates {
		if t.ID == strategy.CurrentTaskID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return candidates[0], nil
	}

	if strategy.Forward {
		return candidates[(idx+1)%len(candidates)], nil
	}
	return candidates[(idx-1+len(candidates))%len(candidates)], nil
}

func (e *Engine) filterLocked(ctx context.Context, candidates []store.Task, excludeLocked bool) []store.Task {
	if !excludeLocked {
		return candidates
	}
	out := candidates[:0]
	for _, t := range candidates {
		if _, locked, err := e.locks.ByTaskID(ctx, t.ID); err == nil && !locked {
			out = append(out, t)
		}
	}
	return out
}

func randomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, apperr.NotFoundf("no task available")
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, apperr.Fatalf(err, "failed to generate random index")
	}
	v := binary.BigEndian.Uint64(buf[:])
	return int(v % uint64(n)), nil
}

// StartTask acquires a lease on behalf of user.
func (e *Engine) StartTask(ctx context.Context, identity authz.Identity, taskID int64) (store.Lock, error) {
	if identity.IsGuest() {
		return store.Lock{}, apperr.NotAuthorizedf("guests cannot start tasks")
	}
	t, err := e.tasks.ByID(ctx, taskID)
	if err != nil {
		return store.Lock{}, err
	}
	if _, err := e.requireTaskWriteAccess(ctx, identity, t); err != nil {
		return store.Lock{}, err
	}
	if err := e.locks.Acquire(ctx, taskID, identity.ID); err != nil {
		return store.Lock{}, err
	}
	lock, _, err := e.locks.ByTaskID(ctx, taskID)
	return lock, err
}

// ReleaseTask releases a lease, idempotent per the spec.
func (e *Engine) ReleaseTask(ctx context.Context, identity authz.Identity, taskID int64) error {
	err := e.locks.Release(ctx, taskID, identity.ID)
	if apperr.Is(err, apperr.Forbidden) {
		return nil
	}
	return err
}

// SetStatus validates and applies a status transition, updates scoring,
// records the audit action, schedules any cooperative-work payload into the
// changeset pipeline, mirrors the transition across a task's bundle unless
// decoupled, and clears the lock.
//
// The caller must hold the task's lease: a non-superuser who doesn't fails
// with apperr.Conflict (NotLocked), matching the AlreadyLocked failure
// startTask already returns for lock contention.
func (e *Engine) SetStatus(ctx context.Context, identity authz.Identity, taskID int64, newStatus int, timeSpentMS *int64, bundled bool) (store.Task, error) {
	t, err := e.tasks.ByID(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	ch, err := e.requireTaskWriteAccess(ctx, identity, t)
	if err != nil {
		return store.Task{}, err
	}

	if !identity.Superuser {
		lock, held, err := e.locks.ByTaskID(ctx, taskID)
		if err != nil {
			return store.Task{}, err
		}
		if !held || lock.UserID != identity.ID {
			return store.Task{}, apperr.Conflictf("task %d is not locked by user %d", taskID, identity.ID)
		}
	}

	if !IsLegalTransition(t.Status, newStatus, identity.Superuser) {
		return store.Task{}, apperr.Invalidf("status", "illegal transition from %d to %d", t.Status, newStatus)
	}

	if err := e.applyStatus(ctx, identity, t, newStatus, timeSpentMS, ch); err != nil {
		return store.Task{}, err
	}

	if t.BundleID != nil && bundled {
		e.mirrorToBundle(ctx, identity, t, newStatus, timeSpentMS, ch)
	}

	if newStatus == store.StatusFixed && ch.CooperativeType != "" && len(t.CooperativeWork) > 0 {
		if err := e.scheduleCooperativeWork(ctx, identity, t); err != nil {
			return e.tasks.ByID(ctx, taskID)
		}
	}

	return e.tasks.ByID(ctx, taskID)
}

// applyStatus persists a single task's transition: status row, scoring,
// audit action, review request creation/clearing, lock release, and the
// onStatusChange notification. Used for both the primary task SetStatus
// validates and, via mirrorToBundle, for sibling tasks whose transition was
// already validated through the primary.
func (e *Engine) applyStatus(ctx context.Context, identity authz.Identity, t store.Task, newStatus int, timeSpentMS *int64, ch store.Challenge) error {
	oldStatus := t.Status
	var completedBy *int64
	if !identity.IsGuest() {
		completedBy = &identity.ID
	}
	if err := e.tasks.SetStatus(ctx, t.ID, newStatus, completedBy, timeSpentMS); err != nil {
		return err
	}

	spent := int64(0)
	if timeSpentMS != nil {
		spent = *timeSpentMS
	}
	if !identity.IsGuest() {
		if err := e.metrics.IncrementCompletion(ctx, identity.ID, newStatus, spent); err != nil {
			return err
		}
		if delta := rollbackThenApply(oldStatus, newStatus); delta != 0 {
			if err := e.metrics.AdjustScore(ctx, identity.ID, delta); err != nil {
				return err
			}
		}
	}

	if err := e.actions.Record(ctx, store.StatusAction{
		TaskID: t.ID, ChallengeID: t.ChallengeID, UserID: identity.ID,
		OldStatus: oldStatus, NewStatus: newStatus,
	}); err != nil {
		return err
	}

	if newStatus == store.StatusFixed {
		if ch.ReviewEnabled {
			if _, err := e.reviews.RequestReview(ctx, t.ID, identity.ID); err != nil {
				return err
			}
			if e.onReviewCreated != nil {
				e.onReviewCreated(t.ID, t.ChallengeID, identity.ID)
			}
		}
	} else {
		_ = e.reviews.ClearRequest(ctx, t.ID)
	}

	_ = e.locks.Release(ctx, t.ID, identity.ID)

	if e.onStatusChange != nil {
		e.onStatusChange(t.ID, t.ChallengeID, identity.ID, newStatus)
	}
	return nil
}

// mirrorToBundle applies newStatus to every other task sharing primary's
// bundle, per the invariant that a bundle's primary status change propagates
// to its members unless the caller explicitly decouples it. Mirrored
// members skip their own transition-table check: the primary's transition
// already validated the move, and a bundle member may sit at a different
// source status than the primary. Best-effort: a sibling update failure is
// discarded and does not fail the primary's already-committed transition.
func (e *Engine) mirrorToBundle(ctx context.Context, identity authz.Identity, primary store.Task, newStatus int, timeSpentMS *int64, ch store.Challenge) {
	siblings, err := e.tasks.ByBundleID(ctx, *primary.BundleID)
	if err != nil {
		return
	}
	for _, sibling := range siblings {
		if sibling.ID == primary.ID {
			continue
		}
		_ = e.applyStatus(ctx, identity, sibling, newStatus, timeSpentMS, ch)
	}
}

// scheduleCooperativeWork submits a Fixed cooperative task's pre-computed
// edit through the changeset pipeline. On failure the task is rolled back
// to Created, per the "status updates in a cooperative challenge that fail
// the OSM submission are rolled back" failure semantics, and the caller is
// notified over onStatusChange the same way any other status change is.
func (e *Engine) scheduleCooperativeWork(ctx context.Context, identity authz.Identity, t store.Task) error {
	if e.cooperative == nil {
		return nil
	}
	var change osm.TagChange
	if err := json.Unmarshal(t.CooperativeWork, &change); err != nil {
		return apperr.Invalidf("cooperativeWork", "task %d has malformed cooperative-work payload: %v", t.ID, err)
	}

	submitErr := e.cooperative.Submit(ctx, identity, t.ID, "cooperative edit via MapRoulette", change)
	if submitErr == nil {
		return nil
	}

	if err := e.tasks.SetStatus(ctx, t.ID, store.StatusCreated, nil, nil); err != nil {
		return err
	}
	if e.onStatusChange != nil {
		e.onStatusChange(t.ID, t.ChallengeID, identity.ID, store.StatusCreated)
	}
	return submitErr
}

// UpdateCompletionResponses overwrites a task's free-form completion
// responses. It requires a currently-held lease (or superuser).
func (e *Engine) UpdateCompletionResponses(ctx context.Context, identity authz.Identity, taskID int64, responses json.RawMessage) error {
	t, err := e.tasks.ByID(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := e.requireTaskWriteAccess(ctx, identity, t); err != nil {
		return err
	}
	if !identity.Superuser {
		lock, held, err := e.locks.ByTaskID(ctx, taskID)
		if err != nil {
			return err
		}
		if !held || lock.UserID != identity.ID {
			return apperr.Forbiddenf("task %d has no active lease for user %d", taskID, identity.ID)
		}
	}
	return e.tasks.UpdateResponses(ctx, taskID, responses)
}

// ClusterTasks computes up to bucketCount k-means clusters over tasks
// matching params.
func (e *Engine) ClusterTasks(ctx context.Context, params SearchParameters, bucketCount int) ([]Cluster, error) {
	filter, err := BuildFilter(params)
	if err != nil {
		return nil, err
	}
	tasks, err := e.tasks.Find(ctx, filter, query.Order{}, 0, 0)
	if err != nil {
		return nil, err
	}

	centroids := make(map[int64]store.Point, len(tasks))
	for _, t := range tasks {
		if t.Centroid != nil {
			centroids[t.ID] = *t.Centroid
		}
	}
	return ClusterPoints(centroids, bucketCount), nil
}

// DistanceMeters computes true great-circle distance between two points
// (the repository-level NearestAvailable uses PostGIS's planar <-> operator
// for speed; this is for client-facing distance display, e.g. an API handler
// annotating how far a proximity-selected task sits from the reference task).
func DistanceMeters(a, b store.Point) float64 {
	return geo.Distance(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
}
