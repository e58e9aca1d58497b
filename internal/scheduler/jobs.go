package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/maproulette/backend/internal/cache"
	"github.com/maproulette/backend/internal/store"
)

// EmailResolver maps a user id to the address digest mail should go to.
// Email addresses aren't persisted locally (accounts are OSM identities);
// callers typically back this with an OSM profile lookup or a static map
// during tests.
type EmailResolver func(ctx context.Context, userID int64) (string, error)

// Sweeper is the subset of cache.Cache[V] the cache sweep job needs; kept as
// an interface since Cache is generic per aggregate type and the job sweeps
// several concrete instantiations.
type Sweeper interface{ Sweep() int }

// Jobs holds every repository and collaborator the six periodic jobs need.
// Each exported method is a Job suitable for Scheduler.Register.
type Jobs struct {
	Locks         *store.LockRepository
	Challenges    *store.ChallengeRepository
	Notifications *store.NotificationRepository
	Caches        []Sweeper
	OSMCache      *cache.OSMCache
	Mailer        Mailer
	ResolveEmail  EmailResolver
	Logger        *slog.Logger

	LockTTL            time.Duration
	ImmediateBatchSize int
}

func (j *Jobs) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// ExpireLocks removes task locks whose acquired_at is older than the
// configured TTL, per §4.7.
func (j *Jobs) ExpireLocks(ctx context.Context) error {
	ttl := j.LockTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	expired, err := j.Locks.Expired(ctx, ttl)
	if err != nil {
		return err
	}
	for _, l := range expired {
		if err := j.Locks.ForceRelease(ctx, l.TaskID); err != nil {
			return fmt.Errorf("scheduler: expire lock for task %d: %w", l.TaskID, err)
		}
	}
	return nil
}

// RunChallengeSchedules identifies which challenges' refresh cron is due
// right now and logs them. The actual rebuild (re-fetching remote GeoJSON,
// diffing existing tasks) is a separate, asynchronous challenge-build
// pipeline outside the scheduler's scope; this job's contract ends at
// "evaluate", per §4.7's wording.
func (j *Jobs) RunChallengeSchedules(ctx context.Context) error {
	scheduled, err := j.Challenges.Scheduled(ctx)
	if err != nil {
		return err
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	now := time.Now()
	for id, spec := range scheduled {
		sched, err := parser.Parse(spec)
		if err != nil {
			j.logger().Warn("challenge schedule has invalid cron spec", "challenge_id", id, "spec", spec, "error", err)
			continue
		}
		// A schedule is due if its next fire time from one minute ago has
		// already passed, i.e. it would have fired within the last tick.
		if sched.Next(now.Add(-time.Minute)).Before(now) {
			j.logger().Info("challenge schedule due", "challenge_id", id)
		}
	}
	return nil
}

// UpdateLocations recomputes every challenge's bounding box and centroid
// from its tasks' current geometries, per §4.7.
func (j *Jobs) UpdateLocations(ctx context.Context) error {
	ids, err := j.Challenges.AllIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := j.Challenges.RecomputeLocation(ctx, id); err != nil {
			return fmt.Errorf("scheduler: update location for challenge %d: %w", id, err)
		}
	}
	return nil
}

// SendImmediateEmailDigest batches up to the configured batch size of
// pending immediate notifications and dispatches one email per
// notification's recipient, per §4.7.
func (j *Jobs) SendImmediateEmailDigest(ctx context.Context) error {
	batchSize := j.ImmediateBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	pending, err := j.Notifications.PendingImmediate(ctx, batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var sent []int64
	for _, n := range pending {
		addr, err := j.ResolveEmail(ctx, n.UserID)
		if err != nil || addr == "" {
			continue
		}
		if err := j.Mailer.Send(addr, "MapRoulette notification", n.Description); err != nil {
			return fmt.Errorf("scheduler: send immediate digest to user %d: %w", n.UserID, err)
		}
		sent = append(sent, n.ID)
	}
	return j.Notifications.MarkEmailed(ctx, sent)
}

// SendDailyEmailDigest groups pending digest notifications by user and
// dispatches one email per user, per §4.7.
func (j *Jobs) SendDailyEmailDigest(ctx context.Context) error {
	byUser, err := j.Notifications.PendingDigestByUser(ctx)
	if err != nil {
		return err
	}

	for userID, notifications := range byUser {
		addr, err := j.ResolveEmail(ctx, userID)
		if err != nil || addr == "" {
			continue
		}

		var body strings.Builder
		var ids []int64
		for _, n := range notifications {
			body.WriteString(n.Description)
			body.WriteString("\n")
			ids = append(ids, n.ID)
		}

		if err := j.Mailer.Send(addr, "MapRoulette daily digest", body.String()); err != nil {
			return fmt.Errorf("scheduler: send daily digest to user %d: %w", userID, err)
		}
		if err := j.Notifications.MarkEmailed(ctx, ids); err != nil {
			return err
		}
	}
	return nil
}

// SweepExpiredCache walks the in-process cache roots, evicting expired
// entries, per §4.7.
func (j *Jobs) SweepExpiredCache(ctx context.Context) error {
	for _, c := range j.Caches {
		c.Sweep()
	}
	if j.OSMCache != nil {
		j.OSMCache.Sweep()
	}
	return nil
}
