package api

import (
	"context"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/authz"
	"github.com/maproulette/backend/internal/osm"
)

// CooperativeSubmitter adapts the OSM changeset pipeline into
// task.CooperativeSubmitter, the interface the task engine schedules a
// cooperative task's pre-computed edit through on completion. It reads the
// submitting user's OSM OAuth token from ctx the same way handleSubmitChange
// does, since the engine itself never sees a bearer token.
type CooperativeSubmitter struct {
	osmClient func(ctx context.Context, token string) (*osm.Client, error)
	submitter *osm.Submitter
}

// NewCooperativeSubmitter builds the task engine's CooperativeSubmitter
// dependency from the same osmClient factory and Submitter the
// changes.go handlers use.
func NewCooperativeSubmitter(osmClient func(ctx context.Context, token string) (*osm.Client, error), submitter *osm.Submitter) *CooperativeSubmitter {
	return &CooperativeSubmitter{osmClient: osmClient, submitter: submitter}
}

func (c *CooperativeSubmitter) Submit(ctx context.Context, identity authz.Identity, taskID int64, comment string, change osm.TagChange) error {
	token := TokenFromContext(ctx)
	if token == "" {
		return apperr.NotAuthorizedf("an OSM OAuth token is required to submit a cooperative edit")
	}
	client, err := c.osmClient(ctx, token)
	if err != nil {
		return err
	}
	_, err = c.submitter.Submit(ctx, client, osm.Submission{TaskID: taskID, Comment: comment, Change: change})
	return err
}
