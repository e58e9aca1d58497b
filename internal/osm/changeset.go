package osm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/cache"
	"github.com/maproulette/backend/internal/store"
)

// Submitter runs the four-step submission protocol: conflate, open, upload,
// close-always. It keeps no shared mutable state beyond the object cache, so
// one Submitter may serve concurrent submissions for different users.
type Submitter struct {
	tasks   *store.TaskRepository
	objects *store.OSMObjectRepository
	cache   *cache.OSMCache
}

func NewSubmitter(tasks *store.TaskRepository, objects *store.OSMObjectRepository, c *cache.OSMCache) *Submitter {
	return &Submitter{tasks: tasks, objects: objects, cache: c}
}

// Submission is one caller's requested edit against a single OSM element.
type Submission struct {
	TaskID  int64
	Comment string
	Change  TagChange
}

// Result records what the pipeline did, for the caller's audit trail.
type Result struct {
	ChangesetID int64
	Conflation  Conflation
	UploadedXML []byte
}

// Submit runs the full protocol for one element against a live client:
// fetch the current version, conflate the requested change, open a
// changeset, upload the conflated edit, and close the changeset
// unconditionally. Retries are the caller's responsibility; this method
// makes exactly one attempt at each step.
func (s *Submitter) Submit(ctx context.Context, client *Client, sub Submission) (Result, error) {
	doc, err := client.FetchElement(ctx, sub.Change.OSMType, sub.Change.OSMID)
	if err != nil {
		return Result{}, err
	}
	current, version, err := LatestTagsOf(doc, sub.Change.OSMType, sub.Change.OSMID)
	if err != nil {
		return Result{}, err
	}

	conflation := Conflate(current, version, sub.Change)
	if !conflation.HasEffect() {
		return Result{Conflation: conflation}, apperr.Invalidf("change", "requested tag change for %s %d has no effect",
			sub.Change.OSMType, sub.Change.OSMID)
	}

	changesetID, err := client.OpenChangeset(ctx, sub.Comment)
	if err != nil {
		return Result{Conflation: conflation}, err
	}

	uploadedXML, uploadErr := s.upload(ctx, client, changesetID, conflation, current, version, sub.Change.OSMType, sub.Change.OSMID)

	if closeErr := client.CloseChangeset(ctx, changesetID); closeErr != nil && uploadErr == nil {
		uploadErr = fmt.Errorf("osm: changeset %d left open: %w", changesetID, closeErr)
	}
	if uploadErr != nil {
		return Result{ChangesetID: changesetID, Conflation: conflation, UploadedXML: uploadedXML}, uploadErr
	}

	if err := s.tasks.SetChangeset(ctx, sub.TaskID, changesetID); err != nil {
		return Result{ChangesetID: changesetID, Conflation: conflation, UploadedXML: uploadedXML}, err
	}

	return Result{ChangesetID: changesetID, Conflation: conflation, UploadedXML: uploadedXML}, nil
}

func (s *Submitter) upload(ctx context.Context, client *Client, changesetID int64, conflation Conflation,
	current map[string]string, version int, osmType string, osmID int64) ([]byte, error) {

	resulting := conflation.ResultingTags(current)
	keys := make([]string, 0, len(resulting))
	for k := range resulting {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node := Node{
		ID:        osmID,
		Version:   version,
		Changeset: changesetID,
		Tags:      TagsFromMap(keys, resulting),
	}

	change := NewOSMChange(nil, []Node{node})
	xmlBody, err := client.UploadChangeset(ctx, changesetID, change)
	if err != nil {
		return xmlBody, err
	}

	tags, err := json.Marshal(resulting)
	if err != nil {
		return xmlBody, fmt.Errorf("osm: marshal resulting tags: %w", err)
	}
	if err := s.objects.Upsert(ctx, store.OSMObject{
		OSMType:     osmType,
		OSMID:       osmID,
		Version:     version + 1,
		ChangesetID: &changesetID,
		Tags:        tags,
	}); err != nil {
		return xmlBody, err
	}

	s.cache.Put(cache.OSMKey{Type: cache.OSMElementType(osmType), ID: osmID}, cache.OSMVersion{
		Version: version + 1,
		Tags:    resulting,
	})

	return xmlBody, nil
}

// LatestTagsOf finds osmType/osmID within doc and returns its current tags
// and version. Exported for the tag-change preview endpoint, which needs
// the same live lookup Submit does but without opening a changeset.
func LatestTagsOf(doc OSMDocument, osmType string, osmID int64) (map[string]string, int, error) {
	switch osmType {
	case "node":
		for _, n := range doc.Nodes {
			if n.ID == osmID {
				return TagMap(n.Tags), n.Version, nil
			}
		}
	case "way":
		for _, w := range doc.Ways {
			if w.ID == osmID {
				return TagMap(w.Tags), w.Version, nil
			}
		}
	case "relation":
		for _, rel := range doc.Relations {
			if rel.ID == osmID {
				return TagMap(rel.Tags), rel.Version, nil
			}
		}
	}
	return nil, 0, apperr.NotFoundf("osm: %s %d not present in fetch response", osmType, osmID)
}

// MaterializeWay resolves a way's node references against a fetched map
// document, returning the nodes it could find in order and the ids it
// could not. A stale task geometry can reference nodes OSM has since
// deleted; the caller decides whether a partial result is still usable
// rather than this function failing outright.
func MaterializeWay(way Way, doc OSMDocument) (nodes []Node, missingNodeIDs []int64) {
	byID := make(map[int64]Node, len(doc.Nodes))
	for _, n := range doc.Nodes {
		byID[n.ID] = n
	}

	nodes = make([]Node, 0, len(way.NodeRefs))
	for _, ref := range way.NodeRefs {
		if n, ok := byID[ref.Ref]; ok {
			nodes = append(nodes, n)
		} else {
			missingNodeIDs = append(missingNodeIDs, ref.Ref)
		}
	}
	return nodes, missingNodeIDs
}
