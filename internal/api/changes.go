package api

import (
	"net/http"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/osm"
)

type tagChangeRequest struct {
	OSMType string            `json:"osmType" validate:"required,oneof=node way relation"`
	OSMID   int64             `json:"osmId" validate:"required"`
	Set     map[string]string `json:"set"`
	Delete  []string          `json:"delete"`
}

// POST /api/v2/changes/tagChange previews a conflation without touching
// OSM: it fetches the element live and reports what Added/Updated/
// Redundant/Deleted/NoopDeletes would result, so a client can show a diff
// before the user commits to /changes/submit.
func (s *Server) handleTagChange(w http.ResponseWriter, r *http.Request) {
	var req tagChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeAppError(w, apperr.Invalidf("body", "%v", err))
		return
	}

	token := TokenFromContext(r.Context())
	if token == "" {
		writeAppError(w, apperr.NotAuthorizedf("an OSM OAuth token is required to preview a tag change"))
		return
	}
	client, err := s.osmClient(r.Context(), token)
	if err != nil {
		writeAppError(w, err)
		return
	}

	doc, err := client.FetchElement(r.Context(), req.OSMType, req.OSMID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	current, version, err := osm.LatestTagsOf(doc, req.OSMType, req.OSMID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	conflation := osm.Conflate(current, version, osm.TagChange{
		OSMType: req.OSMType, OSMID: req.OSMID, Set: req.Set, Delete: req.Delete,
	})
	writeJSON(w, http.StatusOK, conflation)
}

type submitChangeRequest struct {
	TaskID  int64             `json:"taskId" validate:"required"`
	Comment string            `json:"comment" validate:"required"`
	OSMType string            `json:"osmType" validate:"required,oneof=node way relation"`
	OSMID   int64             `json:"osmId" validate:"required"`
	Set     map[string]string `json:"set"`
	Delete  []string          `json:"delete"`
}

// POST /api/v2/changes/submit runs the full four-step OSM submission
// pipeline for one task.
func (s *Server) handleSubmitChange(w http.ResponseWriter, r *http.Request) {
	var req submitChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeAppError(w, apperr.Invalidf("body", "%v", err))
		return
	}

	identity := IdentityFromContext(r.Context())
	token := TokenFromContext(r.Context())
	if identity.IsGuest() || token == "" {
		writeAppError(w, apperr.NotAuthorizedf("guests cannot submit OSM changes"))
		return
	}
	client, err := s.osmClient(r.Context(), token)
	if err != nil {
		writeAppError(w, err)
		return
	}

	result, err := s.submitter.Submit(r.Context(), client, osm.Submission{
		TaskID:  req.TaskID,
		Comment: req.Comment,
		Change: osm.TagChange{
			OSMType: req.OSMType, OSMID: req.OSMID, Set: req.Set, Delete: req.Delete,
		},
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
