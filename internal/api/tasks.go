package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maproulette/backend/internal/apperr"
	"github.com/maproulette/backend/internal/store"
	"github.com/maproulette/backend/internal/task"
	"github.com/maproulette/backend/internal/ws"
)

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Invalidf(name, "%q is not a valid id", raw)
	}
	return id, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	id, err := pathInt64(r, name)
	return int(id), err
}

// GET /api/v2/challenge/{challengeID}/task/next
func (s *Server) handleNextTask(w http.ResponseWriter, r *http.Request) {
	challengeID, err := pathInt64(r, "challengeID")
	if err != nil {
		writeAppError(w, err)
		return
	}

	q := r.URL.Query()
	params := task.SearchParameters{ChallengeIDs: []int64{challengeID}}
	strategy := task.SelectionStrategy{Mode: q.Get("sort")}
	if strategy.Mode == "" {
		strategy.Mode = "random"
	}
	excludeLocked := q.Get("excludeLocked") != "false"

	identity := IdentityFromContext(r.Context())
	t, err := s.tasks.NextTask(r.Context(), identity, params, strategy, excludeLocked)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// PUT /api/v2/task/{taskID}/start
func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathInt64(r, "taskID")
	if err != nil {
		writeAppError(w, err)
		return
	}
	identity := IdentityFromContext(r.Context())
	lock, err := s.tasks.StartTask(r.Context(), identity, taskID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if s.hub != nil {
		if t, tErr := s.lookupTask(r, taskID); tErr == nil {
			ws.PublishTaskClaimed(s.hub, taskID, t.ChallengeID, identity.ID)
		}
	}
	writeJSON(w, http.StatusOK, lock)
}

// PUT /api/v2/task/{taskID}/release
func (s *Server) handleReleaseTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathInt64(r, "taskID")
	if err != nil {
		writeAppError(w, err)
		return
	}
	identity := IdentityFromContext(r.Context())

	var challengeID int64
	if t, tErr := s.lookupTask(r, taskID); tErr == nil {
		challengeID = t.ChallengeID
	}

	if err := s.tasks.ReleaseTask(r.Context(), identity, taskID); err != nil {
		writeAppError(w, err)
		return
	}
	if s.hub != nil {
		ws.PublishTaskReleased(s.hub, taskID, challengeID, identity.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

type setStatusRequest struct {
	TimeSpentMS *int64 `json:"timeSpentMs"`
	// Bundled mirrors this status change to the task's bundle members when
	// true or absent; the caller must opt out explicitly to decouple them.
	Bundled *bool `json:"bundled"`
}

// PUT /api/v2/task/{taskID}/status/{status}
func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathInt64(r, "taskID")
	if err != nil {
		writeAppError(w, err)
		return
	}
	newStatus, err := pathInt(r, "status")
	if err != nil {
		writeAppError(w, err)
		return
	}

	var body setStatusRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeAppError(w, err)
			return
		}
	}
	bundled := body.Bundled == nil || *body.Bundled

	identity := IdentityFromContext(r.Context())
	t, err := s.tasks.SetStatus(r.Context(), identity, taskID, newStatus, body.TimeSpentMS, bundled)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) lookupTask(r *http.Request, taskID int64) (store.Task, error) {
	return s.tasks.TaskByID(r.Context(), taskID)
}
