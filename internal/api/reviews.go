package api

import (
	"net/http"

	"github.com/maproulette/backend/internal/review"
)

// POST /api/v2/task/{taskID}/review/request claims the reviewer lease on a
// task already awaiting review; the review request itself is created by
// the task engine when the task is set to Fixed, which is also what
// publishes the review-requested WebSocket event.
func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathInt64(r, "taskID")
	if err != nil {
		writeAppError(w, err)
		return
	}
	identity := IdentityFromContext(r.Context())
	rv, err := s.reviews.StartReview(r.Context(), identity, taskID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

// DELETE /api/v2/task/{taskID}/review/request
func (s *Server) handleCancelReview(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathInt64(r, "taskID")
	if err != nil {
		writeAppError(w, err)
		return
	}
	identity := IdentityFromContext(r.Context())
	if err := s.reviews.CancelReview(r.Context(), identity, taskID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v2/review/next
func (s *Server) handleNextReviewTask(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := review.VisibilityParams{}
	if q.Get("mine") == "true" {
		params.Set = review.ReviewedByMe
	}
	identity := IdentityFromContext(r.Context())
	rv, err := s.reviews.NextReviewTask(r.Context(), identity, params)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

type setReviewStatusRequest struct {
	Comment string `json:"comment"`
}

// PUT /api/v2/task/{taskID}/review/{status}
func (s *Server) handleSetReviewStatus(w http.ResponseWriter, r *http.Request) {
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

	var body setReviewStatusRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeAppError(w, err)
			return
		}
	}

	identity := IdentityFromContext(r.Context())
	rv, err := s.reviews.SetReviewStatus(r.Context(), identity, taskID, newStatus, body.Comment)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}
