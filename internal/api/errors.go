package api

import (
	"encoding/json"
	"net/http"

	"github.com/maproulette/backend/internal/apperr"
)

// statusForKind is the only place in the backend that turns an apperr.Kind
// into an HTTP status code, per §7: domain code deals in Kind, HTTP
// controllers translate it at the boundary.
func statusForKind(k apperr.Kind) int {
	switch k {
	case apperr.Invalid:
		return http.StatusBadRequest
	case apperr.NotAuthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeAppError maps err through apperr.KindOf and writes the matching
// JSON error body. A nil err is a programmer mistake; callers only reach
// here after checking err != nil.
func writeAppError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	if ae, ok := err.(*apperr.Error); ok {
		body.Field = ae.Field
	}
	writeJSON(w, statusForKind(apperr.KindOf(err)), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalidf("body", "malformed request body: %v", err)
	}
	return nil
}
