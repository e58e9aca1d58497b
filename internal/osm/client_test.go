package osm

import (
	"net/http"
	"strings"
	"testing"

	"github.com/maproulette/backend/internal/apperr"
)

func TestStatusToAppErr(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   apperr.Kind
	}{
		{"ok", http.StatusOK, apperr.Kind(0)},
		{"conflict", http.StatusConflict, apperr.Conflict},
		{"unauthorized", http.StatusUnauthorized, apperr.NotAuthorized},
		{"server error", http.StatusInternalServerError, apperr.Fatal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := statusToAppErr(tc.status, []byte("body"))
			if tc.status >= 200 && tc.status < 300 {
				if err != nil {
					t.Fatalf("statusToAppErr(%d) = %v, want nil", tc.status, err)
				}
				return
			}
			if !apperr.Is(err, tc.want) {
				t.Errorf("statusToAppErr(%d) kind = %v, want %v", tc.status, apperr.KindOf(err), tc.want)
			}
		})
	}
}

func TestCompactTruncatesLongBodies(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = 'x'
	}
	got := compact(body)
	if !strings.HasSuffix(got, "...") {
		t.Error("compact() of a long body should end with an ellipsis")
	}
	if len(got) > 520 {
		t.Errorf("compact() returned %d bytes, want bounded near 512", len(got))
	}
}

func TestCompactLeavesShortBodiesUntouched(t *testing.T) {
	if got := compact([]byte("short")); got != "short" {
		t.Errorf("compact(%q) = %q, want unchanged", "short", got)
	}
}
