package review

import (
	"testing"

	"github.com/maproulette/backend/internal/store"
)

func TestIsLegalTransition(t *testing.T) {
	cases := []struct {
		name     string
		from, to int
		want     bool
	}{
		{"requested to approved", store.ReviewStatusRequested, store.ReviewStatusApproved, true},
		{"requested to rejected", store.ReviewStatusRequested, store.ReviewStatusRejected, true},
		{"requested to assisted", store.ReviewStatusRequested, store.ReviewStatusAssisted, true},
		{"requested to unnecessary", store.ReviewStatusRequested, store.ReviewStatusUnnecessary, true},
		{"requested to disputed illegal", store.ReviewStatusRequested, store.ReviewStatusDisputed, false},
		{"rejected to requested", store.ReviewStatusRejected, store.ReviewStatusRequested, true},
		{"rejected to disputed", store.ReviewStatusRejected, store.ReviewStatusDisputed, true},
		{"rejected to approved illegal", store.ReviewStatusRejected, store.ReviewStatusApproved, false},
		{"approved to disputed", store.ReviewStatusApproved, store.ReviewStatusDisputed, true},
		{"approved to rejected illegal", store.ReviewStatusApproved, store.ReviewStatusRejected, false},
		{"disputed to approved", store.ReviewStatusDisputed, store.ReviewStatusApproved, true},
		{"disputed to rejected", store.ReviewStatusDisputed, store.ReviewStatusRejected, true},
		{"unnecessary terminal", store.ReviewStatusUnnecessary, store.ReviewStatusRequested, false},
		{"same status illegal", store.ReviewStatusApproved, store.ReviewStatusApproved, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsLegalTransition(tc.from, tc.to); got != tc.want {
				t.Errorf("IsLegalTransition(%d, %d) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}
