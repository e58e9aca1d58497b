package review

import (
	"strings"
	"testing"

	"github.com/maproulette/backend/internal/query"
)

func TestBuildFilterReviewRequested(t *testing.T) {
	f, err := BuildFilter(VisibilityParams{
		TaskStatuses:          []int{0, 3},
		ExcludeOtherReviewers: true,
		UserID:                5,
		Set:                   ReviewRequested,
	})
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}

	sql, _ := query.New("SELECT tasks.id FROM tasks JOIN task_review ON task_review.task_id = tasks.id").
		WithFilter(f).Build()

	for _, want := range []string{
		"tasks.status IN ($1,$2)",
		"(task_review.reviewed_by IS NULL OR task_review.reviewed_by = $3)",
		"task_review.review_requested_by <> $4",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("expected SQL to contain %q, got %q", want, sql)
		}
	}
}

func TestBuildFilterReviewedByMe(t *testing.T) {
	f, err := BuildFilter(VisibilityParams{UserID: 7, Set: ReviewedByMe})
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	sql, args := query.New("SELECT 1 FROM task_review").WithFilter(f).Build()
	if !strings.Contains(sql, "task_review.reviewed_by = $1") {
		t.Errorf("expected reviewed_by predicate, got %q", sql)
	}
	if len(args) != 1 || args[0] != int64(7) {
		t.Errorf("expected bound arg [7], got %v", args)
	}
}

func TestVisible(t *testing.T) {
	cases := []struct {
		name                                                                     string
		projectEnabled, challengeEnabled, managesProject, isRequester, isReviewer bool
		want                                                                     bool
	}{
		{"enabled pair visible to anyone", true, true, false, false, false, true},
		{"disabled project hidden by default", false, true, false, false, false, false},
		{"disabled challenge hidden by default", true, false, false, false, false, false},
		{"project manager sees disabled", false, false, true, false, false, true},
		{"requester sees their own disabled review", false, false, false, true, false, true},
		{"reviewer sees assigned disabled review", false, false, false, false, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Visible(tc.projectEnabled, tc.challengeEnabled, tc.managesProject, tc.isRequester, tc.isReviewer)
			if got != tc.want {
				t.Errorf("Visible(...) = %v, want %v", got, tc.want)
			}
		})
	}
}
