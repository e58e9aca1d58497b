package task

import "testing"

func TestRankByNameSimilarity(t *testing.T) {
	candidates := []string{"Sidewalk Gaps", "Sidewalks", "Missing Crosswalks", "Sidewalk Gap"}
	ranked := RankByNameSimilarity(candidates, "Sidewalk Gap")

	if ranked[0].Name != "Sidewalk Gap" {
		t.Fatalf("expected exact match first, got %q", ranked[0].Name)
	}
	if ranked[0].Distance != 0 {
		t.Errorf("expected distance 0 for exact match, got %d", ranked[0].Distance)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Distance < ranked[i-1].Distance {
			t.Errorf("expected ascending distance order, index %d (%d) < index %d (%d)",
				i, ranked[i].Distance, i-1, ranked[i-1].Distance)
		}
	}
}

func TestRankByNameSimilarityEmpty(t *testing.T) {
	if got := RankByNameSimilarity(nil, "anything"); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}
