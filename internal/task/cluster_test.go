package task

import (
	"testing"

	"github.com/maproulette/backend/internal/store"
)

func TestClusterPointsSingletonWhenBucketsExceedPoints(t *testing.T) {
	centroids := map[int64]store.Point{
		1: {Lon: 0, Lat: 0},
		2: {Lon: 1, Lat: 1},
	}
	clusters := ClusterPoints(centroids, 5)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 singleton clusters, got %d", len(clusters))
	}
	for _, c := range clusters {
		if c.Count != 1 {
			t.Errorf("expected singleton count 1, got %d", c.Count)
		}
	}
}

func TestClusterPointsGroupsNearbyPoints(t *testing.T) {
	centroids := map[int64]store.Point{
		1: {Lon: 0, Lat: 0},
		2: {Lon: 0.001, Lat: 0.001},
		3: {Lon: 10, Lat: 10},
		4: {Lon: 10.001, Lat: 10.001},
	}
	clusters := ClusterPoints(centroids, 2)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}

	total := 0
	for _, c := range clusters {
		total += c.Count
		if c.Count != 2 {
			t.Errorf("expected each cluster to hold 2 nearby points, got %d", c.Count)
		}
	}
	if total != 4 {
		t.Errorf("expected all 4 points accounted for, got %d", total)
	}
}

func TestClusterPointsEmptyInput(t *testing.T) {
	if got := ClusterPoints(nil, 3); got != nil {
		t.Errorf("expected nil for empty centroids, got %v", got)
	}
	if got := ClusterPoints(map[int64]store.Point{1: {}}, 0); got != nil {
		t.Errorf("expected nil for non-positive bucketCount, got %v", got)
	}
}

func TestClusterPointsDeterministic(t *testing.T) {
	centroids := map[int64]store.Point{
		1: {Lon: 0, Lat: 0},
		2: {Lon: 5, Lat: 5},
		3: {Lon: 10, Lat: 0},
	}
	first := ClusterPoints(centroids, 2)
	second := ClusterPoints(centroids, 2)
	if len(first) != len(second) {
		t.Fatalf("expected deterministic cluster count, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Count != second[i].Count {
			t.Errorf("cluster %d count differs between runs: %d vs %d", i, first[i].Count, second[i].Count)
		}
	}
}
