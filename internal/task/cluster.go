package task

import (
	"math"
	"sort"

	"github.com/maproulette/backend/internal/store"
)

// Cluster is one k-means bucket of task centroids, for map preview drill-in.
type Cluster struct {
	Count       int
	Point       store.Point
	Bounding    store.BoundingBox
	TaskIDs     []int64
}

const (
	maxKMeansIterations = 25
	kMeansConvergenceEpsilon = 1e-9
)

// ClusterPoints runs a deterministic k-means over centroids keyed by task id,
// returning up to bucketCount clusters. Centroids are seeded by taking every
// len(centroids)/bucketCount'th point in map-iteration order made stable by
// first sorting ids, so repeated calls against the same input are reproducible.
func ClusterPoints(centroids map[int64]store.Point, bucketCount int) []Cluster {
	if bucketCount <= 0 || len(centroids) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(centroids))
	for id := range centroids {
		ids = append(ids, id)
	}
	sortInt64s(ids)

	if bucketCount >= len(ids) {
		return singletonClusters(ids, centroids)
	}

	means := seedMeans(ids, centroids, bucketCount)
	assignment := make(map[int64]int, len(ids))

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for _, id := range ids {
			p := centroids[id]
			best, bestDist := 0, math.MaxFloat64
			for k, m := range means {
				d := squaredDistance(p, m)
				if d < bestDist {
					best, bestDist = k, d
				}
			}
			if assignment[id] != best {
				assignment[id] = best
				changed = true
			}
		}

		newMeans := recomputeMeans(ids, centroids, assignment, bucketCount, means)
		moved := 0.0
		for k := range means {
			moved += squaredDistance(means[k], newMeans[k])
		}
		means = newMeans

		if !changed && moved < kMeansConvergenceEpsilon {
			break
		}
	}

	return buildClusters(ids, centroids, assignment, bucketCount)
}

func singletonClusters(ids []int64, centroids map[int64]store.Point) []Cluster {
	out := make([]Cluster, 0, len(ids))
	for _, id := range ids {
		p := centroids[id]
		out = append(out, Cluster{
			Count:   1,
			Point:   p,
			Bounding: store.BoundingBox{MinLon: p.Lon, MinLat: p.Lat, MaxLon: p.Lon, MaxLat: p.Lat},
			TaskIDs: []int64{id},
		})
	}
	return out
}

func seedMeans(ids []int64, centroids map[int64]store.Point, k int) []store.Point {
	means := make([]store.Point, k)
	step := float64(len(ids)) / float64(k)
	for i := 0; i < k; i++ {
		idx := int(float64(i) * step)
		if idx >= len(ids) {
			idx = len(ids) - 1
		}
		means[i] = centroids[ids[idx]]
	}
	return means
}

func recomputeMeans(ids []int64, centroids map[int64]store.Point, assignment map[int64]int, k int, fallback []store.Point) []store.Point {
	sumLon := make([]float64, k)
	sumLat := make([]float64, k)
	count := make([]int, k)

	for _, id := range ids {
		c := assignment[id]
		p := centroids[id]
		sumLon[c] += p.Lon
		sumLat[c] += p.Lat
		count[c]++
	}

	means := make([]store.Point, k)
	for i := 0; i < k; i++ {
		if count[i] == 0 {
			means[i] = fallback[i]
			continue
		}
		means[i] = store.Point{Lon: sumLon[i] / float64(count[i]), Lat: sumLat[i] / float64(count[i])}
	}
	return means
}

func buildClusters(ids []int64, centroids map[int64]store.Point, assignment map[int64]int, k int) []Cluster {
	clusters := make([]Cluster, k)
	for i := range clusters {
		clusters[i].Bounding = store.BoundingBox{MinLon: math.MaxFloat64, MinLat: math.MaxFloat64, MaxLon: -math.MaxFloat64, MaxLat: -math.MaxFloat64}
	}

	for _, id := range ids {
		c := assignment[id]
		p := centroids[id]
		cl := &clusters[c]
		cl.Count++
		cl.TaskIDs = append(cl.TaskIDs, id)
		cl.Bounding.MinLon = math.Min(cl.Bounding.MinLon, p.Lon)
		cl.Bounding.MinLat = math.Min(cl.Bounding.MinLat, p.Lat)
		cl.Bounding.MaxLon = math.Max(cl.Bounding.MaxLon, p.Lon)
		cl.Bounding.MaxLat = math.Max(cl.Bounding.MaxLat, p.Lat)
	}

	out := make([]Cluster, 0, k)
	for i, cl := range clusters {
		if cl.Count == 0 {
			continue
		}
		cl.Point = store.Point{
			Lon: (cl.Bounding.MinLon + cl.Bounding.MaxLon) / 2,
			Lat: (cl.Bounding.MinLat + cl.Bounding.MaxLat) / 2,
		}
		clusters[i] = cl
		out = append(out, cl)
	}
	return out
}

func squaredDistance(a, b store.Point) float64 {
	dLon := a.Lon - b.Lon
	dLat := a.Lat - b.Lat
	return dLon*dLon + dLat*dLat
}

func sortInt64s(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
