package grid

import "sort"

// cluster1D groups values whose consecutive sorted gaps are at most eps.
// This is a density pass with a minimum cluster size of one: every value
// belongs to exactly one cluster.
func cluster1D(values []float64, eps float64) [][]float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var clusters [][]float64
	current := []float64{sorted[0]}
	for _, v := range sorted[1:] {
		if v-current[len(current)-1] <= eps {
			current = append(current, v)
		} else {
			clusters = append(clusters, current)
			current = []float64{v}
		}
	}
	return append(clusters, current)
}

// clusterMeans returns the mean of each cluster as its representative
// coordinate.
func clusterMeans(values []float64, eps float64) []float64 {
	clusters := cluster1D(values, eps)
	out := make([]float64, 0, len(clusters))
	for _, c := range clusters {
		sum := 0.0
		for _, v := range c {
			sum += v
		}
		out = append(out, sum/float64(len(c)))
	}
	return out
}

// median returns the middle value; for even counts, the mean of the two
// middle values. The input is not modified.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
