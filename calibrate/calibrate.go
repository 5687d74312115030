// Package calibrate reconciles two observations of the same tiles: the
// rectangles the pixel segmenter found in screen space (ground truth) and
// the structural descriptors extracted from page markup in the page-local
// coordinate space. The two spaces are related by a single zoom factor and
// a 2-D offset, never independent stretch, so the result is a
// uniform-scale affine transform.
package calibrate

import (
	"sort"

	"github.com/hazyhaar/tilescan/tile"
)

// maxPairs bounds how many positionally-paired samples feed the scale
// estimate. A handful of well-matched pairs beats a long tail of
// mismatches from the naive positional sort.
const maxPairs = 5

// Calibrate computes the transform mapping local descriptor coordinates to
// screen coordinates.
//
// Both sides are sorted independently and paired element-wise, which
// assumes they enumerate tiles in the same visual order. That assumption
// is not verified: when it fails the calibration is silently wrong. The
// robust alternative (bipartite matching on position similarity) changes
// behavior and is deliberately not implemented here.
//
// Calibration degrades instead of failing: with fewer than two pairs the
// scale stays 1 and the offset comes from the single available pair, or
// the caller-supplied fallback when there are no pairs at all.
func Calibrate(screen []tile.Rect, local []tile.Descriptor, fallback tile.Transform) tile.Transform {
	if len(screen) == 0 || len(local) == 0 {
		return fallback
	}

	sortedScreen := make([]tile.Rect, len(screen))
	copy(sortedScreen, screen)
	sort.Slice(sortedScreen, func(i, j int) bool {
		if sortedScreen[i].X != sortedScreen[j].X {
			return sortedScreen[i].X < sortedScreen[j].X
		}
		return sortedScreen[i].Y < sortedScreen[j].Y
	})

	sortedLocal := make([]tile.Descriptor, len(local))
	copy(sortedLocal, local)
	sort.Slice(sortedLocal, func(i, j int) bool {
		if sortedLocal[i].Left != sortedLocal[j].Left {
			return sortedLocal[i].Left < sortedLocal[j].Left
		}
		return sortedLocal[i].Top < sortedLocal[j].Top
	})

	pairs := min(len(sortedScreen), len(sortedLocal))
	if pairs < 2 {
		r := sortedScreen[0]
		d := sortedLocal[0]
		return tile.Transform{
			OffsetX: float64(r.X - d.Left),
			OffsetY: float64(r.Y - d.Top),
			ScaleX:  1,
			ScaleY:  1,
		}
	}

	// Median of per-pair width ratios: robust to the occasional mismatched
	// pair from the positional sort.
	var scales []float64
	for i := 0; i < min(pairs, maxPairs); i++ {
		if sortedLocal[i].Width <= 0 {
			continue
		}
		scales = append(scales, float64(sortedScreen[i].W)/float64(sortedLocal[i].Width))
	}
	if len(scales) == 0 {
		return fallback
	}
	scale := median(scales)

	// Solve the offset at the topmost-leftmost anchor pair:
	// offset = screen - local*scale. The anchor is chosen on the descriptor
	// side and resolved to its paired screen rect; picking each side's
	// minimum independently can anchor on two rects that were never a pair
	// when one side has extra, unpaired elements.
	anchor := 0
	for i := 1; i < pairs; i++ {
		d, best := sortedLocal[i], sortedLocal[anchor]
		if d.Top < best.Top || (d.Top == best.Top && d.Left < best.Left) {
			anchor = i
		}
	}

	return tile.Transform{
		OffsetX: float64(sortedScreen[anchor].X) - float64(sortedLocal[anchor].Left)*scale,
		OffsetY: float64(sortedScreen[anchor].Y) - float64(sortedLocal[anchor].Top)*scale,
		ScaleX:  scale,
		ScaleY:  scale,
	}
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
