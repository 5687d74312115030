// Package grid infers the logical row/column structure of a sparse set of
// tile candidates and synthesizes the rectangles the segmenter missed:
// gaps inside the grid and positions extending to the capture boundary.
// Every synthesized rectangle is verified against local image structure
// before it is accepted.
package grid

import "sort"

// Axis is the inferred grid structure along one dimension: the ordered
// cluster-representative coordinates, the median spacing between them, and
// the median candidate size along that axis. Derived per detection pass
// and never persisted.
type Axis struct {
	Coords      []float64
	Spacing     float64
	ElementSize float64
}

// buildAxis clusters candidate center coordinates along one axis and
// derives the spacing. eps is elementSize/20: tight enough to separate
// true grid columns or rows, loose enough to merge near-duplicate
// detections of the same one.
func buildAxis(centers []float64, elementSize float64) Axis {
	eps := elementSize / 20
	coords := clusterMeans(centers, eps)
	sort.Float64s(coords)

	a := Axis{Coords: coords, ElementSize: elementSize}
	if len(coords) < 2 {
		// A single row or column gives no delta to measure; assume element
		// size plus a 10% margin.
		a.Spacing = elementSize * 1.1
		return a
	}
	deltas := make([]float64, len(coords)-1)
	for i := 1; i < len(coords); i++ {
		deltas[i-1] = coords[i] - coords[i-1]
	}
	a.Spacing = median(deltas)
	return a
}

// fillGaps inserts evenly-spaced coordinates wherever a consecutive delta
// exceeds gapFactor times the spacing.
func (a *Axis) fillGaps(gapFactor float64) {
	if len(a.Coords) < 2 || a.Spacing <= 0 {
		return
	}
	var filled []float64
	for i, c := range a.Coords {
		if i > 0 {
			gap := c - a.Coords[i-1]
			if gap > gapFactor*a.Spacing {
				n := int(gap/a.Spacing+0.5) - 1
				step := gap / float64(n+1)
				for k := 1; k <= n; k++ {
					filled = append(filled, a.Coords[i-1]+float64(k)*step)
				}
			}
		}
		filled = append(filled, c)
	}
	a.Coords = filled
}

// extend walks the axis outward one spacing step at a time, in both
// directions, as long as at least a third of the element size still fits
// inside [boundMin, boundMax).
func (a *Axis) extend(boundMin, boundMax float64) {
	if len(a.Coords) == 0 || a.Spacing <= 0 {
		return
	}
	fits := func(center float64) bool {
		lo := center - a.ElementSize/2
		hi := center + a.ElementSize/2
		if lo < boundMin {
			lo = boundMin
		}
		if hi > boundMax {
			hi = boundMax
		}
		return hi-lo >= a.ElementSize/3
	}
	for {
		next := a.Coords[len(a.Coords)-1] + a.Spacing
		if !fits(next) {
			break
		}
		a.Coords = append(a.Coords, next)
	}
	for {
		prev := a.Coords[0] - a.Spacing
		if !fits(prev) {
			break
		}
		a.Coords = append([]float64{prev}, a.Coords...)
	}
}
