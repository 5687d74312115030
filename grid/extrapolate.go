package grid

import (
	"image"
	"math"

	"github.com/hazyhaar/tilescan/tile"
)

// Config tunes grid inference. The zero value is usable after defaults().
type Config struct {
	// GapFactor is the multiple of the median spacing beyond which a
	// consecutive axis delta is treated as a gap to fill.
	GapFactor float64 `yaml:"gap_factor"`

	// MaxOverlap is the largest fraction of a synthesized rectangle's own
	// area allowed to overlap an existing candidate before the synthesized
	// rectangle is dropped as a duplicate.
	MaxOverlap float64 `yaml:"max_overlap"`
}

func (c *Config) defaults() {
	if c.GapFactor == 0 {
		c.GapFactor = 1.4
	}
	if c.MaxOverlap == 0 {
		c.MaxOverlap = 0.3
	}
}

// Extrapolator densifies a sparse candidate set into a complete grid.
type Extrapolator struct {
	cfg    Config
	verify Verifier
}

// New creates an Extrapolator. The verifier vets every synthesized
// rectangle against the raw capture; pass a stub in tests.
func New(cfg Config, v Verifier) *Extrapolator {
	cfg.defaults()
	return &Extrapolator{cfg: cfg, verify: v}
}

// Extrapolate infers the row/column grid from the candidates, fills gaps,
// extends the grid to the capture boundary, and returns the synthesized
// rectangles that survive duplicate suppression and structural
// verification. Only additional rectangles are returned; the caller unions
// them with the input. Fewer than three candidates cannot define a grid,
// so the result is empty.
func (e *Extrapolator) Extrapolate(img image.Image, bounds image.Rectangle, cands []tile.Candidate) []tile.Rect {
	if len(cands) < 3 {
		return nil
	}

	cxs := make([]float64, len(cands))
	cys := make([]float64, len(cands))
	widths := make([]float64, len(cands))
	heights := make([]float64, len(cands))
	for i, c := range cands {
		cxs[i], cys[i] = c.Center()
		widths[i] = float64(c.W)
		heights[i] = float64(c.H)
	}
	medW := median(widths)
	medH := median(heights)

	xAxis := buildAxis(cxs, medW)
	yAxis := buildAxis(cys, medH)
	xAxis.fillGaps(e.cfg.GapFactor)
	yAxis.fillGaps(e.cfg.GapFactor)
	xAxis.extend(float64(bounds.Min.X), float64(bounds.Max.X))
	yAxis.extend(float64(bounds.Min.Y), float64(bounds.Max.Y))

	rows := observedRows(cands, yAxis, medH)
	tol := math.Min(xAxis.Spacing, yAxis.Spacing) / 4

	var out []tile.Rect
	for _, gy := range yAxis.Coords {
		row := nearestRow(rows, gy)
		for _, gx := range xAxis.Coords {
			if matchedExisting(cands, gx, gy, tol) {
				continue
			}
			r := synthesize(gx, gy, medW, medH, row)
			clipped, ok := r.Clip(bounds.Dx(), bounds.Dy())
			if !ok {
				continue
			}
			if e.overlapsExisting(clipped, cands) {
				continue
			}
			if res := e.verify.Verify(img, clipped); !res.Accepted {
				continue
			}
			out = append(out, clipped)
		}
	}
	return out
}

// rowGeometry is the actual vertical geometry observed for one grid row.
// Rows are allowed height variation; columns are not, so synthesized
// rectangles snap to the nearest row's true top and height rather than a
// generic average.
type rowGeometry struct {
	center float64
	top    int
	height int
}

func observedRows(cands []tile.Candidate, yAxis Axis, medH float64) []rowGeometry {
	var rows []rowGeometry
	tol := medH / 4
	for _, coord := range yAxis.Coords {
		var tops, heights []float64
		for _, c := range cands {
			_, cy := c.Center()
			if math.Abs(cy-coord) <= tol {
				tops = append(tops, float64(c.Y))
				heights = append(heights, float64(c.H))
			}
		}
		if len(tops) == 0 {
			continue
		}
		rows = append(rows, rowGeometry{
			center: coord,
			top:    int(median(tops)),
			height: int(median(heights)),
		})
	}
	return rows
}

func nearestRow(rows []rowGeometry, gy float64) *rowGeometry {
	var best *rowGeometry
	bestDist := math.Inf(1)
	for i := range rows {
		d := math.Abs(rows[i].center - gy)
		if d < bestDist {
			bestDist = d
			best = &rows[i]
		}
	}
	return best
}

func matchedExisting(cands []tile.Candidate, gx, gy, tol float64) bool {
	for _, c := range cands {
		cx, cy := c.Center()
		if math.Abs(cx-gx) <= tol && math.Abs(cy-gy) <= tol {
			return true
		}
	}
	return false
}

// synthesize builds the candidate rectangle for an unmatched grid point.
// Width comes from the median; vertical geometry snaps to the nearest
// observed row when that row actually covers this grid point, otherwise it
// falls back to the median height centered on the grid coordinate.
func synthesize(gx, gy, medW, medH float64, row *rowGeometry) tile.Rect {
	w := int(medW)
	x := int(gx - medW/2)
	if row != nil && math.Abs(row.center-gy) <= medH/4 {
		return tile.Rect{X: x, Y: row.top, W: w, H: row.height}
	}
	return tile.Rect{X: x, Y: int(gy - medH/2), W: w, H: int(medH)}
}

func (e *Extrapolator) overlapsExisting(r tile.Rect, cands []tile.Candidate) bool {
	limit := e.cfg.MaxOverlap * float64(r.Area())
	for _, c := range cands {
		if float64(r.Overlap(c.Rect)) > limit {
			return true
		}
	}
	return false
}
