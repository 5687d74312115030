// Package tile defines the shared data model for tile detection: screen
// rectangles, detection candidates, structural descriptors extracted from
// page markup, and the calibration transform that maps page-local
// coordinates to screen coordinates.
package tile

// Rect is an axis-aligned rectangle in pixel coordinates. Width and height
// are always positive for accepted rectangles; coordinates may be negative
// transiently during calibration math.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"width"`
	H int `json:"height"`
}

// Area returns the rectangle area in square pixels.
func (r Rect) Area() int { return r.W * r.H }

// Aspect returns width/height, or 0 when the height is zero.
func (r Rect) Aspect() float64 {
	if r.H == 0 {
		return 0
	}
	return float64(r.W) / float64(r.H)
}

// Center returns the rectangle center.
func (r Rect) Center() (cx, cy float64) {
	return float64(r.X) + float64(r.W)/2, float64(r.Y) + float64(r.H)/2
}

// Intersect returns the intersection of two rectangles. The zero Rect is
// returned when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.W, o.X+o.W)
	y2 := min(r.Y+r.H, o.Y+o.H)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Overlap returns the intersection area with o in square pixels.
func (r Rect) Overlap(o Rect) int { return r.Intersect(o).Area() }

// Clip clips the rectangle to a capture of the given size. ok is false when
// nothing remains inside the capture bounds.
func (r Rect) Clip(width, height int) (clipped Rect, ok bool) {
	c := r.Intersect(Rect{X: 0, Y: 0, W: width, H: height})
	if c.W <= 0 || c.H <= 0 {
		return Rect{}, false
	}
	return c, true
}

// Candidate is a rectangle produced mid-pipeline, not yet accepted as a
// cataloged tile. Density and BorderEdgeDensity are filled by whichever
// stage computed them; both are fractions in [0,1].
type Candidate struct {
	Rect

	// Density is the fraction of "ink" pixels (darker than the luminance
	// cutoff) inside the rectangle.
	Density float64

	// BorderEdgeDensity is the fraction of perimeter-band pixels that are
	// edges. Zero until the structural verifier has seen the candidate.
	BorderEdgeDensity float64
}

// Descriptor is a structural position descriptor extracted from page
// markup, in the page-local coordinate space. Repeated fetches may return
// duplicates or shuffled subsets; callers must not rely on order.
type Descriptor struct {
	Left              int    `json:"left"`
	Top               int    `json:"top"`
	Width             int    `json:"width"`
	HasSecondaryMedia bool   `json:"has_secondary_media"`
	ThumbnailRef      string `json:"thumbnail_ref"`
}

// Transform maps page-local coordinates to screen coordinates:
//
//	screen = offset + local * scale
//
// It is recomputed per session and never persisted.
type Transform struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	ScaleX  float64 `json:"scale_x"`
	ScaleY  float64 `json:"scale_y"`
}

// Identity returns the identity transform (no offset, unit scale).
func Identity() Transform { return Transform{ScaleX: 1, ScaleY: 1} }

// ToScreen maps a descriptor to a screen rectangle. Descriptors carry no
// height, so the caller supplies an estimated element height in local
// coordinates.
func (t Transform) ToScreen(d Descriptor, localHeight int) Rect {
	return Rect{
		X: int(t.OffsetX + float64(d.Left)*t.ScaleX),
		Y: int(t.OffsetY + float64(d.Top)*t.ScaleY),
		W: int(float64(d.Width) * t.ScaleX),
		H: int(float64(localHeight) * t.ScaleY),
	}
}
