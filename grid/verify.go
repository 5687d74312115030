package grid

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	"github.com/hazyhaar/tilescan/tile"
)

// Reason codes why a synthesized rectangle was accepted or rejected.
// Synthesized regions are assumed empty until proven otherwise, so the
// verifier reports structured outcomes instead of logging as it goes; the
// caller decides what to surface.
type Reason int

const (
	ReasonOK Reason = iota
	ReasonLowDensity
	ReasonNoEdges
	ReasonOpenBorder
	ReasonOutOfBounds
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonLowDensity:
		return "low-density"
	case ReasonNoEdges:
		return "no-edges"
	case ReasonOpenBorder:
		return "open-border"
	case ReasonOutOfBounds:
		return "out-of-bounds"
	default:
		return "unknown"
	}
}

// Result is the structured outcome of verifying one rectangle.
type Result struct {
	Accepted          bool
	Reason            Reason
	Density           float64
	BorderEdgeDensity float64
}

// Verifier vets a rectangle against local image structure.
type Verifier interface {
	Verify(img image.Image, r tile.Rect) Result
}

// VerifyConfig tunes the structural verifier.
type VerifyConfig struct {
	// MinDensity is stricter than the segmenter's: a synthesized region
	// must actively prove it holds content.
	MinDensity float64 `yaml:"min_density"`

	// LumCutoff is the ink luminance cutoff, matching the segmenter's test.
	LumCutoff uint8 `yaml:"lum_cutoff"`

	// EdgeThreshold is the grayscale gradient magnitude above which a pixel
	// counts as an edge.
	EdgeThreshold float64 `yaml:"edge_threshold"`

	// BorderBand is the thickness in pixels of the band checked at each of
	// the four borders.
	BorderBand int `yaml:"border_band"`

	// MinBorderEdges is the minimum edge density required in every border
	// band. A real tile has a drawn boundary on all four sides; a false
	// positive typically does not.
	MinBorderEdges float64 `yaml:"min_border_edges"`
}

func (c *VerifyConfig) defaults() {
	if c.MinDensity == 0 {
		c.MinDensity = 0.15
	}
	if c.LumCutoff == 0 {
		c.LumCutoff = 200
	}
	if c.EdgeThreshold == 0 {
		c.EdgeThreshold = 30
	}
	if c.BorderBand == 0 {
		c.BorderBand = 4
	}
	if c.MinBorderEdges == 0 {
		c.MinBorderEdges = 0.05
	}
}

// EdgeVerifier checks a rectangle by cropping it from the capture, running
// edge detection, and requiring content density, overall edge presence,
// and edge density in a band at all four borders.
type EdgeVerifier struct {
	cfg VerifyConfig
}

// NewEdgeVerifier creates an EdgeVerifier. Zero config fields take
// defaults.
func NewEdgeVerifier(cfg VerifyConfig) *EdgeVerifier {
	cfg.defaults()
	return &EdgeVerifier{cfg: cfg}
}

// Verify implements Verifier.
func (v *EdgeVerifier) Verify(img image.Image, r tile.Rect) Result {
	b := img.Bounds()
	crop := image.Rect(b.Min.X+r.X, b.Min.Y+r.Y, b.Min.X+r.X+r.W, b.Min.Y+r.Y+r.H)
	if !crop.In(b) || crop.Empty() {
		return Result{Reason: ReasonOutOfBounds}
	}
	region := imaging.Crop(img, crop)
	// Grayscale leaves an RGBA image with R=G=B; read the red channel as
	// the luminance plane.
	gray := effect.Grayscale(blur.Gaussian(region, 1.0))
	lum := func(x, y int) uint8 { return gray.Pix[y*gray.Stride+x*4] }

	w, h := r.W, r.H

	// Content density by the same luminance test the segmenter uses, but
	// against the stricter cutoff.
	ink := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if lum(x, y) < v.cfg.LumCutoff {
				ink++
			}
		}
	}
	density := float64(ink) / float64(w*h)
	if density < v.cfg.MinDensity {
		return Result{Reason: ReasonLowDensity, Density: density}
	}

	edges := gradientEdges(lum, w, h, v.cfg.EdgeThreshold)
	total := 0
	for _, row := range edges {
		for _, e := range row {
			if e {
				total++
			}
		}
	}
	if total == 0 {
		return Result{Reason: ReasonNoEdges, Density: density}
	}

	borderDensity, ok := v.borderBands(edges, w, h)
	if !ok {
		return Result{Reason: ReasonOpenBorder, Density: density, BorderEdgeDensity: borderDensity}
	}
	return Result{Accepted: true, Reason: ReasonOK, Density: density, BorderEdgeDensity: borderDensity}
}

// borderBands measures edge density in a fixed-thickness band at each of
// the four borders. ok is true only when every band clears the minimum;
// the returned density is the lowest of the four.
func (v *EdgeVerifier) borderBands(edges [][]bool, w, h int) (lowest float64, ok bool) {
	band := v.cfg.BorderBand
	if band > w/2 {
		band = w / 2
	}
	if band > h/2 {
		band = h / 2
	}
	if band < 1 {
		band = 1
	}

	count := func(x0, y0, x1, y1 int) float64 {
		hits, n := 0, 0
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				n++
				if edges[y][x] {
					hits++
				}
			}
		}
		if n == 0 {
			return 0
		}
		return float64(hits) / float64(n)
	}

	densities := []float64{
		count(0, 0, w, band),      // top
		count(0, h-band, w, h),    // bottom
		count(0, 0, band, h),      // left
		count(w-band, 0, w, h),    // right
	}
	lowest = densities[0]
	ok = true
	for _, d := range densities {
		if d < lowest {
			lowest = d
		}
		if d < v.cfg.MinBorderEdges {
			ok = false
		}
	}
	return lowest, ok
}

// gradientEdges marks pixels whose horizontal or vertical grayscale
// gradient exceeds the threshold. Image border pixels are never edges.
func gradientEdges(lum func(x, y int) uint8, w, h int, threshold float64) [][]bool {
	edges := make([][]bool, h)
	for y := 0; y < h; y++ {
		edges[y] = make([]bool, w)
		if y == 0 || y == h-1 {
			continue
		}
		for x := 1; x < w-1; x++ {
			c := float64(lum(x, y))
			dx := c - float64(lum(x+1, y))
			dy := c - float64(lum(x, y+1))
			if dx < 0 {
				dx = -dx
			}
			if dy < 0 {
				dy = -dy
			}
			if dx > threshold || dy > threshold {
				edges[y][x] = true
			}
		}
	}
	return edges
}
