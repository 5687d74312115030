// Package segment locates candidate tile rectangles in a captured view.
//
// Two detectors are provided. The color-grid segmenter masks pixels near a
// declared background color and extracts the inverse as connected
// components. The differential segmenter compares two captures of the same
// view taken under different background colors and isolates the pixels
// that did not follow the toggle. Both filter components through adaptive,
// statistics-driven area bounds instead of fixed thresholds, because tile
// size varies with viewport zoom.
//
// All state is per-call: a segmenter holds configuration only, never pixel
// data, so one instance is safe to reuse across captures.
package segment

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"

	"github.com/hazyhaar/tilescan/tile"
)

// Segmenter detects candidate tiles in captured views.
type Segmenter struct {
	cfg Config
}

// New creates a Segmenter. Zero config fields take defaults.
func New(cfg Config) *Segmenter {
	cfg.defaults()
	return &Segmenter{cfg: cfg}
}

// ParseBackground parses a background color in hex notation ("#fcfcfc" or
// "fcfcfc").
func ParseBackground(hex string) (color.Color, error) {
	if len(hex) > 0 && hex[0] != '#' {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("segment: parse background %q: %w", hex, err)
	}
	return c, nil
}

// GoodTogglePair reports whether two background colors are far enough apart
// for the differential segmenter to separate background from content.
func GoodTogglePair(a, b color.Color) bool {
	ca, _ := colorful.MakeColor(a)
	cb, _ := colorful.MakeColor(b)
	return ca.DistanceLab(cb) > 0.3
}

// Segment finds candidate tiles by masking the declared background color.
// An empty slice means nothing qualified; the caller decides whether to
// retry with another background hypothesis or fall back to the
// differential segmenter.
func (s *Segmenter) Segment(img image.Image, background color.Color) []tile.Candidate {
	fg := s.foregroundMask(img, background)
	fg.open(1)
	fg.close(2)

	comps, labels := fg.components()
	if len(comps) == 0 {
		return nil
	}
	minArea, maxArea := s.areaBounds(comps)

	gray, w, _ := grayPlane(img)

	var out []tile.Candidate
	for i, c := range comps {
		if float64(c.area) < minArea || float64(c.area) > maxArea {
			continue
		}
		if c.bounds.W < s.cfg.MinSide || c.bounds.H < s.cfg.MinSide {
			continue
		}
		aspect := c.bounds.Aspect()
		if aspect < s.cfg.AspectMin || aspect > s.cfg.AspectMax {
			continue
		}
		density := componentInkDensity(gray, labels, w, int32(i+1), c, s.cfg.LumCutoff)
		if density < s.cfg.MinDensity {
			continue
		}
		out = append(out, tile.Candidate{Rect: c.bounds, Density: density})
	}
	return out
}

// foregroundMask marks every pixel outside the per-channel tolerance of the
// background color.
func (s *Segmenter) foregroundMask(img image.Image, background color.Color) *bitmask {
	b := img.Bounds()
	m := newBitmask(b.Dx(), b.Dy())

	br, bg, bb, _ := background.RGBA()
	tr, tg, tb := int(br>>8), int(bg>>8), int(bb>>8)
	tol := s.cfg.Tolerance

	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			if abs(int(r>>8)-tr) > tol || abs(int(g>>8)-tg) > tol || abs(int(bl>>8)-tb) > tol {
				m.set(x, y, 1)
			}
		}
	}
	return m
}

// areaBounds derives outlier-resistant component area bounds from the area
// distribution: mean ± 2σ, clamped to the configured floor and ceiling.
func (s *Segmenter) areaBounds(comps []component) (minArea, maxArea float64) {
	areas := make([]float64, len(comps))
	for i, c := range comps {
		areas[i] = float64(c.area)
	}
	mean, std := stat.MeanStdDev(areas, nil)
	if len(areas) < 2 || math.IsNaN(std) {
		std = 0
	}
	minArea = math.Max(float64(s.cfg.AreaFloor), mean-2*std)
	maxArea = math.Min(float64(s.cfg.AreaCeiling), mean+2*std)
	return minArea, maxArea
}

// componentInkDensity computes the fraction of component pixels inside the
// bounding box that are darker than the luminance cutoff.
func componentInkDensity(gray []uint8, labels []int32, w int, label int32, c component, cutoff uint8) float64 {
	if c.area == 0 {
		return 0
	}
	ink := 0
	for y := c.bounds.Y; y < c.bounds.Y+c.bounds.H; y++ {
		for x := c.bounds.X; x < c.bounds.X+c.bounds.W; x++ {
			i := y*w + x
			if labels[i] == label && gray[i] < cutoff {
				ink++
			}
		}
	}
	return float64(ink) / float64(c.area)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
