package grid_test

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/hazyhaar/tilescan/grid"
	"github.com/hazyhaar/tilescan/tile"
)

var (
	light = color.RGBA{R: 252, G: 252, B: 252, A: 255}
	dark  = color.RGBA{R: 30, G: 30, B: 30, A: 255}
)

func uniformImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func fillRect(img *image.RGBA, x, y, w, h int, c color.RGBA) {
	draw.Draw(img, image.Rect(x, y, x+w, y+h), &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// framedTile draws a dark region with a light frame just inside the given
// rectangle, giving it ink density and edges at all four borders.
func framedTile(img *image.RGBA, r tile.Rect) {
	fillRect(img, r.X, r.Y, r.W, r.H, light)
	fillRect(img, r.X+3, r.Y+3, r.W-6, r.H-6, dark)
}

func TestVerifyAcceptsFramedTile(t *testing.T) {
	img := uniformImage(120, 120, dark)
	r := tile.Rect{X: 10, Y: 10, W: 100, H: 100}
	framedTile(img, r)

	v := grid.NewEdgeVerifier(grid.VerifyConfig{})
	res := v.Verify(img, r)
	if !res.Accepted {
		t.Fatalf("framed tile rejected: %+v", res)
	}
	if res.Reason != grid.ReasonOK {
		t.Fatalf("reason = %v, want ok", res.Reason)
	}
	if res.Density < 0.5 {
		t.Fatalf("density = %v, want > 0.5", res.Density)
	}
	if res.BorderEdgeDensity <= 0 {
		t.Fatal("border edge density not reported")
	}
}

func TestVerifyRejectsBlankRegion(t *testing.T) {
	img := uniformImage(120, 120, light)
	res := grid.NewEdgeVerifier(grid.VerifyConfig{}).Verify(img, tile.Rect{X: 10, Y: 10, W: 100, H: 100})
	if res.Accepted {
		t.Fatal("blank region accepted")
	}
	if res.Reason != grid.ReasonLowDensity {
		t.Fatalf("reason = %v, want low-density", res.Reason)
	}
}

func TestVerifyRejectsFeaturelessDarkRegion(t *testing.T) {
	// Plenty of ink, but no structure at all.
	img := uniformImage(120, 120, dark)
	res := grid.NewEdgeVerifier(grid.VerifyConfig{}).Verify(img, tile.Rect{X: 10, Y: 10, W: 100, H: 100})
	if res.Accepted {
		t.Fatal("featureless region accepted")
	}
	if res.Reason != grid.ReasonNoEdges {
		t.Fatalf("reason = %v, want no-edges", res.Reason)
	}
}

func TestVerifyRejectsOpenBorder(t *testing.T) {
	// A real boundary at the top only: the region's content bleeds into
	// the dark page on the left, right, and bottom, so those bands carry
	// no edges.
	img := uniformImage(120, 140, dark)
	r := tile.Rect{X: 10, Y: 10, W: 100, H: 100}
	fillRect(img, r.X, r.Y, r.W, 3, light)

	res := grid.NewEdgeVerifier(grid.VerifyConfig{}).Verify(img, r)
	if res.Accepted {
		t.Fatal("open-bottom region accepted")
	}
	if res.Reason != grid.ReasonOpenBorder {
		t.Fatalf("reason = %v, want open-border", res.Reason)
	}
}

func TestVerifyRejectsOutOfBounds(t *testing.T) {
	img := uniformImage(50, 50, light)
	res := grid.NewEdgeVerifier(grid.VerifyConfig{}).Verify(img, tile.Rect{X: 30, Y: 30, W: 40, H: 40})
	if res.Accepted || res.Reason != grid.ReasonOutOfBounds {
		t.Fatalf("result = %+v, want out-of-bounds rejection", res)
	}
}

func TestReasonStrings(t *testing.T) {
	for reason, want := range map[grid.Reason]string{
		grid.ReasonOK:          "ok",
		grid.ReasonLowDensity:  "low-density",
		grid.ReasonNoEdges:     "no-edges",
		grid.ReasonOpenBorder:  "open-border",
		grid.ReasonOutOfBounds: "out-of-bounds",
	} {
		if got := reason.String(); got != want {
			t.Errorf("Reason(%d).String() = %q, want %q", int(reason), got, want)
		}
	}
}
