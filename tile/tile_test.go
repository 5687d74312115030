package tile_test

import (
	"testing"

	"github.com/hazyhaar/tilescan/tile"
)

func TestIntersectAndOverlap(t *testing.T) {
	a := tile.Rect{X: 0, Y: 0, W: 100, H: 100}
	b := tile.Rect{X: 50, Y: 50, W: 100, H: 100}

	got := a.Intersect(b)
	want := tile.Rect{X: 50, Y: 50, W: 50, H: 50}
	if got != want {
		t.Fatalf("intersect = %+v, want %+v", got, want)
	}
	if ov := a.Overlap(b); ov != 2500 {
		t.Fatalf("overlap = %d, want 2500", ov)
	}

	// Disjoint rectangles intersect to the zero Rect.
	c := tile.Rect{X: 200, Y: 200, W: 10, H: 10}
	if got := a.Intersect(c); got != (tile.Rect{}) {
		t.Fatalf("disjoint intersect = %+v, want zero", got)
	}
	// Touching edges do not count as overlap.
	d := tile.Rect{X: 100, Y: 0, W: 10, H: 10}
	if ov := a.Overlap(d); ov != 0 {
		t.Fatalf("edge-touch overlap = %d, want 0", ov)
	}
}

func TestClip(t *testing.T) {
	r := tile.Rect{X: -20, Y: 10, W: 100, H: 100}
	got, ok := r.Clip(200, 60)
	if !ok {
		t.Fatal("clip reported nothing inside")
	}
	want := tile.Rect{X: 0, Y: 10, W: 80, H: 50}
	if got != want {
		t.Fatalf("clip = %+v, want %+v", got, want)
	}

	if _, ok := (tile.Rect{X: 300, Y: 0, W: 10, H: 10}).Clip(200, 200); ok {
		t.Fatal("fully outside rect reported ok")
	}
}

func TestAspect(t *testing.T) {
	if got := (tile.Rect{W: 450, H: 680}).Aspect(); got < 0.66 || got > 0.67 {
		t.Fatalf("aspect = %v, want ~0.662", got)
	}
	if got := (tile.Rect{W: 10, H: 0}).Aspect(); got != 0 {
		t.Fatalf("zero-height aspect = %v, want 0", got)
	}
}

func TestCenter(t *testing.T) {
	cx, cy := (tile.Rect{X: 10, Y: 20, W: 30, H: 40}).Center()
	if cx != 25 || cy != 40 {
		t.Fatalf("center = (%v, %v), want (25, 40)", cx, cy)
	}
}

func TestTransformToScreen(t *testing.T) {
	tr := tile.Transform{OffsetX: 50, OffsetY: 20, ScaleX: 0.8, ScaleY: 0.8}
	d := tile.Descriptor{Left: 100, Top: 200, Width: 450}

	got := tr.ToScreen(d, 680)
	want := tile.Rect{X: 130, Y: 180, W: 360, H: 544}
	if got != want {
		t.Fatalf("to screen = %+v, want %+v", got, want)
	}

	// Identity keeps local coordinates untouched.
	if got := tile.Identity().ToScreen(d, 680); got != (tile.Rect{X: 100, Y: 200, W: 450, H: 680}) {
		t.Fatalf("identity to screen = %+v", got)
	}
}
