package grid_test

import (
	"image"
	"testing"

	"github.com/hazyhaar/tilescan/grid"
	"github.com/hazyhaar/tilescan/tile"
)

// stubVerifier accepts or rejects everything, recording what it saw.
type stubVerifier struct {
	accept bool
	seen   []tile.Rect
}

func (s *stubVerifier) Verify(_ image.Image, r tile.Rect) grid.Result {
	s.seen = append(s.seen, r)
	if s.accept {
		return grid.Result{Accepted: true, Reason: grid.ReasonOK}
	}
	return grid.Result{Reason: grid.ReasonLowDensity}
}

func cand(x, y, w, h int) tile.Candidate {
	return tile.Candidate{Rect: tile.Rect{X: x, Y: y, W: w, H: h}}
}

func TestExtrapolateFillsMissingCorner(t *testing.T) {
	// A 2x2 grid with the bottom-right tile undetected.
	cands := []tile.Candidate{
		cand(10, 10, 100, 100),
		cand(130, 10, 100, 100),
		cand(10, 130, 100, 100),
	}
	v := &stubVerifier{accept: true}
	e := grid.New(grid.Config{}, v)

	got := e.Extrapolate(image.NewRGBA(image.Rect(0, 0, 280, 280)), image.Rect(0, 0, 280, 280), cands)
	want := tile.Rect{X: 130, Y: 130, W: 100, H: 100}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("extrapolated = %+v, want [%+v]", got, want)
	}
	if len(v.seen) != 1 {
		t.Fatalf("verifier saw %d rects, want 1", len(v.seen))
	}
}

func TestExtrapolateTooFewCandidates(t *testing.T) {
	e := grid.New(grid.Config{}, &stubVerifier{accept: true})
	img := image.NewRGBA(image.Rect(0, 0, 280, 280))

	cands := []tile.Candidate{
		cand(10, 10, 100, 100),
		cand(130, 10, 100, 100),
	}
	if got := e.Extrapolate(img, img.Bounds(), cands); len(got) != 0 {
		t.Fatalf("two candidates extrapolated %+v, want nothing", got)
	}
}

func TestExtrapolateRespectsVerifierRejection(t *testing.T) {
	cands := []tile.Candidate{
		cand(10, 10, 100, 100),
		cand(130, 10, 100, 100),
		cand(10, 130, 100, 100),
	}
	v := &stubVerifier{accept: false}
	e := grid.New(grid.Config{}, v)

	got := e.Extrapolate(image.NewRGBA(image.Rect(0, 0, 280, 280)), image.Rect(0, 0, 280, 280), cands)
	if len(got) != 0 {
		t.Fatalf("rejected rects still returned: %+v", got)
	}
	if len(v.seen) != 1 {
		t.Fatalf("verifier saw %d rects, want 1", len(v.seen))
	}
}

func TestExtrapolateSnapsToRowGeometry(t *testing.T) {
	// The second row sits lower and taller than the grid average; a hole
	// in that row must copy the row's observed top and height, not the
	// median.
	cands := []tile.Candidate{
		cand(10, 10, 100, 100),
		cand(130, 10, 100, 100),
		cand(250, 10, 100, 100),
		cand(10, 140, 100, 110),
		cand(130, 140, 100, 110),
	}
	v := &stubVerifier{accept: true}
	e := grid.New(grid.Config{}, v)

	got := e.Extrapolate(image.NewRGBA(image.Rect(0, 0, 370, 270)), image.Rect(0, 0, 370, 270), cands)
	want := tile.Rect{X: 250, Y: 140, W: 100, H: 110}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("extrapolated = %+v, want [%+v]", got, want)
	}
}

func TestExtrapolateSuppressesOverlap(t *testing.T) {
	// 2x3 grid with one hole at the bottom-right. Its left neighbor is an
	// oversized tile reaching into the hole, so the synthesized rectangle
	// overlaps it by more than the allowed fraction and must be dropped
	// before verification.
	cands := []tile.Candidate{
		cand(10, 10, 100, 100),
		cand(130, 10, 100, 100),
		cand(250, 10, 100, 100),
		cand(10, 130, 100, 100),
		cand(65, 130, 230, 100), // centered on the middle column, spilling right
	}
	v := &stubVerifier{accept: true}
	e := grid.New(grid.Config{}, v)

	got := e.Extrapolate(image.NewRGBA(image.Rect(0, 0, 360, 280)), image.Rect(0, 0, 360, 280), cands)
	if len(got) != 0 {
		t.Fatalf("overlapping synthesis returned %+v, want nothing", got)
	}
	if len(v.seen) != 0 {
		t.Fatalf("verifier saw %d rects, want 0", len(v.seen))
	}
}
