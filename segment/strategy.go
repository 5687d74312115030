package segment

import (
	"image"
	"image/color"

	"github.com/hazyhaar/tilescan/tile"
)

// Capture bundles the inputs available to detection strategies for one
// view: the reference capture, an optional second capture under a toggled
// background, and the declared background color of the reference.
type Capture struct {
	Ref        image.Image
	Alt        image.Image // nil when no toggled capture was taken
	Background color.Color
}

// Strategy is one detection approach with a uniform signature. Strategies
// are pure: they hold no state between calls.
type Strategy struct {
	Name string
	Run  func(Capture) []tile.Rect
}

// Strategies returns the segmenter's detectors in priority order:
// color-grid first (one capture, cheap), differential second (needs the
// toggled capture).
func (s *Segmenter) Strategies() []Strategy {
	return []Strategy{
		{
			Name: "color-grid",
			Run: func(c Capture) []tile.Rect {
				if c.Ref == nil || c.Background == nil {
					return nil
				}
				cands := s.Segment(c.Ref, c.Background)
				rects := make([]tile.Rect, 0, len(cands))
				for _, cand := range cands {
					rects = append(rects, cand.Rect)
				}
				return rects
			},
		},
		{
			Name: "differential",
			Run: func(c Capture) []tile.Rect {
				if c.Ref == nil || c.Alt == nil {
					return nil
				}
				return s.SegmentDiff(c.Ref, c.Alt)
			},
		},
	}
}

// Detect tries strategies in order until one yields a non-empty result.
// It returns the rectangles and the name of the strategy that produced
// them, or (nil, "") when every strategy came up empty.
func Detect(c Capture, strategies []Strategy) ([]tile.Rect, string) {
	for _, st := range strategies {
		if rects := st.Run(c); len(rects) > 0 {
			return rects, st.Name
		}
	}
	return nil, ""
}
