package segment

import (
	"image"

	"github.com/hazyhaar/tilescan/tile"
)

// SegmentDiff isolates content by comparing two captures of the identical
// view taken under two different background colors. Pixels that changed
// followed the background toggle; pixels that did not are content. This
// detector makes no assumption about what the background color is, so it
// serves as the fallback when color masking is too fragile (anti-aliased
// edges) or the background is unknown. It performs coarse isolation only:
// components are area-filtered but not classified by aspect or density.
func (s *Segmenter) SegmentDiff(a, b image.Image) []tile.Rect {
	ga, wa, ha := grayPlane(a)
	gb, wb, hb := grayPlane(b)
	w, h := min(wa, wb), min(ha, hb)
	if w == 0 || h == 0 {
		return nil
	}

	// High difference = background changed. Content is the inverse.
	m := newBitmask(w, h)
	thr := int(s.cfg.DiffThreshold)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := int(ga[y*wa+x]) - int(gb[y*wb+x])
			if d < 0 {
				d = -d
			}
			if d > thr {
				m.set(x, y, 1)
			}
		}
	}
	m.invert()
	m.open(1)
	m.close(2)

	comps, _ := m.components()
	if len(comps) == 0 {
		return nil
	}
	minArea, maxArea := s.areaBounds(comps)

	var out []tile.Rect
	for _, c := range comps {
		if float64(c.area) < minArea || float64(c.area) > maxArea {
			continue
		}
		out = append(out, c.bounds)
	}
	return out
}
