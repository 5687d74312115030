package segment

import (
	"image"
	"image/color"

	"github.com/hazyhaar/tilescan/tile"
)

// bitmask is a per-capture binary pixel mask. It is constructed fresh for
// every segmentation call and never shared between captures.
type bitmask struct {
	w, h int
	pix  []uint8 // 0 or 1
}

func newBitmask(w, h int) *bitmask {
	return &bitmask{w: w, h: h, pix: make([]uint8, w*h)}
}

func (m *bitmask) at(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return 0
	}
	return m.pix[y*m.w+x]
}

func (m *bitmask) set(x, y int, v uint8) { m.pix[y*m.w+x] = v }

// invert flips every pixel in place.
func (m *bitmask) invert() {
	for i, v := range m.pix {
		if v == 0 {
			m.pix[i] = 1
		} else {
			m.pix[i] = 0
		}
	}
}

// erode removes any set pixel with an unset 8-neighbour (out-of-bounds
// counts as unset).
func (m *bitmask) erode() {
	out := make([]uint8, len(m.pix))
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if m.at(x, y) == 0 {
				continue
			}
			keep := uint8(1)
			for dy := -1; dy <= 1 && keep == 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if m.at(x+dx, y+dy) == 0 {
						keep = 0
						break
					}
				}
			}
			out[y*m.w+x] = keep
		}
	}
	m.pix = out
}

// dilate sets any unset pixel with a set 8-neighbour.
func (m *bitmask) dilate() {
	out := make([]uint8, len(m.pix))
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			v := uint8(0)
			for dy := -1; dy <= 1 && v == 0; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if m.at(x+dx, y+dy) == 1 {
						v = 1
						break
					}
				}
			}
			out[y*m.w+x] = v
		}
	}
	m.pix = out
}

// open runs erode+dilate n times. Removes speckle noise smaller than the
// 3x3 kernel.
func (m *bitmask) open(n int) {
	for i := 0; i < n; i++ {
		m.erode()
		m.dilate()
	}
}

// close runs dilate+erode n times. Fills small internal gaps. Opening once
// but closing twice keeps adjacent tiles from being merged while still
// healing anti-aliased interiors.
func (m *bitmask) close(n int) {
	for i := 0; i < n; i++ {
		m.dilate()
		m.erode()
	}
}

// component is one 8-connected foreground region of a bitmask.
type component struct {
	bounds tile.Rect
	area   int // set pixels, not bounding-box area
}

// components labels 8-connected foreground regions. The returned label grid
// is indexed y*w+x; label 0 is background, components are labelled from 1
// and component i has label i+1.
func (m *bitmask) components() ([]component, []int32) {
	labels := make([]int32, len(m.pix))
	var comps []component
	next := int32(1)

	var stack []image.Point
	for sy := 0; sy < m.h; sy++ {
		for sx := 0; sx < m.w; sx++ {
			if m.pix[sy*m.w+sx] == 0 || labels[sy*m.w+sx] != 0 {
				continue
			}

			minX, minY, maxX, maxY := sx, sy, sx, sy
			area := 0
			stack = append(stack[:0], image.Pt(sx, sy))
			labels[sy*m.w+sx] = next

			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				area++
				if p.X < minX {
					minX = p.X
				}
				if p.X > maxX {
					maxX = p.X
				}
				if p.Y < minY {
					minY = p.Y
				}
				if p.Y > maxY {
					maxY = p.Y
				}
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || ny < 0 || nx >= m.w || ny >= m.h {
							continue
						}
						i := ny*m.w + nx
						if m.pix[i] == 1 && labels[i] == 0 {
							labels[i] = next
							stack = append(stack, image.Pt(nx, ny))
						}
					}
				}
			}

			comps = append(comps, component{
				bounds: tile.Rect{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1},
				area:   area,
			})
			next++
		}
	}
	return comps, labels
}

// grayPlane converts an image to a luminance plane using ITU-R BT.601
// weights, normalised to the image origin.
func grayPlane(img image.Image) ([]uint8, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = luminance(img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out, w, h
}

func luminance(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	return uint8(float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114)
}
