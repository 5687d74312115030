package segment

import (
	"testing"

	"github.com/hazyhaar/tilescan/tile"
)

func maskFromRows(rows []string) *bitmask {
	m := newBitmask(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, ch := range row {
			if ch == '1' {
				m.set(x, y, 1)
			}
		}
	}
	return m
}

func TestOpenRemovesSpeckles(t *testing.T) {
	m := maskFromRows([]string{
		"00000000",
		"01000000",
		"00011100",
		"00011100",
		"00011100",
		"00000000",
	})
	m.open(1)

	if m.at(1, 1) != 0 {
		t.Fatal("isolated pixel survived opening")
	}
	// The 3x3 block erodes to its center and dilates back.
	if m.at(4, 3) != 1 {
		t.Fatal("solid block center lost during opening")
	}
}

func TestCloseBridgesPinholes(t *testing.T) {
	m := maskFromRows([]string{
		"111111",
		"111111",
		"110111",
		"111111",
		"111111",
	})
	m.close(2)
	if m.at(2, 2) != 1 {
		t.Fatal("pinhole survived closing")
	}
}

func TestComponentsLabelsAndBounds(t *testing.T) {
	m := maskFromRows([]string{
		"1100011",
		"1100011",
		"0000011",
		"0010000",
	})
	comps, labels := m.components()
	if len(comps) != 3 {
		t.Fatalf("got %d components, want 3", len(comps))
	}

	// Scan order: top-left block first.
	if comps[0].bounds != (tile.Rect{X: 0, Y: 0, W: 2, H: 2}) || comps[0].area != 4 {
		t.Fatalf("component 0 = %+v", comps[0])
	}
	if comps[1].bounds != (tile.Rect{X: 5, Y: 0, W: 2, H: 3}) || comps[1].area != 6 {
		t.Fatalf("component 1 = %+v", comps[1])
	}
	if comps[2].bounds != (tile.Rect{X: 2, Y: 3, W: 1, H: 1}) || comps[2].area != 1 {
		t.Fatalf("component 2 = %+v", comps[2])
	}

	// Labels start at 1; 0 is background.
	if labels[0] != 1 || labels[5] != 2 || labels[3*7+2] != 3 {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestComponentsDiagonalConnectivity(t *testing.T) {
	// 8-connectivity joins diagonal neighbors into one component.
	m := maskFromRows([]string{
		"100",
		"010",
		"001",
	})
	comps, _ := m.components()
	if len(comps) != 1 {
		t.Fatalf("got %d components, want 1 (8-connected)", len(comps))
	}
	if comps[0].area != 3 {
		t.Fatalf("area = %d, want 3", comps[0].area)
	}
}
