package viewport

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/tilescan/tile"
)

// ExtractDescriptors parses serialized page markup and returns one
// descriptor per role=listitem element, in document order. Position and
// width come from the element's inline style (left/top/width in px); the
// first img src (or data-src / data-lazy-src for lazy loaders) becomes
// the thumbnail ref, and any nested video flags secondary media.
// Elements without a parseable position are skipped.
func ExtractDescriptors(markup []byte) ([]tile.Descriptor, error) {
	root, err := html.Parse(strings.NewReader(string(markup)))
	if err != nil {
		return nil, err
	}

	var out []tile.Descriptor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && attr(n, "role") == "listitem" {
			if d, ok := descriptorFrom(n); ok {
				out = append(out, d)
			}
			// listitems do not nest; no need to descend further.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out, nil
}

func descriptorFrom(n *html.Node) (tile.Descriptor, bool) {
	style := parseStyle(attr(n, "style"))

	left, okL := px(style["left"])
	top, okT := px(style["top"])
	if !okL || !okT {
		return tile.Descriptor{}, false
	}
	width, ok := px(style["width"])
	if !ok {
		width = 0
	}

	d := tile.Descriptor{Left: left, Top: top, Width: width}

	var scan func(*html.Node)
	scan = func(c *html.Node) {
		if c.Type == html.ElementNode {
			switch c.Data {
			case "img":
				if d.ThumbnailRef == "" {
					for _, key := range []string{"src", "data-src", "data-lazy-src"} {
						if v := attr(c, key); v != "" {
							d.ThumbnailRef = v
							break
						}
					}
				}
			case "video":
				d.HasSecondaryMedia = true
			}
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			scan(gc)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		scan(c)
	}

	return d, true
}

// parseStyle splits an inline style attribute into property/value pairs.
func parseStyle(s string) map[string]string {
	out := make(map[string]string)
	for _, prop := range strings.Split(s, ";") {
		key, val, ok := strings.Cut(prop, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return out
}

func px(v string) (int, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
