// Package viewport abstracts the remote display the detector works
// against. The scan engine only sees the Viewport interface; the two
// implementations are a rod-driven browser (Browser) and an HTTP client
// (Client) speaking to a control server wrapping one.
package viewport

import (
	"context"
	"errors"
	"image"

	"github.com/hazyhaar/tilescan/tile"
)

// ErrFetchFailed is returned when a resource could not be retrieved from
// the page. Callers treat the affected tile as having no fingerprint
// rather than aborting the scan.
var ErrFetchFailed = errors.New("viewport: fetch failed")

// Viewport is the remote display collaborator: it produces screenshots,
// toggles the page background, scrolls, serves raw resource bytes, and
// lists the structural descriptors of the currently rendered elements.
type Viewport interface {
	// CaptureView screenshots the current viewport.
	CaptureView(ctx context.Context) (image.Image, error)

	// SetBackground sets the page background to the given hex color
	// (e.g. "#fcfcfc"). Used by the differential strategy to force a
	// background-only change between two captures.
	SetBackground(ctx context.Context, hex string) error

	// Scroll scrolls the page vertically by deltaY pixels.
	Scroll(ctx context.Context, deltaY int) error

	// FetchBytes retrieves a resource (typically a thumbnail) from
	// within the page context, so authenticated or blob URLs resolve.
	FetchBytes(ctx context.Context, url string) ([]byte, error)

	// ListDescriptors returns the structural descriptors of the
	// currently rendered tile elements, in document order.
	ListDescriptors(ctx context.Context) ([]tile.Descriptor, error)
}

// Sourcer is implemented by viewports that can serialise the full page
// markup. The control server uses it for its page-source endpoint.
type Sourcer interface {
	PageSource(ctx context.Context) ([]byte, error)
}
