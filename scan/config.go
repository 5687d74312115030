package scan

import (
	"log/slog"
	"time"
)

// Config tunes an incremental scan session.
type Config struct {
	// RunLength is how many consecutive live tiles must match stored
	// positions before the scan concludes it has reached known content.
	RunLength int `yaml:"run_length"`

	// MaxScrolls caps the number of passes before giving up.
	MaxScrolls int `yaml:"max_scrolls"`

	// ScrollDelta is the vertical scroll per pass, in pixels.
	ScrollDelta int `yaml:"scroll_delta"`

	// FetchDelay is the pause before each thumbnail fetch, keeping the
	// request pattern polite.
	FetchDelay time.Duration `yaml:"fetch_delay"`

	// TileHeight is the assumed page-local tile height used when mapping
	// descriptors to screen coordinates.
	TileHeight int `yaml:"tile_height"`

	// RowTolerance groups descriptors into reading-order rows: tops
	// within the same RowTolerance-sized band share a row.
	RowTolerance int `yaml:"row_tolerance"`

	// TargetNew stops the scan early once this many new tiles have been
	// catalogued. Zero means no target: scan until a stable run or the
	// scroll budget.
	TargetNew int `yaml:"target_new"`

	// Background is the page background as a hex color. It drives the
	// color-grid strategy during calibration.
	Background string `yaml:"background"`

	// ToggleBackground, when set, is the second background used to take
	// the differential capture pair.
	ToggleBackground string `yaml:"toggle_background"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.RunLength <= 0 {
		c.RunLength = 3
	}
	if c.MaxScrolls <= 0 {
		c.MaxScrolls = 10
	}
	if c.ScrollDelta <= 0 {
		c.ScrollDelta = 800
	}
	if c.FetchDelay <= 0 {
		c.FetchDelay = 500 * time.Millisecond
	}
	if c.TileHeight <= 0 {
		c.TileHeight = 680
	}
	if c.RowTolerance <= 0 {
		c.RowTolerance = 50
	}
	if c.Background == "" {
		c.Background = "#fcfcfc"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
