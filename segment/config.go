package segment

// Config tunes the segmenters. The zero value is usable after defaults().
type Config struct {
	// Tolerance is the per-channel distance from the declared background
	// color within which a pixel counts as background.
	Tolerance int `yaml:"tolerance"`

	// MinSide is the minimum width and height of an accepted candidate.
	MinSide int `yaml:"min_side"`

	// AspectMin and AspectMax bound the plausible width/height ratio of a
	// tile.
	AspectMin float64 `yaml:"aspect_min"`
	AspectMax float64 `yaml:"aspect_max"`

	// MinDensity is the minimum fraction of ink pixels inside a component's
	// bounding box. The comparison is inclusive. Rejects blank chrome
	// regions that pass the color and size filters.
	MinDensity float64 `yaml:"min_density"`

	// LumCutoff is the luminance below which a pixel counts as ink.
	LumCutoff uint8 `yaml:"lum_cutoff"`

	// AreaFloor and AreaCeiling clamp the adaptive mean±2σ area bounds.
	// They are sanity limits, not the working thresholds: tile size varies
	// with viewport zoom, so the working bounds are derived per capture
	// from the component area distribution.
	AreaFloor   int `yaml:"area_floor"`
	AreaCeiling int `yaml:"area_ceiling"`

	// DiffThreshold is the grayscale absolute-difference above which a
	// pixel counts as "background changed" in the differential segmenter.
	DiffThreshold uint8 `yaml:"diff_threshold"`
}

func (c *Config) defaults() {
	if c.Tolerance == 0 {
		c.Tolerance = 15
	}
	if c.MinSide == 0 {
		c.MinSide = 50
	}
	if c.AspectMin == 0 {
		c.AspectMin = 0.3
	}
	if c.AspectMax == 0 {
		c.AspectMax = 3.5
	}
	if c.MinDensity == 0 {
		c.MinDensity = 0.1
	}
	if c.LumCutoff == 0 {
		c.LumCutoff = 200
	}
	if c.AreaFloor == 0 {
		c.AreaFloor = 500
	}
	if c.AreaCeiling == 0 {
		c.AreaCeiling = 1_000_000
	}
	if c.DiffThreshold == 0 {
		c.DiffThreshold = 30
	}
}
