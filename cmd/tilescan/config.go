package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/tilescan/grid"
	"github.com/hazyhaar/tilescan/scan"
	"github.com/hazyhaar/tilescan/segment"
)

// Config is the top-level YAML configuration.
type Config struct {
	// DBPath is the SQLite identity store. Defaults to the XDG data dir.
	DBPath string `yaml:"db_path"`

	Viewport ViewportConfig    `yaml:"viewport"`
	Segment  segment.Config    `yaml:"segment"`
	Grid     grid.Config       `yaml:"grid"`
	Verify   grid.VerifyConfig `yaml:"verify"`
	Scan     scan.Config       `yaml:"scan"`
	Report   ReportConfig      `yaml:"report"`
}

// ViewportConfig selects the viewport backend. ServerURL wins when both
// are set: point it at a tilescan -serve instance on the browser machine.
type ViewportConfig struct {
	ServerURL string `yaml:"server_url"`
	RemoteURL string `yaml:"remote_url"`
	PageURL   string `yaml:"page_url"`
}

// ReportConfig tunes report output.
type ReportConfig struct {
	// Path receives the markdown report; "-" or empty writes to stdout.
	Path string `yaml:"path"`

	// ArchiveDir receives resized thumbnails when -archive is given.
	ArchiveDir string `yaml:"archive_dir"`

	// ThumbSize is the bounding square for archived thumbnails.
	ThumbSize int `yaml:"thumb_size"`
}

func loadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.defaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) defaults() error {
	if c.DBPath == "" {
		p, err := xdg.DataFile("tilescan/tiles.db")
		if err != nil {
			return fmt.Errorf("default db path: %w", err)
		}
		c.DBPath = p
	}
	if c.Report.ArchiveDir == "" {
		c.Report.ArchiveDir = filepath.Join(xdg.DataHome, "tilescan", "thumbs")
	}
	if c.Report.ThumbSize <= 0 {
		c.Report.ThumbSize = 256
	}
	return nil
}
