package viewport

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/tilescan/tile"
)

// BrowserConfig configures the rod-backed viewport.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome via launcher.
	RemoteURL string `yaml:"remote_url"`

	// PageURL is navigated to on Open.
	PageURL string `yaml:"page_url"`

	// NavTimeout bounds navigation and load wait. Default: 30s.
	NavTimeout time.Duration `yaml:"nav_timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *BrowserConfig) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser is a Viewport backed by a rod-controlled Chrome page.
type Browser struct {
	cfg  BrowserConfig
	b    *rod.Browser
	lnch *launcher.Launcher
	page *rod.Page
}

// OpenBrowser launches (or connects to) Chrome, opens a stealth page, and
// navigates to cfg.PageURL.
func OpenBrowser(ctx context.Context, cfg BrowserConfig) (*Browser, error) {
	cfg.defaults()
	v := &Browser{cfg: cfg}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("viewport: launch: %w", err)
		}
		wsURL = u
		v.lnch = l
		cfg.Logger.Info("viewport: launched local chrome", "url", wsURL)
	} else {
		cfg.Logger.Info("viewport: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		v.cleanup()
		return nil, fmt.Errorf("viewport: connect: %w", err)
	}
	v.b = b

	page, err := stealth.Page(b)
	if err != nil {
		v.cleanup()
		return nil, fmt.Errorf("viewport: create page: %w", err)
	}
	v.page = page

	if cfg.PageURL != "" {
		navCtx, cancel := context.WithTimeout(ctx, cfg.NavTimeout)
		defer cancel()
		if err := page.Context(navCtx).Navigate(cfg.PageURL); err != nil {
			v.cleanup()
			return nil, fmt.Errorf("viewport: navigate %s: %w", cfg.PageURL, err)
		}
		if err := page.Context(navCtx).WaitLoad(); err != nil {
			cfg.Logger.Warn("viewport: wait load timeout", "url", cfg.PageURL, "error", err)
		}
	}

	return v, nil
}

// CaptureView screenshots the current viewport and decodes it.
func (v *Browser) CaptureView(ctx context.Context) (image.Image, error) {
	data, err := v.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("viewport: screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("viewport: decode screenshot: %w", err)
	}
	return img, nil
}

// SetBackground sets the page background color via script injection.
func (v *Browser) SetBackground(ctx context.Context, hex string) error {
	_, err := v.page.Context(ctx).Eval(`(color) => {
		document.documentElement.style.backgroundColor = color;
		document.body.style.backgroundColor = color;
	}`, hex)
	if err != nil {
		return fmt.Errorf("viewport: set background: %w", err)
	}
	return nil
}

// Scroll scrolls the page vertically by deltaY pixels.
func (v *Browser) Scroll(ctx context.Context, deltaY int) error {
	if err := v.page.Context(ctx).Mouse.Scroll(0, float64(deltaY), 1); err != nil {
		return fmt.Errorf("viewport: scroll: %w", err)
	}
	return nil
}

// FetchBytes retrieves a resource from within the page context so
// authenticated and blob URLs resolve with the page's cookies.
func (v *Browser) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	res, err := v.page.Context(ctx).Eval(`async (url) => {
		const resp = await fetch(url);
		if (!resp.ok) throw new Error("fetch status " + resp.status);
		const buf = await resp.arrayBuffer();
		let bin = "";
		const bytes = new Uint8Array(buf);
		for (let i = 0; i < bytes.length; i++) bin += String.fromCharCode(bytes[i]);
		return btoa(bin);
	}`, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
	}
	data, err := base64.StdEncoding.DecodeString(res.Value.Str())
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrFetchFailed, url, err)
	}
	return data, nil
}

// PageSource serialises the complete DOM as outer HTML.
func (v *Browser) PageSource(ctx context.Context) ([]byte, error) {
	res, err := v.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("viewport: page source: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// ListDescriptors serialises the DOM and extracts tile descriptors.
func (v *Browser) ListDescriptors(ctx context.Context) ([]tile.Descriptor, error) {
	src, err := v.PageSource(ctx)
	if err != nil {
		return nil, err
	}
	return ExtractDescriptors(src)
}

// Close shuts down the page and, when locally launched, Chrome itself.
func (v *Browser) Close() error {
	v.cleanup()
	return nil
}

func (v *Browser) cleanup() {
	if v.page != nil {
		v.page.Close()
		v.page = nil
	}
	if v.b != nil {
		v.b.Close()
		v.b = nil
	}
	if v.lnch != nil {
		v.lnch.Cleanup()
		v.lnch = nil
	}
}
