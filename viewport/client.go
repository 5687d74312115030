package viewport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/tilescan/tile"
)

// Client is a Viewport talking to a remote control server over HTTP.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient creates a client for a control server at baseURL
// (e.g. "http://localhost:5000").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 60 * time.Second},
	}
}

type statusEnvelope struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Healthz checks server liveness.
func (c *Client) Healthz(ctx context.Context) error {
	_, err := c.get(ctx, "/healthz")
	return err
}

// CaptureView fetches and decodes the current viewport screenshot.
func (c *Client) CaptureView(ctx context.Context) (image.Image, error) {
	data, err := c.get(ctx, "/capture")
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("viewport: decode capture: %w", err)
	}
	return img, nil
}

// SetBackground asks the server to recolor the page background.
func (c *Client) SetBackground(ctx context.Context, hex string) error {
	return c.postJSON(ctx, "/background", map[string]string{"color": hex}, nil)
}

// Scroll scrolls the remote page vertically by deltaY pixels.
func (c *Client) Scroll(ctx context.Context, deltaY int) error {
	return c.postJSON(ctx, "/scroll", map[string]int{"delta_y": deltaY}, nil)
}

// FetchBytes retrieves a page resource through the server.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	var resp struct {
		statusEnvelope
		Data string `json:"data"`
	}
	if err := c.postJSON(ctx, "/fetch-image", map[string]string{"url": url}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, url, err)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrFetchFailed, url, err)
	}
	return data, nil
}

// PageSource fetches the serialized page markup.
func (c *Client) PageSource(ctx context.Context) ([]byte, error) {
	return c.get(ctx, "/page-source")
}

// ListDescriptors fetches the structural descriptors of the rendered tiles.
func (c *Client) ListDescriptors(ctx context.Context) ([]tile.Descriptor, error) {
	data, err := c.get(ctx, "/descriptors")
	if err != nil {
		return nil, err
	}
	var resp struct {
		statusEnvelope
		Descriptors []tile.Descriptor `json:"descriptors"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("viewport: decode descriptors: %w", err)
	}
	return resp.Descriptors, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("viewport: %s: %w", path, err)
	}
	return c.do(req, path)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("viewport: %s: encode: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("viewport: %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req, path)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("viewport: %s: decode: %w", path, err)
		}
	}
	return nil
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viewport: %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("viewport: %s: read: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var env statusEnvelope
		if json.Unmarshal(data, &env) == nil && env.Error != "" {
			return nil, fmt.Errorf("viewport: %s: %s", path, env.Error)
		}
		return nil, fmt.Errorf("viewport: %s: status %d", path, resp.StatusCode)
	}
	return data, nil
}
