package server_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hazyhaar/tilescan/server"
	"github.com/hazyhaar/tilescan/tile"
	"github.com/hazyhaar/tilescan/viewport"
)

// fakeViewport records calls and serves canned data. It also implements
// Sourcer so the page-source endpoint is reachable.
type fakeViewport struct {
	background string
	scrolled   int
	images     map[string][]byte
	descs      []tile.Descriptor
	source     []byte
}

func (f *fakeViewport) CaptureView(context.Context) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	return img, nil
}

func (f *fakeViewport) SetBackground(_ context.Context, hex string) error {
	f.background = hex
	return nil
}

func (f *fakeViewport) Scroll(_ context.Context, deltaY int) error {
	f.scrolled += deltaY
	return nil
}

func (f *fakeViewport) FetchBytes(_ context.Context, url string) ([]byte, error) {
	b, ok := f.images[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s", viewport.ErrFetchFailed, url)
	}
	return b, nil
}

func (f *fakeViewport) ListDescriptors(context.Context) ([]tile.Descriptor, error) {
	return f.descs, nil
}

func (f *fakeViewport) PageSource(context.Context) ([]byte, error) {
	return f.source, nil
}

func newFixture(t *testing.T) (*fakeViewport, *viewport.Client) {
	t.Helper()
	fake := &fakeViewport{
		images: map[string][]byte{"https://cdn.example.com/t1.webp": []byte("thumb-bytes")},
		descs: []tile.Descriptor{
			{Left: 0, Top: 0, Width: 450, ThumbnailRef: "https://cdn.example.com/t1.webp"},
			{Left: 470, Top: 0, Width: 450, HasSecondaryMedia: true},
		},
		source: []byte("<html><body></body></html>"),
	}
	ts := httptest.NewServer(server.New(fake, nil).Router())
	t.Cleanup(ts.Close)
	return fake, viewport.NewClient(ts.URL)
}

func TestHealthz(t *testing.T) {
	_, client := newFixture(t)
	if err := client.Healthz(context.Background()); err != nil {
		t.Fatalf("healthz: %v", err)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	_, client := newFixture(t)
	img, err := client.CaptureView(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if got := img.Bounds(); got.Dx() != 4 || got.Dy() != 3 {
		t.Fatalf("bounds = %v, want 4x3", got)
	}
	r, g, b, _ := img.At(1, 1).RGBA()
	if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
		t.Fatalf("pixel (1,1) = %d,%d,%d, want 200,100,50", r>>8, g>>8, b>>8)
	}
}

func TestBackgroundAndScroll(t *testing.T) {
	fake, client := newFixture(t)
	ctx := context.Background()

	if err := client.SetBackground(ctx, "#1a1a2e"); err != nil {
		t.Fatalf("set background: %v", err)
	}
	if fake.background != "#1a1a2e" {
		t.Fatalf("background = %q, want #1a1a2e", fake.background)
	}

	if err := client.Scroll(ctx, 800); err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if fake.scrolled != 800 {
		t.Fatalf("scrolled = %d, want 800", fake.scrolled)
	}
}

func TestFetchImageRoundTrip(t *testing.T) {
	_, client := newFixture(t)
	ctx := context.Background()

	data, err := client.FetchBytes(ctx, "https://cdn.example.com/t1.webp")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "thumb-bytes" {
		t.Fatalf("data = %q, want thumb-bytes", data)
	}

	if _, err := client.FetchBytes(ctx, "https://cdn.example.com/missing.webp"); err == nil {
		t.Fatal("expected error for unknown resource")
	}
}

func TestDescriptorsRoundTrip(t *testing.T) {
	fake, client := newFixture(t)
	got, err := client.ListDescriptors(context.Background())
	if err != nil {
		t.Fatalf("descriptors: %v", err)
	}
	if len(got) != len(fake.descs) {
		t.Fatalf("got %d descriptors, want %d", len(got), len(fake.descs))
	}
	for i := range got {
		if got[i] != fake.descs[i] {
			t.Fatalf("descriptor %d = %+v, want %+v", i, got[i], fake.descs[i])
		}
	}
}

func TestPageSourceRoundTrip(t *testing.T) {
	fake, client := newFixture(t)
	src, err := client.PageSource(context.Background())
	if err != nil {
		t.Fatalf("page source: %v", err)
	}
	if !bytes.Equal(src, fake.source) {
		t.Fatalf("source = %q, want %q", src, fake.source)
	}
}

func TestBadRequests(t *testing.T) {
	fake := &fakeViewport{}
	ts := httptest.NewServer(server.New(fake, nil).Router())
	t.Cleanup(ts.Close)

	for _, tc := range []struct {
		path, body string
	}{
		{"/background", `{}`},
		{"/scroll", `{"delta":1}`},
		{"/fetch-image", `{"url":""}`},
	} {
		resp, err := http.Post(ts.URL+tc.path, "application/json", bytes.NewBufferString(tc.body))
		if err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.path, resp.StatusCode)
		}
	}
}

func TestCaptureServesPNG(t *testing.T) {
	fake := &fakeViewport{}
	ts := httptest.NewServer(server.New(fake, nil).Router())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/capture")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q, want image/png", ct)
	}
	if _, err := png.Decode(resp.Body); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
