package report

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	// Thumbnail sources are typically webp; grids also serve png/jpeg.
	_ "golang.org/x/image/webp"
	_ "image/jpeg"
	_ "image/png"

	"github.com/hazyhaar/tilescan/tilestore"
	"github.com/hazyhaar/tilescan/viewport"
)

// ArchiveThumbnail decodes thumbnail bytes, fits them within
// maxSide×maxSide, and writes <dir>/<hash>.png. Returns the written path.
func ArchiveThumbnail(dir, hash string, data []byte, maxSide int) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("report: decode thumbnail %s: %w", hash, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: archive dir: %w", err)
	}

	thumb := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	path := filepath.Join(dir, hash+".png")
	if err := imaging.Save(thumb, path); err != nil {
		return "", fmt.Errorf("report: save thumbnail %s: %w", hash, err)
	}
	return path, nil
}

// Archive fetches every catalogued tile's thumbnail through the viewport
// and stores a resized copy under dir. Fetch or decode failures are
// logged and skipped; the return value is the number archived.
func Archive(ctx context.Context, store *tilestore.Store, view viewport.Viewport, dir string, maxSide int, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tiles, err := store.List(ctx)
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, t := range tiles {
		if t.ThumbnailRef == "" {
			continue
		}
		data, err := view.FetchBytes(ctx, t.ThumbnailRef)
		if err != nil {
			logger.Warn("report: thumbnail fetch failed", "hash", t.Hash, "error", err)
			continue
		}
		if _, err := ArchiveThumbnail(dir, t.Hash, data, maxSide); err != nil {
			logger.Warn("report: thumbnail archive failed", "hash", t.Hash, "error", err)
			continue
		}
		archived++
	}
	return archived, nil
}
