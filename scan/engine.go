// Package scan drives incremental catalog scans: it walks a scrolling
// page, fingerprints each tile's thumbnail, and stops as soon as the live
// ordering reproduces content already recorded in the identity store.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"time"

	"github.com/hazyhaar/tilescan/calibrate"
	"github.com/hazyhaar/tilescan/grid"
	"github.com/hazyhaar/tilescan/segment"
	"github.com/hazyhaar/tilescan/tile"
	"github.com/hazyhaar/tilescan/tilestore"
	"github.com/hazyhaar/tilescan/viewport"
)

// StopReason says why a scan session ended.
type StopReason int

const (
	// StopStableRun: the live ordering matched stored content for a full
	// run, so everything below is already catalogued.
	StopStableRun StopReason = iota
	// StopTargetReached: the configured number of new tiles was collected.
	StopTargetReached
	// StopMaxScrolls: the scroll budget ran out without a stable run.
	StopMaxScrolls
)

func (r StopReason) String() string {
	switch r {
	case StopStableRun:
		return "stable-run"
	case StopTargetReached:
		return "target-reached"
	case StopMaxScrolls:
		return "max-scrolls"
	default:
		return fmt.Sprintf("stop-reason(%d)", int(r))
	}
}

// Result summarises one scan session.
type Result struct {
	TilesFound int
	NewTiles   int
	Passes     int
	StoppedAt  int // end position of the stable run; 0 when none was found
	Reason     StopReason
}

// Engine runs detection and incremental scans against one viewport and
// one identity store.
type Engine struct {
	cfg   Config
	view  viewport.Viewport
	store *tilestore.Store
	seg   *segment.Segmenter
	grid  *grid.Extrapolator

	transform tile.Transform
	bounds    image.Rectangle // last captured view, zero until Detect ran
}

// New assembles an engine. The transform starts as identity; call
// Calibrate to align page-local descriptor coordinates with the screen.
func New(cfg Config, view viewport.Viewport, store *tilestore.Store, seg *segment.Segmenter, ex *grid.Extrapolator) *Engine {
	cfg.defaults()
	return &Engine{
		cfg:       cfg,
		view:      view,
		store:     store,
		seg:       seg,
		grid:      ex,
		transform: tile.Identity(),
	}
}

// Transform returns the current calibration transform.
func (e *Engine) Transform() tile.Transform { return e.transform }

// MapToScreen projects page-local descriptors into screen space through
// the current calibration transform, clipped to the last captured view.
// Descriptors that project to a degenerate rectangle or fall entirely
// outside the view are dropped. Detect or Calibrate must have run so the
// view bounds are known.
func (e *Engine) MapToScreen(descs []tile.Descriptor) []tile.Rect {
	var rects []tile.Rect
	for _, d := range descs {
		r := e.transform.ToScreen(d, e.cfg.TileHeight)
		clipped, ok := r.Clip(e.bounds.Dx(), e.bounds.Dy())
		if !ok {
			continue
		}
		rects = append(rects, clipped)
	}
	return rects
}

// Detect captures the current view, runs the strategy chain, and fills
// grid holes by extrapolation. It returns the detected rectangles and the
// name of the strategy that produced the seed set; an empty page yields
// an empty slice and name, not an error.
func (e *Engine) Detect(ctx context.Context) ([]tile.Rect, string, error) {
	shot, err := e.captures(ctx)
	if err != nil {
		return nil, "", err
	}
	e.bounds = shot.Ref.Bounds()

	rects, name := segment.Detect(shot, e.seg.Strategies())
	if len(rects) == 0 {
		return nil, "", nil
	}

	cands := make([]tile.Candidate, len(rects))
	for i, r := range rects {
		cands[i] = tile.Candidate{Rect: r}
	}
	extra := e.grid.Extrapolate(shot.Ref, shot.Ref.Bounds(), cands)
	if len(extra) > 0 {
		e.cfg.Logger.Info("scan: grid extrapolation added tiles",
			"detected", len(rects), "synthesized", len(extra))
	}
	return append(rects, extra...), name, nil
}

// Calibrate detects tiles on screen, lists the page-local descriptors,
// and derives the coordinate transform between the two. The result is
// retained for subsequent Run calls and also returned.
func (e *Engine) Calibrate(ctx context.Context) (tile.Transform, error) {
	rects, strategy, err := e.Detect(ctx)
	if err != nil {
		return e.transform, err
	}
	descs, err := e.view.ListDescriptors(ctx)
	if err != nil {
		return e.transform, fmt.Errorf("scan: calibrate: %w", err)
	}

	e.transform = calibrate.Calibrate(rects, descs, tile.Identity())
	e.cfg.Logger.Info("scan: calibrated",
		"strategy", strategy,
		"screen_tiles", len(rects),
		"descriptors", len(descs),
		"offset_x", e.transform.OffsetX,
		"offset_y", e.transform.OffsetY,
		"scale", e.transform.ScaleX)
	return e.transform, nil
}

// captures takes the reference screenshot and, when a toggle background
// is configured and sufficiently distinct, a second screenshot under the
// toggled background. The page background is restored afterwards.
func (e *Engine) captures(ctx context.Context) (segment.Capture, error) {
	bg, err := segment.ParseBackground(e.cfg.Background)
	if err != nil {
		return segment.Capture{}, fmt.Errorf("scan: background %q: %w", e.cfg.Background, err)
	}
	ref, err := e.view.CaptureView(ctx)
	if err != nil {
		return segment.Capture{}, fmt.Errorf("scan: capture: %w", err)
	}
	shot := segment.Capture{Ref: ref, Background: bg}

	if e.cfg.ToggleBackground == "" {
		return shot, nil
	}
	alt, err := segment.ParseBackground(e.cfg.ToggleBackground)
	if err != nil {
		return segment.Capture{}, fmt.Errorf("scan: toggle background %q: %w", e.cfg.ToggleBackground, err)
	}
	if !segment.GoodTogglePair(bg, alt) {
		e.cfg.Logger.Warn("scan: toggle background too close to base, skipping differential capture",
			"background", e.cfg.Background, "toggle", e.cfg.ToggleBackground)
		return shot, nil
	}

	if err := e.view.SetBackground(ctx, e.cfg.ToggleBackground); err != nil {
		return segment.Capture{}, fmt.Errorf("scan: toggle background: %w", err)
	}
	altImg, captureErr := e.view.CaptureView(ctx)
	if restoreErr := e.view.SetBackground(ctx, e.cfg.Background); restoreErr != nil {
		e.cfg.Logger.Warn("scan: background restore failed", "error", restoreErr)
	}
	if captureErr != nil {
		return segment.Capture{}, fmt.Errorf("scan: toggled capture: %w", captureErr)
	}
	shot.Alt = altImg
	return shot, nil
}

// sessionTile is one tile discovered during a session, in reading order.
// Its 1-based index in the session slice is its ordinal position.
type sessionTile struct {
	desc     tile.Descriptor
	hash     string // "" when the thumbnail fetch failed or there is no ref
	upserted bool
}

// Run executes one incremental scan session. Each pass lists the rendered
// descriptors, fingerprints the unseen ones, checks the stop condition
// against the store, then persists and scrolls.
//
// A stable run must reproduce an ordering recorded by an EARLIER session:
// the stop check runs before the pass's tiles are upserted, and any hash
// whose store row was first written or repositioned by this session is
// masked out of the check. Without both guards a session would match its
// own writes and stop after the second pass on any fresh page.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	log := e.cfg.Logger
	var (
		session []sessionTile
		seen    = map[string]bool{}
		dirty   = map[string]bool{} // hashes this session inserted or moved
		res     = &Result{Reason: StopMaxScrolls}
	)

	for pass := 1; pass <= e.cfg.MaxScrolls; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Passes = pass

		descs, err := e.view.ListDescriptors(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan: pass %d: %w", pass, err)
		}
		fresh := e.appendFresh(&session, seen, descs)

		for _, i := range fresh {
			if err := e.fingerprint(ctx, &session[i]); err != nil {
				return nil, err
			}
		}

		// An empty hash can never match a stored position, so masking a
		// dirty tile excludes it from every window.
		hashes := make([]string, len(session))
		for i, st := range session {
			if dirty[st.hash] {
				continue
			}
			hashes[i] = st.hash
		}
		stopPos, stable, err := e.store.FindStopPosition(ctx, hashes, e.cfg.RunLength)
		if err != nil {
			return nil, fmt.Errorf("scan: pass %d: %w", pass, err)
		}

		limit := len(session)
		if stable {
			limit = stopPos
		}
		if err := e.persist(ctx, session, limit, res, dirty); err != nil {
			return nil, err
		}

		log.Info("scan: pass complete",
			"pass", pass, "visible", len(descs), "session", len(session),
			"new", res.NewTiles, "stable", stable)

		if stable {
			res.Reason = StopStableRun
			res.StoppedAt = stopPos
			res.TilesFound = stopPos
			break
		}
		res.TilesFound = len(session)

		if e.cfg.TargetNew > 0 && res.NewTiles >= e.cfg.TargetNew {
			res.Reason = StopTargetReached
			break
		}
		if pass == e.cfg.MaxScrolls {
			break
		}
		if err := e.view.Scroll(ctx, e.cfg.ScrollDelta); err != nil {
			return nil, fmt.Errorf("scan: pass %d: scroll: %w", pass, err)
		}
	}

	if err := e.store.RecordScan(ctx, res.TilesFound, res.NewTiles, res.StoppedAt); err != nil {
		return nil, err
	}
	log.Info("scan: session finished",
		"reason", res.Reason.String(), "tiles", res.TilesFound,
		"new", res.NewTiles, "passes", res.Passes)
	return res, nil
}

// appendFresh merges a pass's descriptors into the session in reading
// order and returns the indices of the newly appended tiles. Descriptors
// already seen in this session (same thumbnail ref, or same page-local
// position for ref-less tiles) are skipped so that a tile scrolled past
// twice keeps its original ordinal.
func (e *Engine) appendFresh(session *[]sessionTile, seen map[string]bool, descs []tile.Descriptor) []int {
	ordered := make([]tile.Descriptor, len(descs))
	copy(ordered, descs)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := ordered[i].Top/e.cfg.RowTolerance, ordered[j].Top/e.cfg.RowTolerance
		if ri != rj {
			return ri < rj
		}
		return ordered[i].Left < ordered[j].Left
	})

	var fresh []int
	for _, d := range ordered {
		key := d.ThumbnailRef
		if key == "" {
			key = fmt.Sprintf("@%d,%d", d.Left, d.Top)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		*session = append(*session, sessionTile{desc: d})
		fresh = append(fresh, len(*session)-1)
	}
	return fresh
}

// fingerprint fetches the tile's thumbnail and hashes it. Fetch failures
// leave the hash empty: the tile occupies its position but can never
// satisfy the stable-run check, so a later scan retries it.
func (e *Engine) fingerprint(ctx context.Context, st *sessionTile) error {
	if st.desc.ThumbnailRef == "" {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.cfg.FetchDelay):
	}

	data, err := e.view.FetchBytes(ctx, st.desc.ThumbnailRef)
	if err != nil {
		if !errors.Is(err, viewport.ErrFetchFailed) {
			return fmt.Errorf("scan: fingerprint: %w", err)
		}
		e.cfg.Logger.Warn("scan: thumbnail fetch failed",
			"ref", st.desc.ThumbnailRef, "error", err)
		return nil
	}
	st.hash = tilestore.Fingerprint(data)
	return nil
}

// persist upserts every not-yet-stored session tile with position <= limit.
// Hashes it inserts, or whose stored position it rewrites, are marked dirty
// so later stop checks cannot treat them as previously recorded content.
func (e *Engine) persist(ctx context.Context, session []sessionTile, limit int, res *Result, dirty map[string]bool) error {
	for i := 0; i < limit; i++ {
		st := &session[i]
		if st.upserted || st.hash == "" {
			continue
		}
		prior, lookupErr := e.store.GetByHash(ctx, st.hash)
		known := lookupErr == nil
		if lookupErr != nil && !errors.Is(lookupErr, tilestore.ErrNotFound) {
			return fmt.Errorf("scan: persist: %w", lookupErr)
		}
		if !known || prior.Position != i+1 {
			dirty[st.hash] = true
		}

		if _, err := e.store.Upsert(ctx, st.hash, i+1, st.desc.ThumbnailRef, st.desc.HasSecondaryMedia); err != nil {
			return fmt.Errorf("scan: persist: %w", err)
		}
		st.upserted = true
		if !known {
			res.NewTiles++
		}
	}
	return nil
}
