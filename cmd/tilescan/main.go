// Command tilescan detects tiles on a grid page, catalogs their
// identities, and runs incremental scans that stop at already-known
// content.
//
// Usage:
//
//	tilescan -config tilescan.yaml -detect        # detect tiles, print rects
//	tilescan -config tilescan.yaml -calibrate     # print the coordinate transform
//	tilescan -config tilescan.yaml -scan          # incremental catalog scan
//	tilescan -config tilescan.yaml -serve :5000   # expose the viewport over HTTP
//	tilescan -stats | -report | -clear            # store operations
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tilescan/dbopen"
	"github.com/hazyhaar/tilescan/grid"
	"github.com/hazyhaar/tilescan/report"
	"github.com/hazyhaar/tilescan/scan"
	"github.com/hazyhaar/tilescan/segment"
	"github.com/hazyhaar/tilescan/server"
	"github.com/hazyhaar/tilescan/tilestore"
	"github.com/hazyhaar/tilescan/viewport"
)

func main() {
	configPath := flag.String("config", "", "path to tilescan.yaml config file")
	detect := flag.Bool("detect", false, "detect tiles in the current view and print rectangles")
	calibrateMode := flag.Bool("calibrate", false, "derive and print the coordinate transform")
	scanMode := flag.Bool("scan", false, "run an incremental catalog scan")
	serveAddr := flag.String("serve", "", "expose the viewport control API on this address")
	stats := flag.Bool("stats", false, "print store statistics")
	clearStore := flag.Bool("clear", false, "delete all tiles and scan history")
	reportMode := flag.Bool("report", false, "write the markdown catalog report")
	archive := flag.Bool("archive", false, "with -report: also archive resized thumbnails")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("tilescan: config", "error", err)
		os.Exit(1)
	}
	cfg.Scan.Logger = logger

	app := &app{cfg: cfg, logger: logger}

	switch {
	case *detect:
		err = app.runDetect(ctx)
	case *calibrateMode:
		err = app.runCalibrate(ctx)
	case *scanMode:
		err = app.runScan(ctx)
	case *serveAddr != "":
		err = app.runServe(ctx, *serveAddr)
	case *stats:
		err = app.runStats(ctx)
	case *clearStore:
		err = app.runClear(ctx)
	case *reportMode:
		err = app.runReport(ctx, *archive)
	default:
		fmt.Fprintln(os.Stderr, "usage: tilescan -detect | -calibrate | -scan | -serve <addr> | -stats | -clear | -report")
		os.Exit(1)
	}
	if err != nil {
		logger.Error("tilescan: fatal", "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg    *Config
	logger *slog.Logger
}

// openViewport picks the backend: a control-server client when
// server_url is configured, otherwise a locally driven browser.
func (a *app) openViewport(ctx context.Context) (viewport.Viewport, func(), error) {
	if a.cfg.Viewport.ServerURL != "" {
		client := viewport.NewClient(a.cfg.Viewport.ServerURL)
		if err := client.Healthz(ctx); err != nil {
			return nil, nil, fmt.Errorf("control server: %w", err)
		}
		return client, func() {}, nil
	}

	b, err := viewport.OpenBrowser(ctx, viewport.BrowserConfig{
		RemoteURL: a.cfg.Viewport.RemoteURL,
		PageURL:   a.cfg.Viewport.PageURL,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return b, func() { b.Close() }, nil
}

func (a *app) openStore() (*tilestore.Store, func(), error) {
	db, err := dbopen.Open(a.cfg.DBPath, tilestore.Schema)
	if err != nil {
		return nil, nil, err
	}
	return tilestore.New(db), func() { db.Close() }, nil
}

func (a *app) newEngine(view viewport.Viewport, store *tilestore.Store) *scan.Engine {
	seg := segment.New(a.cfg.Segment)
	ex := grid.New(a.cfg.Grid, grid.NewEdgeVerifier(a.cfg.Verify))
	return scan.New(a.cfg.Scan, view, store, seg, ex)
}

func (a *app) runDetect(ctx context.Context) error {
	view, closeView, err := a.openViewport(ctx)
	if err != nil {
		return err
	}
	defer closeView()

	eng := a.newEngine(view, nil)
	rects, strategy, err := eng.Detect(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"strategy": strategy,
		"count":    len(rects),
		"tiles":    rects,
	})
}

func (a *app) runCalibrate(ctx context.Context) error {
	view, closeView, err := a.openViewport(ctx)
	if err != nil {
		return err
	}
	defer closeView()

	eng := a.newEngine(view, nil)
	tr, err := eng.Calibrate(ctx)
	if err != nil {
		return err
	}

	// Show where the calibrated transform places each descriptor on screen
	// so a stale or skewed calibration is visible at a glance.
	descs, err := view.ListDescriptors(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"transform": tr,
		"tiles":     eng.MapToScreen(descs),
	})
}

func (a *app) runScan(ctx context.Context) error {
	view, closeView, err := a.openViewport(ctx)
	if err != nil {
		return err
	}
	defer closeView()

	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	eng := a.newEngine(view, store)
	if _, err := eng.Calibrate(ctx); err != nil {
		return err
	}
	res, err := eng.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"reason":      res.Reason.String(),
		"tiles_found": res.TilesFound,
		"new_tiles":   res.NewTiles,
		"passes":      res.Passes,
		"stopped_at":  res.StoppedAt,
	})
}

func (a *app) runServe(ctx context.Context, addr string) error {
	view, closeView, err := a.openViewport(ctx)
	if err != nil {
		return err
	}
	defer closeView()

	srv := &http.Server{
		Addr:    addr,
		Handler: server.New(view, a.logger).Router(),
	}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	a.logger.Info("tilescan: control server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *app) runStats(ctx context.Context) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	st, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]int{
		"total_tiles": st.TotalTiles,
		"processed":   st.ProcessedTiles,
		"unprocessed": st.UnprocessedTiles,
		"scans":       st.TotalScans,
	})
}

func (a *app) runClear(ctx context.Context) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Clear(ctx); err != nil {
		return err
	}
	a.logger.Info("tilescan: store cleared", "path", a.cfg.DBPath)
	return nil
}

func (a *app) runReport(ctx context.Context, archive bool) error {
	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	out := os.Stdout
	if a.cfg.Report.Path != "" && a.cfg.Report.Path != "-" {
		f, err := os.Create(a.cfg.Report.Path)
		if err != nil {
			return fmt.Errorf("report output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := report.NewWriter(out).Write(ctx, store); err != nil {
		return err
	}

	if archive {
		view, closeView, err := a.openViewport(ctx)
		if err != nil {
			return err
		}
		defer closeView()

		n, err := report.Archive(ctx, store, view, a.cfg.Report.ArchiveDir, a.cfg.Report.ThumbSize, a.logger)
		if err != nil {
			return err
		}
		a.logger.Info("tilescan: thumbnails archived", "count", n, "dir", a.cfg.Report.ArchiveDir)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
