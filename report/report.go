// Package report renders a catalog summary as Markdown and optionally
// archives resized tile thumbnails next to it.
package report

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/hazyhaar/tilescan/tilestore"
)

// Writer renders catalog reports in Markdown.
type Writer struct {
	output io.Writer
	now    func() time.Time
}

// NewWriter creates a report writer targeting output.
func NewWriter(output io.Writer) *Writer {
	return &Writer{output: output, now: time.Now}
}

// Write renders the full catalog report: stats, the tile table in ordinal
// order, and scan history.
func (w *Writer) Write(ctx context.Context, store *tilestore.Store) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	tiles, err := store.List(ctx)
	if err != nil {
		return err
	}
	scans, err := store.Scans(ctx)
	if err != nil {
		return err
	}

	md := markdown.NewMarkdown(w.output)

	md.H1("Tile Catalog Report")
	md.PlainText("")
	md.PlainText("Generated " + w.now().Format("2006-01-02 15:04:05 MST"))
	md.PlainText("")

	md.H2("Summary")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Total tiles", strconv.Itoa(stats.TotalTiles)},
			{"Processed", strconv.Itoa(stats.ProcessedTiles)},
			{"Unprocessed", strconv.Itoa(stats.UnprocessedTiles)},
			{"Scans recorded", strconv.Itoa(stats.TotalScans)},
		},
	})
	md.PlainText("")

	md.H2("Tiles")
	if len(tiles) == 0 {
		md.PlainText("No tiles catalogued yet.")
	} else {
		rows := make([][]string, 0, len(tiles))
		for _, t := range tiles {
			rows = append(rows, []string{
				strconv.Itoa(t.Position),
				"`" + t.Hash + "`",
				boolMark(t.HasSecondaryMedia),
				boolMark(t.Processed),
				formatMilli(t.FirstSeen),
				formatMilli(t.LastSeen),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Position", "Hash", "Video", "Processed", "First seen", "Last seen"},
			Rows:   rows,
		})
	}
	md.PlainText("")

	md.H2("Scan History")
	if len(scans) == 0 {
		md.PlainText("No scans recorded yet.")
	} else {
		rows := make([][]string, 0, len(scans))
		for _, s := range scans {
			stopped := "-"
			if s.StoppedAt > 0 {
				stopped = strconv.Itoa(s.StoppedAt)
			}
			rows = append(rows, []string{
				formatMilli(s.ScannedAt),
				strconv.Itoa(s.TilesFound),
				strconv.Itoa(s.NewTiles),
				stopped,
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Scanned at", "Tiles found", "New tiles", "Stopped at"},
			Rows:   rows,
		})
	}

	return md.Build()
}

func boolMark(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatMilli(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}
