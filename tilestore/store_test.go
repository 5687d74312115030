package tilestore_test

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/tilescan/dbopen"
	"github.com/hazyhaar/tilescan/tilestore"
)

func newStore(t *testing.T) *tilestore.Store {
	t.Helper()
	return tilestore.New(dbopen.OpenMemory(t, tilestore.Schema))
}

func TestUpsertInsertAndRefresh(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, "aaa111", 1, "thumb-1.webp", true)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.Position != 1 || !first.HasSecondaryMedia {
		t.Fatalf("unexpected tile after insert: %+v", first)
	}
	if first.FirstSeen == 0 || first.LastSeen == 0 {
		t.Fatal("timestamps not set")
	}

	// Same hash, same position: identity refresh, id and first_seen survive.
	again, err := s.Upsert(ctx, "aaa111", 1, "thumb-1.webp", true)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("refresh created new row: id %d != %d", again.ID, first.ID)
	}
	if again.FirstSeen != first.FirstSeen {
		t.Fatal("refresh changed first_seen")
	}
	if again.LastSeen < first.LastSeen {
		t.Fatal("refresh did not advance last_seen")
	}
}

func TestUpsertMoveIsFreshSighting(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, "bbb222", 3, "", false)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.MarkProcessed(ctx, "bbb222"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	moved, err := s.Upsert(ctx, "bbb222", 7, "", false)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.ID == first.ID {
		t.Fatal("move reused the old row")
	}
	if moved.Position != 7 {
		t.Fatalf("position = %d, want 7", moved.Position)
	}
	if moved.Processed {
		t.Fatal("move carried processed flag over")
	}

	tiles, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tiles) != 1 {
		t.Fatalf("got %d rows after move, want 1", len(tiles))
	}
}

func TestUpsertRejectsEmptyHash(t *testing.T) {
	s := newStore(t)
	if _, err := s.Upsert(context.Background(), "", 1, "", false); err == nil {
		t.Fatal("expected error for empty hash")
	}
}

func TestGetByHashNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetByHash(context.Background(), "nope")
	if !errors.Is(err, tilestore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStableRun(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// Store holds a..e at positions 1..5.
	for i, h := range []string{"a", "b", "c", "d", "e"} {
		if _, err := s.Upsert(ctx, h, i+1, "", false); err != nil {
			t.Fatalf("seed %s: %v", h, err)
		}
	}

	// Live ordering with two new tiles prepended only shifts the reading
	// of which start index is stable: c, d, e still sit at stored
	// positions 3, 4, 5, so the run starting at live index 3 matches.
	live := []string{"x", "y", "c", "d", "e"}

	ok, err := s.IsStableRun(ctx, live, 3, 3)
	if err != nil {
		t.Fatalf("stable run: %v", err)
	}
	if !ok {
		t.Fatal("run c,d,e at positions 3..5 should be stable")
	}

	// Same hashes at the wrong ordinals are not stable.
	ok, err = s.IsStableRun(ctx, []string{"c", "d", "e"}, 1, 3)
	if err != nil {
		t.Fatalf("stable run: %v", err)
	}
	if ok {
		t.Fatal("known hashes at shifted positions must not count as stable")
	}

	// A missing fingerprint inside the window breaks the run.
	ok, err = s.IsStableRun(ctx, []string{"x", "y", "c", "", "e"}, 3, 3)
	if err != nil {
		t.Fatalf("stable run: %v", err)
	}
	if ok {
		t.Fatal("empty hash inside the window must break the run")
	}

	// Window falling off the end of the list is never stable.
	ok, err = s.IsStableRun(ctx, live, 4, 3)
	if err != nil {
		t.Fatalf("stable run: %v", err)
	}
	if ok {
		t.Fatal("window past end of list reported stable")
	}
}

func TestFindStopPosition(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i, h := range []string{"a", "b", "c", "d", "e"} {
		if _, err := s.Upsert(ctx, h, i+1, "", false); err != nil {
			t.Fatalf("seed %s: %v", h, err)
		}
	}

	pos, ok, err := s.FindStopPosition(ctx, []string{"x", "y", "c", "d", "e"}, 3)
	if err != nil {
		t.Fatalf("find stop: %v", err)
	}
	if !ok || pos != 5 {
		t.Fatalf("stop = (%d, %v), want (5, true)", pos, ok)
	}

	_, ok, err = s.FindStopPosition(ctx, []string{"p", "q", "r", "s"}, 3)
	if err != nil {
		t.Fatalf("find stop: %v", err)
	}
	if ok {
		t.Fatal("all-new ordering reported a stop position")
	}
}

func TestProcessedLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for i, h := range []string{"h1", "h2", "h3"} {
		if _, err := s.Upsert(ctx, h, i+1, "", false); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := s.MarkProcessed(ctx, "h2"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if err := s.MarkProcessed(ctx, "absent"); !errors.Is(err, tilestore.ErrNotFound) {
		t.Fatalf("mark absent: err = %v, want ErrNotFound", err)
	}

	pending, err := s.Unprocessed(ctx)
	if err != nil {
		t.Fatalf("unprocessed: %v", err)
	}
	if len(pending) != 2 || pending[0].Hash != "h1" || pending[1].Hash != "h3" {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
}

func TestScanHistoryAndStats(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, "h1", 1, "", false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := s.Upsert(ctx, "h2", 2, "", false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.MarkProcessed(ctx, "h1"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	if err := s.RecordScan(ctx, 5, 2, 5); err != nil {
		t.Fatalf("record scan: %v", err)
	}
	if err := s.RecordScan(ctx, 8, 8, 0); err != nil {
		t.Fatalf("record scan: %v", err)
	}

	scans, err := s.Scans(ctx)
	if err != nil {
		t.Fatalf("scans: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("got %d scans, want 2", len(scans))
	}
	if scans[0].StoppedAt != 0 {
		t.Fatalf("budget-exhausted scan StoppedAt = %d, want 0", scans[0].StoppedAt)
	}
	if scans[1].StoppedAt != 5 {
		t.Fatalf("early-stop scan StoppedAt = %d, want 5", scans[1].StoppedAt)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalTiles != 2 || st.ProcessedTiles != 1 || st.UnprocessedTiles != 1 || st.TotalScans != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestClear(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, "h1", 1, "", false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.RecordScan(ctx, 1, 1, 0); err != nil {
		t.Fatalf("record scan: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalTiles != 0 || st.TotalScans != 0 {
		t.Fatalf("store not empty after clear: %+v", st)
	}
}

func TestFingerprintLength(t *testing.T) {
	fp := tilestore.Fingerprint([]byte("image bytes"))
	if len(fp) != 12 {
		t.Fatalf("fingerprint length = %d, want 12", len(fp))
	}
	if fp != tilestore.Fingerprint([]byte("image bytes")) {
		t.Fatal("fingerprint not deterministic")
	}
}
