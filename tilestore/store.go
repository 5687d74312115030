// Package tilestore persists tile identities across scans. A tile's
// primary identity is the fingerprint of its thumbnail bytes; its ordinal
// position (1 = topmost) is mutable. The store also answers the
// stable-run question the incremental scanner's stopping rule is built on:
// does the live ordering reproduce a previously recorded ordering,
// position for position?
package tilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no tile matches the given hash.
var ErrNotFound = errors.New("tilestore: tile not found")

// Tile is one persisted tile identity.
type Tile struct {
	ID                int64
	Hash              string
	Position          int
	ThumbnailRef      string
	HasSecondaryMedia bool
	FirstSeen         int64 // UnixMilli
	LastSeen          int64 // UnixMilli
	Processed         bool
}

// ScanRecord is one completed incremental scan, for audit and stats only.
type ScanRecord struct {
	ID         int64
	ScannedAt  int64 // UnixMilli
	TilesFound int
	NewTiles   int
	StoppedAt  int // 0 when the scan ran to its budget without an early stop
}

// Stats summarises the store.
type Stats struct {
	TotalTiles       int
	ProcessedTiles   int
	UnprocessedTiles int
	TotalScans       int
}

// Store wraps an already-opened tile database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an opened database connection. The schema must
// already be applied (dbopen.Open does both).
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// GetByHash retrieves a tile by fingerprint. Returns ErrNotFound when the
// fingerprint is unknown.
func (s *Store) GetByHash(ctx context.Context, hash string) (*Tile, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, hash, position, thumbnail_ref, has_secondary_media,
		first_seen, last_seen, processed
		FROM tiles WHERE hash = ?`, hash)
	return scanTile(row)
}

// Upsert records an observation of a fingerprint at an ordinal position.
//
// Lifecycle: an unseen hash is inserted; a known hash at the same position
// refreshes last_seen and processed in place; a known hash at a different
// position is deleted and reinserted as a fresh sighting. The
// delete+reinsert on a move discards first_seen; a reordered tile is
// treated as fully fresh, matching existing stores.
func (s *Store) Upsert(ctx context.Context, hash string, position int, thumbnailRef string, hasSecondaryMedia bool) (*Tile, error) {
	if hash == "" {
		return nil, fmt.Errorf("tilestore: upsert: empty hash")
	}
	now := time.Now().UnixMilli()

	existing, err := s.GetByHash(ctx, hash)
	switch {
	case err == nil && existing.Position == position:
		_, err = s.DB.ExecContext(ctx,
			`UPDATE tiles SET last_seen = ?, processed = ? WHERE hash = ?`,
			now, existing.Processed, hash)
		if err != nil {
			return nil, fmt.Errorf("tilestore: refresh: %w", err)
		}
		return s.GetByHash(ctx, hash)

	case err == nil:
		// Content moved: treat as a fresh sighting, not an update in
		// place, so stale ordinal chains cannot accumulate.
		if _, err := s.DB.ExecContext(ctx, `DELETE FROM tiles WHERE hash = ?`, hash); err != nil {
			return nil, fmt.Errorf("tilestore: delete moved: %w", err)
		}

	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO tiles (hash, position, thumbnail_ref, has_secondary_media,
		first_seen, last_seen, processed)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		hash, position, nullable(thumbnailRef), hasSecondaryMedia, now, now)
	if err != nil {
		return nil, fmt.Errorf("tilestore: insert: %w", err)
	}
	return s.GetByHash(ctx, hash)
}

// IsStableRun reports whether every one of the runLength hashes beginning
// at start (1-based) is non-empty and already stored at exactly that
// ordinal position. Presence anywhere else does not count: a stable run is
// one where the live ordering exactly reproduces a recorded ordering.
func (s *Store) IsStableRun(ctx context.Context, hashes []string, start, runLength int) (bool, error) {
	if start < 1 || start+runLength-1 > len(hashes) {
		return false, nil
	}
	for i := 0; i < runLength; i++ {
		h := hashes[start-1+i]
		if h == "" {
			// Failed fetches have no fingerprint and are perpetually "new"
			// until a later pass succeeds.
			return false, nil
		}
		var pos int
		err := s.DB.QueryRowContext(ctx,
			`SELECT position FROM tiles WHERE hash = ?`, h).Scan(&pos)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("tilestore: stable run: %w", err)
		}
		if pos != start+i {
			return false, nil
		}
	}
	return true, nil
}

// FindStopPosition scans candidate start positions left to right and
// returns the end index of the first stable run (start+runLength-1).
// ok is false when no window of runLength consecutive live hashes matches
// the store at identical positions.
func (s *Store) FindStopPosition(ctx context.Context, hashes []string, runLength int) (pos int, ok bool, err error) {
	for start := 1; start+runLength-1 <= len(hashes); start++ {
		stable, err := s.IsStableRun(ctx, hashes, start, runLength)
		if err != nil {
			return 0, false, err
		}
		if stable {
			return start + runLength - 1, true, nil
		}
	}
	return 0, false, nil
}

// MarkProcessed flags a tile as processed.
func (s *Store) MarkProcessed(ctx context.Context, hash string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tiles SET processed = 1 WHERE hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("tilestore: mark processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Unprocessed returns all tiles not yet processed, in position order.
func (s *Store) Unprocessed(ctx context.Context) ([]*Tile, error) {
	return s.queryTiles(ctx,
		`SELECT id, hash, position, thumbnail_ref, has_secondary_media,
		first_seen, last_seen, processed
		FROM tiles WHERE processed = 0 ORDER BY position`)
}

// List returns all tiles in position order.
func (s *Store) List(ctx context.Context) ([]*Tile, error) {
	return s.queryTiles(ctx,
		`SELECT id, hash, position, thumbnail_ref, has_secondary_media,
		first_seen, last_seen, processed
		FROM tiles ORDER BY position`)
}

// RecordScan appends one scan_history row. stoppedAt <= 0 records NULL
// (the scan ran to its budget without finding a stable run).
func (s *Store) RecordScan(ctx context.Context, tilesFound, newTiles, stoppedAt int) error {
	var stop any
	if stoppedAt > 0 {
		stop = stoppedAt
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO scan_history (scanned_at, tiles_found, new_tiles, stopped_at_position)
		VALUES (?, ?, ?, ?)`,
		time.Now().UnixMilli(), tilesFound, newTiles, stop)
	if err != nil {
		return fmt.Errorf("tilestore: record scan: %w", err)
	}
	return nil
}

// Scans returns scan history, most recent first.
func (s *Store) Scans(ctx context.Context) ([]ScanRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, scanned_at, tiles_found, new_tiles, stopped_at_position
		FROM scan_history ORDER BY scanned_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("tilestore: scans: %w", err)
	}
	defer rows.Close()

	var out []ScanRecord
	for rows.Next() {
		var r ScanRecord
		var stop sql.NullInt64
		if err := rows.Scan(&r.ID, &r.ScannedAt, &r.TilesFound, &r.NewTiles, &stop); err != nil {
			return nil, err
		}
		if stop.Valid {
			r.StoppedAt = int(stop.Int64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats summarises the store.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tiles`).Scan(&st.TotalTiles); err != nil {
		return st, fmt.Errorf("tilestore: stats: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tiles WHERE processed = 1`).Scan(&st.ProcessedTiles); err != nil {
		return st, fmt.Errorf("tilestore: stats: %w", err)
	}
	st.UnprocessedTiles = st.TotalTiles - st.ProcessedTiles
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_history`).Scan(&st.TotalScans); err != nil {
		return st, fmt.Errorf("tilestore: stats: %w", err)
	}
	return st, nil
}

// Clear removes every tile and scan record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM tiles`); err != nil {
		return fmt.Errorf("tilestore: clear tiles: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM scan_history`); err != nil {
		return fmt.Errorf("tilestore: clear history: %w", err)
	}
	return nil
}

func (s *Store) queryTiles(ctx context.Context, query string, args ...any) ([]*Tile, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tilestore: query tiles: %w", err)
	}
	defer rows.Close()

	var out []*Tile
	for rows.Next() {
		t, err := scanTileRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTile(row rowScanner) (*Tile, error) {
	var t Tile
	var ref sql.NullString
	err := row.Scan(&t.ID, &t.Hash, &t.Position, &ref, &t.HasSecondaryMedia,
		&t.FirstSeen, &t.LastSeen, &t.Processed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tilestore: scan row: %w", err)
	}
	t.ThumbnailRef = ref.String
	return &t, nil
}

func scanTileRows(rows *sql.Rows) (*Tile, error) {
	return scanTile(rows)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
