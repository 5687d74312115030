package tilestore

// Schema is the tile identity store schema. The on-disk layout is an
// implementation choice: no external reader depends on it beyond these
// fields.
const Schema = `
-- One row per distinct thumbnail fingerprint currently known.
CREATE TABLE IF NOT EXISTS tiles (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    hash                TEXT NOT NULL UNIQUE,
    position            INTEGER NOT NULL,
    thumbnail_ref       TEXT,
    has_secondary_media INTEGER NOT NULL DEFAULT 0,
    first_seen          INTEGER NOT NULL,
    last_seen           INTEGER NOT NULL,
    processed           INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tiles_hash ON tiles(hash);
CREATE INDEX IF NOT EXISTS idx_tiles_position ON tiles(position);

-- Append-only audit of completed incremental scans. Never read back for
-- logic.
CREATE TABLE IF NOT EXISTS scan_history (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    scanned_at          INTEGER NOT NULL,
    tiles_found         INTEGER NOT NULL,
    new_tiles           INTEGER NOT NULL,
    stopped_at_position INTEGER
);
`
