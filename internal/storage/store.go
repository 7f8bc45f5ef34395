package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devblac/ibc-watch/internal/ibc"
	"github.com/devblac/ibc-watch/internal/wasm"
	_ "modernc.org/sqlite"
)

// ErrDuplicateEvent is returned when an event with the same fingerprint was already stored.
var ErrDuplicateEvent = errors.New("event already stored")

// Store wraps SQLite-backed persistence for cursors, events, sends, dedupe and wasm checksums.
type Store struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS cursors (
  chain_id         TEXT PRIMARY KEY,
  revision_number  INTEGER NOT NULL,
  revision_height  INTEGER NOT NULL,
  updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
  id                     TEXT PRIMARY KEY,
  fingerprint            TEXT NOT NULL UNIQUE,
  chain_id               TEXT NOT NULL,
  counterparty_chain_id  TEXT,
  ibc_spec_id            TEXT NOT NULL,
  event_name             TEXT NOT NULL,
  provable_height        TEXT NOT NULL,
  txhash                 TEXT,
  payload_json           TEXT,
  created_at             TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS events_chain ON events (chain_id, created_at);

CREATE TABLE IF NOT EXISTS sends (
  event_id      TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
  sink_id       TEXT NOT NULL,
  status        TEXT NOT NULL,
  response_code INTEGER,
  created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(event_id, sink_id)
);

CREATE TABLE IF NOT EXISTS dedupe (
  key         TEXT PRIMARY KEY,
  expires_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS checksums (
  checksum     TEXT PRIMARY KEY,
  client_type  TEXT NOT NULL,
  created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Cursor is the height a chain is being followed from.
type Cursor struct {
	ChainID   ibc.ChainID
	Height    ibc.Height
	UpdatedAt time.Time
}

// SaveCheckpoint records the height the chain's event source is about to follow from.
func (s *Store) SaveCheckpoint(ctx context.Context, chainID ibc.ChainID, height ibc.Height) error {
	if chainID == "" {
		return errors.New("chain id required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cursors (chain_id, revision_number, revision_height, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(chain_id) DO UPDATE SET
  revision_number=excluded.revision_number,
  revision_height=excluded.revision_height,
  updated_at=CURRENT_TIMESTAMP;
`, chainID.String(), height.RevisionNumber, height.RevisionHeight)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// GetCursor retrieves the cursor for a chain.
func (s *Store) GetCursor(ctx context.Context, chainID ibc.ChainID) (height ibc.Height, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
SELECT revision_number, revision_height FROM cursors WHERE chain_id = ?;
`, chainID.String())
	switch err = row.Scan(&height.RevisionNumber, &height.RevisionHeight); {
	case err == nil:
		return height, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return ibc.Height{}, false, nil
	default:
		return ibc.Height{}, false, fmt.Errorf("get cursor: %w", err)
	}
}

// ListCursors returns every cursor ordered by chain id.
func (s *Store) ListCursors(ctx context.Context) ([]Cursor, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT chain_id, revision_number, revision_height, updated_at FROM cursors ORDER BY chain_id;
`)
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}
	defer rows.Close()

	var out []Cursor
	for rows.Next() {
		var c Cursor
		var chainID string
		if err := rows.Scan(&chainID, &c.Height.RevisionNumber, &c.Height.RevisionHeight, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		c.ChainID = ibc.ChainID(chainID)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResetChain forgets the cursor and the stored events of a chain.
func (s *Store) ResetChain(ctx context.Context, chainID ibc.ChainID) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE chain_id = ?;`, chainID.String()); err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cursors WHERE chain_id = ?;`, chainID.String()); err != nil {
			return fmt.Errorf("delete cursor: %w", err)
		}
		return nil
	})
}

// MarkDedupe sets or refreshes a dedupe key until expiresAt.
func (s *Store) MarkDedupe(ctx context.Context, key string, expiresAt time.Time) error {
	if key == "" {
		return errors.New("key required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO dedupe (key, expires_at)
VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET expires_at=excluded.expires_at;
`, key, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("mark dedupe: %w", err)
	}
	return nil
}

// IsDuplicate returns true if the key exists and is not expired; expired entries are pruned.
func (s *Store) IsDuplicate(ctx context.Context, key string, now time.Time) (bool, error) {
	if key == "" {
		return false, errors.New("key required")
	}

	var expires time.Time
	err := s.db.QueryRowContext(ctx, `
SELECT expires_at FROM dedupe WHERE key = ?;
`, key).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check dedupe: %w", err)
	}

	if expires.After(now.UTC()) {
		return true, nil
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM dedupe WHERE key = ?;`, key); err != nil {
		return false, fmt.Errorf("prune dedupe: %w", err)
	}
	return false, nil
}

// Event is a stored canonical chain event.
type Event struct {
	ID                  string
	Fingerprint         string
	ChainID             string
	CounterpartyChainID string
	SpecID              string
	Name                string
	ProvableHeight      string
	TxHash              string
	PayloadJSON         string
	CreatedAt           time.Time
}

// InsertEvent stores an event once. A second event with the same fingerprint yields
// ErrDuplicateEvent.
func (s *Store) InsertEvent(ctx context.Context, e Event) error {
	if e.ID == "" || e.Fingerprint == "" || e.ChainID == "" {
		return errors.New("event id, fingerprint and chain_id required")
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO events (id, fingerprint, chain_id, counterparty_chain_id, ibc_spec_id, event_name, provable_height, txhash, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
ON CONFLICT(fingerprint) DO NOTHING;
`, e.ID, e.Fingerprint, e.ChainID, e.CounterpartyChainID, e.SpecID, e.Name, e.ProvableHeight, e.TxHash, e.PayloadJSON, nullTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if n == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	ChainID string
	Name    string
	Limit   int
}

// ListEvents returns the newest events first.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, fingerprint, chain_id, COALESCE(counterparty_chain_id, ''), ibc_spec_id, event_name, provable_height, COALESCE(txhash, ''), COALESCE(payload_json, ''), created_at
FROM events
WHERE (? = '' OR chain_id = ?) AND (? = '' OR event_name = ?)
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, f.ChainID, f.ChainID, f.Name, f.Name, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Fingerprint, &e.ChainID, &e.CounterpartyChainID, &e.SpecID, &e.Name, &e.ProvableHeight, &e.TxHash, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Send represents a sink delivery record.
type Send struct {
	EventID      string
	SinkID       string
	Status       string
	ResponseCode int
	CreatedAt    time.Time
}

// InsertSend records a sink delivery attempt; primary key enforces exactly-once per event/sink.
func (s *Store) InsertSend(ctx context.Context, srec Send) error {
	if srec.EventID == "" || srec.SinkID == "" || srec.Status == "" {
		return errors.New("event_id, sink_id, and status are required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sends (event_id, sink_id, status, response_code, created_at)
VALUES (?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP));
`, srec.EventID, srec.SinkID, srec.Status, srec.ResponseCode, nullTime(srec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert send: %w", err)
	}
	return nil
}

// LoadChecksums returns every persisted checksum to client type mapping.
func (s *Store) LoadChecksums(ctx context.Context) (map[wasm.Checksum]wasm.ClientType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT checksum, client_type FROM checksums;`)
	if err != nil {
		return nil, fmt.Errorf("load checksums: %w", err)
	}
	defer rows.Close()

	out := map[wasm.Checksum]wasm.ClientType{}
	for rows.Next() {
		var raw, ct string
		if err := rows.Scan(&raw, &ct); err != nil {
			return nil, fmt.Errorf("scan checksum: %w", err)
		}
		sum, err := wasm.ParseChecksum(raw)
		if err != nil {
			return nil, err
		}
		out[sum] = wasm.ClientType(ct)
	}
	return out, rows.Err()
}

// SaveChecksum persists a resolved checksum. Saving the same mapping twice is a no-op; saving a
// different client type for a known checksum fails.
func (s *Store) SaveChecksum(ctx context.Context, checksum wasm.Checksum, clientType wasm.ClientType) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO checksums (checksum, client_type) VALUES (?, ?)
ON CONFLICT(checksum) DO NOTHING;
`, checksum.String(), string(clientType))
	if err != nil {
		return fmt.Errorf("save checksum: %w", err)
	}
	var stored string
	if err := s.db.QueryRowContext(ctx, `SELECT client_type FROM checksums WHERE checksum = ?;`, checksum.String()).Scan(&stored); err != nil {
		return fmt.Errorf("save checksum: %w", err)
	}
	if stored != string(clientType) {
		return fmt.Errorf("checksum %s already maps to %s, refusing %s", checksum, stored, clientType)
	}
	return nil
}

// WithTx executes a callback inside a transaction for callers needing atomicity.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
