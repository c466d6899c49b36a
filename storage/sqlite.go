package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a SQLite database. Slot versions
// live next to the values so optimistic commits validate against
// durable state.
type SQLiteStore struct {
	db *sql.DB

	// Serializes commit validation against concurrent committers.
	commitMu sync.Mutex
}

// OpenSQLite opens (and if needed initializes) a SQLite-backed store
// at the given path. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS slots (
		contract TEXT NOT NULL,
		slot INTEGER NOT NULL,
		value BLOB,
		version INTEGER NOT NULL,
		PRIMARY KEY (contract, slot)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating slots table: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		clock INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating meta table: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO meta (key, clock) VALUES ('commit_clock', 0)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("seeding commit clock: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get reads the committed value of one slot.
func (s *SQLiteStore) Get(ctx context.Context, contract string, slot uint16) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM slots WHERE contract = ? AND slot = ?`,
		contract, slot).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading slot %s/%d: %w", contract, slot, err)
	}
	return value, nil
}

// Set writes one slot directly, bypassing conflict detection.
func (s *SQLiteStore) Set(ctx context.Context, contract string, slot uint16, value []byte) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	clock, err := s.bumpClock(ctx)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO slots (contract, slot, value, version) VALUES (?, ?, ?, ?)
		 ON CONFLICT (contract, slot) DO UPDATE SET value = excluded.value, version = excluded.version`,
		contract, slot, value, clock)
	if err != nil {
		return fmt.Errorf("writing slot %s/%d: %w", contract, slot, err)
	}
	return nil
}

// Begin opens a transaction against the current commit clock.
func (s *SQLiteStore) Begin(ctx context.Context) (Txn, error) {
	clock, err := s.readClock(ctx)
	if err != nil {
		return nil, err
	}
	return &sqliteTxn{
		store:   s,
		begin:   clock,
		reads:   make(map[SlotKey][]byte),
		writes:  make(map[SlotKey][]byte),
		touched: make(map[SlotKey]struct{}),
	}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) readClock(ctx context.Context) (uint64, error) {
	var clock uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT clock FROM meta WHERE key = 'commit_clock'`).Scan(&clock)
	if err != nil {
		return 0, fmt.Errorf("reading commit clock: %w", err)
	}
	return clock, nil
}

// bumpClock advances the commit clock. Callers hold commitMu.
func (s *SQLiteStore) bumpClock(ctx context.Context) (uint64, error) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE meta SET clock = clock + 1 WHERE key = 'commit_clock'`); err != nil {
		return 0, fmt.Errorf("advancing commit clock: %w", err)
	}
	return s.readClock(ctx)
}

// sqliteTxn mirrors memoryTxn: buffered writes, per-slot snapshot
// reads, validation at commit under the store's commit mutex.
type sqliteTxn struct {
	store   *SQLiteStore
	begin   uint64
	reads   map[SlotKey][]byte
	writes  map[SlotKey][]byte
	touched map[SlotKey]struct{}
	done    bool
}

func (t *sqliteTxn) Get(ctx context.Context, contract string, slot uint16) ([]byte, error) {
	if t.done {
		return nil, ErrTxnDone
	}
	key := SlotKey{contract, slot}

	if v, ok := t.writes[key]; ok {
		return cloneBytes(v), nil
	}
	if v, ok := t.reads[key]; ok {
		return cloneBytes(v), nil
	}

	v, err := t.store.Get(ctx, contract, slot)
	if err != nil {
		return nil, err
	}
	t.reads[key] = v
	t.touched[key] = struct{}{}
	return cloneBytes(v), nil
}

func (t *sqliteTxn) Set(ctx context.Context, contract string, slot uint16, value []byte) error {
	if t.done {
		return ErrTxnDone
	}
	key := SlotKey{contract, slot}
	t.writes[key] = cloneBytes(value)
	t.touched[key] = struct{}{}
	return nil
}

// Delete buffers removal of a slot as a nil write. The commit upsert
// stores NULL and keeps the row, so the slot's version survives for
// conflict validation.
func (t *sqliteTxn) Delete(ctx context.Context, contract string, slot uint16) error {
	if t.done {
		return ErrTxnDone
	}
	key := SlotKey{contract, slot}
	t.writes[key] = nil
	t.touched[key] = struct{}{}
	return nil
}

func (t *sqliteTxn) Writes() map[SlotKey][]byte {
	out := make(map[SlotKey][]byte, len(t.writes))
	for k, v := range t.writes {
		out[k] = cloneBytes(v)
	}
	return out
}

func (t *sqliteTxn) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true

	s := t.store
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	for key := range t.touched {
		var version uint64
		err := s.db.QueryRowContext(ctx,
			`SELECT version FROM slots WHERE contract = ? AND slot = ?`,
			key.Contract, key.Slot).Scan(&version)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("validating slot %s/%d: %w", key.Contract, key.Slot, err)
		}
		if version > t.begin {
			return ErrConflict
		}
	}

	if len(t.writes) == 0 {
		return nil
	}

	clock, err := s.bumpClock(ctx)
	if err != nil {
		return err
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	for key, value := range t.writes {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO slots (contract, slot, value, version) VALUES (?, ?, ?, ?)
			 ON CONFLICT (contract, slot) DO UPDATE SET value = excluded.value, version = excluded.version`,
			key.Contract, key.Slot, value, clock); err != nil {
			dbTx.Rollback()
			return fmt.Errorf("writing slot %s/%d: %w", key.Contract, key.Slot, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing writes: %w", err)
	}
	return nil
}

func (t *sqliteTxn) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
