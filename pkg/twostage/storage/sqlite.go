package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence. Cached
// pagination survives restarts, which matters for large documents whose
// measurement pass is expensive.
//
// The database runs in WAL mode with a single writer connection.
type SQLiteStore struct {
	db        *sql.DB
	dbPath    string
	ttl       time.Duration
	closeOnce sync.Once

	getStmt   *sql.Stmt
	putStmt   *sql.Stmt
	pruneStmt *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TTL is how long entries stay valid. Default: 1 hour.
	TTL time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a SQLite-backed pagination cache.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:     db,
		dbPath: cfg.DBPath,
		ttl:    cfg.TTL,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pagination_cache (
		key TEXT PRIMARY KEY,
		pages INTEGER NOT NULL,
		anchor_pages TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pagination_created_at
		ON pagination_cache(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(
		`SELECT pages, anchor_pages, created_at FROM pagination_cache WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("preparing get: %w", err)
	}

	s.putStmt, err = s.db.Prepare(
		`INSERT INTO pagination_cache (key, pages, anchor_pages, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   pages = excluded.pages,
		   anchor_pages = excluded.anchor_pages,
		   created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("preparing put: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(
		`DELETE FROM pagination_cache WHERE created_at < ?`)
	if err != nil {
		return fmt.Errorf("preparing prune: %w", err)
	}

	return nil
}

// Get implements Store. Entries past the TTL count as misses; they are
// removed by the next Prune.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var pages int
	var anchorJSON sql.NullString
	var createdUnix int64

	err := s.getStmt.QueryRowContext(ctx, key).Scan(&pages, &anchorJSON, &createdUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cache: %w", err)
	}

	createdAt := time.Unix(createdUnix, 0)
	if s.ttl > 0 && time.Since(createdAt) > s.ttl {
		return nil, nil
	}

	entry := &Entry{
		Key:       key,
		Pages:     pages,
		CreatedAt: createdAt,
	}
	if anchorJSON.Valid && anchorJSON.String != "" {
		if err := json.Unmarshal([]byte(anchorJSON.String), &entry.AnchorPages); err != nil {
			return nil, fmt.Errorf("decoding anchor map: %w", err)
		}
	}
	return entry, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if entry.Key == "" {
		return fmt.Errorf("entry key cannot be empty")
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var anchorJSON []byte
	if entry.AnchorPages != nil {
		var err error
		anchorJSON, err = json.Marshal(entry.AnchorPages)
		if err != nil {
			return fmt.Errorf("encoding anchor map: %w", err)
		}
	}

	_, err := s.putStmt.ExecContext(ctx, entry.Key, entry.Pages, string(anchorJSON), createdAt.Unix())
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// Prune implements Store.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.pruneStmt.ExecContext(ctx, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return int(n), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.getStmt, s.putStmt, s.pruneStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
