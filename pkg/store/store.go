// Package store is ilagent's durable event queue: a single SQLite
// database file holding a meta key/value table for schema migration
// markers and an event_items table ordered by insertion time. Access is
// serialized through a single *sql.DB connection guarded by a mutex, so
// the whole store behaves as one exclusively-owned connection regardless
// of how many goroutines call into it.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/ilert/ilagent/pkg/model"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // registers the "sqlite" driver with database/sql
)

const (
	migrationMarkerVal = "1"
	migrationV1        = "mig_1"
	migrationV2        = "mig_2"
)

// Store is the SQLite-backed durable event queue.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the SQLite database at path and runs any
// outstanding migrations. It never returns with a partially-migrated
// database: Open either fully succeeds or returns an error.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	// SQLite allows a single writer; pin the pool to one connection so every
	// statement this process issues serializes through it rather than
	// racing across a pool.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info().Msg("preparing database")

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS meta (
		key        TEXT PRIMARY KEY,
		val        TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("store: bootstrap meta table: %w", err)
	}

	applied, err := s.getMetaLocked(migrationV1)
	if err != nil {
		return err
	}
	if applied == "" {
		if _, err := s.db.Exec(`CREATE TABLE event_items (
			id             TEXT PRIMARY KEY,
			api_key        TEXT NOT NULL,
			event_type     TEXT NOT NULL,
			alert_key      TEXT NULL,
			summary        TEXT NOT NULL,
			created_at     TEXT NOT NULL,
			priority       TEXT NULL,
			images         TEXT NULL,
			links          TEXT NULL,
			custom_details TEXT NULL,
			details        TEXT NULL
		)`); err != nil {
			return fmt.Errorf("store: migration %s failed: %w", migrationV1, err)
		}
		if err := s.setMetaLocked(migrationV1, migrationMarkerVal); err != nil {
			return fmt.Errorf("store: migration %s marker failed: %w", migrationV1, err)
		}
		s.log.Info().Str("migration", migrationV1).Msg("database migrated")
	}

	applied, err = s.getMetaLocked(migrationV2)
	if err != nil {
		return err
	}
	if applied == "" {
		if _, err := s.db.Exec(`ALTER TABLE event_items ADD COLUMN inserted_at DATETIME DEFAULT (STRFTIME('%Y-%m-%d %H:%M:%f','NOW'))`); err != nil {
			return fmt.Errorf("store: migration %s (inserted_at) failed: %w", migrationV2, err)
		}
		if err := s.setMetaLocked(migrationV2, migrationMarkerVal); err != nil {
			return fmt.Errorf("store: migration %s marker failed: %w", migrationV2, err)
		}
		s.log.Info().Str("migration", migrationV2).Msg("database migrated")
	}

	// Run additional simple migrations here, following the same
	// check-then-act pattern as mig_1/mig_2 above.

	s.log.Info().Msg("database is bootstrapped")
	return nil
}

func (s *Store) getMetaLocked(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT val FROM meta WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get meta %q: %w", key, err)
	}
	return val, nil
}

func (s *Store) setMetaLocked(key, val string) error {
	existing, err := s.getMetaLocked(key)
	if err != nil {
		return err
	}
	if existing != "" {
		_, err := s.db.Exec(`UPDATE meta SET val = ? WHERE key = ?`, val, key)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO meta (key, val, created_at) VALUES (?, ?, ?)`,
		key, val, model.NowStamp())
	return err
}

// GetMeta returns the value stored under key, or "" if absent.
func (s *Store) GetMeta(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMetaLocked(key)
}

// SetMeta upserts key/val.
func (s *Store) SetMeta(key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMetaLocked(key, val)
}

// Insert assigns id/created_at when absent and stores item, returning the
// row as stored. A duplicate id fails with a storage error.
func (s *Store) Insert(item model.QueueItem) (model.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = model.NewID()
	}
	if item.CreatedAt == "" {
		item.CreatedAt = model.NowStamp()
	}

	_, err := s.db.Exec(`INSERT INTO event_items
		(id, api_key, event_type, alert_key, summary, created_at, priority, images, links, custom_details, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.APIKey, item.EventType, item.AlertKey, item.Summary, item.CreatedAt,
		item.Priority, item.Images, item.Links, item.CustomDetails, item.Details,
	)
	if err != nil {
		return model.QueueItem{}, fmt.Errorf("store: insert event %s: %w", item.ID, err)
	}

	return s.getLocked(item.ID)
}

// Get returns the row with the given id, or ok=false if it does not exist.
func (s *Store) Get(id string) (model.QueueItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, err := s.getLocked(id)
	if err == sql.ErrNoRows {
		return model.QueueItem{}, false, nil
	}
	if err != nil {
		return model.QueueItem{}, false, err
	}
	return item, true, nil
}

func (s *Store) getLocked(id string) (model.QueueItem, error) {
	row := s.db.QueryRow(`SELECT id, api_key, event_type, alert_key, summary, created_at,
		priority, images, links, custom_details, details, inserted_at
		FROM event_items WHERE id = ?`, id)
	return scanItem(row)
}

// Fetch returns up to limit rows ordered by inserted_at ascending, so the
// dispatcher always delivers in the order events arrived.
func (s *Store) Fetch(limit int) ([]model.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, api_key, event_type, alert_key, summary, created_at,
		priority, images, links, custom_details, details, inserted_at
		FROM event_items ORDER BY inserted_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fetch events: %w", err)
	}
	defer rows.Close()

	var items []model.QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan event row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Delete removes the row with the given id. Deleting a missing id is not
// an error. The dispatcher calls Delete after a successful or
// unrecoverable attempt.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM event_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete event %s: %w", id, err)
	}
	return nil
}

// Depth returns the current number of queued rows, used by the dispatcher
// to update the ilagent_queue_depth gauge after each tick.
func (s *Store) Depth() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM event_items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count events: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (model.QueueItem, error) {
	var item model.QueueItem
	err := row.Scan(
		&item.ID, &item.APIKey, &item.EventType, &item.AlertKey, &item.Summary, &item.CreatedAt,
		&item.Priority, &item.Images, &item.Links, &item.CustomDetails, &item.Details, &item.InsertedAt,
	)
	return item, err
}
