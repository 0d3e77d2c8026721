package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"optionflow/internal/change"
	"optionflow/logger"
	"optionflow/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite keeps the reference in one row of a local database. Writes run in
// BEGIN IMMEDIATE transactions so the revision check and the update are
// atomic across processes sharing the file.
type SQLite struct {
	db   *sql.DB
	kind string
	key  string
}

func NewSQLite(path, kind, key string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS change_reference (
			kind       TEXT    NOT NULL,
			key        TEXT    NOT NULL,
			revision   INTEGER NOT NULL,
			payload    TEXT    NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (kind, key)
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	logger.GetLogger().WithComponent("sqlite_store").WithFields(logger.Fields{
		"path": path,
		"kind": kind,
		"key":  key,
	}).Info("opened reference database")

	return &SQLite{db: db, kind: kind, key: key}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ReadCurrent(ctx context.Context) (*change.Reference, error) {
	var (
		revision int64
		payload  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, payload FROM change_reference WHERE kind = ? AND key = ?`,
		s.kind, s.key).Scan(&revision, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read reference: %w", err)
	}

	future, err := decodeFuture([]byte(payload))
	if err != nil {
		return nil, err
	}
	return &change.Reference{Future: future, Revision: revision}, nil
}

func (s *SQLite) CompareAndSwap(ctx context.Context, expected int64, next *models.FutureQuote) (*change.Reference, error) {
	var payload []byte
	if next != nil {
		var err error
		if payload, err = encodeFuture(*next); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	var actual int64
	err = tx.QueryRowContext(ctx,
		`SELECT revision FROM change_reference WHERE kind = ? AND key = ?`,
		s.kind, s.key).Scan(&actual)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite read revision: %w", err)
	}
	if actual != expected {
		return nil, conflict(expected, actual)
	}

	if next == nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM change_reference WHERE kind = ? AND key = ?`, s.kind, s.key); err != nil {
			return nil, fmt.Errorf("sqlite delete reference: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("sqlite commit: %w", err)
		}
		return nil, nil
	}

	revision := actual + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO change_reference (kind, key, revision, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, key) DO UPDATE SET
			revision = excluded.revision,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, s.kind, s.key, revision, string(payload), time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("sqlite write reference: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite commit: %w", err)
	}

	return &change.Reference{Future: *next, Revision: revision}, nil
}
