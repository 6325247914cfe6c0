// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package sqlstore provides SQLite backed stores for deployments that run the
// scheduling worker without a JetStream idempotency bucket.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		idempotency_key TEXT PRIMARY KEY,
		scope           TEXT NOT NULL,
		request_hash    TEXT NOT NULL DEFAULT '',
		response        BLOB,
		status_code     INTEGER NOT NULL,
		expires_at      INTEGER NOT NULL,
		created_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires_at ON idempotency_keys (expires_at)`,
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore keeps idempotency records in the idempotency_keys table.
// Timestamps are stored as unix nanoseconds.
type IdempotencyStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the SQLite database at dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*IdempotencyStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	store, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open database and creates the schema if needed.
func New(ctx context.Context, db *sql.DB) (*IdempotencyStore, error) {
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create idempotency schema: %w", err)
		}
	}
	if err := addRequestHashColumn(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to migrate idempotency schema: %w", err)
	}
	return &IdempotencyStore{db: db, now: time.Now}, nil
}

// addRequestHashColumn upgrades tables created before request hashes were stored.
func addRequestHashColumn(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info('idempotency_keys')")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == "request_hash" {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// the single connection is released before the ALTER runs
	_ = rows.Close()

	_, err = db.ExecContext(ctx, `ALTER TABLE idempotency_keys ADD COLUMN request_hash TEXT NOT NULL DEFAULT ''`)
	return err
}

// Close closes the underlying database.
func (s *IdempotencyStore) Close() error {
	return s.db.Close()
}

// Get returns the record for key, or nil when absent or expired.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT idempotency_key, scope, request_hash, response, status_code, expires_at, created_at
		   FROM idempotency_keys WHERE idempotency_key = ? AND expires_at > ?`,
		key, s.now().UnixNano())

	var (
		record    models.IdempotencyRecord
		response  []byte
		expiresAt int64
		createdAt int64
	)
	err := row.Scan(&record.Key, &record.Scope, &record.RequestHash, &response, &record.StatusCode, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "error reading idempotency record", logging.ErrKey, err, "key", key)
		return nil, domain.NewUnavailableError("failed to read idempotency record", err)
	}

	if len(response) > 0 {
		record.Response = response
	}
	record.ExpiresAt = time.Unix(0, expiresAt).UTC()
	record.CreatedAt = time.Unix(0, createdAt).UTC()
	return &record, nil
}

// Save stores record, replacing any earlier record with the same key.
func (s *IdempotencyStore) Save(ctx context.Context, record *models.IdempotencyRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (idempotency_key, scope, request_hash, response, status_code, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(idempotency_key) DO UPDATE SET
			scope = excluded.scope,
			request_hash = excluded.request_hash,
			response = excluded.response,
			status_code = excluded.status_code,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		record.Key, record.Scope, record.RequestHash, []byte(record.Response), record.StatusCode,
		record.ExpiresAt.UnixNano(), record.CreatedAt.UnixNano())
	if err != nil {
		slog.ErrorContext(ctx, "error saving idempotency record", logging.ErrKey, err, "key", record.Key)
		return domain.NewUnavailableError("failed to save idempotency record", err)
	}
	return nil
}

// DeleteExpired removes every record that expired at or before now.
func (s *IdempotencyStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		slog.ErrorContext(ctx, "error deleting expired idempotency records", logging.ErrKey, err)
		return 0, domain.NewUnavailableError("failed to delete expired idempotency records", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}
