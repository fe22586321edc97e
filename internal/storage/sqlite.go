/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"drawingtool/internal/domain"
	applog "drawingtool/internal/log"
	"drawingtool/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// schemaVersion tracks the embedded SQLite schema.
// Bump this when you perform breaking schema changes and add migrations.
const schemaVersion = 2

// language=SQL
// dialect=SQLite
const upsertBlockSQL = `INSERT INTO blocks(id, data, version, updated_at) VALUES (?, ?, 1, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, version = blocks.version + 1, updated_at = excluded.updated_at
RETURNING version`

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(block_id, version, saved_at, data) VALUES (?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const pruneSnapshotsSQL = `DELETE FROM snapshots WHERE block_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE block_id = ? ORDER BY version DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT version, saved_at, data FROM snapshots WHERE block_id = ? ORDER BY version DESC LIMIT ?`

// SQLite is the embedded block store.
type SQLite struct {
	db   *sql.DB
	keep int
	log  *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path, enables WAL
// mode and brings the schema up to date.
func OpenSQLite(path string) (*SQLite, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer; the store is embedded.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("block store ready")
	return &SQLite{db: db, keep: DefaultHistory, log: applog.WithComponent("storage")}, nil
}

// SetHistoryLimit changes how many snapshots Put keeps per block.
func (s *SQLite) SetHistoryLimit(n int) {
	if n > 0 {
		s.keep = n
	}
}

// DB exposes the handle for maintenance and tests.
func (s *SQLite) DB() *sql.DB { return s.db }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			id          TEXT PRIMARY KEY,
			data        TEXT NOT NULL,
			version     INTEGER NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			block_id  TEXT NOT NULL,
			version   INTEGER NOT NULL,
			saved_at  TEXT NOT NULL,
			data      TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_snapshots_block ON snapshots(block_id, version);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

func (s *SQLite) Put(ctx context.Context, blockID string, d domain.Data) error {
	if err := checkID(blockID); err != nil {
		return err
	}
	blob, err := encode(d)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var ver int64
	if err := tx.QueryRowContext(ctx, upsertBlockSQL, blockID, string(blob), now).Scan(&ver); err != nil {
		return fmt.Errorf("put block %s: %w", blockID, err)
	}
	if _, err := tx.ExecContext(ctx, insertSnapshotSQL, blockID, ver, now, string(blob)); err != nil {
		return fmt.Errorf("snapshot block %s: %w", blockID, err)
	}
	if _, err := tx.ExecContext(ctx, pruneSnapshotsSQL, blockID, blockID, s.keep); err != nil {
		return fmt.Errorf("prune snapshots %s: %w", blockID, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("block stored", slog.String("block", blockID), slog.Int64("version", ver))
	return nil
}

func (s *SQLite) Get(ctx context.Context, blockID string) (domain.Data, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM blocks WHERE id = ?`, blockID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Data{}, fmt.Errorf("get %s: %w", blockID, ErrNotFound)
	}
	if err != nil {
		return domain.Data{}, err
	}
	return decode([]byte(raw))
}

func (s *SQLite) List(ctx context.Context) ([]BlockInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, version, updated_at FROM blocks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []BlockInfo
	for rows.Next() {
		var bi BlockInfo
		var ts string
		if err := rows.Scan(&bi.ID, &bi.Version, &ts); err != nil {
			return nil, err
		}
		bi.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, bi)
	}
	return out, rows.Err()
}

func (s *SQLite) History(ctx context.Context, blockID string, n int) ([]Snapshot, error) {
	if n <= 0 {
		n = DefaultHistory
	}
	rows, err := s.db.QueryContext(ctx, listSnapshotsSQL, blockID, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Snapshot
	for rows.Next() {
		var sn Snapshot
		var ts, raw string
		if err := rows.Scan(&sn.Version, &ts, &raw); err != nil {
			return nil, err
		}
		sn.SavedAt, _ = time.Parse(time.RFC3339Nano, ts)
		if sn.Data, err = decode([]byte(raw)); err != nil {
			s.log.Warn("skipping unreadable snapshot", slog.String("block", blockID), slog.Int64("version", sn.Version), slog.Any("err", err))
			continue
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, blockID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE id = ?`, blockID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %s: %w", blockID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE block_id = ?`, blockID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Close() error { return s.db.Close() }
