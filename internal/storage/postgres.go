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
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drawingtool/internal/domain"
	applog "drawingtool/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// language=SQL
// dialect=PostgreSQL
const pgUpsertBlockSQL = `INSERT INTO blocks(id, data, version, updated_at) VALUES ($1, $2, 1, now())
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, version = blocks.version + 1, updated_at = now()
RETURNING version`

// language=SQL
// dialect=PostgreSQL
const pgPruneSnapshotsSQL = `DELETE FROM block_snapshots WHERE block_id = $1 AND id NOT IN (
	SELECT id FROM block_snapshots WHERE block_id = $1 ORDER BY version DESC LIMIT $2
)`

// Postgres is the server-side block store.
type Postgres struct {
	pool *pgxpool.Pool
	keep int
	log  *slog.Logger
}

// OpenPostgres connects a pool to dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "postgres_open")
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyMigrations(ctx, pool, l); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.Info("block store ready")
	return &Postgres{pool: pool, keep: DefaultHistory, log: applog.WithComponent("storage")}, nil
}

// Ping reports whether the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, l *slog.Logger) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return err
	}
	done := make(map[int64]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, name := range files {
		v, err := parseVersion(name)
		if err != nil {
			return err
		}
		if done[v] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", name))
		if err != nil {
			return err
		}
		l.Info("applying migration", slog.String("file", name))
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(b)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, v, name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	prefix, _, ok := strings.Cut(path.Base(name), "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid migration version in %s: %w", name, err)
	}
	return v, nil
}

func (p *Postgres) Put(ctx context.Context, blockID string, d domain.Data) error {
	if err := checkID(blockID); err != nil {
		return err
	}
	blob, err := encode(d)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var ver int64
		if err := tx.QueryRow(ctx, pgUpsertBlockSQL, blockID, string(blob)).Scan(&ver); err != nil {
			return fmt.Errorf("put block %s: %w", blockID, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO block_snapshots(block_id, version, data) VALUES ($1, $2, $3)`, blockID, ver, string(blob)); err != nil {
			return fmt.Errorf("snapshot block %s: %w", blockID, err)
		}
		if _, err := tx.Exec(ctx, pgPruneSnapshotsSQL, blockID, p.keep); err != nil {
			return fmt.Errorf("prune snapshots %s: %w", blockID, err)
		}
		return nil
	})
}

func (p *Postgres) Get(ctx context.Context, blockID string) (domain.Data, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT data::text FROM blocks WHERE id = $1`, blockID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Data{}, fmt.Errorf("get %s: %w", blockID, ErrNotFound)
	}
	if err != nil {
		return domain.Data{}, err
	}
	return decode(raw)
}

func (p *Postgres) List(ctx context.Context) ([]BlockInfo, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, version, updated_at FROM blocks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (BlockInfo, error) {
		var bi BlockInfo
		err := r.Scan(&bi.ID, &bi.Version, &bi.UpdatedAt)
		return bi, err
	})
}

func (p *Postgres) History(ctx context.Context, blockID string, n int) ([]Snapshot, error) {
	if n <= 0 {
		n = DefaultHistory
	}
	rows, err := p.pool.Query(ctx, `SELECT version, saved_at, data::text FROM block_snapshots
		WHERE block_id = $1 ORDER BY version DESC LIMIT $2`, blockID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var sn Snapshot
		var raw []byte
		if err := rows.Scan(&sn.Version, &sn.SavedAt, &raw); err != nil {
			return nil, err
		}
		if sn.Data, err = decode(raw); err != nil {
			p.log.Warn("skipping unreadable snapshot", slog.String("block", blockID), slog.Int64("version", sn.Version), slog.Any("err", err))
			continue
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, blockID string) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM blocks WHERE id = $1`, blockID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("delete %s: %w", blockID, ErrNotFound)
		}
		_, err = tx.Exec(ctx, `DELETE FROM block_snapshots WHERE block_id = $1`, blockID)
		return err
	})
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
