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
	"path/filepath"
	"testing"
	"time"

	"drawingtool/internal/config"
	"drawingtool/internal/domain"

	_ "modernc.org/sqlite"
)

func block(json string, h float64) domain.Data {
	return domain.Data{CanvasJSON: domain.StringPtr(json), CanvasHeight: h}
}

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "blocks.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLitePutGetList(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, "", block("{}", 500)); !errors.Is(err, ErrEmptyBlockID) {
		t.Fatalf("expected ErrEmptyBlockID, got %v", err)
	}
	if err := s.Put(ctx, "b", block(`{"children":[]}`, 700)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "a", block("{}", 0)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if got.CanvasJSON == nil || *got.CanvasJSON != `{"children":[]}` || got.CanvasHeight != 700 {
		t.Fatalf("unexpected block %+v", got)
	}
	if a, _ := s.Get(ctx, "a"); a.CanvasHeight != domain.DefaultCanvasHeight || a.CanvasImages == nil {
		t.Fatalf("stored data should be normalized: %+v", a)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" || list[0].Version != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].UpdatedAt.IsZero() {
		t.Fatalf("missing timestamp")
	}
}

func TestSQLiteHistoryIsBounded(t *testing.T) {
	s := openTemp(t)
	s.SetHistoryLimit(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := s.Put(ctx, "x", block(fmt.Sprintf(`{"n":%d}`, i), 500)); err != nil {
			t.Fatal(err)
		}
	}
	hist, err := s.History(ctx, "x", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(hist))
	}
	if hist[0].Version != 5 || *hist[0].Data.CanvasJSON != `{"n":5}` || hist[2].Version != 3 {
		t.Fatalf("unexpected order: %d..%d", hist[0].Version, hist[2].Version)
	}
	if one, _ := s.History(ctx, "x", 1); len(one) != 1 {
		t.Fatalf("limit not applied")
	}
}

func TestSQLiteDelete(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if err := s.Put(ctx, "gone", block("{}", 500)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if hist, _ := s.History(ctx, "gone", 0); len(hist) != 0 {
		t.Fatalf("snapshots should be removed with the block")
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blocks.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Put(ctx, "k", block("{}", 250)); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s2, err := Open(ctx, config.StorageConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s2.Close() }()
	got, err := s2.Get(ctx, "k")
	if err != nil || got.CanvasHeight != 250 {
		t.Fatalf("reopen: %+v %v", got, err)
	}
}

// An older database at schema 1 gets the snapshot index on open.
func TestSQLiteMigratesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.sqlite")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)", filepath.ToSlash(path)))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, q := range []string{
		`CREATE TABLE version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
	} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_ = db.Close()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()
	var schema, idx int
	if err := s.DB().QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatal(err)
	}
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_snapshots_block'`).Scan(&idx); err != nil {
		t.Fatal(err)
	}
	if schema != schemaVersion || idx != 1 {
		t.Fatalf("schema=%d index=%d", schema, idx)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.StorageConfig{Driver: "mongo"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("0002_snapshot_index.sql"); err != nil || v != 2 {
		t.Fatalf("got %d %v", v, err)
	}
	if _, err := parseVersion("nounderscore.sql"); err == nil {
		t.Fatalf("expected error")
	}
}
