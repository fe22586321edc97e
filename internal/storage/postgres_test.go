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
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openPGForTest(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("DT_PG_DSN")
	if dsn == "" {
		t.Skip("DT_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPostgresRoundTrip(t *testing.T) {
	p := openPGForTest(t)
	ctx := context.Background()
	id := "test-" + uuid.NewString()
	t.Cleanup(func() { _ = p.Delete(ctx, id) })

	for _, h := range []float64{250, 500, 700} {
		if err := p.Put(ctx, id, block(`{"a":1}`, h)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := p.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.CanvasHeight != 700 {
		t.Fatalf("height = %v", got.CanvasHeight)
	}
	hist, err := p.History(ctx, id, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].Version != 3 {
		t.Fatalf("history %+v", hist)
	}
	if err := p.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), " "); err == nil {
		t.Fatalf("expected error")
	}
}
