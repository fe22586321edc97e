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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"drawingtool/internal/config"
	"drawingtool/internal/domain"
)

var (
	ErrNotFound     = errors.New("block not found")
	ErrEmptyBlockID = errors.New("block id is required")
)

// DefaultHistory is how many snapshots are kept per block.
const DefaultHistory = 20

// Snapshot is one stored revision of a block.
type Snapshot struct {
	Version int64
	SavedAt time.Time
	Data    domain.Data
}

// BlockInfo summarises a stored block for listings.
type BlockInfo struct {
	ID        string
	Version   int64
	UpdatedAt time.Time
}

// Store is the block persistence collaborator.
type Store interface {
	Put(ctx context.Context, blockID string, d domain.Data) error
	Get(ctx context.Context, blockID string) (domain.Data, error)
	List(ctx context.Context) ([]BlockInfo, error)
	// History returns up to n snapshots, newest first.
	History(ctx context.Context, blockID string, n int) ([]Snapshot, error)
	Delete(ctx context.Context, blockID string) error
	Close() error
}

// Open opens the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite":
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres", "pg":
		s, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Persister adapts s to the editor's persist hook.
func Persister(s Store) func(ctx context.Context, blockID string, d domain.Data) error {
	return s.Put
}

func encode(d domain.Data) ([]byte, error) {
	b, err := json.Marshal(d.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encode block: %w", err)
	}
	return b, nil
}

func decode(b []byte) (domain.Data, error) {
	var d domain.Data
	if err := json.Unmarshal(b, &d); err != nil {
		return domain.Data{}, fmt.Errorf("decode block: %w", err)
	}
	return d.Normalize(), nil
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyBlockID
	}
	return nil
}
