/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists drawing blocks for the host.
// Each block is stored as its serialized payload with a version counter; every write also appends a
// snapshot so earlier states can be listed and restored. Two backends exist: an embedded SQLite file
// (WAL mode, schema versioned in a single-row table) and PostgreSQL through a pgx pool with embedded
// migrations.
package storage
