/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textedit

import "sync"

// Document owns the single editing-surface slot shared by every canvas on a page.
type Document struct {
	mu     sync.Mutex
	active *Session
	wg     sync.WaitGroup
}

// DefaultDocument is the process-wide slot.
var DefaultDocument = NewDocument()

func NewDocument() *Document { return &Document{} }

// Active returns the open session, if any.
func (d *Document) Active() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Surfaces reports how many editing surfaces exist; never more than one.
func (d *Document) Surfaces() int {
	if d.Active() != nil {
		return 1
	}
	return 0
}

// Begin commits any open session and opens a new one on o.Node.
// The caller must hold o.Lock when it is set. A previous session owned by a
// different lock is committed under that lock on its own goroutine; Wait
// blocks until such hand-offs are done.
func (d *Document) Begin(o Options) (*Session, error) {
	s, err := newSession(d, o)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	prev := d.active
	d.active = s
	d.mu.Unlock()

	if prev != nil {
		if prev.opts.Lock == o.Lock {
			prev.Commit()
		} else {
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				if l := prev.opts.Lock; l != nil {
					l.Lock()
					defer l.Unlock()
				}
				prev.Commit()
			}()
		}
	}
	s.open()
	return s, nil
}

// Wait blocks until sessions handed off to other owners have been committed.
func (d *Document) Wait() { d.wg.Wait() }

// release frees the slot if s still holds it.
func (d *Document) release(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == s {
		d.active = nil
	}
}
