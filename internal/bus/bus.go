/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package bus is the synchronous, typed message bus between the editor's
// parts. Subscribers are keyed by the Go type of the event they accept and are
// run in subscription order on the publisher's goroutine.
package bus

import (
	"reflect"
	"sync"
)

// The zero Bus is empty and ready for use.
type Bus struct {
	mu   sync.RWMutex
	next uint64
	subs map[reflect.Type][]sub
}

type sub struct {
	id uint64
	fn func(any)
}

// Subscription removes a handler when cancelled.
type Subscription struct {
	b  *Bus
	t  reflect.Type
	id uint64
}

// Subscribe registers fn for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) *Subscription {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[reflect.Type][]sub)
	}
	b.next++
	b.subs[t] = append(b.subs[t], sub{id: b.next, fn: func(v any) { fn(v.(T)) }})
	return &Subscription{b: b, t: t, id: b.next}
}

// Publish delivers ev to every subscriber of T and returns how many ran.
// Handlers may publish or (un)subscribe; they see the list as it was when
// Publish started.
func Publish[T any](b *Bus, ev T) int {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.RLock()
	list := append([]sub(nil), b.subs[t]...)
	b.mu.RUnlock()
	for _, s := range list {
		s.fn(ev)
	}
	return len(list)
}

// Count returns the number of subscribers for T.
func Count[T any](b *Bus) int {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}

func (s *Subscription) Cancel() {
	if s == nil || s.b == nil {
		return
	}
	b := s.b
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[s.t]
	for i, x := range list {
		if x.id == s.id {
			b.subs[s.t] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[s.t]) == 0 {
		delete(b.subs, s.t)
	}
	s.b = nil
}

// Group cancels many subscriptions at once.
type Group struct{ v []*Subscription }

func (g *Group) Add(s ...*Subscription) { g.v = append(g.v, s...) }

func (g *Group) CancelAll() {
	for _, s := range g.v {
		s.Cancel()
	}
	g.v = nil
}
