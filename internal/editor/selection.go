/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"drawingtool/internal/bus"
	"drawingtool/internal/scene"
)

// Select makes o the selection and attaches transform handles to it; nil
// clears the selection. An object of another canvas is rejected with
// ErrNotOwned and leaves selection and handles untouched.
func (e *Editor) Select(o *scene.Object) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	if o == nil {
		e.selectObject(nil)
		return nil
	}
	if err := e.own(o); err != nil {
		e.log.Debug("select ignored", slog.String("id", o.ID), slog.Any("err", err))
		return err
	}
	if e.readOnly {
		return ErrReadOnly
	}
	e.selectObject(o)
	return nil
}

// selectObject swaps the selection. Called with the mutex held.
func (e *Editor) selectObject(o *scene.Object) {
	if e.selected != o || o == nil {
		e.tm.Clear()
	}
	e.selected = o
	if o != nil {
		e.tm.Attach(o)
	}
	bus.Publish(e.bus, bus.Selected{Object: o})
}

// Delete removes the selected object. Deleting an image drops its decoded
// pixels and its entry from the saved image list.
func (e *Editor) Delete() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return err
	}
	o := e.selected
	if err := e.own(o); err != nil {
		return err
	}
	if s := e.session; s != nil && s.Open() && s.Node() == o {
		s.Commit()
	}
	if o.Kind == scene.KindImage {
		imgs := e.data.CanvasImages[:0:0]
		for _, im := range e.data.CanvasImages {
			if im.ID != o.ID {
				imgs = append(imgs, im)
			}
		}
		e.data.CanvasImages = imgs
		if o.Image != nil {
			o.Image.Pixels = nil
		}
	}
	e.tm.Clear()
	e.canvas.Remove(o)
	e.selected = nil
	bus.Publish(e.bus, bus.Selected{})
	e.touch()
	e.scheduleAutosave()
	e.log.Debug("deleted", slog.String("id", o.ID), slog.String("kind", string(o.Kind)))
	return nil
}

// Click handles a pointer click on target, or on the empty stage when target
// is nil. Guide lines and objects of other canvases are ignored.
func (e *Editor) Click(target *scene.Object) error {
	if target != nil && target.Name == scene.GuideLineName {
		return nil
	}
	e.mu.Lock()
	foreign := target != nil && !e.canvas.Owns(target)
	e.mu.Unlock()
	if foreign {
		return nil
	}
	if err := e.Select(target); err != nil && !errors.Is(err, ErrReadOnly) {
		return err
	}
	return nil
}

// KeyEvent is a keyboard event delivered to the canvas.
type KeyEvent struct {
	Key               string
	Shift, Ctrl, Meta bool
}

// KeyDown handles editor shortcuts. Keys are ignored while a text surface is
// open and in read-only mode.
func (e *Editor) KeyDown(ctx context.Context, k KeyEvent) error {
	e.mu.Lock()
	skip := e.readOnly || e.destroyed || (e.session != nil && e.session.Open())
	e.mu.Unlock()
	if skip {
		return nil
	}
	switch {
	case (k.Ctrl || k.Meta) && strings.EqualFold(k.Key, "s"):
		_, err := e.Save(ctx)
		return err
	case k.Key == "Delete" || k.Key == "Backspace":
		if err := e.Delete(); err != nil && !errors.Is(err, ErrNothingSelected) {
			return err
		}
	case k.Key == "Escape":
		return e.Select(nil)
	}
	return nil
}
