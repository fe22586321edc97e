/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"

	"drawingtool/internal/bus"
	"drawingtool/internal/crash"
	"drawingtool/internal/scene"
	"drawingtool/internal/textedit"
	"drawingtool/internal/transform"
	"drawingtool/internal/vector"
)

// interactive checks that o may be manipulated. Called with the mutex held.
func (e *Editor) interactive(o *scene.Object) error {
	if err := e.writable(); err != nil {
		return err
	}
	return e.own(o)
}

// DragStart begins a move of o.
func (e *Editor) DragStart(o *scene.Object) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.interactive(o); err != nil {
		return err
	}
	e.canvas.ClearGuides()
	return nil
}

// DragMove places o at (x, y) and snaps it to the nearest stop line per axis
// within the configured tolerance. It returns the guides it drew.
func (e *Editor) DragMove(o *scene.Object, x, y float64) ([]vector.Guide, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.interactive(o); err != nil {
		return nil, err
	}
	var guides []vector.Guide
	err := crash.Guard(e.log, "drag-move", func() error {
		e.canvas.ClearGuides()
		o.SetAbsolutePosition(vector.Pt{X: x, Y: y})
		if !e.cfg.Guides.Enabled {
			return nil
		}
		stops := vector.StopLines(e.canvas.Width(), e.canvas.Height(), e.canvas.StopRects(o))
		anchor := o.AbsolutePosition()
		guides = vector.ComputeGuides(stops, vector.ItemBounds(o.ClientRect(), anchor), e.cfg.Guides.Tolerance)
		if len(guides) == 0 {
			return nil
		}
		o.SetAbsolutePosition(vector.SnapAnchor(anchor, guides))

		lines := make([]vector.GuideLine, len(guides))
		orients := make([]string, len(guides))
		for i, g := range guides {
			lines[i] = g.Line()
			orients[i] = string(g.Orientation)
		}
		e.canvas.SetGuides(lines)
		e.metrics.Snapped(orients...)
		return nil
	})
	if err != nil {
		e.canvas.ClearGuides()
		return nil, err
	}
	return guides, nil
}

// DragEnd finishes a move: guides are removed and the change is scheduled
// for saving.
func (e *Editor) DragEnd(o *scene.Object) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.interactive(o); err != nil {
		return err
	}
	e.canvas.ClearGuides()
	bus.Publish(e.bus, bus.DragEnd{Object: o})
	e.touch()
	e.scheduleAutosave()
	return nil
}

// TransformStart begins a handle gesture on o.
func (e *Editor) TransformStart(o *scene.Object) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.interactive(o); err != nil {
		return err
	}
	e.canvas.ClearGuides()
	e.touch()
	return nil
}

// Transform applies one step of handle a moved by (dx, dy).
func (e *Editor) Transform(o *scene.Object, a transform.Anchor, dx, dy float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.interactive(o); err != nil {
		return err
	}
	if err := crash.Guard(e.log, "transform", func() error { return e.tm.Drag(o, a, dx, dy) }); err != nil {
		return err
	}
	e.touch()
	return nil
}

// Rotate turns o by deg around its center.
func (e *Editor) Rotate(o *scene.Object, deg float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.interactive(o); err != nil {
		return err
	}
	if err := crash.Guard(e.log, "rotate", func() error { return e.tm.Rotate(o, deg) }); err != nil {
		return err
	}
	e.touch()
	return nil
}

// TransformEnd commits a handle gesture and schedules a save.
func (e *Editor) TransformEnd(o *scene.Object) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.interactive(o); err != nil {
		return err
	}
	bus.Publish(e.bus, bus.TransformEnd{Object: o})
	return nil
}

// BeginTextEdit opens the editing surface over the text o. A surface open on
// any canvas of the same document is committed first.
func (e *Editor) BeginTextEdit(o *scene.Object) (textedit.Surface, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.interactive(o); err != nil {
		return textedit.Surface{}, err
	}
	if o.Kind != scene.KindText {
		return textedit.Surface{}, fmt.Errorf("edit %s: %w", o.ID, ErrNotText)
	}
	if e.selected != o {
		e.selectObject(o)
	}
	s, err := e.doc.Begin(textedit.Options{
		BlockID:  e.blockID,
		Canvas:   e.canvas,
		Node:     o,
		Bus:      e.bus,
		Viewport: e.viewport,
		Style: textedit.Style{
			TextareaPadding: e.cfg.Text.TextareaPadding,
			LinkColor:       e.cfg.Link.Color,
			LinkDecoration:  e.cfg.Link.Decoration,
		},
		Lock: &e.mu,
	})
	if err != nil {
		return textedit.Surface{}, err
	}
	e.session = s
	return s.Surface(), nil
}

func (e *Editor) openSession() (*textedit.Session, error) {
	if e.destroyed {
		return nil, ErrDestroyed
	}
	if e.session == nil || !e.session.Open() {
		return nil, ErrNotEditing
	}
	return e.session, nil
}

// TextInput mirrors the surface value into the edited text.
func (e *Editor) TextInput(value string) (textedit.Surface, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.openSession()
	if err != nil {
		return textedit.Surface{}, err
	}
	if err := s.Input(value); err != nil {
		return textedit.Surface{}, err
	}
	return s.Surface(), nil
}

// TextKeyDown forwards a key pressed on the surface and reports whether the
// session ended.
func (e *Editor) TextKeyDown(key string, shift bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.openSession()
	if err != nil {
		return false, err
	}
	return s.KeyDown(key, shift), nil
}

// PointerDown reports a pointer press on the page. A press outside the open
// surface commits it.
func (e *Editor) PointerDown(onSurface bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.openSession()
	if err != nil {
		return false
	}
	return s.PointerDown(onSurface)
}

// EditSurface returns the open surface of this editor, if any.
func (e *Editor) EditSurface() (textedit.Surface, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.openSession()
	if err != nil {
		return textedit.Surface{}, false
	}
	return s.Surface(), true
}
