/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textedit swaps a rendered text object for an editable surface and
// reconciles the result back into the scene.
//
// Only one surface exists per Document. Opening a session commits and tears
// down whatever session the Document held before.
package textedit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"unicode/utf8"

	"drawingtool/internal/bus"
	applog "drawingtool/internal/log"
	"drawingtool/internal/scene"
)

var (
	ErrNotText  = errors.New("object is not text")
	ErrNotOwned = errors.New("object does not belong to this canvas")
	ErrClosed   = errors.New("edit session closed")
)

type State int

const (
	Displayed State = iota
	Editing
	Committing
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Committing:
		return "committing"
	default:
		return "displayed"
	}
}

// Keys handled by KeyDown.
const (
	KeyEnter  = "Enter"
	KeyEscape = "Escape"
)

// Viewport describes where the canvas sits on the page.
type Viewport struct {
	OriginX, OriginY float64 // container client rect
	ScrollX, ScrollY float64
	Scale            float64 // absolute canvas scale, 1 when zero
	// QuirkyBaseline shifts the surface up to line it up with the canvas
	// glyphs on engines that place textarea baselines lower.
	QuirkyBaseline bool
	// RoundWidths rounds surface widths up to whole pixels.
	RoundWidths bool
}

// Surface is the editable overlay, positioned and styled like the text node.
type Surface struct {
	EditorID   string
	Left, Top  float64
	Width      float64
	Height     float64
	FontSize   float64
	FontFamily string
	LineHeight float64
	Align      string
	Color      string
	Rotation   float64
	Transform  string // CSS transform, origin top-left
	Value      string
}

// Style carries the values a session needs from configuration.
type Style struct {
	TextareaPadding float64 // extra height added to the surface, default 5
	LinkColor       string
	LinkDecoration  string
}

// Options opens a session.
type Options struct {
	BlockID  string
	Canvas   *scene.Canvas
	Node     *scene.Object
	Bus      *bus.Bus
	Viewport Viewport
	Style    Style
	// Lock is the owner's lock. Sessions of other owners torn down by Begin
	// are finished under their own lock on a separate goroutine.
	Lock sync.Locker
}

// Session is one open editing surface.
type Session struct {
	doc     *Document
	opts    Options
	node    *scene.Object
	surface Surface
	state   State
	log     *slog.Logger
}

func (s *Session) State() State        { return s.state }
func (s *Session) Node() *scene.Object { return s.node }
func (s *Session) Surface() Surface    { return s.surface }
func (s *Session) Owner() sync.Locker  { return s.opts.Lock }
func (s *Session) Open() bool          { return s.state == Editing }

func newSession(d *Document, o Options) (*Session, error) {
	if o.Node == nil || o.Node.Kind != scene.KindText || o.Node.Text == nil {
		return nil, ErrNotText
	}
	if o.Canvas == nil || !o.Canvas.Owns(o.Node) {
		return nil, fmt.Errorf("begin edit %s: %w", o.Node.ID, ErrNotOwned)
	}
	if o.Viewport.Scale <= 0 {
		o.Viewport.Scale = 1
	}
	if o.Style.TextareaPadding == 0 {
		o.Style.TextareaPadding = 5
	}
	if o.Style.LinkColor == "" {
		o.Style.LinkColor = "#0066cc"
	}
	if o.Style.LinkDecoration == "" {
		o.Style.LinkDecoration = "underline"
	}
	if o.Bus == nil {
		o.Bus = &bus.Bus{}
	}
	return &Session{
		doc:  d,
		opts: o,
		node: o.Node,
		log:  applog.WithComponent("textedit").With(slog.String("block", o.BlockID)),
	}, nil
}

// open hides the node and transformer and builds the surface.
func (s *Session) open() {
	n := s.node
	t := n.Text
	n.Visible = false
	bus.Publish(s.opts.Bus, bus.HideTransformer{})
	if n.HasLink() {
		// plain, undecorated while editing
		t.Fill = plainFill(t)
		t.Decoration = ""
	}
	vp := s.opts.Viewport
	abs := n.AbsolutePosition()
	s.surface = Surface{
		EditorID:   s.opts.BlockID,
		Left:       vp.OriginX + abs.X + vp.ScrollX,
		Top:        vp.OriginY + abs.Y + vp.ScrollY,
		Width:      n.Width - 2*t.Padding,
		Height:     n.Height - 2*t.Padding + s.opts.Style.TextareaPadding,
		FontSize:   t.FontSize,
		FontFamily: t.FontFamily,
		LineHeight: t.LineHeight,
		Align:      t.Align,
		Color:      t.Fill,
		Rotation:   n.Rotation,
		Transform:  surfaceTransform(n.Rotation, t.FontSize, vp.QuirkyBaseline),
		Value:      t.Content,
	}
	s.state = Editing
	s.log.Debug("edit session opened", slog.String("id", n.ID))
}

func plainFill(t *scene.Text) string {
	if t.PreviousFill != nil {
		return *t.PreviousFill
	}
	return scene.DefaultFill
}

func surfaceTransform(rotation, fontSize float64, quirky bool) string {
	var tr string
	if rotation != 0 {
		tr = fmt.Sprintf("rotateZ(%gdeg)", rotation)
	}
	if quirky {
		tr += fmt.Sprintf("translateY(-%dpx)", BaselineShift(fontSize))
	}
	return tr
}

// BaselineShift is the upward correction in pixels for quirky engines.
func BaselineShift(fontSize float64) int {
	return 2 + int(math.Floor(fontSize/20+0.5))
}

// Input mirrors value into the node and resizes the surface to fit.
func (s *Session) Input(value string) error {
	if s.state != Editing {
		return ErrClosed
	}
	n := s.node
	n.Text.Content = value
	s.opts.Canvas.Reflow(n)

	w := n.Width * s.opts.Viewport.Scale
	if w == 0 {
		w = float64(utf8.RuneCountInString(value)) * n.Text.FontSize
	}
	if s.opts.Viewport.RoundWidths {
		w = math.Ceil(w)
	}
	s.surface.Width = w
	s.surface.Height = n.Height - 2*n.Text.Padding + n.Text.FontSize
	s.surface.Value = value
	return nil
}

// KeyDown handles a key on the surface and reports whether the session ended.
// Enter without shift commits. Escape ends the session keeping the mirrored
// text; there is no discard.
func (s *Session) KeyDown(key string, shift bool) bool {
	if s.state != Editing {
		return false
	}
	switch {
	case key == KeyEnter && !shift:
		s.finish(true)
		return true
	case key == KeyEscape:
		s.finish(false)
		return true
	}
	return false
}

// PointerDown commits when the pointer lands outside the surface.
func (s *Session) PointerDown(onSurface bool) bool {
	if s.state != Editing || onSurface {
		return false
	}
	s.finish(true)
	return true
}

// Commit writes the surface value and closes the session.
func (s *Session) Commit() {
	if s.state == Editing {
		s.finish(true)
	}
}

// Displayed returns a copy of the edited node as it shows once the session
// ends: visible, with the surface value and link styling applied.
func (s *Session) Displayed() *scene.Object {
	c := s.node.Clone()
	if s.state == Editing {
		c.Text.Content = s.surface.Value
	}
	s.restore(c)
	return c
}

func (s *Session) restore(n *scene.Object) {
	n.Visible = true
	if n.HasLink() {
		n.Text.Fill = s.opts.Style.LinkColor
		n.Text.Decoration = s.opts.Style.LinkDecoration
	}
}

func (s *Session) finish(apply bool) {
	s.state = Committing
	s.doc.release(s)
	n := s.node
	if apply {
		n.Text.Content = s.surface.Value
	}
	s.restore(n)
	if n.Owner() != nil {
		s.opts.Canvas.Reflow(n)
	}
	bus.Publish(s.opts.Bus, bus.ShowTransformer{})
	s.state = Displayed
	s.log.Debug("edit session closed", slog.String("id", n.ID), slog.Bool("applied", apply))
	bus.Publish(s.opts.Bus, bus.TransformEnd{Object: n})
}
