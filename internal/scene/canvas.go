/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene is the retained-mode object collection of one drawing surface.
// It is not safe for concurrent use; the editor serializes access.
package scene

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"drawingtool/internal/textlayout"
	"drawingtool/internal/vector"
)

var (
	ErrDestroyed = errors.New("canvas destroyed")
	ErrForeign   = errors.New("object belongs to another canvas")
)

// Default surface size.
const (
	DefaultWidth  = 1050
	DefaultHeight = 500
)

// SurfaceID is the identity used for ownership checks.
func SurfaceID(blockID string) string { return "konva-container-" + blockID }

// Canvas owns an ordered object list (slice order is z-order, last on top)
// and a guide layer.
type Canvas struct {
	id        string
	width     float64
	height    float64
	objects   []*Object
	guides    []vector.GuideLine
	layout    *textlayout.Layouter
	destroyed bool
}

// New creates a canvas for blockID. Non-positive sizes fall back to the defaults.
func New(blockID string, width, height float64) *Canvas {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Canvas{
		id:     SurfaceID(blockID),
		width:  width,
		height: height,
		layout: textlayout.New(textlayout.Default()),
	}
}

func (c *Canvas) ID() string      { return c.id }
func (c *Canvas) Width() float64  { return c.width }
func (c *Canvas) Height() float64 { return c.height }
func (c *Canvas) Destroyed() bool { return c.destroyed }
func (c *Canvas) Len() int        { return len(c.objects) }

func (c *Canvas) SetLayouter(l *textlayout.Layouter) { c.layout = l }

// SetHeight resizes the surface vertically.
func (c *Canvas) SetHeight(h float64) {
	if h > 0 {
		c.height = h
	}
}

// Add appends o on top. Objects without an ID get a generated one and text
// objects are reflowed.
func (c *Canvas) Add(o *Object) error {
	if c.destroyed {
		return ErrDestroyed
	}
	if o.owner != nil && o.owner != c {
		return fmt.Errorf("add %s: %w", o.ID, ErrForeign)
	}
	if o.owner == c {
		return nil
	}
	if o.ID == "" {
		o.ID = string(o.Kind) + "-" + uuid.NewString()
	}
	if o.ScaleX == 0 {
		o.ScaleX = 1
	}
	if o.ScaleY == 0 {
		o.ScaleY = 1
	}
	o.owner = c
	c.objects = append(c.objects, o)
	c.Reflow(o)
	return nil
}

// Remove detaches o. It reports false when o is not on this canvas.
func (c *Canvas) Remove(o *Object) bool {
	i := c.IndexOf(o)
	if i < 0 {
		return false
	}
	c.objects = append(c.objects[:i], c.objects[i+1:]...)
	o.owner = nil
	return true
}

// Owns is the ownership check by surface identity.
func (c *Canvas) Owns(o *Object) bool {
	return o != nil && o.owner != nil && !c.destroyed && o.owner.id == c.id && o.owner == c
}

func (c *Canvas) Find(id string) *Object {
	for _, o := range c.objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Objects returns the objects bottom to top. The slice is a copy.
func (c *Canvas) Objects() []*Object {
	out := make([]*Object, len(c.objects))
	copy(out, c.objects)
	return out
}

func (c *Canvas) IndexOf(o *Object) int {
	for i, x := range c.objects {
		if x == o {
			return i
		}
	}
	return -1
}

func (c *Canvas) MoveUp(o *Object) bool {
	i := c.IndexOf(o)
	if i < 0 || i == len(c.objects)-1 {
		return false
	}
	c.objects[i], c.objects[i+1] = c.objects[i+1], c.objects[i]
	return true
}

func (c *Canvas) MoveDown(o *Object) bool {
	i := c.IndexOf(o)
	if i <= 0 {
		return false
	}
	c.objects[i], c.objects[i-1] = c.objects[i-1], c.objects[i]
	return true
}

func (c *Canvas) ToTop(o *Object) bool {
	i := c.IndexOf(o)
	if i < 0 || i == len(c.objects)-1 {
		return false
	}
	c.objects = append(append(c.objects[:i], c.objects[i+1:]...), o)
	return true
}

func (c *Canvas) ToBottom(o *Object) bool {
	i := c.IndexOf(o)
	if i <= 0 {
		return false
	}
	copy(c.objects[1:i+1], c.objects[:i])
	c.objects[0] = o
	return true
}

// ClientRect returns the canvas-space bounding box of o.
func (c *Canvas) ClientRect(o *Object) vector.Rect { return o.ClientRect() }

// StopRects returns the client rects of every object named ObjectName
// except skip. Hidden objects still count.
func (c *Canvas) StopRects(skip *Object) []vector.Rect {
	out := make([]vector.Rect, 0, len(c.objects))
	for _, o := range c.objects {
		if o == skip || o.Name != ObjectName {
			continue
		}
		out = append(out, o.ClientRect())
	}
	return out
}

// Reflow recomputes the height of a text object from its content and width.
// Other kinds are left alone.
func (c *Canvas) Reflow(o *Object) {
	if o.Kind != KindText || o.Text == nil {
		return
	}
	box := c.Layout(o)
	o.Height = box.Height
	if o.Width <= 0 {
		o.Width = box.Width + 2*o.Text.Padding
	}
}

// Layout returns the line breaks for a text object, for renderers.
func (c *Canvas) Layout(o *Object) textlayout.Box {
	if o.Text == nil {
		return textlayout.Box{}
	}
	l := c.layout
	if l == nil {
		l = textlayout.New(nil)
	}
	return l.Layout(o.Text.Content, textlayout.Options{
		Font:       textlayout.FontSpec{Family: o.Text.FontFamily, Size: o.Text.FontSize, Bold: o.Text.FontStyle == "bold"},
		Width:      o.Width,
		Wrap:       o.Text.Wrap,
		LineHeight: o.Text.LineHeight,
		Padding:    o.Text.Padding,
	})
}

// Guides returns the rendered guide lines.
func (c *Canvas) Guides() []vector.GuideLine { return c.guides }

func (c *Canvas) SetGuides(g []vector.GuideLine) { c.guides = g }

func (c *Canvas) ClearGuides() { c.guides = nil }

// Clear removes every object and guide.
func (c *Canvas) Clear() {
	for _, o := range c.objects {
		o.owner = nil
	}
	c.objects = nil
	c.guides = nil
}

// Destroy clears the canvas and rejects further additions.
func (c *Canvas) Destroy() {
	c.Clear()
	c.destroyed = true
}
