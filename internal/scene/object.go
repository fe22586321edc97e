/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"image"

	"drawingtool/internal/vector"
)

// Kind is the closed set of placeable objects.
type Kind string

const (
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindGeneric Kind = "generic"
)

// Names used for stop-line collection. Only ObjectName participates.
const (
	ObjectName    = "object"
	GuideLineName = "guid-line"
)

// Text defaults.
const (
	DefaultFontFamily = "Open Sans, sans-serif"
	DefaultFontSize   = 16
	DefaultFill       = "#000000"
	DefaultTextWidth  = 150
	DefaultLineHeight = 1.6
	DefaultAlign      = "left"
	DefaultWrap       = "word"
	DefaultFontStyle  = "normal"
)

// Object is a placed item. Kind selects which of Text and Image is set.
type Object struct {
	ID       string
	Kind     Kind
	Name     string
	X, Y     float64
	Width    float64
	Height   float64
	Rotation float64 // degrees
	ScaleX   float64
	ScaleY   float64

	Draggable bool
	Visible   bool

	// Extra carries attributes this package does not interpret.
	Extra map[string]any

	Text  *Text
	Image *Image

	owner *Canvas
}

// Text is the payload of a KindText object.
type Text struct {
	Content    string
	FontFamily string
	FontSize   float64
	Fill       string
	Align      string // left|center|right
	FontStyle  string // normal|bold
	LineHeight float64
	Wrap       string
	Padding    float64
	Decoration string
	Link       string

	// PreviousFill is the fill captured when a link was set; nil when no link
	// was ever set or the capture was consumed by removing the link.
	PreviousFill *string
}

// Image is the payload of a KindImage object.
type Image struct {
	Pixels image.Image
	Src    string
}

// NewText returns a text object with the default typography.
func NewText(id, content string, x, y float64) *Object {
	return &Object{
		ID: id, Kind: KindText, Name: ObjectName,
		X: x, Y: y, Width: DefaultTextWidth, ScaleX: 1, ScaleY: 1,
		Draggable: true, Visible: true,
		Text: &Text{
			Content:    content,
			FontFamily: DefaultFontFamily,
			FontSize:   DefaultFontSize,
			Fill:       DefaultFill,
			Align:      DefaultAlign,
			FontStyle:  DefaultFontStyle,
			LineHeight: DefaultLineHeight,
			Wrap:       DefaultWrap,
		},
	}
}

// NewImage returns an image object sized w x h.
func NewImage(id string, pixels image.Image, src string, x, y, w, h float64) *Object {
	return &Object{
		ID: id, Kind: KindImage, Name: ObjectName,
		X: x, Y: y, Width: w, Height: h, ScaleX: 1, ScaleY: 1,
		Draggable: true, Visible: true,
		Image: &Image{Pixels: pixels, Src: src},
	}
}

// NewGeneric returns a plain rectangle object.
func NewGeneric(id string, x, y, w, h float64) *Object {
	return &Object{
		ID: id, Kind: KindGeneric, Name: ObjectName,
		X: x, Y: y, Width: w, Height: h, ScaleX: 1, ScaleY: 1,
		Draggable: true, Visible: true,
	}
}

// Owner returns the canvas the object was added to, or nil.
func (o *Object) Owner() *Canvas { return o.owner }

// Transform is the local-to-canvas transform.
func (o *Object) Transform() vector.Affine2D {
	return vector.NodeTransform(o.X, o.Y, o.Rotation, o.ScaleX, o.ScaleY)
}

// ClientRect is the axis-aligned box around the rotated and scaled object.
func (o *Object) ClientRect() vector.Rect {
	return vector.TransformedBounds(o.Transform(), vector.R(0, 0, o.Width, o.Height))
}

// AbsolutePosition is the anchor point (x, y) in canvas coordinates.
func (o *Object) AbsolutePosition() vector.Pt { return vector.Pt{X: o.X, Y: o.Y} }

func (o *Object) SetAbsolutePosition(p vector.Pt) { o.X, o.Y = p.X, p.Y }

// HasLink reports whether a text object carries a hyperlink.
func (o *Object) HasLink() bool { return o.Text != nil && o.Text.Link != "" }

// Clone copies the object without its owner. Pixels are shared.
func (o *Object) Clone() *Object {
	c := *o
	c.owner = nil
	if o.Extra != nil {
		c.Extra = make(map[string]any, len(o.Extra))
		for k, v := range o.Extra {
			c.Extra[k] = v
		}
	}
	if o.Text != nil {
		t := *o.Text
		if t.PreviousFill != nil {
			pf := *t.PreviousFill
			t.PreviousFill = &pf
		}
		c.Text = &t
	}
	if o.Image != nil {
		im := *o.Image
		c.Image = &im
	}
	return &c
}
