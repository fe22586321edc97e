/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

// Serialized scene format. The layout matches what the browser widget stores
// in canvasJson so blocks written by either side load in the other:
//
//	{"attrs":{},"className":"Layer","children":[{"attrs":{...},"className":"Text"}]}
//
// Attributes equal to their default are omitted, as the browser does.

import (
	"encoding/json"
	"fmt"
	"log/slog"

	applog "drawingtool/internal/log"
)

// Node is one serialized scene node.
type Node struct {
	Attrs     map[string]any `json:"attrs"`
	ClassName string         `json:"className"`
	Children  []Node         `json:"children,omitempty"`
}

const (
	classLayer = "Layer"
	classText  = "Text"
	classImage = "Image"
	classRect  = "Rect"
)

// Keys consumed by the codec; everything else round-trips through Object.Extra.
var knownKeys = map[string]bool{
	"id": true, "name": true, "x": true, "y": true, "width": true, "height": true,
	"rotation": true, "scaleX": true, "scaleY": true, "draggable": true, "visible": true,
	"text": true, "fontFamily": true, "fontSize": true, "fill": true, "align": true,
	"fontStyle": true, "lineHeight": true, "wrap": true, "padding": true,
	"textDecoration": true, "link": true, "previousFill": true,
}

// Attrs returns the serialized attribute map of o.
func Attrs(o *Object) map[string]any {
	m := make(map[string]any, len(o.Extra)+12)
	for k, v := range o.Extra {
		m[k] = v
	}
	m["id"] = o.ID
	if o.Name != "" {
		m["name"] = o.Name
	}
	m["x"], m["y"] = o.X, o.Y
	m["width"] = o.Width
	if o.Kind != KindText {
		m["height"] = o.Height
	}
	if o.Rotation != 0 {
		m["rotation"] = o.Rotation
	}
	if o.ScaleX != 1 {
		m["scaleX"] = o.ScaleX
	}
	if o.ScaleY != 1 {
		m["scaleY"] = o.ScaleY
	}
	m["draggable"] = o.Draggable
	if !o.Visible {
		m["visible"] = false
	}
	if t := o.Text; t != nil {
		m["text"] = t.Content
		m["fontFamily"] = t.FontFamily
		m["fontSize"] = t.FontSize
		m["fill"] = t.Fill
		m["align"] = t.Align
		m["fontStyle"] = t.FontStyle
		m["lineHeight"] = t.LineHeight
		m["wrap"] = t.Wrap
		if t.Padding != 0 {
			m["padding"] = t.Padding
		}
		if t.Decoration != "" {
			m["textDecoration"] = t.Decoration
		}
		if t.Link != "" {
			m["link"] = t.Link
		}
		if t.PreviousFill != nil {
			m["previousFill"] = *t.PreviousFill
		}
	}
	return m
}

func className(k Kind) string {
	switch k {
	case KindText:
		return classText
	case KindImage:
		return classImage
	default:
		return classRect
	}
}

// Encode serializes objs (bottom to top) as a layer document.
func Encode(objs []*Object) (string, error) {
	layer := Node{Attrs: map[string]any{}, ClassName: classLayer, Children: make([]Node, 0, len(objs))}
	for _, o := range objs {
		layer.Children = append(layer.Children, Node{Attrs: Attrs(o), ClassName: className(o.Kind)})
	}
	b, err := json.Marshal(layer)
	if err != nil {
		return "", fmt.Errorf("encode scene: %w", err)
	}
	return string(b), nil
}

// Decode parses a layer document. Children that are not placeable objects
// (transformers, guide lines) are ignored; malformed children are logged and
// skipped so the rest of the scene still loads. Image children come back with
// nil pixels; their data lives in the block's image list.
func Decode(raw string) ([]*Object, error) {
	var layer Node
	if err := json.Unmarshal([]byte(raw), &layer); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	l := applog.WithComponent("scene")
	out := make([]*Object, 0, len(layer.Children))
	for i, n := range layer.Children {
		o, err := decodeNode(n)
		if err != nil {
			l.Warn("skipping scene node", slog.Int("index", i), slog.String("class", n.ClassName), slog.Any("err", err))
			continue
		}
		if o != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

func decodeNode(n Node) (*Object, error) {
	var o *Object
	switch n.ClassName {
	case classText:
		o = NewText("", "", 0, 0)
		o.Width = 0
	case classImage:
		o = NewImage("", nil, "", 0, 0, 0, 0)
	case classRect:
		o = NewGeneric("", 0, 0, 0, 0)
	default:
		return nil, nil
	}
	a := attrReader{m: n.Attrs}
	o.ID = a.str("id", "")
	o.Name = a.str("name", o.Name)
	if o.Name == GuideLineName {
		return nil, nil
	}
	o.X = a.num("x", 0)
	o.Y = a.num("y", 0)
	o.Width = a.num("width", o.Width)
	o.Height = a.num("height", 0)
	o.Rotation = a.num("rotation", 0)
	o.ScaleX = a.num("scaleX", 1)
	o.ScaleY = a.num("scaleY", 1)
	o.Draggable = a.boolean("draggable", false)
	o.Visible = a.boolean("visible", true)
	if t := o.Text; t != nil {
		t.Content = a.str("text", "")
		t.FontFamily = a.str("fontFamily", DefaultFontFamily)
		t.FontSize = a.num("fontSize", DefaultFontSize)
		t.Fill = a.str("fill", DefaultFill)
		t.Align = a.str("align", DefaultAlign)
		t.FontStyle = a.str("fontStyle", DefaultFontStyle)
		t.LineHeight = a.num("lineHeight", 1)
		t.Wrap = a.str("wrap", DefaultWrap)
		t.Padding = a.num("padding", 0)
		t.Decoration = a.str("textDecoration", "")
		t.Link = a.str("link", "")
		if _, ok := n.Attrs["previousFill"]; ok {
			pf := a.str("previousFill", "")
			t.PreviousFill = &pf
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	if o.Width < 0 || o.Height < 0 {
		return nil, fmt.Errorf("negative size %vx%v", o.Width, o.Height)
	}
	for k, v := range n.Attrs {
		if knownKeys[k] {
			continue
		}
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		o.Extra[k] = v
	}
	return o, nil
}

// attrReader records the first type mismatch and keeps returning defaults.
type attrReader struct {
	m   map[string]any
	err error
}

func (a *attrReader) num(k string, def float64) float64 {
	v, ok := a.m[k]
	if !ok || v == nil {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		a.fail(k, "number", v)
		return def
	}
	return f
}

func (a *attrReader) str(k, def string) string {
	v, ok := a.m[k]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		a.fail(k, "string", v)
		return def
	}
	return s
}

func (a *attrReader) boolean(k string, def bool) bool {
	v, ok := a.m[k]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		a.fail(k, "bool", v)
		return def
	}
	return b
}

func (a *attrReader) fail(k, want string, got any) {
	if a.err == nil {
		a.err = fmt.Errorf("attr %q: want %s, got %T", k, want, got)
	}
}
