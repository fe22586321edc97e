/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the persisted block payload exchanged with the host editor.
// The JSON field names are part of the stored format and must not change.

import (
	"encoding/json"
	"fmt"
)

// DefaultCanvasHeight is used when a payload carries no (or a zero) height.
const DefaultCanvasHeight = 500

// Data is the persisted state of one drawing block.
type Data struct {
	// CanvasJSON is the serialized scene; nil means "empty canvas".
	CanvasJSON   *string     `json:"canvasJson"`
	CanvasImages []ImageData `json:"canvasImages"`
	CanvasHeight float64     `json:"canvasHeight"`
}

// ImageData records one placed image and where its pixels come from.
type ImageData struct {
	ID    string     `json:"id"`
	Src   string     `json:"src"`
	Attrs ImageAttrs `json:"attrs"`
}

// ImageAttrs is the geometry of a placed image. Unknown attributes are kept in
// Extra and written back unchanged.
type ImageAttrs struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	ScaleX   float64
	ScaleY   float64
	Rotation float64
	Extra    map[string]any
}

var imageAttrKeys = []string{"x", "y", "width", "height", "scaleX", "scaleY", "rotation"}

func (a ImageAttrs) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.Extra)+len(imageAttrKeys))
	for k, v := range a.Extra {
		m[k] = v
	}
	m["x"], m["y"] = a.X, a.Y
	m["width"], m["height"] = a.Width, a.Height
	m["scaleX"], m["scaleY"] = a.ScaleX, a.ScaleY
	m["rotation"] = a.Rotation
	return json.Marshal(m)
}

func (a *ImageAttrs) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*a = ImageAttrs{ScaleX: 1, ScaleY: 1}
	dst := []*float64{&a.X, &a.Y, &a.Width, &a.Height, &a.ScaleX, &a.ScaleY, &a.Rotation}
	for i, k := range imageAttrKeys {
		v, ok := m[k]
		if !ok {
			continue
		}
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("image attr %q: want number, got %T", k, v)
		}
		*dst[i] = f
		delete(m, k)
	}
	if len(m) > 0 {
		a.Extra = m
	}
	return nil
}

// Normalize applies the defaults a freshly constructed block expects:
// empty scene strings become nil, a nil image list becomes empty and a
// missing height becomes DefaultCanvasHeight.
func (d Data) Normalize() Data {
	if d.CanvasJSON != nil && *d.CanvasJSON == "" {
		d.CanvasJSON = nil
	}
	if d.CanvasImages == nil {
		d.CanvasImages = []ImageData{}
	}
	if d.CanvasHeight <= 0 {
		d.CanvasHeight = DefaultCanvasHeight
	}
	return d
}

// Clone returns a deep enough copy to hand across goroutines.
func (d Data) Clone() Data {
	out := d
	if d.CanvasJSON != nil {
		s := *d.CanvasJSON
		out.CanvasJSON = &s
	}
	if d.CanvasImages != nil {
		out.CanvasImages = make([]ImageData, len(d.CanvasImages))
		for i, im := range d.CanvasImages {
			out.CanvasImages[i] = im
			if im.Attrs.Extra != nil {
				ex := make(map[string]any, len(im.Attrs.Extra))
				for k, v := range im.Attrs.Extra {
					ex[k] = v
				}
				out.CanvasImages[i].Attrs.Extra = ex
			}
		}
	}
	return out
}

// StringPtr is a small helper for building Data literals.
func StringPtr(s string) *string { return &s }
