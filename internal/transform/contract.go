/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package transform holds the per-kind resize/rotate contracts and the
// single active transformer of a canvas.
package transform

import (
	"math"

	"drawingtool/internal/scene"
)

// Anchor is a resize handle.
type Anchor string

const (
	TopLeft     Anchor = "top-left"
	TopRight    Anchor = "top-right"
	BottomLeft  Anchor = "bottom-left"
	BottomRight Anchor = "bottom-right"
	MiddleLeft  Anchor = "middle-left"
	MiddleRight Anchor = "middle-right"
)

// sign returns the direction a handle grows the box along local x and y.
func (a Anchor) sign() (sx, sy float64) {
	switch a {
	case TopLeft:
		return -1, -1
	case TopRight:
		return 1, -1
	case BottomLeft:
		return -1, 1
	case BottomRight:
		return 1, 1
	case MiddleLeft:
		return -1, 0
	case MiddleRight:
		return 1, 0
	}
	return 0, 0
}

// Box is the size part of a transformer bounding box.
type Box struct{ Width, Height float64 }

// Contract is the capability entry for one object kind.
type Contract struct {
	Anchors      []Anchor
	Rotate       bool
	KeepRatio    bool
	Padding      float64
	BorderStroke string
	AnchorStroke string
	AnchorFill   string

	// Validate gets the box before and after a live step and returns the box
	// to use; returning old rejects the step.
	Validate func(old, new Box) Box
	// Bake writes live scale into width/height and resets scale to 1.
	Bake func(c *scene.Canvas, o *scene.Object)
}

func (c Contract) Allows(a Anchor) bool {
	for _, x := range c.Anchors {
		if x == a {
			return true
		}
	}
	return false
}

var corners = []Anchor{TopLeft, TopRight, BottomLeft, BottomRight}

// Contracts builds the capability table for the given minimum size.
func Contracts(minW, minH float64) map[scene.Kind]Contract {
	return map[scene.Kind]Contract{
		scene.KindText: {
			Anchors: []Anchor{MiddleLeft, MiddleRight},
			Padding: 5,
			Validate: func(old, nb Box) Box {
				if nb.Width < minW {
					return old
				}
				return nb
			},
			Bake: func(c *scene.Canvas, o *scene.Object) {
				o.Width = math.Max(minW, o.Width*o.ScaleX)
				o.ScaleX, o.ScaleY = 1, 1
				if c != nil {
					c.Reflow(o)
				}
			},
		},
		scene.KindImage: {
			Anchors:      corners,
			Rotate:       true,
			KeepRatio:    true,
			Padding:      5,
			BorderStroke: "#00ff00",
			AnchorStroke: "#00ff00",
			AnchorFill:   "#ffffff",
			Validate: func(old, nb Box) Box {
				if nb.Width < minW || nb.Height < minH {
					return old
				}
				return nb
			},
			Bake: func(_ *scene.Canvas, o *scene.Object) {
				o.Width = math.Max(minW, o.Width*o.ScaleX)
				o.Height = math.Max(minH, o.Height*o.ScaleY)
				o.ScaleX, o.ScaleY = 1, 1
			},
		},
		scene.KindGeneric: {
			Anchors:      corners,
			Rotate:       true,
			Padding:      5,
			BorderStroke: "#0000ff",
			AnchorStroke: "#0000ff",
			AnchorFill:   "#ffffff",
			Validate:     func(_, nb Box) Box { return nb },
			Bake: func(_ *scene.Canvas, o *scene.Object) {
				o.Width = math.Max(0, o.Width*o.ScaleX)
				o.Height = math.Max(0, o.Height*o.ScaleY)
				o.ScaleX, o.ScaleY = 1, 1
			},
		},
	}
}
