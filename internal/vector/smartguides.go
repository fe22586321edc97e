/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Alignment guides and snapping for dragged objects.
// These helpers are UI-agnostic and deterministic; the editor feeds them
// client rects and applies the returned anchor.

import "math"

// DefaultTolerance is the snap distance in canvas units. Matches are strict (< tolerance).
const DefaultTolerance = 5

// GuideExtent is how far a rendered guide line reaches in each direction.
const GuideExtent = 6000

const GuideStroke = "rgb(0, 161, 255)"

type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// SnapEdge names the part of the dragged box that produced a match.
type SnapEdge string

const (
	SnapStart  SnapEdge = "start"
	SnapCenter SnapEdge = "center"
	SnapEnd    SnapEdge = "end"
)

// Stops are candidate line positions per axis. Vertical holds x coordinates.
type Stops struct {
	Vertical   []float64
	Horizontal []float64
}

// ItemBound is one edge (or center) of the dragged box together with the
// offset from the box's anchor to that edge.
type ItemBound struct {
	Guide  float64
	Offset float64
	Snap   SnapEdge
}

// EdgeSet groups the dragged box's edges per axis.
type EdgeSet struct {
	Vertical   []ItemBound
	Horizontal []ItemBound
}

// Guide is a single match: the stop line, the anchor offset to apply and the
// edge that matched. At most one Guide per orientation is ever produced.
type Guide struct {
	Orientation Orientation
	Position    float64
	Offset      float64
	Snap        SnapEdge
	Diff        float64
}

// GuideLine is the renderable segment for a Guide.
type GuideLine struct {
	Orientation Orientation
	From, To    Pt
	Stroke      string
	Width       float64
	Dash        [2]float64
}

// StopLines collects the canvas edges and midlines plus start, center and end of
// every sibling box. Duplicates are dropped, keeping first-seen order.
func StopLines(canvasW, canvasH float64, siblings []Rect) Stops {
	v := []float64{0, canvasW / 2, canvasW}
	h := []float64{0, canvasH / 2, canvasH}
	for _, b := range siblings {
		v = append(v, b.X, b.X+b.W/2, b.X+b.W)
		h = append(h, b.Y, b.Y+b.H/2, b.Y+b.H)
	}
	return Stops{Vertical: uniq(v), Horizontal: uniq(h)}
}

func uniq(in []float64) []float64 {
	out := in[:0:0]
	seen := make(map[float64]struct{}, len(in))
	for _, f := range in {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// ItemBounds returns the rounded start/center/end of box on each axis, each
// paired with the rounded offset between anchor and that edge.
func ItemBounds(box Rect, anchor Pt) EdgeSet {
	edge := func(pos, anchor float64, snap SnapEdge) ItemBound {
		return ItemBound{Guide: RoundHalfUp(pos), Offset: RoundHalfUp(anchor - pos), Snap: snap}
	}
	return EdgeSet{
		Vertical: []ItemBound{
			edge(box.X, anchor.X, SnapStart),
			edge(box.X+box.W/2, anchor.X, SnapCenter),
			edge(box.X+box.W, anchor.X, SnapEnd),
		},
		Horizontal: []ItemBound{
			edge(box.Y, anchor.Y, SnapStart),
			edge(box.Y+box.H/2, anchor.Y, SnapCenter),
			edge(box.Y+box.H, anchor.Y, SnapEnd),
		},
	}
}

// ComputeGuides matches every (stop, edge) pair per axis and keeps the closest
// one whose distance is below tolerance. Ties keep the first pair found in
// stop-major order. The result holds the vertical guide (if any) first.
func ComputeGuides(stops Stops, bounds EdgeSet, tolerance float64) []Guide {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	var guides []Guide
	if g, ok := closest(Vertical, stops.Vertical, bounds.Vertical, tolerance); ok {
		guides = append(guides, g)
	}
	if g, ok := closest(Horizontal, stops.Horizontal, bounds.Horizontal, tolerance); ok {
		guides = append(guides, g)
	}
	return guides
}

func closest(o Orientation, stops []float64, bounds []ItemBound, tolerance float64) (Guide, bool) {
	best := Guide{Diff: math.Inf(1)}
	found := false
	for _, s := range stops {
		for _, b := range bounds {
			d := math.Abs(s - b.Guide)
			if d >= tolerance || d >= best.Diff {
				continue
			}
			best = Guide{Orientation: o, Position: s, Offset: b.Offset, Snap: b.Snap, Diff: d}
			found = true
		}
	}
	return best, found
}

// SnapAnchor moves anchor so each guide's matched edge lands on its stop line.
func SnapAnchor(anchor Pt, guides []Guide) Pt {
	for _, g := range guides {
		switch g.Orientation {
		case Vertical:
			anchor.X = g.Position + g.Offset
		case Horizontal:
			anchor.Y = g.Position + g.Offset
		}
	}
	return anchor
}

// Line returns the dashed segment used to draw g.
func (g Guide) Line() GuideLine {
	l := GuideLine{Orientation: g.Orientation, Stroke: GuideStroke, Width: 1, Dash: [2]float64{4, 6}}
	if g.Orientation == Horizontal {
		l.From, l.To = Pt{-GuideExtent, g.Position}, Pt{GuideExtent, g.Position}
	} else {
		l.From, l.To = Pt{g.Position, -GuideExtent}, Pt{g.Position, GuideExtent}
	}
	return l
}
