/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"errors"
	"math"
	"strings"
	"testing"

	"drawingtool/internal/textlayout"
	"drawingtool/internal/vector"
)

func newTestCanvas(blockID string) *Canvas {
	c := New(blockID, 0, 0)
	c.SetLayouter(textlayout.New(textlayout.BasicProvider{}))
	return c
}

func ids(objs []*Object) string {
	s := make([]string, len(objs))
	for i, o := range objs {
		s[i] = o.ID
	}
	return strings.Join(s, ",")
}

func TestNewCanvasDefaults(t *testing.T) {
	c := New("b1", 0, -1)
	if c.Width() != DefaultWidth || c.Height() != DefaultHeight {
		t.Fatalf("unexpected size %vx%v", c.Width(), c.Height())
	}
	if c.ID() != "konva-container-b1" {
		t.Fatalf("unexpected surface id %q", c.ID())
	}
	c.SetHeight(0)
	if c.Height() != DefaultHeight {
		t.Fatalf("non-positive height must be ignored")
	}
}

func TestAddAssignsIDAndOwner(t *testing.T) {
	c := newTestCanvas("b1")
	o := NewGeneric("", 1, 2, 3, 4)
	o.ScaleX, o.ScaleY = 0, 0
	if err := c.Add(o); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(o.ID, "generic-") {
		t.Fatalf("expected generated id, got %q", o.ID)
	}
	if o.ScaleX != 1 || o.ScaleY != 1 {
		t.Fatalf("zero scale should default to 1")
	}
	if c.Find(o.ID) != o || !c.Owns(o) || o.Owner() != c {
		t.Fatalf("object not registered")
	}
	if err := c.Add(o); err != nil || c.Len() != 1 {
		t.Fatalf("re-adding an owned object must be a no-op: %v len=%d", err, c.Len())
	}
}

func TestOwnershipAcrossCanvases(t *testing.T) {
	a, b := newTestCanvas("a"), newTestCanvas("b")
	o := NewGeneric("x", 0, 0, 10, 10)
	if err := a.Add(o); err != nil {
		t.Fatal(err)
	}
	if b.Owns(o) {
		t.Fatalf("b must not own a's object")
	}
	if err := b.Add(o); !errors.Is(err, ErrForeign) {
		t.Fatalf("expected ErrForeign, got %v", err)
	}
	if b.Remove(o) {
		t.Fatalf("remove of a foreign object must fail")
	}
	if !a.Remove(o) || a.Owns(o) || a.Len() != 0 {
		t.Fatalf("remove from owner failed")
	}
	if b.Owns(nil) {
		t.Fatalf("nil is never owned")
	}
}

func TestZOrder(t *testing.T) {
	c := newTestCanvas("z")
	var objs []*Object
	for _, id := range []string{"a", "b", "c", "d"} {
		o := NewGeneric(id, 0, 0, 1, 1)
		if err := c.Add(o); err != nil {
			t.Fatal(err)
		}
		objs = append(objs, o)
	}
	a, b, _, d := objs[0], objs[1], objs[2], objs[3]

	steps := []struct {
		name string
		op   func() bool
		ok   bool
		want string
	}{
		{"up a", func() bool { return c.MoveUp(a) }, true, "b,a,c,d"},
		{"up top", func() bool { return c.MoveUp(d) }, false, "b,a,c,d"},
		{"down bottom", func() bool { return c.MoveDown(b) }, false, "b,a,c,d"},
		{"down d", func() bool { return c.MoveDown(d) }, true, "b,a,d,c"},
		{"to top b", func() bool { return c.ToTop(b) }, true, "a,d,c,b"},
		{"to bottom c", func() bool { return c.ToBottom(objs[2]) }, true, "c,a,d,b"},
	}
	for _, s := range steps {
		if got := s.op(); got != s.ok {
			t.Fatalf("%s: ok=%v want %v", s.name, got, s.ok)
		}
		if got := ids(c.Objects()); got != s.want {
			t.Fatalf("%s: order=%s want %s", s.name, got, s.want)
		}
	}
	if c.IndexOf(NewGeneric("zz", 0, 0, 0, 0)) != -1 {
		t.Fatalf("unknown object must have index -1")
	}
}

func TestStopRectsSkipsDraggedAndGuides(t *testing.T) {
	c := newTestCanvas("s")
	dragged := NewGeneric("d", 0, 0, 10, 10)
	other := NewGeneric("o", 100, 50, 20, 10)
	hidden := NewGeneric("h", 300, 300, 5, 5)
	hidden.Visible = false
	guide := NewGeneric("g", 0, 0, 1, 1)
	guide.Name = GuideLineName
	for _, o := range []*Object{dragged, other, hidden, guide} {
		if err := c.Add(o); err != nil {
			t.Fatal(err)
		}
	}
	rects := c.StopRects(dragged)
	if len(rects) != 2 {
		t.Fatalf("expected other and hidden rects, got %+v", rects)
	}
	if rects[0] != vector.R(100, 50, 20, 10) {
		t.Fatalf("unexpected rect %+v", rects[0])
	}
}

func TestClientRectRotated(t *testing.T) {
	o := NewGeneric("r", 10, 10, 40, 20)
	o.Rotation = 90
	r := o.ClientRect()
	if math.Abs(r.X-(-10)) > 1e-9 || math.Abs(r.W-20) > 1e-9 || math.Abs(r.H-40) > 1e-9 {
		t.Fatalf("unexpected rotated rect %+v", r)
	}
}

func TestReflowDerivesTextHeight(t *testing.T) {
	c := newTestCanvas("t")
	o := NewText("t1", "Click to edit", 0, 0)
	if err := c.Add(o); err != nil {
		t.Fatal(err)
	}
	// 13 glyphs * 7px = 91px fits in 150: one line.
	if want := 16 * 1.6; math.Abs(o.Height-want) > 1e-9 {
		t.Fatalf("height=%v want %v", o.Height, want)
	}
	o.Width = 40
	c.Reflow(o)
	if want := 3 * 16 * 1.6; math.Abs(o.Height-want) > 1e-9 {
		t.Fatalf("narrow height=%v want %v (lines %q)", o.Height, want, c.Layout(o).Lines)
	}
	img := NewImage("i", nil, "", 0, 0, 10, 7)
	c.Reflow(img)
	if img.Height != 7 {
		t.Fatalf("reflow must not touch images")
	}
}

func TestDestroyRejectsAdd(t *testing.T) {
	c := newTestCanvas("x")
	o := NewGeneric("a", 0, 0, 1, 1)
	_ = c.Add(o)
	c.SetGuides([]vector.GuideLine{{Orientation: vector.Vertical}})
	c.Destroy()
	if c.Len() != 0 || len(c.Guides()) != 0 || o.Owner() != nil {
		t.Fatalf("destroy must clear everything")
	}
	if err := c.Add(NewGeneric("b", 0, 0, 1, 1)); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	o := NewText("t", "hi", 0, 0)
	pf := "#ff0000"
	o.Text.PreviousFill = &pf
	o.Extra = map[string]any{"k": 1.0}
	c := o.Clone()
	c.Text.Content = "changed"
	*c.Text.PreviousFill = "#00ff00"
	c.Extra["k"] = 2.0
	if o.Text.Content != "hi" || *o.Text.PreviousFill != "#ff0000" || o.Extra["k"] != 1.0 {
		t.Fatalf("clone shares state with original")
	}
}
