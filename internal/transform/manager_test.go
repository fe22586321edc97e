/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"errors"
	"math"
	"testing"

	"drawingtool/internal/scene"
	"drawingtool/internal/textlayout"
	"drawingtool/internal/vector"
)

const eps = 1e-6

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func setup(t *testing.T, objs ...*scene.Object) *Manager {
	t.Helper()
	c := scene.New("tr", 0, 0)
	c.SetLayouter(textlayout.New(textlayout.BasicProvider{}))
	for _, o := range objs {
		if err := c.Add(o); err != nil {
			t.Fatal(err)
		}
	}
	return NewManager(c, 20, 20)
}

func TestAttachRecreatesTransformer(t *testing.T) {
	txt := scene.NewText("t", "hello", 0, 0)
	img := scene.NewImage("i", nil, "", 0, 0, 200, 100)
	m := setup(t, txt, img)

	first := m.Attach(txt)
	if !first.Contract.Allows(MiddleLeft) || first.Contract.Allows(TopLeft) || first.Contract.Rotate {
		t.Fatalf("text contract wrong: %+v", first.Contract)
	}
	second := m.Attach(img)
	if second == first || second.Generation <= first.Generation {
		t.Fatalf("expected a new transformer generation: %d -> %d", first.Generation, second.Generation)
	}
	if first.Target != nil || first.Visible {
		t.Fatalf("previous transformer must be detached")
	}
	if !second.Contract.KeepRatio || !second.Contract.Allows(TopLeft) || second.Contract.Allows(MiddleLeft) {
		t.Fatalf("image contract wrong: %+v", second.Contract)
	}
	m.Hide()
	if m.Active().Visible {
		t.Fatalf("hide failed")
	}
	m.Show()
	if !m.Active().Visible {
		t.Fatalf("show failed")
	}
	m.Clear()
	if m.Active() != nil {
		t.Fatalf("clear should drop the transformer")
	}
}

func TestContractTableByKind(t *testing.T) {
	m := setup(t)
	gen := m.Config(scene.KindGeneric)
	if gen.KeepRatio || !gen.Rotate || len(gen.Anchors) != 4 {
		t.Fatalf("generic contract wrong: %+v", gen)
	}
	if got := m.Config("unknown"); len(got.Anchors) != 4 || got.KeepRatio {
		t.Fatalf("unknown kinds fall back to generic")
	}
	for _, k := range []scene.Kind{scene.KindText, scene.KindImage, scene.KindGeneric} {
		if m.Config(k).Padding != 5 {
			t.Fatalf("%s: padding should be 5", k)
		}
	}
}

func TestTextDragWidthOnly(t *testing.T) {
	txt := scene.NewText("t", "one two three four", 100, 50)
	m := setup(t, txt)
	m.Attach(txt)
	h0 := txt.Height

	if err := m.Drag(txt, MiddleRight, 50, 999); err != nil {
		t.Fatalf("drag: %v", err)
	}
	if !approx(txt.Width, 200) || txt.ScaleX != 1 || txt.ScaleY != 1 || txt.X != 100 {
		t.Fatalf("unexpected after MR drag: %+v", txt)
	}
	if txt.Height > h0 {
		t.Fatalf("wider text must not get taller: %v -> %v", h0, txt.Height)
	}

	if err := m.Drag(txt, MiddleLeft, 30, 0); err != nil {
		t.Fatal(err)
	}
	if !approx(txt.Width, 170) || !approx(txt.X, 130) {
		t.Fatalf("left handle should keep right edge: %+v", txt)
	}

	if err := m.Drag(txt, BottomRight, 10, 10); !errors.Is(err, ErrAnchorDisabled) {
		t.Fatalf("expected ErrAnchorDisabled, got %v", err)
	}
	if err := m.Rotate(txt, 45); !errors.Is(err, ErrRotateDisabled) {
		t.Fatalf("expected ErrRotateDisabled, got %v", err)
	}
}

func TestMinimumSizeHolds(t *testing.T) {
	txt := scene.NewText("t", "x", 0, 0)
	img := scene.NewImage("i", nil, "", 0, 0, 200, 100)
	m := setup(t, txt, img)

	m.Attach(txt)
	if err := m.Drag(txt, MiddleRight, -10000, 0); err != nil {
		t.Fatal(err)
	}
	if txt.Width < 20 {
		t.Fatalf("text width below minimum: %v", txt.Width)
	}

	m.Attach(img)
	type step struct {
		a      Anchor
		dx, dy float64
	}
	for _, d := range []step{
		{BottomRight, -1000, -1000},
		{BottomRight, -185, -92},
		{TopLeft, 5000, 5000},
	} {
		if err := m.Drag(img, d.a, d.dx, d.dy); err != nil {
			t.Fatal(err)
		}
		if img.Width < 20 || img.Height < 20 {
			t.Fatalf("%v: image below minimum: %vx%v", d, img.Width, img.Height)
		}
	}
}

func TestUndersizedObjectIsClampedOnFirstStep(t *testing.T) {
	txt := scene.NewText("t", "x", 0, 0)
	m := setup(t, txt)
	txt.Width = 10
	m.Attach(txt)
	if err := m.Drag(txt, MiddleRight, 1, 0); err != nil {
		t.Fatal(err)
	}
	if txt.Width != 20 {
		t.Fatalf("expected clamp to 20, got %v", txt.Width)
	}
}

func TestImageKeepsAspectRatio(t *testing.T) {
	img := scene.NewImage("i", nil, "", 100, 100, 200, 100)
	m := setup(t, img)
	m.Attach(img)

	if err := m.Drag(img, BottomRight, 50, 0); err != nil {
		t.Fatal(err)
	}
	if !approx(img.Width, 240) || !approx(img.Height, 120) {
		t.Fatalf("unexpected size %vx%v", img.Width, img.Height)
	}
	if err := m.Drag(img, TopLeft, 13, -7); err != nil {
		t.Fatal(err)
	}
	if !approx(img.Width/img.Height, 2) {
		t.Fatalf("ratio drifted: %v", img.Width/img.Height)
	}
	if img.ScaleX != 1 || img.ScaleY != 1 {
		t.Fatalf("scale not normalised")
	}
}

func TestTopLeftKeepsOppositeCorner(t *testing.T) {
	cases := []struct {
		name string
		obj  *scene.Object
	}{
		{"image", scene.NewImage("i", nil, "", 100, 100, 200, 100)},
		{"generic rotated", func() *scene.Object {
			g := scene.NewGeneric("g", 300, 200, 80, 40)
			g.Rotation = 30
			return g
		}()},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := setup(t, c.obj)
			m.Attach(c.obj)
			o := c.obj
			before := o.Transform().Apply(vector.Pt{X: o.Width, Y: o.Height})
			if err := m.Drag(o, TopLeft, -20, -10); err != nil {
				t.Fatal(err)
			}
			after := o.Transform().Apply(vector.Pt{X: o.Width, Y: o.Height})
			if !approx(before.X, after.X) || !approx(before.Y, after.Y) {
				t.Fatalf("bottom-right corner moved: %+v -> %+v", before, after)
			}
		})
	}
}

func TestRepeatedDragDoesNotCompound(t *testing.T) {
	for _, kind := range []string{"image", "generic", "text"} {
		t.Run(kind, func(t *testing.T) {
			mk := func() *scene.Object {
				switch kind {
				case "image":
					return scene.NewImage("i", nil, "", 10, 10, 300, 120)
				case "text":
					return scene.NewText("t", "abc", 10, 10)
				}
				return scene.NewGeneric("g", 10, 10, 300, 120)
			}
			a := mk()
			h := BottomRight
			if kind == "text" {
				h = MiddleRight
			}
			m1 := setup(t, a)
			m1.Attach(a)
			_ = m1.Drag(a, h, 30, 12)
			_ = m1.Drag(a, h, 30, 12)

			b := mk()
			m2 := setup(t, b)
			m2.Attach(b)
			_ = m2.Drag(b, h, 60, 24)

			if !approx(a.Width, b.Width) || !approx(a.Height, b.Height) {
				t.Fatalf("twice %vx%v vs double %vx%v", a.Width, a.Height, b.Width, b.Height)
			}
			if a.ScaleX != 1 || a.ScaleY != 1 {
				t.Fatalf("scale not reset")
			}
		})
	}
}

func TestGenericHasNoMinimum(t *testing.T) {
	g := scene.NewGeneric("g", 0, 0, 100, 50)
	m := setup(t, g)
	m.Attach(g)
	if err := m.Drag(g, BottomRight, -90, -40); err != nil {
		t.Fatal(err)
	}
	if !approx(g.Width, 10) || !approx(g.Height, 10) {
		t.Fatalf("generic should shrink freely: %vx%v", g.Width, g.Height)
	}
}

func TestRotateAroundCenter(t *testing.T) {
	img := scene.NewImage("i", nil, "", 100, 100, 200, 100)
	m := setup(t, img)
	m.Attach(img)
	c0 := img.ClientRect().Center()
	if err := m.Rotate(img, 90); err != nil {
		t.Fatal(err)
	}
	c1 := img.ClientRect().Center()
	if img.Rotation != 90 || !approx(c0.X, c1.X) || !approx(c0.Y, c1.Y) {
		t.Fatalf("center moved: %+v -> %+v (rot %v)", c0, c1, img.Rotation)
	}
}

func TestDragRequiresActiveTarget(t *testing.T) {
	a := scene.NewGeneric("a", 0, 0, 10, 10)
	b := scene.NewGeneric("b", 0, 0, 10, 10)
	m := setup(t, a, b)
	if err := m.Drag(a, TopLeft, 1, 1); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("expected ErrNotAttached, got %v", err)
	}
	m.Attach(a)
	if err := m.Drag(b, TopLeft, 1, 1); !errors.Is(err, ErrNotAttached) {
		t.Fatalf("expected ErrNotAttached for other object, got %v", err)
	}
}
