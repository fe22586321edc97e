/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
	if c := r.Center(); c.X != 60 || c.Y != 45 {
		t.Fatalf("unexpected center: %+v", c)
	}
}

func TestRectUnion(t *testing.T) {
	u := R(0, 0, 10, 10).Union(R(20, -5, 5, 5))
	if u.X != 0 || u.Y != -5 || u.W != 25 || u.H != 15 {
		t.Fatalf("unexpected union: %+v", u)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
	back := m.Invert().Apply(p)
	if !near(back.X, 1) || !near(back.Y, 1) {
		t.Fatalf("invert did not round-trip: %+v", back)
	}
	if v := m.ApplyVec(Pt{1, 1}); v.X != 2 || v.Y != 3 {
		t.Fatalf("ApplyVec should ignore translation: %+v", v)
	}
}

func TestAffineInvertSingular(t *testing.T) {
	if got := Scale(0, 1).Invert(); got != Identity {
		t.Fatalf("singular matrix should invert to identity, got %+v", got)
	}
}

func TestRotateDegQuarterTurn(t *testing.T) {
	// y points down, so +90 maps the x axis onto +y.
	p := RotateDeg(90).Apply(Pt{1, 0})
	if !near(p.X, 0) || !near(p.Y, 1) {
		t.Fatalf("unexpected rotation: %+v", p)
	}
}

func TestTransformedBounds(t *testing.T) {
	m := NodeTransform(100, 100, 90, 1, 1)
	b := TransformedBounds(m, R(0, 0, 40, 20))
	// the box swings around its top-left anchor into negative x.
	if !near(b.X, 80) || !near(b.Y, 100) || !near(b.W, 20) || !near(b.H, 40) {
		t.Fatalf("unexpected bounds: %+v", b)
	}
	scaled := TransformedBounds(NodeTransform(0, 0, 0, 2, 0.5), R(0, 0, 40, 20))
	if scaled.W != 80 || scaled.H != 10 {
		t.Fatalf("scale not applied: %+v", scaled)
	}
}

func TestRounding(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{2.5, 3}, {-2.5, -2}, {2.4999, 2}, {-0.5, 0}, {7, 7},
	}
	for _, c := range cases {
		if got := RoundHalfUp(c.in); got != c.want {
			t.Errorf("RoundHalfUp(%v)=%v want %v", c.in, got, c.want)
		}
	}
	if got := FloatRound(1.23456, 2); got != 1.23 {
		t.Fatalf("FloatRound: %v", got)
	}
}
