/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"math"
	"reflect"
	"testing"
)

// Face7x13 advances every glyph by 7px, which keeps these expectations exact.

func TestLayout_WordWrap(t *testing.T) {
	l := New(BasicProvider{})
	box := l.Layout("Hello world from Go", Options{Font: FontSpec{Size: 10}, Width: 84, Wrap: WrapWord, LineHeight: 1})
	want := []string{"Hello world", "from Go"}
	if !reflect.DeepEqual(box.Lines, want) {
		t.Fatalf("lines = %q, want %q", box.Lines, want)
	}
	if box.Width != 77 {
		t.Fatalf("width = %v, want 77", box.Width)
	}
	if box.Height != 20 {
		t.Fatalf("height = %v, want 20", box.Height)
	}
}

func TestLayout_HeightUsesLineHeightAndPadding(t *testing.T) {
	l := New(BasicProvider{})
	box := l.Layout("a\nb\nc", Options{Font: FontSpec{Size: 16}, Width: 150, LineHeight: 1.6, Padding: 2})
	if len(box.Lines) != 3 {
		t.Fatalf("explicit newlines must break: %q", box.Lines)
	}
	if got, want := box.Height, 3*16*1.6+4; math.Abs(got-want) > 1e-9 {
		t.Fatalf("height = %v, want %v", got, want)
	}
}

func TestLayout_LongWordFallsBackToChars(t *testing.T) {
	l := New(BasicProvider{})
	box := l.Layout("abcdefghij xy", Options{Font: FontSpec{Size: 10}, Width: 28, Wrap: WrapWord})
	want := []string{"abcd", "efgh", "ij", "xy"}
	if !reflect.DeepEqual(box.Lines, want) {
		t.Fatalf("lines = %q, want %q", box.Lines, want)
	}
}

func TestLayout_CharAndNoneModes(t *testing.T) {
	l := New(BasicProvider{})
	char := l.Layout("ab cd", Options{Font: FontSpec{Size: 10}, Width: 21, Wrap: WrapChar})
	if !reflect.DeepEqual(char.Lines, []string{"ab ", "cd"}) {
		t.Fatalf("char lines = %q", char.Lines)
	}
	none := l.Layout("ab cd", Options{Font: FontSpec{Size: 10}, Width: 7, Wrap: WrapNone})
	if len(none.Lines) != 1 {
		t.Fatalf("none mode should not wrap: %q", none.Lines)
	}
}

func TestLayout_NarrowBoxKeepsOneRunePerLine(t *testing.T) {
	l := New(BasicProvider{})
	box := l.Layout("abc", Options{Font: FontSpec{Size: 10}, Width: 1, Wrap: WrapChar})
	if len(box.Lines) != 3 {
		t.Fatalf("expected one rune per line, got %q", box.Lines)
	}
}

func TestMeasure_Deterministic(t *testing.T) {
	if w := Measure(BasicProvider{}, FontSpec{}, "ABC"); w != 21 {
		t.Fatalf("measure = %v, want 21", w)
	}
}

func TestGoFontProvider_ResolvesStackAndCachesFaces(t *testing.T) {
	lib, err := NewGoFontLibrary()
	if err != nil {
		t.Fatalf("go fonts: %v", err)
	}
	p := &OTProvider{Lib: lib}
	f1, m := p.Resolve(FontSpec{Family: "Open Sans, sans-serif", Size: 16})
	f2, _ := p.Resolve(FontSpec{Family: "Open Sans, sans-serif", Size: 16})
	if f1 != f2 {
		t.Fatalf("expected cached face")
	}
	if m.Ascent <= 0 {
		t.Fatalf("expected positive ascent: %+v", m)
	}
	small := Measure(p, FontSpec{Size: 10}, "Hello")
	big := Measure(p, FontSpec{Size: 20}, "Hello")
	if big <= small {
		t.Fatalf("larger font should measure wider: %v vs %v", small, big)
	}
	if Default() == nil {
		t.Fatalf("default provider must not be nil")
	}
}

func TestFontLibrary_LoadTTFMissingFile(t *testing.T) {
	if err := NewFontLibrary().LoadTTF("x", false, t.TempDir()+"/missing.ttf"); err == nil {
		t.Fatalf("expected error for missing font file")
	}
}
