/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

// Text measurement and line breaking for canvas text objects.
// Heights of text objects are never taken from handles; they are derived here
// from content, box width and typography.

import (
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // logical family name, e.g. "Open Sans, sans-serif"
	Size   float64
	Bold   bool
}

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// Wrap modes accepted by Layout.
const (
	WrapWord = "word"
	WrapChar = "char"
	WrapNone = "none"
)

// Options controls a single reflow.
type Options struct {
	Font       FontSpec
	Width      float64 // box width; <= 0 means unbounded
	Wrap       string
	LineHeight float64 // multiple of font size
	Padding    float64
}

// Box is the result of laying out text into a box width.
type Box struct {
	Lines  []string
	Widths []float64
	Width  float64 // widest line
	Height float64 // lines * size * lineHeight + 2*padding
}

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  float64(m.Ascent.Round()),
		Descent: float64(m.Descent.Round()),
		LineGap: float64(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

// FaceMu guards glyph measurement and drawing. Faces handed out by shared
// providers keep internal buffers and are not safe for concurrent use.
var FaceMu sync.Mutex

// Layouter breaks text into lines using faces from Provider.
type Layouter struct{ Provider Provider }

func New(provider Provider) *Layouter { return &Layouter{Provider: provider} }

// Layout reflows text. Explicit newlines always break. In word mode words that
// are wider than the box fall back to character breaking.
func (l *Layouter) Layout(text string, opt Options) Box {
	if l.Provider == nil {
		l.Provider = BasicProvider{}
	}
	if opt.LineHeight <= 0 {
		opt.LineHeight = 1
	}
	face, _ := l.Provider.Resolve(opt.Font)
	FaceMu.Lock()
	defer FaceMu.Unlock()
	d := &font.Drawer{Face: face}
	maxW := opt.Width - 2*opt.Padding
	if opt.Width <= 0 || opt.Wrap == WrapNone {
		maxW = 0
	}

	var box Box
	push := func(s string) {
		w := advance(d, s)
		box.Lines = append(box.Lines, s)
		box.Widths = append(box.Widths, w)
		if w > box.Width {
			box.Width = w
		}
	}
	for _, para := range strings.Split(text, "\n") {
		switch {
		case maxW <= 0:
			push(para)
		case opt.Wrap == WrapChar:
			for _, s := range breakChars(d, para, maxW) {
				push(s)
			}
		default:
			for _, s := range breakWords(d, para, maxW) {
				push(s)
			}
		}
	}
	box.Height = float64(len(box.Lines))*opt.Font.Size*opt.LineHeight + 2*opt.Padding
	return box
}

func breakWords(d *font.Drawer, para string, maxW float64) []string {
	words := strings.Split(para, " ")
	var out []string
	cur := ""
	for i, w := range words {
		cand := w
		if i > 0 {
			cand = cur + " " + w
		}
		if i == 0 || advance(d, cand) <= maxW {
			cur = cand
		} else {
			out = append(out, cur)
			cur = w
		}
		if advance(d, cur) > maxW {
			parts := breakChars(d, cur, maxW)
			out = append(out, parts[:len(parts)-1]...)
			cur = parts[len(parts)-1]
		}
	}
	return append(out, cur)
}

// breakChars always places at least one rune per line.
func breakChars(d *font.Drawer, s string, maxW float64) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); {
		_, n := utf8.DecodeRuneInString(s[i:])
		if i > start && advance(d, s[start:i+n]) > maxW {
			out = append(out, s[start:i])
			start = i
		}
		i += n
	}
	return append(out, s[start:])
}

func advance(d *font.Drawer, s string) float64 {
	return float64(d.MeasureString(s)) / 64 // fixed.Int26_6 to px
}

// Measure returns the single-line advance width of s.
func Measure(provider Provider, spec FontSpec, s string) float64 {
	if provider == nil {
		provider = BasicProvider{}
	}
	face, _ := provider.Resolve(spec)
	FaceMu.Lock()
	defer FaceMu.Unlock()
	return advance(&font.Drawer{Face: face}, s)
}
