/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontLibrary stores parsed OpenType fonts by family and weight. The family ""
// is the fallback used when a requested family was never loaded; browsers do
// the same with the trailing generic family of a font stack.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*opentype.Font
}

type fontKey struct {
	family string
	bold   bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*opentype.Font)} }

// NewGoFontLibrary returns a library preloaded with the Go fonts as fallback.
func NewGoFontLibrary() (*FontLibrary, error) {
	fl := NewFontLibrary()
	for _, f := range []struct {
		bold bool
		ttf  []byte
	}{{false, goregular.TTF}, {true, gobold.TTF}} {
		if err := fl.Add("", f.bold, f.ttf); err != nil {
			return nil, err
		}
	}
	return fl, nil
}

// Add parses ttf and registers it.
func (fl *FontLibrary) Add(family string, bold bool, ttf []byte) error {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return fmt.Errorf("parse font %q: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[fontKey{family: normFamily(family), bold: bold}] = f
	return nil
}

// LoadTTF loads a font file into the library.
func (fl *FontLibrary) LoadTTF(family string, bold bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.Add(family, bold, data)
}

// find walks a CSS-like font stack ("Open Sans, sans-serif") and returns the
// first registered family, then the fallback.
func (fl *FontLibrary) find(spec FontSpec) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	for _, fam := range append(strings.Split(spec.Family, ","), "") {
		fam = normFamily(fam)
		if f, ok := fl.fonts[fontKey{fam, spec.Bold}]; ok {
			return f
		}
		if f, ok := fl.fonts[fontKey{fam, !spec.Bold}]; ok {
			return f
		}
	}
	return nil
}

func normFamily(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'`))
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another Provider.
// Faces are cached per (font, size, bold) since opentype.NewFace is not free.
type OTProvider struct {
	Lib      *FontLibrary
	DPI      float64 // default 72 if zero
	Fallback Provider

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	f    *opentype.Font
	size float64
}

func (p *OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.Size <= 0 {
		spec.Size = 16
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}
	if f := p.Lib.find(spec); f != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		k := faceKey{f: f, size: spec.Size}
		if face, ok := p.faces[k]; ok {
			return face, metricsOf(face)
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: spec.Size, DPI: dpi, Hinting: font.HintingNone})
		if err == nil {
			if p.faces == nil {
				p.faces = make(map[faceKey]font.Face)
			}
			p.faces[k] = face
			return face, metricsOf(face)
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}

var (
	defaultOnce     sync.Once
	defaultProvider Provider = BasicProvider{}
)

// Default returns the shared Go-font provider, or BasicProvider when the
// embedded fonts cannot be parsed.
func Default() Provider {
	defaultOnce.Do(func() {
		if lib, err := NewGoFontLibrary(); err == nil {
			defaultProvider = &OTProvider{Lib: lib}
		}
	})
	return defaultProvider
}
