/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"drawingtool/internal/scene"
	"drawingtool/internal/textlayout"
	"drawingtool/internal/vector"
)

// Render rasterises the visible objects of c in z-order on a white background.
// Images and text are placed with their full transform, so rotated and scaled
// objects come out as they appear on the canvas.
func Render(c *scene.Canvas, opt Options) *image.RGBA {
	sx, sy := outputScale(c, opt)
	w := int(math.Ceil(c.Width() * sx))
	h := int(math.Ceil(c.Height() * sy))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(white), image.Point{}, draw.Src)

	prov := opt.Provider
	if prov == nil {
		prov = textlayout.Default()
	}
	view := vector.Scale(sx, sy)
	for _, o := range c.Objects() {
		if !o.Visible || o.Width <= 0 || o.Height <= 0 {
			continue
		}
		m := view.Mul(o.Transform())
		switch o.Kind {
		case scene.KindImage:
			drawImage(dst, m, o)
		case scene.KindText:
			drawText(dst, c, m, o, prov, math.Max(sx, sy))
		default:
			fillBox(dst, m, o.Width, o.Height, placeholder)
		}
	}
	if opt.IncludeGuides {
		for _, g := range c.Guides() {
			drawGuide(dst, view, g)
		}
	}
	return dst
}

// RenderPNG writes Render(c, opt) as PNG.
func RenderPNG(w io.Writer, c *scene.Canvas, opt Options) error {
	if err := png.Encode(w, Render(c, opt)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// RenderJPEG writes Render(c, opt) as JPEG at opt.Quality.
func RenderJPEG(w io.Writer, c *scene.Canvas, opt Options) error {
	q := opt.Quality
	if q <= 0 || q > 1 {
		q = DefaultQuality
	}
	if err := jpeg.Encode(w, Render(c, opt), &jpeg.Options{Quality: int(math.Round(q * 100))}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

func aff3(m vector.Affine2D) f64.Aff3 { return f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F} }

func drawImage(dst *image.RGBA, m vector.Affine2D, o *scene.Object) {
	var px image.Image
	if o.Image != nil {
		px = o.Image.Pixels
	}
	if px == nil || px.Bounds().Empty() {
		fillBox(dst, m, o.Width, o.Height, placeholder)
		return
	}
	b := px.Bounds()
	s2d := m.Mul(vector.Scale(o.Width/float64(b.Dx()), o.Height/float64(b.Dy()))).
		Mul(vector.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
	draw.CatmullRom.Transform(dst, aff3(s2d), px, b, draw.Over, nil)
}

func fillBox(dst *image.RGBA, m vector.Affine2D, w, h float64, col color.RGBA) {
	iw, ih := math.Max(1, math.Ceil(w)), math.Max(1, math.Ceil(h))
	s2d := m.Mul(vector.Scale(w/iw, h/ih))
	draw.NearestNeighbor.Transform(dst, aff3(s2d), image.NewUniform(col), image.Rect(0, 0, int(iw), int(ih)), draw.Over, nil)
}

// drawText lays the lines out on a local raster at output resolution k and
// composites it through the object transform.
func drawText(dst *image.RGBA, c *scene.Canvas, m vector.Affine2D, o *scene.Object, prov textlayout.Provider, k float64) {
	t := o.Text
	if t == nil || t.Content == "" {
		return
	}
	box := c.Layout(o)
	lw := int(math.Ceil(o.Width * k))
	lh := int(math.Ceil(o.Height * k))
	if lw <= 0 || lh <= 0 {
		return
	}
	local := image.NewRGBA(image.Rect(0, 0, lw, lh))
	col := parseColor(t.Fill)
	lineH := t.FontSize * t.LineHeight * k
	pad := t.Padding * k
	underline := strings.Contains(t.Decoration, "underline")

	face, _ := prov.Resolve(textlayout.FontSpec{Family: t.FontFamily, Size: t.FontSize * k, Bold: t.FontStyle == "bold"})
	textlayout.FaceMu.Lock()
	defer textlayout.FaceMu.Unlock()
	fm := face.Metrics()
	asc, desc := float64(fm.Ascent)/64, float64(fm.Descent)/64
	d := &font.Drawer{Dst: local, Src: image.NewUniform(col), Face: face}
	for i, line := range box.Lines {
		adv := float64(font.MeasureString(face, line)) / 64
		x := pad
		switch t.Align {
		case "center":
			x = (float64(lw) - adv) / 2
		case "right":
			x = float64(lw) - pad - adv
		}
		baseline := pad + float64(i)*lineH + (lineH-(asc+desc))/2 + asc
		d.Dot = fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(baseline * 64)}
		d.DrawString(line)
		if underline && adv > 0 {
			thick := int(math.Max(1, math.Round(k)))
			y := int(math.Round(baseline)) + thick
			r := image.Rect(int(x), y, int(math.Ceil(x+adv)), y+thick)
			draw.Draw(local, r, image.NewUniform(col), image.Point{}, draw.Over)
		}
	}
	s2d := m.Mul(vector.Scale(1/k, 1/k))
	draw.BiLinear.Transform(dst, aff3(s2d), local, local.Bounds(), draw.Over, nil)
}

// drawGuide draws a 1px dashed line in the guide colour, clipped to dst.
func drawGuide(dst *image.RGBA, view vector.Affine2D, g vector.GuideLine) {
	col := parseColor(g.Stroke)
	on, period := int(g.Dash[0]), int(g.Dash[0]+g.Dash[1])
	if on <= 0 || period <= 0 {
		on, period = 1, 1
	}
	from := view.Apply(g.From)
	b := dst.Bounds()
	if g.Orientation == vector.Horizontal {
		y := int(math.Round(from.Y))
		if y < b.Min.Y || y >= b.Max.Y {
			return
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			if x%period < on {
				dst.SetRGBA(x, y, col)
			}
		}
		return
	}
	x := int(math.Round(from.X))
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		if y%period < on {
			dst.SetRGBA(x, y, col)
		}
	}
}
