/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"drawingtool/internal/imageio"
	"drawingtool/internal/scene"
)

// WriteSVG writes c as a standalone SVG document. Coordinates are canvas units.
// Images keep their source reference; decoded images without one are inlined
// as PNG data URLs.
func WriteSVG(w io.Writer, c *scene.Canvas) error {
	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	cw, ch := c.Width(), c.Height()
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%g\" height=\"%g\" viewBox=\"0 0 %g %g\">\n", cw, ch, cw, ch)
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"#ffffff\"/>\n", cw, ch)

	for _, o := range c.Objects() {
		if !o.Visible {
			continue
		}
		wf("  <g id=\"%s\" transform=\"translate(%g %g) rotate(%g) scale(%g %g)\">\n", esc(o.ID), o.X, o.Y, o.Rotation, o.ScaleX, o.ScaleY)
		switch o.Kind {
		case scene.KindImage:
			href, err := imageHref(o)
			if err != nil {
				return fmt.Errorf("image %s: %w", o.ID, err)
			}
			if href == "" {
				wf("    <rect width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", o.Width, o.Height, hexColor(placeholder))
			} else {
				wf("    <image width=\"%g\" height=\"%g\" preserveAspectRatio=\"none\" xlink:href=\"%s\"/>\n", o.Width, o.Height, esc(href))
			}
		case scene.KindText:
			writeSVGText(wf, c, o)
		default:
			wf("    <rect width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", o.Width, o.Height, hexColor(placeholder))
		}
		wf("  </g>\n")
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func imageHref(o *scene.Object) (string, error) {
	if o.Image == nil {
		return "", nil
	}
	if o.Image.Src != "" {
		return o.Image.Src, nil
	}
	if o.Image.Pixels == nil {
		return "", nil
	}
	return imageio.EncodeDataURL(o.Image.Pixels)
}

func writeSVGText(wf func(string, ...any), c *scene.Canvas, o *scene.Object) {
	t := o.Text
	if t == nil {
		return
	}
	anchor, x := "start", t.Padding
	switch t.Align {
	case "center":
		anchor, x = "middle", o.Width/2
	case "right":
		anchor, x = "end", o.Width-t.Padding
	}
	weight := "normal"
	if t.FontStyle == "bold" {
		weight = "bold"
	}
	if t.Link != "" {
		wf("    <a xlink:href=\"%s\">\n", esc(t.Link))
	}
	wf("    <text font-family=\"%s\" font-size=\"%g\" font-weight=\"%s\" fill=\"%s\" text-anchor=\"%s\"", esc(t.FontFamily), t.FontSize, weight, hexColor(parseColor(t.Fill)), anchor)
	if t.Decoration != "" {
		wf(" text-decoration=\"%s\"", esc(t.Decoration))
	}
	wf(">")
	lineH := t.FontSize * t.LineHeight
	for i, line := range c.Layout(o).Lines {
		y := t.Padding + float64(i)*lineH + (lineH+t.FontSize)/2 - t.FontSize*0.2
		wf("<tspan x=\"%g\" y=\"%g\">%s</tspan>", x, y, esc(line))
	}
	wf("</text>\n")
	if t.Link != "" {
		wf("    </a>\n")
	}
}

func esc(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
