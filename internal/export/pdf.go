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
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"drawingtool/internal/scene"
)

// WritePDF writes c as a single-page PDF at path. One canvas unit is one point.
// Text uses the built-in Helvetica so it stays vector without embedding fonts.
func WritePDF(path string, c *scene.Canvas) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure out dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := writePDF(f, c); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close pdf: %w", err)
	}
	return nil
}

func writePDF(w io.Writer, c *scene.Canvas) error {
	cw, ch := c.Width(), c.Height()
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: cw, Ht: ch},
	})
	pdf.SetCreator("drawtool", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, o := range c.Objects() {
		if !o.Visible || o.ScaleX == 0 || o.ScaleY == 0 {
			continue
		}
		pdf.TransformBegin()
		pdf.TransformRotate(-o.Rotation, o.X, o.Y)
		pdf.TransformScale(o.ScaleX*100, o.ScaleY*100, o.X, o.Y)
		switch o.Kind {
		case scene.KindImage:
			if err := pdfImage(pdf, o); err != nil {
				return err
			}
		case scene.KindText:
			pdfText(pdf, c, o, tr)
		default:
			pdfPlaceholder(pdf, o)
		}
		pdf.TransformEnd()
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfPlaceholder(pdf *gofpdf.Fpdf, o *scene.Object) {
	pdf.SetFillColor(int(placeholder.R), int(placeholder.G), int(placeholder.B))
	pdf.Rect(o.X, o.Y, o.Width, o.Height, "F")
}

func pdfImage(pdf *gofpdf.Fpdf, o *scene.Object) error {
	if o.Image == nil || o.Image.Pixels == nil {
		pdfPlaceholder(pdf, o)
		return nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, o.Image.Pixels); err != nil {
		return fmt.Errorf("image %s: %w", o.ID, err)
	}
	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(o.ID, opt, &buf)
	pdf.ImageOptions(o.ID, o.X, o.Y, o.Width, o.Height, false, opt, 0, "")
	return pdf.Error()
}

func pdfText(pdf *gofpdf.Fpdf, c *scene.Canvas, o *scene.Object, tr func(string) string) {
	t := o.Text
	if t == nil {
		return
	}
	style := ""
	if t.FontStyle == "bold" {
		style += "B"
	}
	if strings.Contains(t.Decoration, "underline") {
		style += "U"
	}
	pdf.SetFont("Helvetica", style, t.FontSize)
	col := parseColor(t.Fill)
	pdf.SetTextColor(int(col.R), int(col.G), int(col.B))

	lineH := t.FontSize * t.LineHeight
	for i, line := range c.Layout(o).Lines {
		s := tr(line)
		x := o.X + t.Padding
		switch t.Align {
		case "center":
			x = o.X + (o.Width-pdf.GetStringWidth(s))/2
		case "right":
			x = o.X + o.Width - t.Padding - pdf.GetStringWidth(s)
		}
		y := o.Y + t.Padding + float64(i)*lineH + (lineH+t.FontSize)/2 - t.FontSize*0.2
		pdf.Text(x, y, s)
	}
	if t.Link != "" {
		pdf.LinkString(o.X, o.Y, o.Width, o.Height, t.Link)
	}
}
