/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a canvas to raster, vector and document formats.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"drawingtool/internal/scene"
	"drawingtool/internal/textlayout"
)

// Format names an output format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatSVG  Format = "svg"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// DefaultQuality matches the browser default for lossy data URLs.
const DefaultQuality = 0.92

// Options controls an export.
//   - Quality is 0..1 and only used for JPEG.
//   - Width and Height are the output size in pixels; zero keeps the canvas size,
//     and setting only one scales the other proportionally.
//   - IncludeGuides draws the current guide lines on raster output.
//   - Provider resolves fonts for raster output; textlayout.Default() if nil.
type Options struct {
	Format        Format
	Quality       float64
	Width         int
	Height        int
	IncludeGuides bool
	Provider      textlayout.Provider
}

// Preset names a predefined set of options.
type Preset string

const (
	PresetWeb   Preset = "web"
	PresetPrint Preset = "print"
	PresetThumb Preset = "thumb"
)

// ForPreset returns the options of a named preset.
func ForPreset(p Preset) (Options, error) {
	switch Preset(strings.ToLower(string(p))) {
	case PresetWeb, "":
		return Options{Format: FormatPNG}, nil
	case PresetPrint:
		return Options{Format: FormatPDF}, nil
	case PresetThumb:
		return Options{Format: FormatJPEG, Width: 320, Quality: 0.8}, nil
	default:
		return Options{}, fmt.Errorf("unknown preset %q", p)
	}
}

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".svg":
		return FormatSVG, nil
	case ".json":
		return FormatJSON, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("cannot infer export format from %q", path)
	}
}

// Write encodes c in opt.Format to w.
func Write(w io.Writer, c *scene.Canvas, opt Options) error {
	switch opt.Format {
	case FormatPNG, "":
		return RenderPNG(w, c, opt)
	case FormatJPEG:
		return RenderJPEG(w, c, opt)
	case FormatSVG:
		return WriteSVG(w, c)
	case FormatJSON:
		raw, err := scene.Encode(c.Objects())
		if err != nil {
			return fmt.Errorf("encode scene: %w", err)
		}
		_, err = io.WriteString(w, raw)
		return err
	case FormatPDF:
		return writePDF(w, c)
	default:
		return fmt.Errorf("unsupported export format %q", opt.Format)
	}
}

// outputScale maps canvas units to output pixels.
func outputScale(c *scene.Canvas, opt Options) (sx, sy float64) {
	cw, ch := c.Width(), c.Height()
	switch {
	case opt.Width > 0 && opt.Height > 0:
		return float64(opt.Width) / cw, float64(opt.Height) / ch
	case opt.Width > 0:
		s := float64(opt.Width) / cw
		return s, s
	case opt.Height > 0:
		s := float64(opt.Height) / ch
		return s, s
	}
	return 1, 1
}
