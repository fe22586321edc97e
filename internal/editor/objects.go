/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"drawingtool/internal/bus"
	"drawingtool/internal/imageio"
	"drawingtool/internal/scene"
)

// AddText places a placeholder text near the canvas center and selects it.
func (e *Editor) AddText() (*scene.Object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return nil, err
	}
	tc := e.cfg.Text
	w, h := e.canvas.Width(), e.canvas.Height()
	o := scene.NewText(fmt.Sprintf("text-%s-%s", e.blockID, uuid.NewString()), tc.Placeholder, w/2-100, h/2-10)
	t := o.Text
	t.FontFamily, t.FontSize, t.Fill = tc.Font, tc.FontSize, tc.Color
	t.Align, t.Wrap, t.LineHeight, t.Padding = tc.Align, tc.Wrap, tc.LineHeight, tc.Padding
	o.Width = tc.Width
	if err := e.canvas.Add(o); err != nil {
		return nil, err
	}
	e.selectObject(o)
	e.touch()
	e.scheduleAutosave()
	return o, nil
}

// AddImage uploads src when an uploader is configured, decodes the result and
// places it. An upload failure is reported through the notifier.
func (e *Editor) AddImage(ctx context.Context, src string) (*scene.Object, error) {
	e.mu.Lock()
	err := e.writable()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	url := src
	if e.uploader != nil {
		if url, err = e.uploader(ctx, src); err != nil {
			e.metrics.UploadFailed()
			e.log.Warn("image upload failed", slog.Any("err", err))
			e.mu.Lock()
			e.notify(UploadFailedMessage, bus.StyleError)
			e.mu.Unlock()
			return nil, fmt.Errorf("upload image: %w", err)
		}
	}
	px, _, err := e.loader.Load(ctx, url)
	if err != nil {
		e.log.Error("failed to load image", slog.Any("err", err))
		return nil, err
	}
	return e.AddDecodedImage(px, url)
}

// AddDecodedImage places px centered on the canvas, scaled to fit within the
// configured fraction of the stage, and selects it.
func (e *Editor) AddDecodedImage(px image.Image, src string) (*scene.Object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return nil, err
	}
	if px == nil {
		return nil, fmt.Errorf("add image: %w", imageio.ErrNotImage)
	}
	cw, ch := e.canvas.Width(), e.canvas.Height()
	f := e.cfg.Canvas.ImageScaleFactor
	b := px.Bounds()
	w, h := imageio.FitWithin(float64(b.Dx()), float64(b.Dy()), cw*f, ch*f)
	o := scene.NewImage(fmt.Sprintf("image-%s-%s", e.blockID, uuid.NewString()), px, src, (cw-w)/2, (ch-h)/2, w, h)
	if err := e.canvas.Add(o); err != nil {
		return nil, err
	}
	e.selectObject(o)
	e.touch()
	e.scheduleAutosave()
	return o, nil
}

// PasteImage adds a pasted image at its natural size at the origin. The data
// is uploaded with the next save.
func (e *Editor) PasteImage(ctx context.Context, src string) (*scene.Object, error) {
	e.mu.Lock()
	err := e.writable()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	px, _, err := e.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return nil, err
	}
	b := px.Bounds()
	o := scene.NewImage(uuid.NewString(), px, src, 0, 0, float64(b.Dx()), float64(b.Dy()))
	if err := e.canvas.Add(o); err != nil {
		return nil, err
	}
	e.selectObject(o)
	e.touch()
	e.scheduleAutosave()
	return o, nil
}

// TextProps is a partial update of a text object; nil fields are untouched.
type TextProps struct {
	Content    *string
	FontFamily *string
	FontSize   *float64
	Fill       *string
	Align      *string
	FontStyle  *string
	Width      *float64
	Wrap       *string
	LineHeight *float64
}

// UpdateTextProps applies p to the selected text. Changing the fill of a
// linked text is rejected with ErrLinkColorLocked and nothing is applied.
func (e *Editor) UpdateTextProps(p TextProps) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.selectedText()
	if err != nil {
		return err
	}
	t := o.Text
	if p.Fill != nil && o.HasLink() && *p.Fill != t.Fill {
		e.notify(LinkColorLockedMessage, bus.StyleInfo)
		return ErrLinkColorLocked
	}
	if p.Align != nil {
		switch *p.Align {
		case "left", "center", "right":
		default:
			return fmt.Errorf("invalid align %q", *p.Align)
		}
	}
	if p.FontStyle != nil && *p.FontStyle != "normal" && *p.FontStyle != "bold" {
		return fmt.Errorf("invalid font style %q", *p.FontStyle)
	}
	if p.FontSize != nil && *p.FontSize <= 0 {
		return fmt.Errorf("invalid font size %v", *p.FontSize)
	}

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&t.Content, p.Content)
	set(&t.FontFamily, p.FontFamily)
	set(&t.Fill, p.Fill)
	set(&t.Align, p.Align)
	set(&t.FontStyle, p.FontStyle)
	set(&t.Wrap, p.Wrap)
	if p.FontSize != nil {
		t.FontSize = *p.FontSize
	}
	if p.LineHeight != nil && *p.LineHeight > 0 {
		t.LineHeight = *p.LineHeight
	}
	if p.Width != nil {
		o.Width = math.Max(e.cfg.Canvas.MinObjectWidth, *p.Width)
	}
	e.canvas.Reflow(o)
	e.touch()
	e.scheduleAutosave()
	return nil
}

// SetFill changes the color of the selected text.
func (e *Editor) SetFill(color string) error { return e.UpdateTextProps(TextProps{Fill: &color}) }

// SetLink attaches url to the selected text and applies the link style. The
// fill in use before the first link is kept for RemoveLink.
func (e *Editor) SetLink(url string) error {
	if url == "" {
		return e.RemoveLink()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.selectedText()
	if err != nil {
		return err
	}
	t := o.Text
	if !o.HasLink() {
		prev := t.Fill
		t.PreviousFill = &prev
	}
	t.Link = url
	t.Fill = e.cfg.Link.Color
	t.Decoration = e.cfg.Link.Decoration
	e.touch()
	e.scheduleAutosave()
	return nil
}

// RemoveLink drops the link of the selected text and restores the captured
// fill, or the default text color when none was captured.
func (e *Editor) RemoveLink() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.selectedText()
	if err != nil {
		return err
	}
	t := o.Text
	if !o.HasLink() {
		return nil
	}
	t.Fill = e.cfg.Text.Color
	if t.PreviousFill != nil {
		t.Fill = *t.PreviousFill
	}
	t.PreviousFill = nil
	t.Link = ""
	t.Decoration = ""
	e.touch()
	e.scheduleAutosave()
	return nil
}

// ResizeCanvas changes the canvas height.
func (e *Editor) ResizeCanvas(height float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return err
	}
	if height <= 0 {
		return fmt.Errorf("invalid canvas height %v", height)
	}
	e.canvas.SetHeight(height)
	e.data.CanvasHeight = height
	e.touch()
	e.scheduleAutosave()
	return nil
}

// BringForward moves the selection one step up in z-order.
func (e *Editor) BringForward() error { return e.reorder((*scene.Canvas).MoveUp) }

// SendBackward moves the selection one step down in z-order.
func (e *Editor) SendBackward() error { return e.reorder((*scene.Canvas).MoveDown) }

func (e *Editor) BringToFront() error { return e.reorder((*scene.Canvas).ToTop) }
func (e *Editor) SendToBack() error   { return e.reorder((*scene.Canvas).ToBottom) }

func (e *Editor) reorder(move func(*scene.Canvas, *scene.Object) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.writable(); err != nil {
		return err
	}
	if err := e.own(e.selected); err != nil {
		return err
	}
	if move(e.canvas, e.selected) {
		e.touch()
		e.scheduleAutosave()
	}
	return nil
}

func (e *Editor) selectedText() (*scene.Object, error) {
	if err := e.writable(); err != nil {
		return nil, err
	}
	o := e.selected
	if err := e.own(o); err != nil {
		return nil, err
	}
	if o.Kind != scene.KindText || o.Text == nil {
		return nil, ErrNotText
	}
	return o, nil
}
