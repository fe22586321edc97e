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
	"time"

	"golang.org/x/sync/errgroup"

	"drawingtool/internal/bus"
	"drawingtool/internal/domain"
	"drawingtool/internal/imageio"
	"drawingtool/internal/scene"
	"drawingtool/internal/telemetry"
)

// Keys of scene attributes that are not carried into an image's attrs.
var imageSkipKeys = map[string]bool{
	"x": true, "y": true, "width": true, "height": true,
	"scaleX": true, "scaleY": true, "rotation": true,
}

// load fills the canvas from d: images first, then every other scene node.
// Nothing is loaded without a scene document.
func (e *Editor) load(ctx context.Context, d domain.Data) {
	e.canvas.Clear()
	if d.CanvasJSON == nil {
		return
	}
	objs, err := scene.Decode(*d.CanvasJSON)
	if err != nil {
		e.log.Error("load canvas failed", slog.Any("err", err))
		return
	}

	pixels := make([]image.Image, len(d.CanvasImages))
	var g errgroup.Group
	g.SetLimit(e.concurrency())
	for i, im := range d.CanvasImages {
		i, im := i, im
		g.Go(func() error {
			px, _, err := e.loader.Load(ctx, im.Src)
			if err != nil {
				e.log.Warn("skipping image", slog.String("id", im.ID), slog.Any("err", err))
				return nil
			}
			pixels[i] = px
			return nil
		})
	}
	_ = g.Wait()

	for i, im := range d.CanvasImages {
		if pixels[i] == nil {
			continue
		}
		o := imageFromData(im, pixels[i])
		o.Draggable = !e.readOnly
		if err := e.canvas.Add(o); err != nil {
			e.log.Warn("skipping image", slog.String("id", im.ID), slog.Any("err", err))
		}
	}
	for _, o := range objs {
		if o.Kind == scene.KindImage {
			continue
		}
		o.Draggable = !e.readOnly
		if err := e.canvas.Add(o); err != nil {
			e.log.Warn("skipping node", slog.String("id", o.ID), slog.Any("err", err))
		}
	}
}

func (e *Editor) concurrency() int {
	if n := e.cfg.Upload.Concurrency; n > 0 {
		return n
	}
	return 4
}

func imageFromData(im domain.ImageData, px image.Image) *scene.Object {
	a := im.Attrs
	w, h := a.Width, a.Height
	if w <= 0 || h <= 0 {
		b := px.Bounds()
		w, h = float64(b.Dx()), float64(b.Dy())
	}
	o := scene.NewImage(im.ID, px, im.Src, a.X, a.Y, w, h)
	o.Rotation = a.Rotation
	if a.ScaleX != 0 {
		o.ScaleX = a.ScaleX
	}
	if a.ScaleY != 0 {
		o.ScaleY = a.ScaleY
	}
	for k, v := range a.Extra {
		switch k {
		case "id", "name", "draggable":
		case "visible":
			if b, ok := v.(bool); ok {
				o.Visible = b
			}
		default:
			if o.Extra == nil {
				o.Extra = make(map[string]any)
			}
			o.Extra[k] = v
		}
	}
	return o
}

func imageAttrs(o *scene.Object) domain.ImageAttrs {
	a := domain.ImageAttrs{
		X: o.X, Y: o.Y, Width: o.Width, Height: o.Height,
		ScaleX: o.ScaleX, ScaleY: o.ScaleY, Rotation: o.Rotation,
	}
	for k, v := range scene.Attrs(o) {
		if imageSkipKeys[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[k] = v
	}
	return a
}

// snapshot serializes the canvas. A text under edit is written as it will
// display after the edit. Called with the mutex held.
func (e *Editor) snapshot() (domain.Data, error) {
	e.canvas.ClearGuides()
	objs := e.canvas.Objects()
	if e.session != nil && e.session.Open() {
		for i, o := range objs {
			if o == e.session.Node() {
				objs[i] = e.session.Displayed()
			}
		}
	}
	raw, err := scene.Encode(objs)
	if err != nil {
		return domain.Data{}, err
	}
	d := domain.Data{CanvasJSON: &raw, CanvasImages: []domain.ImageData{}, CanvasHeight: e.canvas.Height()}
	for _, o := range e.canvas.Objects() {
		if o.Kind != scene.KindImage || o.Image == nil {
			continue
		}
		src := o.Image.Src
		if src == "" {
			if o.Image.Pixels == nil {
				continue
			}
			if src, err = imageio.EncodeDataURL(o.Image.Pixels); err != nil {
				return domain.Data{}, fmt.Errorf("image %s: %w", o.ID, err)
			}
			o.Image.Src = src
		}
		d.CanvasImages = append(d.CanvasImages, domain.ImageData{ID: o.ID, Src: src, Attrs: imageAttrs(o)})
	}
	return d, nil
}

// Save serializes the canvas, uploads inline image data and persists the
// result. Without unsaved changes it returns the current data unchanged.
// A failing upload is reported through the notifier and its image keeps the
// inline data; the rest of the save completes. A serialization or persist
// failure leaves the previous data in place.
func (e *Editor) Save(ctx context.Context) (domain.Data, error) { return e.save(ctx, false) }

type uploadResult struct {
	idx int
	url string
	err error
}

func (e *Editor) save(ctx context.Context, final bool) (domain.Data, error) {
	start := time.Now()
	e.mu.Lock()
	if e.destroyed || (e.closing && !final) {
		d := e.data.Clone()
		e.mu.Unlock()
		return d, ErrDestroyed
	}
	if !e.dirty {
		d := e.data.Clone()
		e.mu.Unlock()
		return d, nil
	}
	snap, err := e.snapshot()
	gen := e.gen
	e.mu.Unlock()
	if err != nil {
		e.metrics.Saved(telemetry.ResultError, time.Since(start))
		return e.Data(), fmt.Errorf("save canvas: %w", err)
	}

	results := e.uploadInline(ctx, snap.CanvasImages)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return e.data.Clone(), ErrDestroyed
	}
	result := telemetry.ResultOK
	for _, r := range results {
		im := &snap.CanvasImages[r.idx]
		if r.err != nil {
			result = telemetry.ResultPartial
			e.metrics.UploadFailed()
			e.log.Warn("image upload failed", slog.String("id", im.ID), slog.Any("err", r.err))
			e.notify(UploadFailedMessage, bus.StyleError)
			continue
		}
		if o := e.canvas.Find(im.ID); o != nil && o.Image != nil && o.Image.Src == im.Src {
			o.Image.Src = r.url
		}
		im.Src = r.url
	}

	if e.persist != nil {
		if err := e.persist(ctx, e.blockID, snap.Clone()); err != nil {
			e.metrics.Saved(telemetry.ResultError, time.Since(start))
			return e.data.Clone(), fmt.Errorf("persist %s: %w", e.blockID, err)
		}
	}
	e.data = snap
	if e.gen == gen {
		e.setDirty(false)
	}
	e.metrics.Saved(result, time.Since(start))
	e.log.Debug("saved", slog.Int("images", len(snap.CanvasImages)), slog.String("result", result))
	bus.Publish(e.bus, bus.Saved{Data: snap.Clone()})
	return snap.Clone(), nil
}

// uploadInline fans out uploads of data URLs and waits for all of them.
func (e *Editor) uploadInline(ctx context.Context, images []domain.ImageData) []uploadResult {
	if e.uploader == nil {
		return nil
	}
	var pending []int
	for i, im := range images {
		if imageio.IsDataURL(im.Src) {
			pending = append(pending, i)
		}
	}
	results := make([]uploadResult, len(pending))
	var g errgroup.Group
	g.SetLimit(e.concurrency())
	for n, idx := range pending {
		n, idx := n, idx
		src := images[idx].Src
		g.Go(func() error {
			url, err := e.uploader(ctx, src)
			results[n] = uploadResult{idx: idx, url: url, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
