/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor coordinates one drawing block: selection, dirty state,
// snapping drags, transforms, text editing, persistence and the autosave task.
//
// Every exported method takes the editor mutex, so an Editor may be driven from
// several goroutines; continuations of slow work (image decode, uploads, the
// autosave timer) re-enter through the same mutex.
package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"drawingtool/internal/bus"
	"drawingtool/internal/config"
	"drawingtool/internal/domain"
	"drawingtool/internal/export"
	"drawingtool/internal/imageio"
	applog "drawingtool/internal/log"
	"drawingtool/internal/scene"
	"drawingtool/internal/telemetry"
	"drawingtool/internal/textedit"
	"drawingtool/internal/textlayout"
	"drawingtool/internal/transform"
	"drawingtool/internal/upload"
	"drawingtool/internal/vector"
)

var (
	ErrReadOnly        = errors.New("editor is read-only")
	ErrNotOwned        = errors.New("object does not belong to this editor")
	ErrNothingSelected = errors.New("nothing selected")
	ErrNotText         = errors.New("selection is not a text object")
	ErrLinkColorLocked = errors.New("fill is locked while a link is set")
	ErrNotEditing      = errors.New("no text edit session")
	ErrDestroyed       = errors.New("editor destroyed")
)

// UploadFailedMessage is shown when an image upload fails.
const UploadFailedMessage = "Couldn't upload image. Please try another."

// LinkColorLockedMessage is the hint shown when a linked text's fill is changed.
const LinkColorLockedMessage = "Remove the link to change the text color."

// Notifier shows user-facing messages.
type Notifier interface {
	Show(n bus.Notify)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(bus.Notify)

func (f NotifierFunc) Show(n bus.Notify) { f(n) }

// PersistFunc stores a saved snapshot; storage.Persister returns one.
type PersistFunc func(ctx context.Context, blockID string, d domain.Data) error

// Options configures New. Only BlockID is required.
type Options struct {
	Data     domain.Data
	ReadOnly bool
	BlockID  string

	Notifier Notifier
	Uploader upload.Func
	Loader   *imageio.Loader
	Persist  PersistFunc
	Config   *config.AppConfig
	Metrics  *telemetry.Metrics

	// Document is the editing-surface slot shared by editors on one page;
	// textedit.DefaultDocument when nil.
	Document *textedit.Document
	Viewport textedit.Viewport
	// Fonts resolves faces for text reflow; textlayout.Default() when nil.
	Fonts textlayout.Provider
	// Bus is created when nil. Hosts subscribe to it for Selected,
	// DirtyChanged, DragEnd, Saved and Notify.
	Bus *bus.Bus
}

// Editor is one drawing block instance.
type Editor struct {
	mu sync.Mutex

	blockID  string
	readOnly bool
	cfg      config.AppConfig

	canvas   *scene.Canvas
	tm       *transform.Manager
	bus      *bus.Bus
	subs     bus.Group
	doc      *textedit.Document
	viewport textedit.Viewport
	session  *textedit.Session

	uploader upload.Func
	loader   *imageio.Loader
	persist  PersistFunc
	metrics  *telemetry.Metrics
	log      *slog.Logger

	data     domain.Data
	selected *scene.Object
	dirty    bool
	gen      uint64

	autosave  *time.Timer
	closing   bool
	destroyed bool
}

// New builds the canvas for o.BlockID and loads o.Data into it. Images that
// fail to decode and malformed scene nodes are logged and skipped.
func New(ctx context.Context, o Options) (*Editor, error) {
	if o.BlockID == "" {
		return nil, fmt.Errorf("init editor: %w", errors.New("block id is required"))
	}
	cfg := config.Defaults()
	if o.Config != nil {
		cfg = *o.Config
	}
	if cfg.Canvas.Width <= 0 {
		return nil, fmt.Errorf("init editor %s: invalid canvas width %v", o.BlockID, cfg.Canvas.Width)
	}
	data := o.Data.Normalize()

	e := &Editor{
		blockID:  o.BlockID,
		readOnly: o.ReadOnly,
		cfg:      cfg,
		bus:      o.Bus,
		doc:      o.Document,
		viewport: o.Viewport,
		uploader: o.Uploader,
		loader:   o.Loader,
		persist:  o.Persist,
		metrics:  o.Metrics,
		data:     data,
		log:      applog.WithComponent("editor").With(slog.String("block", o.BlockID)),
	}
	if e.bus == nil {
		e.bus = &bus.Bus{}
	}
	if e.doc == nil {
		e.doc = textedit.DefaultDocument
	}
	if e.loader == nil {
		e.loader = imageio.NewLoader(nil)
	}
	fonts := o.Fonts
	if fonts == nil {
		fonts = textlayout.Default()
	}

	e.canvas = scene.New(o.BlockID, cfg.Canvas.Width, data.CanvasHeight)
	e.canvas.SetLayouter(textlayout.New(fonts))
	e.tm = transform.NewManager(e.canvas, cfg.Canvas.MinObjectWidth, cfg.Canvas.MinObjectHeight)

	if o.Notifier != nil {
		e.subs.Add(bus.Subscribe(e.bus, o.Notifier.Show))
	}
	// Published by edit sessions and by the TransformEnd hook; the editor
	// mutex is held by whoever publishes.
	e.subs.Add(
		bus.Subscribe(e.bus, func(bus.HideTransformer) { e.tm.Hide() }),
		bus.Subscribe(e.bus, func(bus.ShowTransformer) { e.tm.Show() }),
		bus.Subscribe(e.bus, func(ev bus.TransformEnd) {
			if e.closing || ev.Object == nil || !e.canvas.Owns(ev.Object) {
				return
			}
			e.touch()
			e.scheduleAutosave()
		}),
	)

	e.load(ctx, data)
	e.log.Debug("editor ready", slog.Int("objects", e.canvas.Len()), slog.Bool("readOnly", e.readOnly))
	return e, nil
}

// Bus returns the editor's event bus.
func (e *Editor) Bus() *bus.Bus { return e.bus }

func (e *Editor) BlockID() string { return e.blockID }
func (e *Editor) ReadOnly() bool  { return e.readOnly }

// Dirty reports whether there are unsaved changes.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirty
}

// SetDirty sets the dirty flag and publishes DirtyChanged when it flips.
func (e *Editor) SetDirty(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v {
		e.touch()
		return
	}
	e.setDirty(false)
}

func (e *Editor) setDirty(v bool) {
	if e.dirty == v {
		return
	}
	e.dirty = v
	bus.Publish(e.bus, bus.DirtyChanged{Dirty: v})
}

// touch records a mutation.
func (e *Editor) touch() {
	e.gen++
	e.setDirty(true)
}

// Selected returns the selected object or nil.
func (e *Editor) Selected() *scene.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Objects returns the placed objects bottom to top.
func (e *Editor) Objects() []*scene.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canvas.Objects()
}

// Find returns the object with id, or nil.
func (e *Editor) Find(id string) *scene.Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canvas.Find(id)
}

// Guides returns the guide lines currently drawn.
func (e *Editor) Guides() []vector.GuideLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]vector.GuideLine(nil), e.canvas.Guides()...)
}

// Transformer returns the active transformer, or nil.
func (e *Editor) Transformer() *transform.Transformer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tm.Active()
}

// Size returns the canvas size.
func (e *Editor) Size() (w, h float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canvas.Width(), e.canvas.Height()
}

// Owns reports whether o was placed on this editor's canvas.
func (e *Editor) Owns(o *scene.Object) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canvas.Owns(o)
}

// Data returns the last saved (or loaded) snapshot.
func (e *Editor) Data() domain.Data {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data.Clone()
}

// SetViewport updates where the canvas sits on the page, for edit surfaces.
func (e *Editor) SetViewport(v textedit.Viewport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.viewport = v
}

// Validate reports whether d can be loaded.
func (e *Editor) Validate(d domain.Data) bool { return Validate(d) }

// Validate reports whether d can be loaded: a present canvasJson must parse as
// structured JSON.
func Validate(d domain.Data) bool { return d.Validate() == nil }

// Render rasterises the canvas as it currently looks, guides included.
func (e *Editor) Render() (*image.RGBA, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return nil, ErrDestroyed
	}
	return export.Render(e.canvas, export.Options{IncludeGuides: true}), nil
}

// Export writes the canvas in opt.Format. Guides are left out unless
// opt.IncludeGuides is set.
func (e *Editor) Export(w io.Writer, opt export.Options) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrDestroyed
	}
	return export.Write(w, e.canvas, opt)
}

// Destroy ends any edit session, stops the autosave task and, when there are
// unsaved changes, runs one final save before tearing the canvas down. Saves
// still in flight afterwards are not persisted.
func (e *Editor) Destroy() {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return
	}
	if e.session != nil && e.session.Open() {
		e.session.Commit()
	}
	e.closing = true
	e.stopAutosave()
	dirty := e.dirty
	e.mu.Unlock()

	if dirty {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Upload.Timeout())
		if _, err := e.save(ctx, true); err != nil {
			e.log.Error("final save failed", slog.Any("err", err))
		}
		cancel()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
	e.subs.CancelAll()
	e.tm.Clear()
	e.selected = nil
	e.session = nil
	e.canvas.Destroy()
	e.log.Debug("editor destroyed")
}

// scheduleAutosave (re)arms the debounce timer.
func (e *Editor) scheduleAutosave() {
	if e.closing || e.readOnly {
		return
	}
	if e.autosave != nil {
		e.autosave.Stop()
	}
	e.autosave = time.AfterFunc(e.cfg.Autosave.AutosaveDelay(), e.runAutosave)
}

func (e *Editor) stopAutosave() {
	if e.autosave != nil {
		e.autosave.Stop()
		e.autosave = nil
	}
}

func (e *Editor) runAutosave() {
	e.mu.Lock()
	if e.closing {
		e.mu.Unlock()
		return
	}
	e.autosave = nil
	e.mu.Unlock()

	e.metrics.Autosaved()
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Upload.Timeout())
	defer cancel()
	if _, err := e.Save(ctx); err != nil && !errors.Is(err, ErrDestroyed) {
		e.log.Warn("autosave failed", slog.Any("err", err))
	}
}

// notify publishes a user-facing message.
func (e *Editor) notify(msg string, style bus.Style) {
	bus.Publish(e.bus, bus.Notify{Message: msg, Style: style})
}

// own checks that o is a live object of this canvas.
func (e *Editor) own(o *scene.Object) error {
	if e.destroyed {
		return ErrDestroyed
	}
	if o == nil {
		return ErrNothingSelected
	}
	if !e.canvas.Owns(o) {
		return fmt.Errorf("%s: %w", o.ID, ErrNotOwned)
	}
	return nil
}

// writable rejects mutations on read-only or destroyed editors.
func (e *Editor) writable() error {
	if e.destroyed {
		return ErrDestroyed
	}
	if e.readOnly {
		return ErrReadOnly
	}
	return nil
}
