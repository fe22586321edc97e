/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"errors"
	"fmt"
	"log/slog"

	applog "drawingtool/internal/log"
	"drawingtool/internal/scene"
	"drawingtool/internal/vector"
)

var (
	ErrAnchorDisabled = errors.New("anchor not enabled for this object")
	ErrRotateDisabled = errors.New("rotation not enabled for this object")
	ErrNotAttached    = errors.New("object has no active transformer")
)

// Transformer is the handle set attached to one object. A new value is built
// on every Attach; Generation identifies it.
type Transformer struct {
	Target     *scene.Object
	Contract   Contract
	Visible    bool
	Generation uint64
}

// Manager owns the single active transformer of a canvas.
type Manager struct {
	canvas    *scene.Canvas
	contracts map[scene.Kind]Contract
	active    *Transformer
	gen       uint64
	log       *slog.Logger
}

func NewManager(c *scene.Canvas, minW, minH float64) *Manager {
	return &Manager{
		canvas:    c,
		contracts: Contracts(minW, minH),
		log:       applog.WithComponent("transform"),
	}
}

// Config returns the contract for kind; unknown kinds get the generic entry.
func (m *Manager) Config(k scene.Kind) Contract {
	if c, ok := m.contracts[k]; ok {
		return c
	}
	return m.contracts[scene.KindGeneric]
}

// Attach destroys the current transformer and builds a fresh one for o.
func (m *Manager) Attach(o *scene.Object) *Transformer {
	m.Clear()
	m.gen++
	m.active = &Transformer{Target: o, Contract: m.Config(o.Kind), Visible: true, Generation: m.gen}
	m.log.Debug("transformer attached", slog.String("id", o.ID), slog.String("kind", string(o.Kind)), slog.Uint64("gen", m.gen))
	return m.active
}

// Clear detaches handles from every object.
func (m *Manager) Clear() {
	if m.active != nil {
		m.active.Target = nil
		m.active.Visible = false
	}
	m.active = nil
}

func (m *Manager) Active() *Transformer { return m.active }

func (m *Manager) Hide() {
	if m.active != nil {
		m.active.Visible = false
	}
}

func (m *Manager) Show() {
	if m.active != nil {
		m.active.Visible = true
	}
}

func (m *Manager) target(o *scene.Object) (*Transformer, error) {
	if m.active == nil || o == nil || m.active.Target != o {
		return nil, ErrNotAttached
	}
	return m.active, nil
}

// Drag applies one live step of handle a moved by (dx, dy) in canvas units.
// The step becomes live scale factors, passes the contract's validator and is
// baked back into width and height with scale reset to 1. Left and top
// handles move the anchor so the opposite edge stays put.
func (m *Manager) Drag(o *scene.Object, a Anchor, dx, dy float64) error {
	tr, err := m.target(o)
	if err != nil {
		return err
	}
	c := tr.Contract
	if !c.Allows(a) {
		return fmt.Errorf("%s on %s: %w", a, o.Kind, ErrAnchorDisabled)
	}
	sx, sy := a.sign()
	local := vector.RotateDeg(-o.Rotation).ApplyVec(vector.Pt{X: dx, Y: dy})
	old := Box{Width: o.Width, Height: o.Height}

	nb := Box{Width: old.Width + sx*local.X, Height: old.Height + sy*local.Y}
	if c.KeepRatio && sx != 0 && sy != 0 {
		// Project onto the diagonal so repeated steps add up linearly.
		d2 := old.Width*old.Width + old.Height*old.Height
		if d2 > 0 {
			s := 1 + (sx*local.X*old.Width+sy*local.Y*old.Height)/d2
			nb = Box{Width: old.Width * s, Height: old.Height * s}
		}
	}
	if c.Validate != nil {
		nb = c.Validate(old, nb)
	}

	o.ScaleX, o.ScaleY = ratio(nb.Width, old.Width), ratio(nb.Height, old.Height)
	if c.Bake != nil {
		c.Bake(m.canvas, o)
	}

	var shift vector.Pt
	if sx < 0 {
		shift.X = old.Width - o.Width
	}
	if sy < 0 {
		shift.Y = old.Height - o.Height
	}
	if shift != (vector.Pt{}) {
		w := vector.RotateDeg(o.Rotation).ApplyVec(shift)
		o.X += w.X
		o.Y += w.Y
	}
	return nil
}

func ratio(n, d float64) float64 {
	if d == 0 {
		return 1
	}
	return n / d
}

// Rotate turns o by deg around its center.
func (m *Manager) Rotate(o *scene.Object, deg float64) error {
	tr, err := m.target(o)
	if err != nil {
		return err
	}
	if !tr.Contract.Rotate {
		return fmt.Errorf("%s: %w", o.Kind, ErrRotateDisabled)
	}
	center := o.Transform().Apply(vector.Pt{X: o.Width / 2, Y: o.Height / 2})
	o.Rotation += deg
	moved := o.Transform().Apply(vector.Pt{X: o.Width / 2, Y: o.Height / 2})
	o.X += center.X - moved.X
	o.Y += center.Y - moved.Y
	return nil
}
