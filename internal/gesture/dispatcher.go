/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package gesture turns screen gestures into panel actions.
package gesture

import (
	"log/slog"
	"time"

	"museumar/internal/clock"
	"museumar/internal/domain"
	"museumar/internal/drawing"
	"museumar/internal/geom"
	applog "museumar/internal/log"
	"museumar/internal/panel"
	"museumar/internal/scene"
	"museumar/internal/session"
)

// Phase of a continuous gesture.
type Phase int

const (
	Began Phase = iota
	Changed
	Ended
	Cancelled
)

// Action is what a tap or hold resolved to.
type Action int

const (
	NoAction Action = iota
	Deleted
	Edited
	MoveStarted
	SpotlightToggled
	ExpandToggled
	EditModeToggled
)

func (a Action) String() string {
	return [...]string{"none", "delete", "edit", "move", "spotlight", "expand", "edit-mode"}[a]
}

// Editor is the edit surface. done runs on the main loop with the confirmed
// content; it is never called when the user cancels.
type Editor interface {
	Edit(panelID string, current domain.Content, done func(domain.Content))
}

// Haptics gives tactile feedback.
type Haptics interface {
	Success()
	MediumImpact()
}

// Pusher sends persisted changes to the remote store.
type Pusher interface {
	PushUpdate(panelID string, fields map[string]any)
	PushDelete(panelID string)
	PushDrawing(p drawing.Point)
	PushDrawingDelete(drawingID string)
}

// Mover runs the move preview.
type Mover interface {
	Activate(e *panel.Entity) error
	TargetID() string
	Cancel()
}

// Scheduler runs delayed work on the main loop.
type Scheduler interface {
	After(d time.Duration, fn func()) *clock.Timer
}

// Tierer classifies a panel against the current camera.
type Tierer interface {
	TierFor(e *panel.Entity) domain.Tier
}

// Config holds the gesture timings and drawing parameters.
type Config struct {
	Revert       time.Duration
	EditAutoHide time.Duration
	DrawLerp     float32
	EraseRadius  float32
}

func DefaultConfig() Config {
	return Config{Revert: 15 * time.Second, EditAutoHide: 5 * time.Second, DrawLerp: 0.9, EraseRadius: 0.05}
}

// Deps are the collaborators of a Dispatcher. Editor and Haptics may be nil.
type Deps struct {
	Renderer scene.Renderer
	Registry *panel.Registry
	Session  *session.Context
	Loop     Scheduler
	LOD      Tierer
	Mover    Mover
	Push     Pusher
	Drawings *drawing.Set
	Editor   Editor
	Haptics  Haptics
	// OnDelete, if set, runs after a panel was deleted by the user.
	OnDelete func(panelID string)
}

type pending struct{ t *clock.Timer }

type pinchState struct {
	target  *panel.Entity
	initial float32
}

// Dispatcher routes gestures. All methods must run on the main loop.
type Dispatcher struct {
	d   Deps
	cfg Config
	log *slog.Logger

	reverts  map[string]*pending
	autoHide map[string]*pending
	pinch    *pinchState
	drawing  bool
	eraser   bool
}

func New(d Deps, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.Revert <= 0 {
		cfg.Revert = def.Revert
	}
	if cfg.EditAutoHide <= 0 {
		cfg.EditAutoHide = def.EditAutoHide
	}
	if cfg.DrawLerp <= 0 || cfg.DrawLerp > 1 {
		cfg.DrawLerp = def.DrawLerp
	}
	if cfg.EraseRadius <= 0 {
		cfg.EraseRadius = def.EraseRadius
	}
	return &Dispatcher{
		d:        d,
		cfg:      cfg,
		log:      applog.WithComponent("gesture"),
		reverts:  map[string]*pending{},
		autoHide: map[string]*pending{},
	}
}

func (g *Dispatcher) SetDrawing(on bool) { g.drawing = on }
func (g *Dispatcher) SetEraser(on bool)  { g.eraser = on }
func (g *Dispatcher) Drawing() bool      { return g.drawing }
func (g *Dispatcher) Eraser() bool       { return g.eraser }

func (g *Dispatcher) resolve(pt geom.Pt) (*panel.Entity, panel.Target) {
	hits := g.d.Renderer.HitTest(pt)
	if len(hits) == 0 {
		return nil, panel.TargetNone
	}
	return g.d.Registry.FindByNode(hits[0])
}

// Tap resolves the nearest node under pt and performs the matching action.
func (g *Dispatcher) Tap(pt geom.Pt) Action {
	e, target := g.resolve(pt)
	switch target {
	case panel.TargetDelete:
		g.Delete(e)
		return Deleted
	case panel.TargetEdit:
		g.Edit(e)
		return Edited
	case panel.TargetMove:
		if err := g.BeginMove(e); err != nil {
			g.log.Info("move not started", "panel", e.ID(), "err", err)
			return NoAction
		}
		return MoveStarted
	case panel.TargetSpotlight:
		g.ToggleSpotlight(e)
		return SpotlightToggled
	case panel.TargetBody:
		g.ToggleExpand(e)
		return ExpandToggled
	}
	return NoAction
}

// Delete removes the panel locally and remotely when the session syncs.
func (g *Dispatcher) Delete(e *panel.Entity) {
	id := e.ID()
	g.Forget(e)
	g.d.Registry.Remove(id)
	e.Detach()
	if g.d.Session.Syncing() {
		g.d.Push.PushDelete(id)
	}
	if g.d.Haptics != nil {
		g.d.Haptics.Success()
	}
	if g.d.OnDelete != nil {
		g.d.OnDelete(id)
	}
	g.log.Debug("panel deleted", "panel", id)
}

// ToggleSpotlight flips the highlight and pushes it when syncing.
func (g *Dispatcher) ToggleSpotlight(e *panel.Entity) {
	on := !e.Spotlight()
	e.SetSpotlight(on)
	if g.d.Session.Syncing() {
		g.d.Push.PushUpdate(e.ID(), domain.SpotlightFields(on))
	}
}

// Edit opens the editor on the panel's current content.
func (g *Dispatcher) Edit(e *panel.Entity) {
	if g.d.Editor == nil {
		return
	}
	id := e.ID()
	g.d.Editor.Edit(id, e.Content(), func(c domain.Content) {
		cur, ok := g.d.Registry.Get(id)
		if !ok || cur != e {
			return
		}
		e.ApplyContent(c)
		if g.d.Session.Syncing() {
			g.d.Push.PushUpdate(id, domain.ContentFields(c))
		}
	})
}

// BeginMove starts the move preview for the panel.
func (g *Dispatcher) BeginMove(e *panel.Entity) error {
	return g.d.Mover.Activate(e)
}

// ToggleExpand enters FullText with a reversion timer, or leaves it for the
// tier matching the current distance.
func (g *Dispatcher) ToggleExpand(e *panel.Entity) {
	id := e.ID()
	if !e.Expanded() {
		e.Expand()
		g.CancelReversion(id)
		p := &pending{}
		p.t = g.d.Loop.After(g.cfg.Revert, func() { g.revert(id, p) })
		g.reverts[id] = p
		return
	}
	g.CancelReversion(id)
	g.collapse(e)
}

func (g *Dispatcher) revert(id string, p *pending) {
	if g.reverts[id] != p {
		return
	}
	delete(g.reverts, id)
	if e, ok := g.d.Registry.Get(id); ok && e.Expanded() {
		g.collapse(e)
	}
}

func (g *Dispatcher) collapse(e *panel.Entity) {
	t := g.d.LOD.TierFor(e)
	e.Collapse(t)
	e.SetHighlightNear(t == domain.Expanded)
}

// CancelReversion stops a pending FullText reversion. Cancelling a missing
// timer is a no-op; the result reports whether one was pending.
func (g *Dispatcher) CancelReversion(id string) bool {
	p, ok := g.reverts[id]
	if !ok {
		return false
	}
	p.t.Stop()
	delete(g.reverts, id)
	return true
}

// ReversionPending reports whether a FullText reversion is armed for the panel.
func (g *Dispatcher) ReversionPending(id string) bool {
	_, ok := g.reverts[id]
	return ok
}

// Hold toggles edit controls on a body hit and hides them again after a delay.
// A second hold before the delay cancels the pending auto-hide.
func (g *Dispatcher) Hold(pt geom.Pt, phase Phase) Action {
	if phase != Began {
		return NoAction
	}
	e, target := g.resolve(pt)
	if target != panel.TargetBody {
		return NoAction
	}
	id := e.ID()
	e.ToggleEditMode()
	if g.d.Haptics != nil {
		g.d.Haptics.MediumImpact()
	}
	if p, ok := g.autoHide[id]; ok {
		p.t.Stop()
		delete(g.autoHide, id)
	}
	if e.EditControlsShown() {
		p := &pending{}
		p.t = g.d.Loop.After(g.cfg.EditAutoHide, func() {
			if g.autoHide[id] != p {
				return
			}
			delete(g.autoHide, id)
			if cur, ok := g.d.Registry.Get(id); ok && cur.EditControlsShown() {
				cur.ToggleEditMode()
			}
		})
		g.autoHide[id] = p
	}
	return EditModeToggled
}

// Pinch scales the panel under the gesture. Scale is never pushed.
func (g *Dispatcher) Pinch(pt geom.Pt, phase Phase, factor float32) {
	switch phase {
	case Began:
		g.pinch = nil
		if e, target := g.resolve(pt); target != panel.TargetNone {
			g.pinch = &pinchState{target: e, initial: e.Scale()}
		}
	case Changed:
		if g.pinch == nil || !g.pinch.target.InScene() {
			return
		}
		g.pinch.target.SetScale(g.pinch.initial * factor)
	default:
		g.pinch = nil
	}
}

// Pan draws or erases freehand points while drawing mode is on.
func (g *Dispatcher) Pan(pt geom.Pt, phase Phase) {
	if !g.drawing || phase == Cancelled {
		return
	}
	near, far := g.d.Renderer.Unproject(pt)
	community := g.d.Session.Pulls()
	if g.eraser {
		for _, id := range g.d.Drawings.EraseNear(near, far, g.cfg.EraseRadius) {
			if community {
				g.d.Push.PushDrawingDelete(id)
			}
		}
		return
	}
	p := g.d.Drawings.AddWorld(near.Lerp(far, g.cfg.DrawLerp))
	if community {
		g.d.Push.PushDrawing(p)
	}
}

// Forget drops every timer and gesture bound to the panel and cancels a move
// that targets it. The panel itself is left alone.
func (g *Dispatcher) Forget(e *panel.Entity) {
	id := e.ID()
	g.forget(id)
	if g.d.Mover != nil && g.d.Mover.TargetID() == id {
		g.d.Mover.Cancel()
	}
	if g.pinch != nil && g.pinch.target == e {
		g.pinch = nil
	}
}

func (g *Dispatcher) forget(id string) {
	g.CancelReversion(id)
	if p, ok := g.autoHide[id]; ok {
		p.t.Stop()
		delete(g.autoHide, id)
	}
}

// Reset cancels all timers and gesture state, e.g. when the session ends.
func (g *Dispatcher) Reset() {
	for id := range g.reverts {
		g.forget(id)
	}
	for id := range g.autoHide {
		g.forget(id)
	}
	g.pinch = nil
	g.drawing = false
	g.eraser = false
}
