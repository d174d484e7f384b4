/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package arview is the room/session layer. A Coordinator owns the panel
// registry of the active room, receives anchor and frame events from the
// render engine, forwards gestures and runs the level-of-detail and sync
// cadences. All methods must run on the main loop.
package arview

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"museumar/internal/domain"
	"museumar/internal/drawing"
	"museumar/internal/geom"
	"museumar/internal/gesture"
	applog "museumar/internal/log"
	"museumar/internal/lod"
	"museumar/internal/mainloop"
	"museumar/internal/metrics"
	"museumar/internal/panel"
	"museumar/internal/scene"
	"museumar/internal/session"
	"museumar/internal/shadow"
	"museumar/internal/syncer"
	"museumar/internal/telemetry"
)

var (
	ErrIncompleteContent = errors.New("panel needs text, icon and color")
	ErrNoSession         = errors.New("no room session is running")
	ErrNoMode            = errors.New("no session mode selected")
	ErrUnknownRoom       = errors.New("unknown room marker")
	ErrOffline           = errors.New("session mode needs a panel store")
)

// Events receives anonymous usage events; *telemetry.Client implements it.
type Events interface {
	Event(name string, props map[string]any)
}

// Deps are the collaborators of a Coordinator. Remote may be nil for an
// offline device, which then only supports private sessions. Editor, Haptics,
// Metrics and Events are optional.
type Deps struct {
	Renderer scene.Renderer
	Loop     *mainloop.Loop
	Remote   syncer.Remote
	Metrics  *metrics.Metrics
	Editor   gesture.Editor
	Haptics  gesture.Haptics
	Events   Events
}

// Coordinator implements scene.FrameObserver.
type Coordinator struct {
	d    Deps
	opts Options
	log  *slog.Logger

	sess     *session.Context
	reg      *panel.Registry
	lod      *lod.Evaluator
	shadow   *shadow.Controller
	drawings *drawing.Set
	sync     *syncer.Reconciler
	gestures *gesture.Dispatcher

	mode  domain.Mode
	token string
}

var _ scene.FrameObserver = (*Coordinator)(nil)

// New wires the components around one session context.
func New(d Deps, opts Options) *Coordinator {
	c := &Coordinator{
		d:        d,
		opts:     opts,
		log:      applog.WithComponent("arview"),
		sess:     session.New(),
		reg:      panel.NewRegistry(),
		drawings: drawing.NewSet(d.Renderer),
	}
	c.lod = lod.New(d.Renderer, c.reg, opts.LODInterval)
	c.shadow = shadow.New(d.Renderer, opts.ShadowDistance)
	c.sync = syncer.New(syncer.Deps{
		Remote:   d.Remote,
		Loop:     d.Loop,
		Session:  c.sess,
		Registry: c.reg,
		Drawings: c.drawings,
		Metrics:  d.Metrics,
		Clock:    d.Loop.Clock(),
		Place:    c.PlaceLoadedPanel,
		Drop:     c.drop,
		Busy:     func(id string) bool { return c.shadow.TargetID() == id },
	}, opts.PullInterval, opts.PullTimeout)
	c.gestures = gesture.New(gesture.Deps{
		Renderer: d.Renderer,
		Registry: c.reg,
		Session:  c.sess,
		Loop:     d.Loop,
		LOD:      c.lod,
		Mover:    c.shadow,
		Push:     c.sync,
		Drawings: c.drawings,
		Editor:   d.Editor,
		Haptics:  d.Haptics,
		OnDelete: func(id string) { c.event(telemetry.EventPanelDelete, nil) },
	}, opts.gesture())
	return c
}

func (c *Coordinator) Session() *session.Context      { return c.sess }
func (c *Coordinator) Registry() *panel.Registry      { return c.reg }
func (c *Coordinator) Drawings() *drawing.Set         { return c.drawings }
func (c *Coordinator) Gestures() *gesture.Dispatcher  { return c.gestures }
func (c *Coordinator) Reconciler() *syncer.Reconciler { return c.sync }
func (c *Coordinator) Shadow() *shadow.Controller     { return c.shadow }
func (c *Coordinator) LOD() *lod.Evaluator            { return c.lod }

func (c *Coordinator) event(name string, props map[string]any) {
	if c.d.Events != nil {
		c.d.Events.Event(name, props)
	}
}

// SelectMode chooses how the next session talks to the panel store. A
// community session needs its access token.
func (c *Coordinator) SelectMode(mode domain.Mode, token string) error {
	if c.sess.Running() {
		return session.ErrAlreadyRunning
	}
	switch mode {
	case domain.ModePrivate, domain.ModeCurator:
		token = ""
	case domain.ModeCommunity:
		if token == "" {
			return session.ErrMissingToken
		}
	default:
		return ErrNoMode
	}
	c.mode, c.token = mode, token
	return nil
}

// Mode is the selected mode, also while no session runs.
func (c *Coordinator) Mode() domain.Mode { return c.mode }

// OnAnchorAdded starts a session when a known room marker is recognized.
// Anchors seen while a session runs are ignored.
func (c *Coordinator) OnAnchorAdded(name string, anchor scene.NodeID) {
	if c.sess.Running() {
		c.log.Debug("anchor ignored, session running", "marker", name)
		return
	}
	if _, ok := c.opts.room(name); !ok {
		c.log.Debug("anchor is not a room marker", "marker", name)
		return
	}
	if err := c.StartSession(anchor, name); err != nil {
		c.log.Warn("session not started", "marker", name, "err", err)
	}
}

// StartSession opens the room behind the marker in the selected mode and
// loads its stored panels.
func (c *Coordinator) StartSession(anchor scene.NodeID, roomName string) error {
	if c.mode == domain.ModeNone {
		return ErrNoMode
	}
	room, ok := c.opts.room(roomName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoom, roomName)
	}
	if c.mode != domain.ModePrivate && c.d.Remote == nil {
		return fmt.Errorf("%w: %s", ErrOffline, c.mode)
	}
	if err := c.sess.Start(room, c.mode, c.token, anchor); err != nil {
		return err
	}
	c.drawings.Attach(anchor)
	c.lod.Reset()
	if c.d.Remote != nil {
		c.sync.Load()
	}
	applog.WithRoom(c.log, room.MuseumID, room.RoomID).Info("session started", "mode", c.mode.String())
	c.event(telemetry.EventSessionStart, map[string]any{"mode": c.mode.String()})
	return nil
}

// EndSession clears the room locally. Nothing is deleted remotely.
func (c *Coordinator) EndSession() {
	if !c.sess.Running() {
		return
	}
	c.sync.Stop()
	c.gestures.Reset()
	c.shadow.Cancel()
	n := c.reg.Clear()
	c.drawings.Clear()
	room := c.sess.Room()
	c.sess.End()
	c.d.Renderer.ResetTracking()
	applog.WithRoom(c.log, room.MuseumID, room.RoomID).Info("session ended", "panels", n)
	c.event(telemetry.EventSessionEnd, map[string]any{"panels": n})
}

// CanAdd reports whether AddPanel would accept the content.
func (c *Coordinator) CanAdd(content domain.Content) bool {
	return c.sess.Running() && content.Complete()
}

// AddPanel places a new panel in front of the camera and pushes it. An empty
// panelID gets a fresh one.
func (c *Coordinator) AddPanel(content domain.Content, panelID string) (*panel.Entity, error) {
	if !c.sess.Running() {
		return nil, ErrNoSession
	}
	if !content.Complete() {
		return nil, ErrIncompleteContent
	}
	if panelID == "" {
		panelID = uuid.NewString()
	}
	cam := c.d.Renderer.Camera()
	dist := c.opts.ShadowDistance
	if dist <= 0 {
		dist = shadow.DefaultDistance
	}
	world := cam.Position.Add(cam.Forward().Scale(dist))
	local := c.d.Renderer.WorldPose(c.sess.Anchor()).Inverse().Apply(world)
	e, err := c.place(panelID, local, content, false)
	if err != nil {
		return nil, err
	}
	c.sync.PushCreate(e)
	c.event(telemetry.EventPanelAdd, nil)
	return e, nil
}

// PlaceLoadedPanel renders a stored panel of the active room.
func (c *Coordinator) PlaceLoadedPanel(p domain.Panel) error {
	if !c.sess.Running() {
		return ErrNoSession
	}
	room := c.sess.Room()
	if p.MuseumID != room.MuseumID || p.RoomID != room.RoomID {
		return fmt.Errorf("panel %s belongs to %s/%s", p.PanelID, p.MuseumID, p.RoomID)
	}
	_, err := c.place(p.PanelID, p.Position(), p.Content(), p.Spotlight)
	return err
}

func (c *Coordinator) place(id string, local geom.Vec3, content domain.Content, spotlight bool) (*panel.Entity, error) {
	e := panel.New(id, c.sess.Anchor(), local, content, spotlight, c.d.Renderer, c.d.Loop, panel.Options{Animation: c.opts.Animation})
	if err := c.reg.Add(e); err != nil {
		e.Detach()
		return nil, err
	}
	c.lod.Apply(e)
	return e, nil
}

// drop removes a panel that vanished remotely.
func (c *Coordinator) drop(e *panel.Entity) {
	c.gestures.Forget(e)
	c.reg.Remove(e.ID())
	e.Detach()
}

func (c *Coordinator) lookup(panelID string) (*panel.Entity, error) {
	if !c.sess.Running() {
		return nil, ErrNoSession
	}
	e, ok := c.reg.Get(panelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", panel.ErrNotFound, panelID)
	}
	return e, nil
}

// DeletePanel removes a panel locally and, when syncing, remotely.
func (c *Coordinator) DeletePanel(panelID string) error {
	e, err := c.lookup(panelID)
	if err != nil {
		return err
	}
	c.gestures.Delete(e)
	return nil
}

// SetSpotlight toggles a panel's highlight.
func (c *Coordinator) SetSpotlight(panelID string) error {
	e, err := c.lookup(panelID)
	if err != nil {
		return err
	}
	c.gestures.ToggleSpotlight(e)
	return nil
}

// BeginMove starts the move preview. Only one move may be pending.
func (c *Coordinator) BeginMove(panelID string) error {
	e, err := c.lookup(panelID)
	if err != nil {
		return err
	}
	return c.gestures.BeginMove(e)
}

// MovePanelConfirm places the target where the preview is and pushes the
// new position.
func (c *Coordinator) MovePanelConfirm() error {
	e, local, err := c.shadow.Confirm()
	if err != nil {
		return err
	}
	if cur, ok := c.reg.Get(e.ID()); ok && cur == e {
		c.sync.PushUpdate(e.ID(), domain.PositionFields(local))
	}
	return nil
}

// MovePanelCancel drops the preview. Idempotent.
func (c *Coordinator) MovePanelCancel() { c.shadow.Cancel() }

// OnFrameTick runs the per-frame work: throttled LOD, shadow follow and the
// community pull cadence.
func (c *Coordinator) OnFrameTick(now time.Time) {
	if !c.sess.Running() {
		return
	}
	c.lod.Tick(now)
	if c.shadow.Active() {
		c.shadow.Follow()
	}
	if c.d.Remote != nil {
		c.sync.Tick(now)
	}
}

// Tap forwards a tap. Without a session nothing happens.
func (c *Coordinator) Tap(pt geom.Pt) gesture.Action {
	if !c.sess.Running() {
		return gesture.NoAction
	}
	return c.gestures.Tap(pt)
}

func (c *Coordinator) Hold(pt geom.Pt, phase gesture.Phase) gesture.Action {
	if !c.sess.Running() {
		return gesture.NoAction
	}
	return c.gestures.Hold(pt, phase)
}

func (c *Coordinator) Pinch(pt geom.Pt, phase gesture.Phase, factor float32) {
	if c.sess.Running() {
		c.gestures.Pinch(pt, phase, factor)
	}
}

func (c *Coordinator) Pan(pt geom.Pt, phase gesture.Phase) {
	if c.sess.Running() {
		c.gestures.Pan(pt, phase)
	}
}

// SetDrawing switches freehand drawing and the eraser.
func (c *Coordinator) SetDrawing(on, eraser bool) {
	c.gestures.SetDrawing(on)
	c.gestures.SetEraser(eraser)
}

// Summary is a one-line description of the session for logs and crash reports.
func (c *Coordinator) Summary() string {
	if !c.sess.Running() {
		return "idle"
	}
	r := c.sess.Room()
	return fmt.Sprintf("%s session in %s/%s, %d panels, %d drawings, sync %s",
		c.sess.Mode(), r.MuseumID, r.RoomID, c.reg.Len(), c.drawings.Len(), c.sync.State())
}
