/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package shadow implements the ghost panel shown while a panel is being moved.
package shadow

import (
	"errors"

	"museumar/internal/geom"
	"museumar/internal/panel"
	"museumar/internal/scene"
)

var (
	ErrMoveActive = errors.New("shadow: a move is already in progress")
	ErrNoMove     = errors.New("shadow: no move in progress")
)

// DefaultDistance is how far in front of the camera the ghost floats.
const DefaultDistance float32 = 1.0

// Controller owns at most one shadow node at a time.
type Controller struct {
	r        scene.Renderer
	distance float32
	target   *panel.Entity
	root     scene.NodeID
	offset   geom.Vec3
}

func New(r scene.Renderer, distance float32) *Controller {
	if distance <= 0 {
		distance = DefaultDistance
	}
	return &Controller{r: r, distance: distance}
}

// Active reports whether a move is pending.
func (c *Controller) Active() bool { return c.target != nil }

// TargetID returns the id of the panel being moved, or "".
func (c *Controller) TargetID() string {
	if c.target == nil {
		return ""
	}
	return c.target.ID()
}

// Node returns the shadow root, or scene.NoNode when idle.
func (c *Controller) Node() scene.NodeID { return c.root }

// Activate clones the panel's box and icon onto a shadow in front of the camera.
func (c *Controller) Activate(e *panel.Entity) error {
	if c.target != nil {
		return ErrMoveActive
	}
	content := e.Content()
	c.root = c.r.CreateNode(scene.NodeSpec{Kind: scene.KindGroup, Name: "shadow:" + e.ID()})
	body := c.r.CreateNode(scene.NodeSpec{Parent: c.root, Kind: scene.KindBox, Name: "shadow-body", Size: e.BoxSize()})
	c.r.SetColor(body, content.Color)
	icon := c.r.CreateNode(scene.NodeSpec{Parent: c.root, Kind: scene.KindImage, Name: "shadow-icon", Hidden: e.IconHidden()})
	c.r.SetImage(icon, content.Icon)
	pose, s := e.IconLayout()
	c.r.SetTransform(icon, pose, s)
	c.target = e
	c.offset = geom.Vec3{}
	c.Follow()
	return nil
}

// Follow re-aims the shadow in front of the camera. Called every frame.
func (c *Controller) Follow() {
	if c.target == nil {
		return
	}
	cam := c.r.Camera()
	pos := cam.Position.Add(cam.Forward().Scale(c.distance)).Add(c.offset)
	c.r.SetTransform(c.root, geom.Pose{Position: pos, Rotation: cam.Rotation}, c.target.Scale())
}

// Nudge shifts the shadow by a world-space delta that persists across frames.
func (c *Controller) Nudge(delta geom.Vec3) {
	if c.target == nil {
		return
	}
	c.offset = c.offset.Add(delta)
	c.Follow()
}

// Position is the shadow's current world position.
func (c *Controller) Position() geom.Vec3 {
	if c.target == nil {
		return geom.Vec3{}
	}
	return c.r.WorldPosition(c.root)
}

// Confirm moves the target to the shadow's position and removes the shadow.
// It returns the target and its new position relative to its parent.
func (c *Controller) Confirm() (*panel.Entity, geom.Vec3, error) {
	if c.target == nil {
		return nil, geom.Vec3{}, ErrNoMove
	}
	e := c.target
	world := c.r.WorldPosition(c.root)
	local := c.r.WorldPose(e.Parent()).Inverse().Apply(world)
	if e.InScene() {
		e.SetPosition(local)
	}
	c.clear()
	return e, local, nil
}

// Cancel removes the shadow without touching the target. Idempotent.
func (c *Controller) Cancel() {
	if c.target == nil {
		return
	}
	c.clear()
}

func (c *Controller) clear() {
	c.r.RemoveNode(c.root)
	c.root = scene.NoNode
	c.target = nil
	c.offset = geom.Vec3{}
}
