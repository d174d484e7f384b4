/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene defines the boundary to the rendering and image-detection engine.
// Nothing in museumar draws pixels; panels issue node commands through Renderer
// and receive anchor and frame events through FrameObserver.
package scene

import (
	"time"

	"museumar/internal/domain"
	"museumar/internal/geom"
)

// NodeID identifies a render node. NoNode is never returned by CreateNode.
type NodeID uint64

const NoNode NodeID = 0

// Kind describes the geometry a node carries.
type Kind int

const (
	KindGroup Kind = iota
	KindBox
	KindPlane
	KindText
	KindImage
	KindSphere
)

// NodeSpec describes a node to create. Parent NoNode attaches to the world root.
type NodeSpec struct {
	Parent NodeID
	Kind   Kind
	Name   string
	Size   geom.Size3
	Hidden bool
}

// Renderer is the render-engine collaborator.
type Renderer interface {
	CreateNode(spec NodeSpec) NodeID
	// RemoveNode detaches the node and all of its children.
	RemoveNode(id NodeID)
	// SetTransform places a node relative to its parent.
	SetTransform(id NodeID, local geom.Pose, scale float32)
	SetHidden(id NodeID, hidden bool)
	// AnimateGeometry interpolates the node's geometry to size over d.
	AnimateGeometry(id NodeID, size geom.Size3, d time.Duration)
	SetText(id NodeID, text string)
	SetColor(id NodeID, c domain.Color)
	SetImage(id NodeID, name string)
	// HitTest returns visible nodes under the screen point, nearest first.
	HitTest(p geom.Pt) []NodeID
	// Camera returns the camera's world pose.
	Camera() geom.Pose
	// Unproject maps a screen point to a ray from the camera to the far point.
	Unproject(p geom.Pt) (near, far geom.Vec3)
	WorldPosition(id NodeID) geom.Vec3
	// WorldPose returns the node's world transform.
	WorldPose(id NodeID) geom.Pose
	// ResetTracking restarts world tracking and drops all anchors.
	ResetTracking()
}

// FrameObserver receives render-loop events. One coordinator implements it and
// fans events out to the components that need them.
type FrameObserver interface {
	OnAnchorAdded(name string, anchor NodeID)
	OnFrameTick(now time.Time)
}
