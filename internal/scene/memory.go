/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"sort"
	"sync"
	"time"

	"museumar/internal/domain"
	"museumar/internal/geom"
)

// Node is the state Memory keeps per node.
type Node struct {
	ID       NodeID
	Parent   NodeID
	Kind     Kind
	Name     string
	Local    geom.Pose
	Scale    float32
	Hidden   bool
	Size     geom.Size3
	Text     string
	Color    domain.Color
	Image    string
	Screen   *geom.Rect
	Children []NodeID
}

// Animation records one AnimateGeometry call.
type Animation struct {
	Node     NodeID
	Size     geom.Size3
	Duration time.Duration
}

// Memory is a headless Renderer. Geometry animations complete instantly;
// screen footprints for hit-testing are assigned with SetScreenRect.
type Memory struct {
	mu         sync.Mutex
	next       NodeID
	nodes      map[NodeID]*Node
	camera     geom.Pose
	viewW      float32
	viewH      float32
	farDepth   float32
	animations []Animation
	resets     int
}

// NewMemory returns an empty scene with the camera at the origin looking down -Z
// through a 1000x1000 viewport.
func NewMemory() *Memory {
	return &Memory{
		nodes:    map[NodeID]*Node{},
		camera:   geom.Identity,
		viewW:    1000,
		viewH:    1000,
		farDepth: 1,
	}
}

func (m *Memory) CreateNode(spec NodeSpec) NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := m.next
	n := &Node{ID: id, Parent: spec.Parent, Kind: spec.Kind, Name: spec.Name, Local: geom.Identity, Scale: 1, Hidden: spec.Hidden, Size: spec.Size}
	m.nodes[id] = n
	if p, ok := m.nodes[spec.Parent]; ok {
		p.Children = append(p.Children, id)
	}
	return id
}

func (m *Memory) RemoveNode(id NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return
	}
	if p, ok := m.nodes[n.Parent]; ok {
		kept := p.Children[:0]
		for _, c := range p.Children {
			if c != id {
				kept = append(kept, c)
			}
		}
		p.Children = kept
	}
	m.removeLocked(id)
}

func (m *Memory) removeLocked(id NodeID) {
	n, ok := m.nodes[id]
	if !ok {
		return
	}
	for _, c := range n.Children {
		m.removeLocked(c)
	}
	delete(m.nodes, id)
}

func (m *Memory) SetTransform(id NodeID, local geom.Pose, scale float32) {
	m.with(id, func(n *Node) {
		n.Local = local
		n.Scale = scale
	})
}

func (m *Memory) SetHidden(id NodeID, hidden bool) { m.with(id, func(n *Node) { n.Hidden = hidden }) }

func (m *Memory) AnimateGeometry(id NodeID, size geom.Size3, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[id]; ok {
		n.Size = size
		m.animations = append(m.animations, Animation{Node: id, Size: size, Duration: d})
	}
}

func (m *Memory) SetText(id NodeID, text string)      { m.with(id, func(n *Node) { n.Text = text }) }
func (m *Memory) SetColor(id NodeID, c domain.Color)  { m.with(id, func(n *Node) { n.Color = c }) }
func (m *Memory) SetImage(id NodeID, name string)     { m.with(id, func(n *Node) { n.Image = name }) }
func (m *Memory) SetScreenRect(id NodeID, r geom.Rect) { m.with(id, func(n *Node) { n.Screen = &r }) }

func (m *Memory) with(id NodeID, fn func(n *Node)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[id]; ok {
		fn(n)
	}
}

// HitTest orders hits by view depth; ties go to the most recently created node.
func (m *Memory) HitTest(p geom.Pt) []NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	type hit struct {
		id   NodeID
		dist float32
	}
	var hits []hit
	fwd := m.camera.Forward()
	for id, n := range m.nodes {
		if n.Screen == nil || !n.Screen.Contains(p) || !m.visibleLocked(id) {
			continue
		}
		// depth along the view axis, as a ray cast would order surfaces
		depth := m.worldPoseLocked(id).Position.Sub(m.camera.Position).Dot(fwd)
		hits = append(hits, hit{id: id, dist: depth})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].id > hits[j].id
	})
	out := make([]NodeID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

func (m *Memory) visibleLocked(id NodeID) bool {
	for id != NoNode {
		n, ok := m.nodes[id]
		if !ok {
			return false
		}
		if n.Hidden {
			return false
		}
		id = n.Parent
	}
	return true
}

func (m *Memory) Camera() geom.Pose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera
}

// SetCamera moves the camera.
func (m *Memory) SetCamera(p geom.Pose) {
	m.mu.Lock()
	m.camera = p
	m.mu.Unlock()
}

// Unproject uses a pinhole camera with a 90 degree horizontal field of view.
func (m *Memory) Unproject(p geom.Pt) (near, far geom.Vec3) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.viewW / 2
	dir := geom.V((p.X-m.viewW/2)/f, -(p.Y-m.viewH/2)/f, -1).Normalize().Scale(m.farDepth)
	return m.camera.Position, m.camera.Apply(dir)
}

func (m *Memory) WorldPosition(id NodeID) geom.Vec3 { return m.WorldPose(id).Position }

func (m *Memory) WorldPose(id NodeID) geom.Pose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.worldPoseLocked(id)
}

func (m *Memory) worldPoseLocked(id NodeID) geom.Pose {
	n, ok := m.nodes[id]
	if !ok {
		return geom.Identity
	}
	local := n.Local
	if local.Rotation == (geom.Quat{}) {
		local.Rotation = geom.IdentityQuat
	}
	if n.Parent == NoNode {
		return local
	}
	parent := m.worldPoseLocked(n.Parent)
	return geom.Pose{Position: parent.Apply(local.Position), Rotation: parent.Rotation.Mul(local.Rotation)}
}

func (m *Memory) ResetTracking() {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
}

// Node returns a copy of the node state.
func (m *Memory) Node(id NodeID) (Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return Node{}, false
	}
	cp := *n
	cp.Children = append([]NodeID(nil), n.Children...)
	return cp, true
}

// Exists reports whether the node is still attached.
func (m *Memory) Exists(id NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[id]
	return ok
}

// Visible reports whether the node and all its ancestors are shown.
func (m *Memory) Visible(id NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visibleLocked(id)
}

// Len returns the number of live nodes.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

// Animations returns every AnimateGeometry call so far.
func (m *Memory) Animations() []Animation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Animation(nil), m.animations...)
}

// Resets counts ResetTracking calls.
func (m *Memory) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}
