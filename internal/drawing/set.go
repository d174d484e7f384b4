/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package drawing keeps the freehand points drawn in the current room.
package drawing

import (
	"sort"

	"github.com/google/uuid"

	"museumar/internal/domain"
	"museumar/internal/geom"
	"museumar/internal/scene"
)

// DefaultRadius is the sphere radius of a freehand point, in metres.
const DefaultRadius float32 = 0.005

// Point is one freehand point, positioned relative to the room anchor.
type Point struct {
	ID       string
	Position geom.Vec3
	Radius   float32
	node     scene.NodeID
}

// Record returns the remote representation of the point.
func (p Point) Record(museumID, roomID string) domain.Drawing {
	return domain.Drawing{DrawingID: p.ID, MuseumID: museumID, RoomID: roomID, X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z, Radius: p.Radius}
}

// Set renders points as small spheres under the room anchor.
type Set struct {
	r      scene.Renderer
	parent scene.NodeID
	points map[string]*Point
}

func NewSet(r scene.Renderer) *Set {
	return &Set{r: r, points: map[string]*Point{}}
}

// Attach sets the node new points are created under.
func (s *Set) Attach(parent scene.NodeID) { s.parent = parent }

func (s *Set) Len() int { return len(s.points) }

func (s *Set) Get(id string) (Point, bool) {
	p, ok := s.points[id]
	if !ok {
		return Point{}, false
	}
	return *p, true
}

// IDs returns point ids in stable order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, len(s.points))
	for id := range s.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Add renders a point at a room-local position. Existing ids are left alone.
func (s *Set) Add(id string, local geom.Vec3, radius float32) bool {
	if _, ok := s.points[id]; ok {
		return false
	}
	if radius <= 0 {
		radius = DefaultRadius
	}
	n := s.r.CreateNode(scene.NodeSpec{Parent: s.parent, Kind: scene.KindSphere, Name: "drawing:" + id, Size: geom.Size3{W: radius, H: radius, Depth: radius}})
	s.r.SetTransform(n, geom.At(local), 1)
	s.points[id] = &Point{ID: id, Position: local, Radius: radius, node: n}
	return true
}

// AddWorld converts a world position into the anchor frame and adds a new point.
func (s *Set) AddWorld(world geom.Vec3) Point {
	local := s.r.WorldPose(s.parent).Inverse().Apply(world)
	id := uuid.NewString()
	s.Add(id, local, DefaultRadius)
	return *s.points[id]
}

// Remove deletes a point and its node.
func (s *Set) Remove(id string) bool {
	p, ok := s.points[id]
	if !ok {
		return false
	}
	s.r.RemoveNode(p.node)
	delete(s.points, id)
	return true
}

// EraseNear removes every point within radius of the world segment from a to b
// and returns the removed ids.
func (s *Set) EraseNear(a, b geom.Vec3, radius float32) []string {
	var removed []string
	for _, id := range s.IDs() {
		p := s.points[id]
		if geom.DistanceToSegment(s.r.WorldPosition(p.node), a, b) <= radius {
			s.Remove(id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Merge makes the set match records. Ids for which keep returns true are
// neither added nor removed.
func (s *Set) Merge(records []domain.Drawing, keep func(id string) bool) (added, removed int) {
	remote := make(map[string]bool, len(records))
	for _, d := range records {
		remote[d.DrawingID] = true
		if keep != nil && keep(d.DrawingID) {
			continue
		}
		if s.Add(d.DrawingID, d.Position(), d.Radius) {
			added++
		}
	}
	for _, id := range s.IDs() {
		if remote[id] || (keep != nil && keep(id)) {
			continue
		}
		s.Remove(id)
		removed++
	}
	return added, removed
}

// Clear removes all points.
func (s *Set) Clear() {
	for id := range s.points {
		s.Remove(id)
	}
}
