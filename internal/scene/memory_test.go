/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"testing"

	"museumar/internal/geom"
)

func TestRemoveNodeRemovesChildren(t *testing.T) {
	m := NewMemory()
	root := m.CreateNode(NodeSpec{Kind: KindGroup})
	child := m.CreateNode(NodeSpec{Parent: root, Kind: KindBox})
	grand := m.CreateNode(NodeSpec{Parent: child, Kind: KindText})
	m.RemoveNode(child)
	if m.Exists(child) || m.Exists(grand) {
		t.Fatalf("child subtree still present")
	}
	if n, _ := m.Node(root); len(n.Children) != 0 {
		t.Fatalf("root still lists children: %v", n.Children)
	}
}

func TestHitTestSkipsHiddenAndOrdersByDistance(t *testing.T) {
	m := NewMemory()
	far := m.CreateNode(NodeSpec{Kind: KindBox})
	m.SetTransform(far, geom.At(geom.V(0, 0, -5)), 1)
	near := m.CreateNode(NodeSpec{Kind: KindBox})
	m.SetTransform(near, geom.At(geom.V(0, 0, -1)), 1)
	parent := m.CreateNode(NodeSpec{Kind: KindGroup, Hidden: true})
	hiddenChild := m.CreateNode(NodeSpec{Parent: parent, Kind: KindBox})
	for _, id := range []NodeID{far, near, hiddenChild} {
		m.SetScreenRect(id, geom.R(0, 0, 100, 100))
	}

	hits := m.HitTest(geom.Pt{X: 50, Y: 50})
	if len(hits) != 2 || hits[0] != near || hits[1] != far {
		t.Fatalf("HitTest = %v, want [%d %d]", hits, near, far)
	}
	if got := m.HitTest(geom.Pt{X: 500, Y: 500}); len(got) != 0 {
		t.Fatalf("miss returned %v", got)
	}
}

func TestWorldPositionComposesParents(t *testing.T) {
	m := NewMemory()
	anchor := m.CreateNode(NodeSpec{Kind: KindGroup})
	m.SetTransform(anchor, geom.At(geom.V(1, 0, 0)), 1)
	child := m.CreateNode(NodeSpec{Parent: anchor, Kind: KindBox})
	m.SetTransform(child, geom.At(geom.V(0, 2, 0)), 1)
	if got := m.WorldPosition(child); got != geom.V(1, 2, 0) {
		t.Fatalf("WorldPosition = %v", got)
	}
}

func TestUnprojectCenterLooksForward(t *testing.T) {
	m := NewMemory()
	near, far := m.Unproject(geom.Pt{X: 500, Y: 500})
	if near != geom.V(0, 0, 0) || far != geom.V(0, 0, -1) {
		t.Fatalf("Unproject(center) = %v -> %v", near, far)
	}
}
