/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package panel

import (
	"errors"
	"testing"

	"museumar/internal/domain"
	"museumar/internal/geom"
	"museumar/internal/scene"
)

func TestRegistryResolvePriority(t *testing.T) {
	g := newRig()
	reg := NewRegistry()
	a := New("a", scene.NoNode, geom.V(0, 0, -1), sample, false, g.r, g.loop, Options{})
	b := New("b", scene.NoNode, geom.V(1, 0, -1), sample, false, g.r, g.loop, Options{})
	if err := reg.Add(a); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(b); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(a); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate add: %v", err)
	}

	cases := []struct {
		node scene.NodeID
		id   string
		want Target
	}{
		{b.Nodes().Delete, "b", TargetDelete},
		{a.Nodes().Move, "a", TargetMove},
		{b.Nodes().Spotlight, "b", TargetSpotlight},
		{a.Nodes().Icon, "a", TargetBody},
		{a.Nodes().Text, "a", TargetBody},
		{b.Nodes().Highlight, "b", TargetBody},
		{scene.NoNode, "", TargetNone},
	}
	for _, c := range cases {
		e, got := reg.FindByNode(c.node)
		if got != c.want {
			t.Errorf("FindByNode(%d) target = %v, want %v", c.node, got, c.want)
		}
		if c.id != "" && (e == nil || e.ID() != c.id) {
			t.Errorf("FindByNode(%d) panel = %v, want %s", c.node, e, c.id)
		}
	}
}

func TestRegistryClearDetaches(t *testing.T) {
	g := newRig()
	reg := NewRegistry()
	for _, id := range []string{"x", "y", "z"} {
		_ = reg.Add(New(id, scene.NoNode, geom.V(0, 0, -1), domain.Content{Text: id}, false, g.r, g.loop, Options{}))
	}
	if got := reg.IDs(); len(got) != 3 || got[0] != "x" {
		t.Fatalf("IDs = %v", got)
	}
	if n := reg.Clear(); n != 3 {
		t.Fatalf("Clear = %d", n)
	}
	if reg.Len() != 0 || g.r.Len() != 0 {
		t.Fatalf("registry %d scene %d after clear", reg.Len(), g.r.Len())
	}
}
