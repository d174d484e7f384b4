/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package panel implements the panel entity state machine and the registry of
// live panels in the current room.
package panel

import (
	"time"

	"museumar/internal/clock"
	"museumar/internal/domain"
	"museumar/internal/geom"
	"museumar/internal/scene"
)

// Scheduler runs delayed work on the main loop. *mainloop.Loop implements it.
type Scheduler interface {
	After(d time.Duration, fn func()) *clock.Timer
}

// Target is the part of a panel a node belongs to, in hit-resolution priority order.
type Target int

const (
	TargetNone Target = iota
	TargetDelete
	TargetEdit
	TargetMove
	TargetSpotlight
	TargetBody
)

func (t Target) String() string {
	return [...]string{"none", "delete", "edit", "move", "spotlight", "body"}[t]
}

// Nodes are the render handles an entity owns.
type Nodes struct {
	Root, Body, Icon, Text, Highlight scene.NodeID
	Delete, Edit, Move, Spotlight     scene.NodeID
}

// Entity is one panel in the scene. All methods must run on the main loop.
type Entity struct {
	id        string
	parent    scene.NodeID
	r         scene.Renderer
	sched     Scheduler
	anim      time.Duration
	nodes     Nodes
	content   domain.Content
	position  geom.Vec3
	scale     float32
	tier      domain.Tier
	expanded  bool
	spotlight bool
	near      bool
	editShown bool
	inScene   bool
	shownText string

	textGen   uint64
	textTimer *clock.Timer

	// sync bookkeeping
	pending   int
	editedSeq uint64
}

// Options tune an entity; zero values pick defaults.
type Options struct {
	Animation time.Duration
	Tier      domain.Tier
}

// New creates the panel's nodes under parent at the room-local position pos.
func New(id string, parent scene.NodeID, pos geom.Vec3, c domain.Content, spotlight bool, r scene.Renderer, sched Scheduler, opts Options) *Entity {
	if opts.Animation <= 0 {
		opts.Animation = DefaultAnimation
	}
	if opts.Tier == domain.FullText {
		opts.Tier = domain.Compact
	}
	e := &Entity{id: id, parent: parent, r: r, sched: sched, anim: opts.Animation, content: c, position: pos, scale: 1, tier: opts.Tier, spotlight: spotlight, inScene: true}

	box := TierSize(e.tier)
	n := &e.nodes
	n.Root = r.CreateNode(scene.NodeSpec{Parent: parent, Kind: scene.KindGroup, Name: "panel:" + id})
	r.SetTransform(n.Root, geom.At(pos), 1)
	n.Body = r.CreateNode(scene.NodeSpec{Parent: n.Root, Kind: scene.KindBox, Name: "body", Size: box})
	r.SetColor(n.Body, c.Color)
	n.Icon = r.CreateNode(scene.NodeSpec{Parent: n.Root, Kind: scene.KindImage, Name: "icon", Hidden: e.tier == domain.Dot})
	r.SetImage(n.Icon, c.Icon)
	pose, s := iconLayout(e.tier, box)
	r.SetTransform(n.Icon, pose, s)
	n.Text = r.CreateNode(scene.NodeSpec{Parent: n.Root, Kind: scene.KindText, Name: "text"})
	r.SetTransform(n.Text, textPose(box), 1)
	e.shownText = e.textFor(e.tier)
	r.SetText(n.Text, e.shownText)
	n.Highlight = r.CreateNode(scene.NodeSpec{Parent: n.Root, Kind: scene.KindPlane, Name: "highlight", Size: HighlightSmall, Hidden: !spotlight})
	r.SetTransform(n.Highlight, geom.At(geom.V(0, 0, -0.01)), 1)

	buttons := []*scene.NodeID{&n.Delete, &n.Edit, &n.Move, &n.Spotlight}
	names := []string{"delete", "edit", "move", "spotlight"}
	poses := buttonPoses(box)
	for i, b := range buttons {
		*b = r.CreateNode(scene.NodeSpec{Parent: n.Root, Kind: scene.KindImage, Name: names[i], Hidden: true})
		r.SetImage(*b, names[i])
		r.SetTransform(*b, poses[i], 1)
	}
	return e
}

func (e *Entity) ID() string               { return e.id }
func (e *Entity) Parent() scene.NodeID     { return e.parent }
func (e *Entity) Nodes() Nodes             { return e.nodes }
func (e *Entity) Content() domain.Content  { return e.content }
func (e *Entity) Position() geom.Vec3      { return e.position }
func (e *Entity) Scale() float32           { return e.scale }
func (e *Entity) Tier() domain.Tier        { return e.tier }
func (e *Entity) Expanded() bool           { return e.expanded }
func (e *Entity) Spotlight() bool          { return e.spotlight }
func (e *Entity) HighlightNear() bool      { return e.near }
func (e *Entity) EditControlsShown() bool  { return e.editShown }
func (e *Entity) InScene() bool            { return e.inScene }
func (e *Entity) IconHidden() bool         { return e.tier == domain.Dot }
func (e *Entity) RenderedText() string     { return e.shownText }
func (e *Entity) WorldPosition() geom.Vec3 { return e.r.WorldPosition(e.nodes.Root) }

// BoxSize is the body geometry for the current tier.
func (e *Entity) BoxSize() geom.Size3 {
	if e.expanded {
		return FullTextSize(e.content.LongText)
	}
	return TierSize(e.tier)
}

// IconLayout is the icon's local pose and scale for the current tier.
func (e *Entity) IconLayout() (geom.Pose, float32) { return iconLayout(e.tier, e.BoxSize()) }

// Record returns the remote representation of the panel.
func (e *Entity) Record(museumID, roomID string) domain.Panel {
	return domain.NewPanel(e.id, museumID, roomID, e.position, e.content, e.spotlight)
}

// SetSizeTier moves to a distance-driven tier. It is ignored while the panel
// is temporarily expanded, for FullText, and when the tier is unchanged.
func (e *Entity) SetSizeTier(t domain.Tier) bool {
	if e.expanded || t == domain.FullText || t == e.tier || !e.inScene {
		return false
	}
	e.applyTier(t, TierSize(t))
	return true
}

// Expand enters FullText. It reports false if the panel is already expanded.
func (e *Entity) Expand() bool {
	if e.expanded || !e.inScene {
		return false
	}
	e.expanded = true
	e.applyTier(domain.FullText, FullTextSize(e.content.LongText))
	return true
}

// Collapse leaves FullText for the given distance-driven tier.
func (e *Entity) Collapse(to domain.Tier) bool {
	if !e.expanded {
		return false
	}
	if to == domain.FullText {
		to = domain.Expanded
	}
	e.expanded = false
	if !e.inScene {
		e.tier = to
		return true
	}
	e.applyTier(to, TierSize(to))
	return true
}

func (e *Entity) applyTier(t domain.Tier, box geom.Size3) {
	e.tier = t
	e.r.AnimateGeometry(e.nodes.Body, box, e.anim)
	pose, s := iconLayout(t, box)
	e.r.SetTransform(e.nodes.Icon, pose, s)
	e.r.SetHidden(e.nodes.Icon, t == domain.Dot)
	e.r.SetTransform(e.nodes.Text, textPose(box), 1)
	poses := buttonPoses(box)
	for i, b := range []scene.NodeID{e.nodes.Delete, e.nodes.Edit, e.nodes.Move, e.nodes.Spotlight} {
		e.r.SetTransform(b, poses[i], 1)
	}
	e.swapTextAfterAnimation(e.textFor(t))
}

func (e *Entity) textFor(t domain.Tier) string {
	switch t {
	case domain.Expanded:
		return e.content.Text
	case domain.FullText:
		if e.content.LongText == "" {
			return e.content.Text
		}
		return e.content.LongText
	}
	return ""
}

// swapTextAfterAnimation replaces the text once the resize finished. A newer
// transition invalidates older pending swaps.
func (e *Entity) swapTextAfterAnimation(text string) {
	e.textGen++
	gen := e.textGen
	e.textTimer.Stop()
	e.textTimer = e.sched.After(e.anim, func() {
		if gen != e.textGen || !e.inScene {
			return
		}
		e.shownText = text
		e.r.SetText(e.nodes.Text, text)
	})
}

// SetSpotlight shows or hides the highlight overlay.
func (e *Entity) SetSpotlight(on bool) {
	e.spotlight = on
	if e.inScene {
		e.r.SetHidden(e.nodes.Highlight, !on)
	}
}

// SetHighlightNear pre-sizes the highlight plane whether or not it is shown.
func (e *Entity) SetHighlightNear(near bool) {
	if near == e.near || !e.inScene {
		return
	}
	e.near = near
	size := HighlightSmall
	if near {
		size = HighlightLarge
	}
	e.r.AnimateGeometry(e.nodes.Highlight, size, e.anim)
}

// ToggleEditMode shows or hides the four action buttons as a group.
func (e *Entity) ToggleEditMode() {
	e.editShown = !e.editShown
	if !e.inScene {
		return
	}
	for _, b := range []scene.NodeID{e.nodes.Delete, e.nodes.Edit, e.nodes.Move, e.nodes.Spotlight} {
		e.r.SetHidden(b, !e.editShown)
	}
}

// SetScale applies a uniform local scale.
func (e *Entity) SetScale(s float32) {
	e.scale = s
	if e.inScene {
		e.r.SetTransform(e.nodes.Root, geom.At(e.position), s)
	}
}

// SetPosition moves the panel within the room.
func (e *Entity) SetPosition(p geom.Vec3) {
	e.position = p
	if e.inScene {
		e.r.SetTransform(e.nodes.Root, geom.At(p), e.scale)
	}
}

// ApplyContent replaces text, color and icon and re-renders immediately.
func (e *Entity) ApplyContent(c domain.Content) {
	e.content = c
	if !e.inScene {
		return
	}
	e.r.SetColor(e.nodes.Body, c.Color)
	e.r.SetImage(e.nodes.Icon, c.Icon)
	if e.expanded {
		e.r.AnimateGeometry(e.nodes.Body, FullTextSize(c.LongText), e.anim)
	}
	e.textGen++
	e.textTimer.Stop()
	e.shownText = e.textFor(e.tier)
	e.r.SetText(e.nodes.Text, e.shownText)
}

// Detach removes the panel's nodes from the scene.
func (e *Entity) Detach() {
	if !e.inScene {
		return
	}
	e.inScene = false
	e.textTimer.Stop()
	e.r.RemoveNode(e.nodes.Root)
}

// HitTarget maps a node to the part of this panel it belongs to.
func (e *Entity) HitTarget(id scene.NodeID) Target {
	if id == scene.NoNode {
		return TargetNone
	}
	switch id {
	case e.nodes.Delete:
		return TargetDelete
	case e.nodes.Edit:
		return TargetEdit
	case e.nodes.Move:
		return TargetMove
	case e.nodes.Spotlight:
		return TargetSpotlight
	case e.nodes.Body, e.nodes.Icon, e.nodes.Text, e.nodes.Highlight:
		return TargetBody
	}
	return TargetNone
}

// MarkEdited records the sequence number of the latest local edit.
func (e *Entity) MarkEdited(seq uint64) {
	if seq > e.editedSeq {
		e.editedSeq = seq
	}
}

// BeginWrite and EndWrite bracket an in-flight remote write.
func (e *Entity) BeginWrite() { e.pending++ }

func (e *Entity) EndWrite() {
	if e.pending > 0 {
		e.pending--
	}
}

// PendingWrites is the number of remote writes not yet acknowledged.
func (e *Entity) PendingWrites() int { return e.pending }

// DirtySince reports whether remote state fetched at seq may be stale for this
// panel: a write is in flight or an edit happened after seq.
func (e *Entity) DirtySince(seq uint64) bool { return e.pending > 0 || e.editedSeq > seq }
