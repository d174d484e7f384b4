/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package arview

import (
	"context"
	"errors"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"museumar/internal/backend"
	"museumar/internal/clock"
	"museumar/internal/config"
	"museumar/internal/domain"
	"museumar/internal/geom"
	"museumar/internal/gesture"
	"museumar/internal/mainloop"
	"museumar/internal/panel"
	"museumar/internal/scene"
	"museumar/internal/server"
	"museumar/internal/session"
	"museumar/internal/shadow"
	"museumar/internal/store"
	"museumar/internal/syncer"
	"museumar/internal/telemetry"
)

var hall = session.Room{Marker: "hall-a", MuseumID: "m1", RoomID: "r1"}

var amphora = domain.Content{Text: "Amphora", LongText: "Attic black-figure amphora, 540 BC.", Icon: "vase", Color: domain.Color{R: 200, G: 120, B: 40, A: 1}}

type eventLog struct{ names []string }

func (e *eventLog) Event(name string, _ map[string]any) { e.names = append(e.names, name) }

type rig struct {
	t      *testing.T
	clk    *clock.FakeClock
	loop   *mainloop.Loop
	r      *scene.Memory
	st     store.Store
	client *backend.Client
	events *eventLog
	c      *Coordinator
	anchor scene.NodeID
}

// newRig builds a coordinator; online rigs talk to a real panel server over
// an in-memory store.
func newRig(t *testing.T, online bool) *rig {
	t.Helper()
	clk := clock.Fake(time.Unix(1_700_000_000, 0))
	x := &rig{t: t, clk: clk, loop: mainloop.New(clk), r: scene.NewMemory(), events: &eventLog{}}
	var remote syncer.Remote
	if online {
		x.st = store.NewMemory()
		srv := httptest.NewServer(server.New(x.st, "secret", nil, nil).AllowDevTokens().Router())
		t.Cleanup(srv.Close)
		tok, _, err := backend.NewClient(srv.URL, "").CuratorToken(context.Background(), "tester")
		if err != nil {
			t.Fatalf("curator token: %v", err)
		}
		x.client = backend.NewClient(srv.URL, tok)
		remote = x.client
	}
	opts := DefaultOptions()
	opts.Rooms = []session.Room{hall}
	x.c = New(Deps{Renderer: x.r, Loop: x.loop, Remote: remote, Events: x.events}, opts)
	x.anchor = x.r.CreateNode(scene.NodeSpec{Kind: scene.KindGroup, Name: "anchor:hall-a"})
	return x
}

// settle waits for network work and runs its results on the loop.
func (x *rig) settle() {
	x.c.Reconciler().Wait()
	x.loop.Drain()
}

func (x *rig) start(mode domain.Mode, token string) {
	x.t.Helper()
	if err := x.c.SelectMode(mode, token); err != nil {
		x.t.Fatalf("SelectMode: %v", err)
	}
	x.c.OnAnchorAdded(hall.Marker, x.anchor)
	if !x.c.Session().Running() {
		x.t.Fatalf("session did not start")
	}
	x.settle()
}

func (x *rig) community() domain.Scope {
	x.t.Helper()
	tok, err := x.client.CreateCommunitySession(context.Background(), hall.MuseumID, hall.RoomID)
	if err != nil {
		x.t.Fatalf("community session: %v", err)
	}
	return domain.Scope{MuseumID: hall.MuseumID, RoomID: hall.RoomID, Token: tok}
}

func (x *rig) stored(s domain.Scope) []domain.Panel {
	x.t.Helper()
	list, err := x.st.ListPanels(context.Background(), s)
	if err != nil {
		x.t.Fatalf("ListPanels: %v", err)
	}
	return list
}

func near(a, b geom.Vec3) bool { return a.Dist(b) < 1e-4 }

func TestStartRules(t *testing.T) {
	x := newRig(t, false)
	if err := x.c.StartSession(x.anchor, hall.Marker); !errors.Is(err, ErrNoMode) {
		t.Fatalf("no mode: %v", err)
	}
	if err := x.c.SelectMode(domain.ModeCommunity, ""); !errors.Is(err, session.ErrMissingToken) {
		t.Fatalf("community without token: %v", err)
	}
	if err := x.c.SelectMode(domain.ModeCurator, ""); err != nil {
		t.Fatal(err)
	}
	if err := x.c.StartSession(x.anchor, hall.Marker); !errors.Is(err, ErrOffline) {
		t.Fatalf("offline curator: %v", err)
	}
	_ = x.c.SelectMode(domain.ModePrivate, "")
	if err := x.c.StartSession(x.anchor, "gift-shop"); !errors.Is(err, ErrUnknownRoom) {
		t.Fatalf("unknown room: %v", err)
	}
	x.c.OnAnchorAdded("gift-shop", x.anchor)
	if x.c.Session().Running() {
		t.Fatalf("unknown marker started a session")
	}
	x.c.OnAnchorAdded(hall.Marker, x.anchor)
	if !x.c.Session().Running() || x.c.Session().Mode() != domain.ModePrivate {
		t.Fatalf("private session not running")
	}
	if err := x.c.SelectMode(domain.ModeCurator, ""); !errors.Is(err, session.ErrAlreadyRunning) {
		t.Fatalf("mode change while running: %v", err)
	}
}

func TestAddPanelValidation(t *testing.T) {
	x := newRig(t, false)
	if _, err := x.c.AddPanel(amphora, ""); !errors.Is(err, ErrNoSession) {
		t.Fatalf("no session: %v", err)
	}
	x.start(domain.ModePrivate, "")
	missing := amphora
	missing.Icon = ""
	if x.c.CanAdd(missing) {
		t.Fatalf("CanAdd accepted content without icon")
	}
	if _, err := x.c.AddPanel(missing, ""); !errors.Is(err, ErrIncompleteContent) {
		t.Fatalf("incomplete: %v", err)
	}
	if !x.c.CanAdd(amphora) {
		t.Fatalf("CanAdd rejected complete content")
	}
	e, err := x.c.AddPanel(amphora, "")
	if err != nil || e.ID() == "" {
		t.Fatalf("AddPanel: %v", err)
	}
	if _, err := x.c.AddPanel(amphora, e.ID()); !errors.Is(err, panel.ErrDuplicate) {
		t.Fatalf("duplicate id: %v", err)
	}
	if x.c.Registry().Len() != 1 {
		t.Fatalf("registry len %d", x.c.Registry().Len())
	}
}

func TestAddPanelInFrontOfCamera(t *testing.T) {
	x := newRig(t, false)
	x.r.SetTransform(x.anchor, geom.At(geom.V(1, 0, 0)), 1)
	x.start(domain.ModePrivate, "")
	e, err := x.c.AddPanel(amphora, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !near(e.Position(), geom.V(-1, 0, -1)) {
		t.Fatalf("local position %v", e.Position())
	}
	if !near(x.r.WorldPosition(e.Nodes().Root), geom.V(0, 0, -1)) {
		t.Fatalf("world position %v", x.r.WorldPosition(e.Nodes().Root))
	}
	// distance 1: near tier, icon shown, short text once the resize finished
	x.clk.Advance(panel.DefaultAnimation)
	x.loop.Drain()
	if e.Tier() != domain.Expanded || e.IconHidden() || e.RenderedText() != amphora.Text {
		t.Fatalf("tier %v icon hidden %v text %q", e.Tier(), e.IconHidden(), e.RenderedText())
	}
}

func TestFrameTicksThrottleLOD(t *testing.T) {
	x := newRig(t, false)
	x.start(domain.ModePrivate, "")
	e, _ := x.c.AddPanel(amphora, "p1")
	if err := x.c.SetSpotlight("p1"); err != nil {
		t.Fatal(err)
	}
	now := x.clk.Now()
	x.c.OnFrameTick(now)
	x.r.SetCamera(geom.At(geom.V(0, 0, 4))) // panel now 5 away
	x.c.OnFrameTick(now.Add(16 * time.Millisecond))
	if e.Tier() != domain.Expanded {
		t.Fatalf("reclassified inside the interval: %v", e.Tier())
	}
	x.c.OnFrameTick(now.Add(time.Second))
	if e.Tier() != domain.Dot || !e.IconHidden() {
		t.Fatalf("far panel: tier %v icon hidden %v", e.Tier(), e.IconHidden())
	}
	if !e.Spotlight() || e.HighlightNear() || !x.r.Visible(e.Nodes().Highlight) {
		t.Fatalf("spotlight must stay visible with the small footprint")
	}
}

func TestCommunityScenario(t *testing.T) {
	x := newRig(t, true)
	scope := x.community()
	other := domain.NewPanel("remote-1", hall.MuseumID, hall.RoomID, geom.V(0, 0, -3), amphora, false)
	if err := x.st.CreatePanel(context.Background(), scope, other); err != nil {
		t.Fatal(err)
	}
	x.start(domain.ModeCommunity, scope.Token)
	if _, ok := x.c.Registry().Get("remote-1"); !ok {
		t.Fatalf("stored panel not loaded at session start")
	}

	e, err := x.c.AddPanel(amphora, "mine")
	if err != nil {
		t.Fatal(err)
	}
	x.settle()
	if got := x.stored(scope); len(got) != 2 {
		t.Fatalf("stored panels %d, want 2", len(got))
	}

	// a collaborator deletes remote-1; the next pull removes it
	loaded, _ := x.c.Registry().Get("remote-1")
	root := loaded.Nodes().Root
	if err := x.st.DeletePanel(context.Background(), scope, "remote-1"); err != nil {
		t.Fatal(err)
	}
	x.clk.Advance(10 * time.Second)
	x.c.OnFrameTick(x.clk.Now())
	x.settle()
	if _, ok := x.c.Registry().Get("remote-1"); !ok {
		t.Fatalf("pulled before the interval")
	}
	x.clk.Advance(20 * time.Second)
	x.c.OnFrameTick(x.clk.Now())
	x.settle()
	if _, ok := x.c.Registry().Get("remote-1"); ok {
		t.Fatalf("remotely deleted panel still local")
	}
	if x.r.Exists(root) {
		t.Fatalf("render node of removed panel still attached")
	}

	// delete button tap removes locally and remotely
	e.ToggleEditMode()
	x.r.SetScreenRect(e.Nodes().Delete, geom.R(0, 0, 100, 100))
	if got := x.c.Tap(geom.Pt{X: 50, Y: 50}); got != gesture.Deleted {
		t.Fatalf("tap = %v", got)
	}
	x.settle()
	if x.c.Registry().Len() != 0 || len(x.stored(scope)) != 0 {
		t.Fatalf("delete not applied: local %d remote %d", x.c.Registry().Len(), len(x.stored(scope)))
	}
	want := []string{telemetry.EventSessionStart, telemetry.EventPanelAdd, telemetry.EventPanelDelete}
	if len(x.events.names) != len(want) {
		t.Fatalf("events %v", x.events.names)
	}
	for i := range want {
		if x.events.names[i] != want[i] {
			t.Fatalf("events %v", x.events.names)
		}
	}
}

func TestMoveScenario(t *testing.T) {
	x := newRig(t, true)
	x.start(domain.ModeCurator, "")
	e, _ := x.c.AddPanel(amphora, "p1")
	x.settle()

	if err := x.c.MovePanelConfirm(); !errors.Is(err, shadow.ErrNoMove) {
		t.Fatalf("confirm without move: %v", err)
	}
	if err := x.c.BeginMove("p1"); err != nil {
		t.Fatal(err)
	}
	if err := x.c.BeginMove("p1"); !errors.Is(err, shadow.ErrMoveActive) {
		t.Fatalf("second move: %v", err)
	}
	ghost := x.c.Shadow().Node()
	x.r.SetCamera(geom.At(geom.V(0.3, 0, 0)))
	x.c.OnFrameTick(x.clk.Now())
	final := x.r.WorldPosition(ghost)
	if !near(final, geom.V(0.3, 0, -1)) {
		t.Fatalf("shadow did not follow the camera: %v", final)
	}
	if err := x.c.MovePanelConfirm(); err != nil {
		t.Fatal(err)
	}
	if !near(x.r.WorldPosition(e.Nodes().Root), final) {
		t.Fatalf("panel at %v, shadow was at %v", x.r.WorldPosition(e.Nodes().Root), final)
	}
	if x.r.Exists(ghost) {
		t.Fatalf("shadow node still present")
	}
	x.settle()
	got := x.stored(domain.Scope{MuseumID: hall.MuseumID, RoomID: hall.RoomID})
	if len(got) != 1 || math.Abs(float64(got[0].X)-0.3) > 1e-4 || math.Abs(float64(got[0].Z)+1) > 1e-4 {
		t.Fatalf("stored position %+v", got)
	}

	_ = x.c.BeginMove("p1")
	x.c.MovePanelCancel()
	x.c.MovePanelCancel()
	if x.c.Shadow().Active() || !near(e.Position(), geom.V(0.3, 0, -1)) {
		t.Fatalf("cancel moved the panel")
	}
}

func TestPrivateWritesCuratorPanelsWithoutPulling(t *testing.T) {
	x := newRig(t, true)
	curator := domain.Scope{MuseumID: hall.MuseumID, RoomID: hall.RoomID}
	_ = x.st.CreatePanel(context.Background(), curator, domain.NewPanel("guide", hall.MuseumID, hall.RoomID, geom.V(0, 0, -2), amphora, true))
	x.start(domain.ModePrivate, "")
	x.settle()
	if _, ok := x.c.Registry().Get("guide"); !ok {
		t.Fatalf("curator panel not loaded")
	}
	if _, err := x.c.AddPanel(amphora, "note"); err != nil {
		t.Fatalf("AddPanel: %v", err)
	}
	if err := x.c.DeletePanel("guide"); err != nil {
		t.Fatalf("DeletePanel: %v", err)
	}
	x.settle()
	got := x.stored(curator)
	if len(got) != 1 || got[0].PanelID != "note" {
		t.Fatalf("curator family after private edits: %+v", got)
	}
	if err := x.c.DeletePanel("guide"); !errors.Is(err, panel.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}

	_ = x.st.CreatePanel(context.Background(), curator, domain.NewPanel("late", hall.MuseumID, hall.RoomID, geom.V(0, 0, -2), amphora, false))
	x.clk.Advance(time.Minute)
	x.c.OnFrameTick(x.clk.Now())
	x.settle()
	if _, ok := x.c.Registry().Get("late"); ok {
		t.Fatalf("private session pulled")
	}
}

func TestOfflinePrivateStaysLocal(t *testing.T) {
	x := newRig(t, false)
	x.start(domain.ModePrivate, "")
	if _, err := x.c.AddPanel(amphora, "note"); err != nil {
		t.Fatalf("AddPanel: %v", err)
	}
	if err := x.c.DeletePanel("note"); err != nil {
		t.Fatalf("DeletePanel: %v", err)
	}
	x.settle()
	if x.c.Registry().Len() != 0 {
		t.Fatalf("registry %d", x.c.Registry().Len())
	}
}

func TestEndSessionIsLocal(t *testing.T) {
	x := newRig(t, true)
	scope := x.community()
	x.start(domain.ModeCommunity, scope.Token)
	_, _ = x.c.AddPanel(amphora, "p1")
	x.settle()
	x.c.EndSession()
	x.c.EndSession()
	if x.c.Session().Running() || x.c.Registry().Len() != 0 || x.r.Resets() != 1 {
		t.Fatalf("session not torn down: %s", x.c.Summary())
	}
	if len(x.stored(scope)) != 1 {
		t.Fatalf("ending the session touched the store")
	}
	if x.c.Tap(geom.Pt{X: 1, Y: 1}) != gesture.NoAction {
		t.Fatalf("gesture handled without session")
	}
	x.c.OnFrameTick(x.clk.Now().Add(time.Minute))
	if x.c.Reconciler().State() != syncer.Idle {
		t.Fatalf("pull started after session end")
	}
	if x.events.names[len(x.events.names)-1] != telemetry.EventSessionEnd {
		t.Fatalf("events %v", x.events.names)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sync.LODIntervalMs = 100
	cfg.Rooms = []config.RoomConfig{{Marker: "hall-a", MuseumID: "m1", RoomID: "r1"}}
	o := OptionsFrom(cfg)
	if o.LODInterval != time.Second || o.Revert != 15*time.Second || o.ShadowDistance != 1 {
		t.Fatalf("options %+v", o)
	}
	if r, ok := o.room("hall-a"); !ok || r != hall {
		t.Fatalf("room %+v", r)
	}
}
