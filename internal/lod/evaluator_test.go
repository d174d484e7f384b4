/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package lod

import (
	"testing"
	"time"

	"museumar/internal/clock"
	"museumar/internal/domain"
	"museumar/internal/geom"
	"museumar/internal/mainloop"
	"museumar/internal/panel"
	"museumar/internal/scene"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		d    float32
		want domain.Tier
	}{
		{0, domain.Expanded},
		{1.0, domain.Expanded},
		{1.9999, domain.Expanded},
		{2.0, domain.Compact},
		{3.9999, domain.Compact},
		{4.0, domain.Dot},
		{5.0, domain.Dot},
		{100, domain.Dot},
	}
	for _, c := range cases {
		if got := Classify(c.d); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.d, got, c.want)
		}
	}
}

type fixture struct {
	clk  *clock.FakeClock
	loop *mainloop.Loop
	r    *scene.Memory
	reg  *panel.Registry
	ev   *Evaluator
}

func newFixture() *fixture {
	clk := clock.Fake(time.Unix(1_700_000_000, 0))
	f := &fixture{clk: clk, loop: mainloop.New(clk), r: scene.NewMemory(), reg: panel.NewRegistry()}
	f.ev = New(f.r, f.reg, 0)
	return f
}

func (f *fixture) add(id string, z float32, spotlight bool) *panel.Entity {
	c := domain.Content{Text: "short " + id, Icon: "i", Color: domain.Color{G: 200, A: 1}}
	e := panel.New(id, scene.NoNode, geom.V(0, 0, -z), c, spotlight, f.r, f.loop, panel.Options{})
	_ = f.reg.Add(e)
	return e
}

func TestNearPanelScenario(t *testing.T) {
	f := newFixture()
	p := f.add("near", 1.0, true)
	f.ev.Evaluate()
	f.clk.Advance(time.Second)
	f.loop.Drain()
	if p.Tier() != domain.Expanded || p.IconHidden() {
		t.Fatalf("tier %v icon hidden %v", p.Tier(), p.IconHidden())
	}
	if p.RenderedText() != "short near" {
		t.Fatalf("text %q", p.RenderedText())
	}
	if !p.HighlightNear() || !f.r.Visible(p.Nodes().Highlight) {
		t.Fatalf("highlight near %v visible %v", p.HighlightNear(), f.r.Visible(p.Nodes().Highlight))
	}
}

func TestFarSpotlightScenario(t *testing.T) {
	f := newFixture()
	p := f.add("far", 5.0, true)
	f.ev.Evaluate()
	if p.Tier() != domain.Dot || !p.IconHidden() {
		t.Fatalf("tier %v", p.Tier())
	}
	n, _ := f.r.Node(p.Nodes().Body)
	if n.Size != panel.TierSize(domain.Dot) {
		t.Fatalf("body size %+v", n.Size)
	}
	if p.HighlightNear() || !f.r.Visible(p.Nodes().Highlight) {
		t.Fatalf("highlight should be small and visible")
	}
}

func TestTickThrottle(t *testing.T) {
	f := newFixture()
	f.add("a", 3, false)
	now := f.clk.Now()
	ran := 0
	for i := 0; i < 120; i++ {
		if f.ev.Tick(now.Add(time.Duration(i) * 16 * time.Millisecond)) {
			ran++
		}
	}
	// 120 frames at 16ms span 1.904s: passes at 0s and at 1.008s
	if ran != 2 {
		t.Fatalf("passes = %d, want 2", ran)
	}
}

func TestIntervalClamped(t *testing.T) {
	f := newFixture()
	if ev := New(f.r, f.reg, 10*time.Millisecond); ev.Interval() != MinInterval {
		t.Fatalf("interval %v", ev.Interval())
	}
	if ev := New(f.r, f.reg, 3*time.Second); ev.Interval() != 3*time.Second {
		t.Fatalf("interval %v", ev.Interval())
	}
}

func TestSkipsExpandedPanels(t *testing.T) {
	f := newFixture()
	p := f.add("x", 1, false)
	p.Expand()
	f.r.SetCamera(geom.At(geom.V(0, 0, 10)))
	f.ev.Evaluate()
	if p.Tier() != domain.FullText {
		t.Fatalf("expanded panel reclassified to %v", p.Tier())
	}
	if got := f.ev.TierFor(p); got != domain.Dot {
		t.Fatalf("TierFor = %v", got)
	}
}
