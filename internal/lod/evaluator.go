/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package lod classifies camera distance into panel size tiers.
package lod

import (
	"time"

	"museumar/internal/domain"
	"museumar/internal/panel"
	"museumar/internal/scene"
)

const (
	NearDistance float32 = 2.0
	FarDistance  float32 = 4.0

	// MinInterval bounds how often the evaluator reclassifies.
	MinInterval = time.Second
)

// Classify maps a camera distance to a tier. Intervals are half open:
// 2.0 is Compact and 4.0 is Dot.
func Classify(d float32) domain.Tier {
	switch {
	case d < NearDistance:
		return domain.Expanded
	case d < FarDistance:
		return domain.Compact
	default:
		return domain.Dot
	}
}

// Evaluator reclassifies the registry on a throttled cadence driven by frame ticks.
type Evaluator struct {
	r        scene.Renderer
	reg      *panel.Registry
	interval time.Duration
	last     time.Time
	ticks    int
}

// New returns an evaluator. Intervals below MinInterval are raised to it.
func New(r scene.Renderer, reg *panel.Registry, interval time.Duration) *Evaluator {
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Evaluator{r: r, reg: reg, interval: interval}
}

// Interval is the effective cadence.
func (e *Evaluator) Interval() time.Duration { return e.interval }

// Evaluations counts passes that actually ran.
func (e *Evaluator) Evaluations() int { return e.ticks }

// Tick is called every frame and runs a pass at most once per interval.
// It reports whether a pass ran.
func (e *Evaluator) Tick(now time.Time) bool {
	if !e.last.IsZero() && now.Sub(e.last) < e.interval {
		return false
	}
	e.last = now
	e.Evaluate()
	return true
}

// Evaluate runs one pass immediately over all panels not temporarily expanded.
func (e *Evaluator) Evaluate() {
	e.ticks++
	cam := e.r.Camera().Position
	e.reg.Each(func(p *panel.Entity) {
		if p.Expanded() {
			return
		}
		e.apply(p, Classify(cam.Dist(p.WorldPosition())))
	})
}

// TierFor classifies a single panel against the current camera.
func (e *Evaluator) TierFor(p *panel.Entity) domain.Tier {
	return Classify(e.r.Camera().Position.Dist(p.WorldPosition()))
}

// Apply reclassifies one panel now, e.g. right after it was placed.
func (e *Evaluator) Apply(p *panel.Entity) {
	if p.Expanded() {
		return
	}
	e.apply(p, e.TierFor(p))
}

func (e *Evaluator) apply(p *panel.Entity, t domain.Tier) {
	p.SetSizeTier(t)
	p.SetHighlightNear(t == domain.Expanded)
}

// Reset forgets the last pass so the next Tick runs immediately.
func (e *Evaluator) Reset() { e.last = time.Time{} }
