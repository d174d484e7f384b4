/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package panel

import (
	"math"
	"time"
	"unicode/utf8"

	"museumar/internal/domain"
	"museumar/internal/geom"
)

// Box sizes per tier, in metres.
var tierSizes = map[domain.Tier]geom.Size3{
	domain.Dot:      {W: 0.05, H: 0.05, Depth: 0.01},
	domain.Compact:  {W: 0.30, H: 0.12, Depth: 0.01},
	domain.Expanded: {W: 0.60, H: 0.30, Depth: 0.01},
}

const (
	FullTextWidth      float32 = 0.60
	FullTextBaseHeight float32 = 0.30
	// FullTextLineHeight is added per 12 characters of long text.
	FullTextLineHeight float32 = 0.025
	FullTextMaxHeight  float32 = 1.20
	charsPerLine               = 12

	DefaultAnimation = 300 * time.Millisecond
)

// Spotlight highlight footprints.
var (
	HighlightSmall = geom.Size3{W: 0.10, H: 0.10}
	HighlightLarge = geom.Size3{W: 0.80, H: 0.45}
)

// TierSize returns the box size for a distance-driven tier.
func TierSize(t domain.Tier) geom.Size3 {
	if s, ok := tierSizes[t]; ok {
		return s
	}
	return tierSizes[domain.Compact]
}

// FullTextHeight grows with the long text and never exceeds FullTextMaxHeight.
func FullTextHeight(longText string) float32 {
	lines := math.Round(float64(utf8.RuneCountInString(longText)) / charsPerLine)
	h := FullTextBaseHeight + FullTextLineHeight*float32(lines)
	if h > FullTextMaxHeight {
		return FullTextMaxHeight
	}
	return h
}

// FullTextSize is the box size while temporarily expanded.
func FullTextSize(longText string) geom.Size3 {
	return geom.Size3{W: FullTextWidth, H: FullTextHeight(longText), Depth: 0.01}
}

// iconLayout places the icon: centred when it is the only content, pinned to
// the left edge when text is shown next to it, top-left over long text.
func iconLayout(t domain.Tier, box geom.Size3) (geom.Pose, float32) {
	switch t {
	case domain.Expanded:
		return geom.At(geom.V(-box.W/2+0.08, 0, 0.006)), 0.8
	case domain.FullText:
		return geom.At(geom.V(-box.W/2+0.08, box.H/2-0.08, 0.006)), 0.8
	case domain.Dot:
		return geom.At(geom.V(0, 0, 0.006)), 0.2
	default:
		return geom.At(geom.V(0, 0, 0.006)), 1
	}
}

// textPose offsets text to the right of the icon.
func textPose(box geom.Size3) geom.Pose { return geom.At(geom.V(0.05, 0, 0.006)) }

// buttonPoses lays the four action buttons along the top edge.
func buttonPoses(box geom.Size3) [4]geom.Pose {
	y := box.H/2 + 0.05
	return [4]geom.Pose{
		geom.At(geom.V(-0.15, y, 0.01)),
		geom.At(geom.V(-0.05, y, 0.01)),
		geom.At(geom.V(0.05, y, 0.01)),
		geom.At(geom.V(0.15, y, 0.01)),
	}
}
