/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the shared data model: the remote panel and drawing records
// exchanged with the panel store, plus the enums used throughout the client.

import (
	"fmt"
	"strings"

	"museumar/internal/geom"
)

// Tier is a panel's level of detail.
type Tier int

const (
	Dot      Tier = iota // icon hidden, dot-sized box
	Compact              // icon only
	Expanded             // icon and short text
	FullText             // temporary long-text view
)

func (t Tier) String() string {
	switch t {
	case Dot:
		return "dot"
	case Compact:
		return "compact"
	case Expanded:
		return "expanded"
	case FullText:
		return "fulltext"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Mode selects how a room session talks to the panel store.
type Mode int

const (
	ModeNone Mode = iota
	ModePrivate
	ModeCommunity
	ModeCurator
)

func (m Mode) String() string {
	switch m {
	case ModePrivate:
		return "private"
	case ModeCommunity:
		return "community"
	case ModeCurator:
		return "curator"
	}
	return "none"
}

// ParseMode is the inverse of Mode.String; unknown names map to ModeNone.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "private":
		return ModePrivate
	case "community":
		return ModeCommunity
	case "curator":
		return ModeCurator
	}
	return ModeNone
}

// Color is an RGBA border color. A zero Color means "nothing selected".
type Color struct {
	R, G, B uint8
	A       float32
}

// IsZero reports whether no color was chosen.
func (c Color) IsZero() bool { return c == Color{} }

// Content is the user-editable part of a panel.
type Content struct {
	Text     string
	LongText string
	Icon     string
	Color    Color
}

// Complete reports whether text, icon and color are all present, which is the
// precondition for adding a panel.
func (c Content) Complete() bool {
	return strings.TrimSpace(c.Text) != "" && strings.TrimSpace(c.Icon) != "" && !c.Color.IsZero()
}

// Panel is the remote record of one panel.
type Panel struct {
	PanelID   string  `json:"panelID"`
	MuseumID  string  `json:"museumID"`
	RoomID    string  `json:"roomID"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
	Text      string  `json:"text"`
	Icon      string  `json:"icon"`
	R         int     `json:"r"`
	G         int     `json:"g"`
	B         int     `json:"b"`
	Alpha     float32 `json:"alpha"`
	LongText  string  `json:"longText"`
	Spotlight bool    `json:"spotlight"`
}

// NewPanel builds a record from its parts.
func NewPanel(id, museumID, roomID string, pos geom.Vec3, c Content, spotlight bool) Panel {
	return Panel{
		PanelID:   id,
		MuseumID:  museumID,
		RoomID:    roomID,
		X:         pos.X,
		Y:         pos.Y,
		Z:         pos.Z,
		Text:      c.Text,
		Icon:      c.Icon,
		R:         int(c.Color.R),
		G:         int(c.Color.G),
		B:         int(c.Color.B),
		Alpha:     c.Color.A,
		LongText:  c.LongText,
		Spotlight: spotlight,
	}
}

func (p Panel) Position() geom.Vec3 { return geom.V(p.X, p.Y, p.Z) }

func (p Panel) Color() Color {
	return Color{R: clampByte(p.R), G: clampByte(p.G), B: clampByte(p.B), A: p.Alpha}
}

func (p Panel) Content() Content {
	return Content{Text: p.Text, LongText: p.LongText, Icon: p.Icon, Color: p.Color()}
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Drawing is one freehand point.
type Drawing struct {
	DrawingID string  `json:"drawingID"`
	MuseumID  string  `json:"museumID"`
	RoomID    string  `json:"roomID"`
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
	Radius    float32 `json:"radius"`
}

func (d Drawing) Position() geom.Vec3 { return geom.V(d.X, d.Y, d.Z) }

// Wire field names used in partial update requests.
const (
	FieldPanelID   = "panelID"
	FieldX         = "x"
	FieldY         = "y"
	FieldZ         = "z"
	FieldText      = "text"
	FieldLongText  = "longText"
	FieldIcon      = "icon"
	FieldR         = "r"
	FieldG         = "g"
	FieldB         = "b"
	FieldAlpha     = "alpha"
	FieldSpotlight = "spotlight"
)

// PositionFields is the partial update for a moved panel.
func PositionFields(p geom.Vec3) map[string]any {
	return map[string]any{FieldX: p.X, FieldY: p.Y, FieldZ: p.Z}
}

// ContentFields is the partial update for an edited panel.
func ContentFields(c Content) map[string]any {
	return map[string]any{
		FieldText:     c.Text,
		FieldLongText: c.LongText,
		FieldIcon:     c.Icon,
		FieldR:        int(c.Color.R),
		FieldG:        int(c.Color.G),
		FieldB:        int(c.Color.B),
		FieldAlpha:    c.Color.A,
	}
}

// SpotlightFields is the partial update for a spotlight toggle.
func SpotlightFields(on bool) map[string]any { return map[string]any{FieldSpotlight: on} }

// Scope addresses one room in one endpoint family of the panel store.
// An empty Token selects the curator family.
type Scope struct {
	MuseumID string
	RoomID   string
	Token    string
}

// Community reports whether the scope targets community storage.
func (s Scope) Community() bool { return s.Token != "" }
