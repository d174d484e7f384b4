/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package arview

import (
	"time"

	"museumar/internal/config"
	"museumar/internal/gesture"
	"museumar/internal/lod"
	"museumar/internal/panel"
	"museumar/internal/session"
	"museumar/internal/shadow"
	"museumar/internal/syncer"
)

// Options tune the coordinator. Zero values pick the package defaults of the
// component they configure.
type Options struct {
	Animation      time.Duration
	Revert         time.Duration
	EditAutoHide   time.Duration
	LODInterval    time.Duration
	PullInterval   time.Duration
	PullTimeout    time.Duration
	ShadowDistance float32
	DrawLerp       float32
	EraseRadius    float32
	// Rooms are the image markers that open a room session.
	Rooms []session.Room
}

func DefaultOptions() Options {
	g := gesture.DefaultConfig()
	return Options{
		Animation:      panel.DefaultAnimation,
		Revert:         g.Revert,
		EditAutoHide:   g.EditAutoHide,
		LODInterval:    lod.MinInterval,
		PullInterval:   syncer.DefaultInterval,
		PullTimeout:    syncer.DefaultTimeout,
		ShadowDistance: shadow.DefaultDistance,
		DrawLerp:       g.DrawLerp,
		EraseRadius:    g.EraseRadius,
	}
}

// OptionsFrom maps the user configuration.
func OptionsFrom(cfg config.AppConfig) Options {
	o := Options{
		Animation:      cfg.Interaction.Animation(),
		Revert:         cfg.Interaction.ExpandRevert(),
		EditAutoHide:   cfg.Interaction.EditAutoHide(),
		LODInterval:    cfg.Sync.LODInterval(),
		PullInterval:   cfg.Sync.PullInterval(),
		PullTimeout:    cfg.Sync.PullTimeout(),
		ShadowDistance: float32(cfg.Interaction.ShadowDistance),
		DrawLerp:       float32(cfg.Interaction.DrawLerp),
		EraseRadius:    float32(cfg.Interaction.EraseRadius),
	}
	for _, r := range cfg.Rooms {
		o.Rooms = append(o.Rooms, session.Room{Marker: r.Marker, MuseumID: r.MuseumID, RoomID: r.RoomID})
	}
	return o
}

func (o Options) gesture() gesture.Config {
	return gesture.Config{Revert: o.Revert, EditAutoHide: o.EditAutoHide, DrawLerp: o.DrawLerp, EraseRadius: o.EraseRadius}
}

func (o Options) room(marker string) (session.Room, bool) {
	for _, r := range o.Rooms {
		if r.Marker == marker {
			return r, true
		}
	}
	return session.Room{}, false
}
