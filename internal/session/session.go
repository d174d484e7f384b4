/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session holds the room-session context shared by the interaction,
// level-of-detail and synchronization components.
package session

import (
	"errors"
	"fmt"

	"museumar/internal/domain"
	"museumar/internal/scene"
)

var (
	ErrAlreadyRunning = errors.New("a room session is already running")
	ErrMissingToken   = errors.New("community mode requires an access token")
)

// Room is a known image marker and the room it opens.
type Room struct {
	Marker   string
	MuseumID string
	RoomID   string
}

// Context is the active room session. Components receive it by pointer; it is
// only mutated on the main loop.
type Context struct {
	room    Room
	mode    domain.Mode
	token   string
	anchor  scene.NodeID
	running bool
	seq     uint64
}

// New returns an idle context.
func New() *Context { return &Context{} }

// Start activates the session. Community mode needs a token; other modes drop it.
func (c *Context) Start(room Room, mode domain.Mode, token string, anchor scene.NodeID) error {
	if c.running {
		return ErrAlreadyRunning
	}
	if mode == domain.ModeCommunity && token == "" {
		return ErrMissingToken
	}
	if mode != domain.ModeCommunity {
		token = ""
	}
	if room.MuseumID == "" || room.RoomID == "" {
		return fmt.Errorf("room %q has no museum/room id", room.Marker)
	}
	c.room, c.mode, c.token, c.anchor = room, mode, token, anchor
	c.running = true
	return nil
}

// End deactivates the session. Calling End on an idle context is a no-op.
func (c *Context) End() {
	c.running = false
	c.anchor = scene.NoNode
	c.token = ""
}

func (c *Context) Running() bool        { return c.running }
func (c *Context) Room() Room           { return c.room }
func (c *Context) Mode() domain.Mode    { return c.mode }
func (c *Context) Anchor() scene.NodeID { return c.anchor }

// Syncing reports whether local edits are pushed to the panel store. Every
// running session writes; private and curator sessions target the curator
// family and never pull.
func (c *Context) Syncing() bool {
	return c.running && c.mode != domain.ModeNone
}

// Pulls reports whether remote state is polled. Only community sessions pull.
func (c *Context) Pulls() bool { return c.running && c.mode == domain.ModeCommunity }

// Scope is the endpoint family for the session's writes and reads.
func (c *Context) Scope() domain.Scope {
	return domain.Scope{MuseumID: c.room.MuseumID, RoomID: c.room.RoomID, Token: c.token}
}

// NextSeq stamps a local edit. Sequence numbers only grow.
func (c *Context) NextSeq() uint64 {
	c.seq++
	return c.seq
}

// Seq returns the latest stamped sequence number.
func (c *Context) Seq() uint64 { return c.seq }
