/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"museumar/internal/domain"
)

type roomKey struct{ part, museum, room string }

type session struct{ museum, room string }

// Memory keeps everything in maps. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	panels   map[roomKey]map[string]domain.Panel
	drawings map[roomKey]map[string]domain.Drawing
	sessions map[string]session
}

func NewMemory() *Memory {
	return &Memory{
		panels:   map[roomKey]map[string]domain.Panel{},
		drawings: map[roomKey]map[string]domain.Drawing{},
		sessions: map[string]session{},
	}
}

func key(s domain.Scope) roomKey { return roomKey{partition(s), s.MuseumID, s.RoomID} }

func (m *Memory) ListPanels(_ context.Context, s domain.Scope) ([]domain.Panel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Panel, 0, len(m.panels[key(s)]))
	for _, p := range m.panels[key(s)] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PanelID < out[j].PanelID })
	return out, nil
}

func (m *Memory) CreatePanel(_ context.Context, s domain.Scope, p domain.Panel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(s)
	if m.panels[k] == nil {
		m.panels[k] = map[string]domain.Panel{}
	}
	p.MuseumID, p.RoomID = s.MuseumID, s.RoomID
	m.panels[k][p.PanelID] = p
	return nil
}

func (m *Memory) UpdatePanel(_ context.Context, s domain.Scope, panelID string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.panels[key(s)][panelID]
	if !ok {
		return ErrNotFound
	}
	if err := domain.ApplyFields(&p, fields); err != nil {
		return err
	}
	m.panels[key(s)][panelID] = p
	return nil
}

func (m *Memory) DeletePanel(_ context.Context, s domain.Scope, panelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.panels[key(s)], panelID)
	return nil
}

func (m *Memory) ListDrawings(_ context.Context, s domain.Scope) ([]domain.Drawing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Drawing, 0, len(m.drawings[key(s)]))
	for _, d := range m.drawings[key(s)] {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DrawingID < out[j].DrawingID })
	return out, nil
}

func (m *Memory) CreateDrawing(_ context.Context, s domain.Scope, d domain.Drawing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(s)
	if m.drawings[k] == nil {
		m.drawings[k] = map[string]domain.Drawing{}
	}
	d.MuseumID, d.RoomID = s.MuseumID, s.RoomID
	m.drawings[k][d.DrawingID] = d
	return nil
}

func (m *Memory) DeleteDrawing(_ context.Context, s domain.Scope, drawingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drawings[key(s)], drawingID)
	return nil
}

func (m *Memory) CreateCommunitySession(_ context.Context, museumID, roomID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok := uuid.NewString()
	m.sessions[tok] = session{museumID, roomID}
	return tok, nil
}

func (m *Memory) CheckToken(_ context.Context, s domain.Scope) error {
	if !s.Community() {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[s.Token]
	if !ok || sess.museum != s.MuseumID || sess.room != s.RoomID {
		return ErrInvalidToken
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }
