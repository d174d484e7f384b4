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
	"sort"

	"museumar/internal/scene"
)

var (
	ErrNotFound  = errors.New("panel: not found")
	ErrDuplicate = errors.New("panel: duplicate id")
)

// Registry holds the live panels of the current room keyed by id.
type Registry struct {
	byID map[string]*Entity
}

func NewRegistry() *Registry { return &Registry{byID: map[string]*Entity{}} }

func (r *Registry) Add(e *Entity) error {
	if _, ok := r.byID[e.id]; ok {
		return ErrDuplicate
	}
	r.byID[e.id] = e
	return nil
}

func (r *Registry) Get(id string) (*Entity, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// Remove drops the entry without touching the scene.
func (r *Registry) Remove(id string) (*Entity, bool) {
	e, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
	}
	return e, ok
}

func (r *Registry) Len() int { return len(r.byID) }

// IDs returns the panel ids in stable order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Each visits panels in id order. fn may remove the visited panel.
func (r *Registry) Each(fn func(e *Entity)) {
	for _, id := range r.IDs() {
		if e, ok := r.byID[id]; ok {
			fn(e)
		}
	}
}

// Clear detaches every panel and empties the registry.
func (r *Registry) Clear() int {
	n := len(r.byID)
	for _, e := range r.byID {
		e.Detach()
	}
	r.byID = map[string]*Entity{}
	return n
}

// FindByNode finds the panel owning node and which part of it was hit.
func (r *Registry) FindByNode(node scene.NodeID) (*Entity, Target) {
	for _, id := range r.IDs() {
		e := r.byID[id]
		if t := e.HitTarget(node); t != TargetNone {
			return e, t
		}
	}
	return nil, TargetNone
}
