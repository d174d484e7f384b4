/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package store persists panels, drawings and community sessions for the
// panel server. Records are partitioned by scope: the curator family or one
// community access token.
package store

import (
	"context"
	"errors"
	"fmt"

	"museumar/internal/domain"
)

var (
	ErrNotFound     = errors.New("store: not found")
	ErrInvalidToken = errors.New("store: invalid community token")
)

// Store is implemented by Memory, SQLite and Postgres.
type Store interface {
	ListPanels(ctx context.Context, s domain.Scope) ([]domain.Panel, error)
	// CreatePanel inserts or replaces a panel.
	CreatePanel(ctx context.Context, s domain.Scope, p domain.Panel) error
	// UpdatePanel applies a partial update; ErrNotFound if the panel is unknown.
	UpdatePanel(ctx context.Context, s domain.Scope, panelID string, fields map[string]any) error
	// DeletePanel is idempotent.
	DeletePanel(ctx context.Context, s domain.Scope, panelID string) error
	ListDrawings(ctx context.Context, s domain.Scope) ([]domain.Drawing, error)
	CreateDrawing(ctx context.Context, s domain.Scope, d domain.Drawing) error
	DeleteDrawing(ctx context.Context, s domain.Scope, drawingID string) error
	// CreateCommunitySession returns a new access token bound to the room.
	CreateCommunitySession(ctx context.Context, museumID, roomID string) (string, error)
	// CheckToken fails with ErrInvalidToken unless the scope's token belongs to its room.
	// Curator scopes always pass.
	CheckToken(ctx context.Context, s domain.Scope) error
	Ping(ctx context.Context) error
	Close() error
}

const curatorPartition = "curator"

func partition(s domain.Scope) string {
	if s.Community() {
		return "community:" + s.Token
	}
	return curatorPartition
}

// Open returns a store by kind: memory, sqlite (dsn is a file path) or
// postgres (dsn is a connection URL).
func Open(ctx context.Context, kind, dsn string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("unknown store kind %q", kind)
}
