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
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"museumar/internal/domain"
)

// schemaDDL is shared by SQLite and Postgres; both accept these types.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS panels (
		part       TEXT    NOT NULL,
		museum_id  TEXT    NOT NULL,
		room_id    TEXT    NOT NULL,
		panel_id   TEXT    NOT NULL,
		x          REAL    NOT NULL,
		y          REAL    NOT NULL,
		z          REAL    NOT NULL,
		text       TEXT    NOT NULL,
		icon       TEXT    NOT NULL,
		r          INTEGER NOT NULL,
		g          INTEGER NOT NULL,
		b          INTEGER NOT NULL,
		alpha      REAL    NOT NULL,
		long_text  TEXT    NOT NULL,
		spotlight  BOOLEAN NOT NULL,
		updated_at TEXT    NOT NULL,
		PRIMARY KEY(part, museum_id, room_id, panel_id)
	);`,
	`CREATE TABLE IF NOT EXISTS drawings (
		part       TEXT NOT NULL,
		museum_id  TEXT NOT NULL,
		room_id    TEXT NOT NULL,
		drawing_id TEXT NOT NULL,
		x          REAL NOT NULL,
		y          REAL NOT NULL,
		z          REAL NOT NULL,
		radius     REAL NOT NULL,
		PRIMARY KEY(part, museum_id, room_id, drawing_id)
	);`,
	`CREATE TABLE IF NOT EXISTS community_sessions (
		token      TEXT PRIMARY KEY,
		museum_id  TEXT NOT NULL,
		room_id    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);`,
}

// sqlStore implements Store over database/sql. Queries are written with ?
// placeholders and rebound for dialects that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
	// lock is appended to the row read of a partial update
	lock string
}

func (s *sqlStore) q(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

const panelCols = "panel_id, museum_id, room_id, x, y, z, text, icon, r, g, b, alpha, long_text, spotlight"

type scanner interface{ Scan(dest ...any) error }

func scanPanel(row scanner) (domain.Panel, error) {
	var p domain.Panel
	err := row.Scan(&p.PanelID, &p.MuseumID, &p.RoomID, &p.X, &p.Y, &p.Z, &p.Text, &p.Icon, &p.R, &p.G, &p.B, &p.Alpha, &p.LongText, &p.Spotlight)
	return p, err
}

func (s *sqlStore) ListPanels(ctx context.Context, sc domain.Scope) ([]domain.Panel, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+panelCols+` FROM panels WHERE part=? AND museum_id=? AND room_id=? ORDER BY panel_id`), partition(sc), sc.MuseumID, sc.RoomID)
	if err != nil {
		return nil, fmt.Errorf("list panels: %w", err)
	}
	defer rows.Close()
	out := []domain.Panel{}
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan panel: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqlStore) upsertPanel(ctx context.Context, ex interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, sc domain.Scope, p domain.Panel) error {
	_, err := ex.ExecContext(ctx, s.q(`INSERT INTO panels (part, `+panelCols+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(part, museum_id, room_id, panel_id) DO UPDATE SET
			x=excluded.x, y=excluded.y, z=excluded.z, text=excluded.text, icon=excluded.icon,
			r=excluded.r, g=excluded.g, b=excluded.b, alpha=excluded.alpha,
			long_text=excluded.long_text, spotlight=excluded.spotlight, updated_at=excluded.updated_at`),
		partition(sc), p.PanelID, sc.MuseumID, sc.RoomID, p.X, p.Y, p.Z, p.Text, p.Icon, p.R, p.G, p.B, p.Alpha, p.LongText, p.Spotlight, now())
	return err
}

func (s *sqlStore) CreatePanel(ctx context.Context, sc domain.Scope, p domain.Panel) error {
	if err := s.upsertPanel(ctx, s.db, sc, p); err != nil {
		return fmt.Errorf("create panel: %w", err)
	}
	return nil
}

func (s *sqlStore) UpdatePanel(ctx context.Context, sc domain.Scope, panelID string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	row := tx.QueryRowContext(ctx, s.q(`SELECT `+panelCols+` FROM panels WHERE part=? AND museum_id=? AND room_id=? AND panel_id=?`+s.lock), partition(sc), sc.MuseumID, sc.RoomID, panelID)
	p, err := scanPanel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read panel: %w", err)
	}
	if err := domain.ApplyFields(&p, fields); err != nil {
		return err
	}
	if err := s.upsertPanel(ctx, tx, sc, p); err != nil {
		return fmt.Errorf("update panel: %w", err)
	}
	return tx.Commit()
}

func (s *sqlStore) DeletePanel(ctx context.Context, sc domain.Scope, panelID string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM panels WHERE part=? AND museum_id=? AND room_id=? AND panel_id=?`), partition(sc), sc.MuseumID, sc.RoomID, panelID); err != nil {
		return fmt.Errorf("delete panel: %w", err)
	}
	return nil
}

func (s *sqlStore) ListDrawings(ctx context.Context, sc domain.Scope) ([]domain.Drawing, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT drawing_id, museum_id, room_id, x, y, z, radius FROM drawings WHERE part=? AND museum_id=? AND room_id=? ORDER BY drawing_id`), partition(sc), sc.MuseumID, sc.RoomID)
	if err != nil {
		return nil, fmt.Errorf("list drawings: %w", err)
	}
	defer rows.Close()
	out := []domain.Drawing{}
	for rows.Next() {
		var d domain.Drawing
		if err := rows.Scan(&d.DrawingID, &d.MuseumID, &d.RoomID, &d.X, &d.Y, &d.Z, &d.Radius); err != nil {
			return nil, fmt.Errorf("scan drawing: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqlStore) CreateDrawing(ctx context.Context, sc domain.Scope, d domain.Drawing) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO drawings (part, drawing_id, museum_id, room_id, x, y, z, radius)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(part, museum_id, room_id, drawing_id) DO UPDATE SET x=excluded.x, y=excluded.y, z=excluded.z, radius=excluded.radius`),
		partition(sc), d.DrawingID, sc.MuseumID, sc.RoomID, d.X, d.Y, d.Z, d.Radius)
	if err != nil {
		return fmt.Errorf("create drawing: %w", err)
	}
	return nil
}

func (s *sqlStore) DeleteDrawing(ctx context.Context, sc domain.Scope, drawingID string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM drawings WHERE part=? AND museum_id=? AND room_id=? AND drawing_id=?`), partition(sc), sc.MuseumID, sc.RoomID, drawingID); err != nil {
		return fmt.Errorf("delete drawing: %w", err)
	}
	return nil
}

func (s *sqlStore) CreateCommunitySession(ctx context.Context, museumID, roomID string) (string, error) {
	tok := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO community_sessions (token, museum_id, room_id, created_at) VALUES (?, ?, ?, ?)`), tok, museumID, roomID, now()); err != nil {
		return "", fmt.Errorf("create community session: %w", err)
	}
	return tok, nil
}

func (s *sqlStore) CheckToken(ctx context.Context, sc domain.Scope) error {
	if !sc.Community() {
		return nil
	}
	var museum, room string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT museum_id, room_id FROM community_sessions WHERE token=?`), sc.Token).Scan(&museum, &room)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (museum != sc.MuseumID || room != sc.RoomID)) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("check token: %w", err)
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqlStore) Close() error                   { return s.db.Close() }
