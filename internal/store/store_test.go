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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"museumar/internal/domain"
	"museumar/internal/geom"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	out := map[string]Store{"memory": NewMemory()}
	sq, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "panels.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	out["sqlite"] = sq
	if dsn := os.Getenv("MAR_PG_DSN"); dsn != "" {
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			t.Skipf("postgres not available: %v", err)
		}
		out["postgres"] = pg
	}
	t.Cleanup(func() {
		for _, s := range out {
			_ = s.Close()
		}
	})
	return out
}

func testScope() domain.Scope {
	// unique per run so a shared postgres database does not leak state between runs
	return domain.Scope{MuseumID: "museum-" + uuid.NewString(), RoomID: "hall"}
}

func TestPanelLifecycle(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sc := testScope()
			p := domain.NewPanel("p1", sc.MuseumID, sc.RoomID, geom.V(1, 2, 3), domain.Content{Text: "Mona", LongText: "oil", Icon: "star", Color: domain.Color{R: 10, G: 20, B: 30, A: 0.5}}, false)
			if err := st.CreatePanel(ctx, sc, p); err != nil {
				t.Fatalf("CreatePanel: %v", err)
			}
			if err := st.UpdatePanel(ctx, sc, "p1", map[string]any{"spotlight": true, "x": 4.0, "text": "Lisa"}); err != nil {
				t.Fatalf("UpdatePanel: %v", err)
			}
			list, err := st.ListPanels(ctx, sc)
			if err != nil || len(list) != 1 {
				t.Fatalf("ListPanels: %v %v", list, err)
			}
			got := list[0]
			if !got.Spotlight || got.X != 4 || got.Y != 2 || got.Text != "Lisa" || got.LongText != "oil" || got.G != 20 || got.Alpha != 0.5 {
				t.Fatalf("stored %+v", got)
			}
			if err := st.UpdatePanel(ctx, sc, "missing", map[string]any{"x": 1.0}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("update missing: %v", err)
			}
			if err := st.UpdatePanel(ctx, sc, "p1", map[string]any{"r": "red"}); !errors.Is(err, domain.ErrInvalidRecord) {
				t.Fatalf("bad update: %v", err)
			}
			if err := st.DeletePanel(ctx, sc, "p1"); err != nil {
				t.Fatalf("DeletePanel: %v", err)
			}
			if err := st.DeletePanel(ctx, sc, "p1"); err != nil {
				t.Fatalf("second DeletePanel: %v", err)
			}
			if list, _ := st.ListPanels(ctx, sc); len(list) != 0 {
				t.Fatalf("left %v", list)
			}
		})
	}
}

func TestScopesArePartitioned(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cur := testScope()
			tok, err := st.CreateCommunitySession(ctx, cur.MuseumID, cur.RoomID)
			if err != nil || tok == "" {
				t.Fatalf("CreateCommunitySession: %q %v", tok, err)
			}
			com := domain.Scope{MuseumID: cur.MuseumID, RoomID: cur.RoomID, Token: tok}
			if err := st.CheckToken(ctx, com); err != nil {
				t.Fatalf("CheckToken: %v", err)
			}
			if err := st.CheckToken(ctx, domain.Scope{MuseumID: cur.MuseumID, RoomID: "other", Token: tok}); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("token for another room: %v", err)
			}
			if err := st.CheckToken(ctx, domain.Scope{MuseumID: "m", RoomID: "r", Token: "nope"}); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("unknown token: %v", err)
			}
			_ = st.CreatePanel(ctx, com, domain.NewPanel("c", "", "", geom.V(0, 0, 0), domain.Content{Text: "x"}, false))
			if list, _ := st.ListPanels(ctx, cur); len(list) != 0 {
				t.Fatalf("community panel visible to curator: %v", list)
			}
			if list, _ := st.ListPanels(ctx, com); len(list) != 1 || list[0].MuseumID != cur.MuseumID {
				t.Fatalf("community list %v", list)
			}
		})
	}
}

func TestDrawings(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sc := testScope()
			for _, id := range []string{"b", "a"} {
				if err := st.CreateDrawing(ctx, sc, domain.Drawing{DrawingID: id, X: 1, Radius: 0.005}); err != nil {
					t.Fatalf("CreateDrawing: %v", err)
				}
			}
			_ = st.DeleteDrawing(ctx, sc, "b")
			list, err := st.ListDrawings(ctx, sc)
			if err != nil || len(list) != 1 || list[0].DrawingID != "a" || list[0].Radius != 0.005 {
				t.Fatalf("drawings %v %v", list, err)
			}
		})
	}
}

func TestSQLiteMigratesAndReopens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "panels.sqlite")
	st, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	sc := testScope()
	_ = st.CreatePanel(ctx, sc, domain.NewPanel("p", "", "", geom.V(0, 0, 0), domain.Content{Text: "kept"}, true))
	_ = st.Close()

	st, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	v, err := schemaVersionOf(ctx, st)
	if err != nil || v != sqliteSchemaVersion {
		t.Fatalf("schema version %d %v", v, err)
	}
	list, _ := st.ListPanels(ctx, sc)
	if len(list) != 1 || list[0].Text != "kept" || !list[0].Spotlight {
		t.Fatalf("after reopen %v", list)
	}
}

func TestOpenUnknownKind(t *testing.T) {
	if _, err := Open(context.Background(), "mongo", ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("0002_session_room_index.sql"); err != nil || v != 2 {
		t.Fatalf("parseVersion = %d %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatalf("expected error")
	}
}
