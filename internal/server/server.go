/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server is the HTTP panel store used by curator and community clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"museumar/internal/domain"
	applog "museumar/internal/log"
	"museumar/internal/metrics"
	"museumar/internal/store"
	"museumar/internal/version"
)

const maxBody = 1 << 20

// Server routes the panel API onto a Store.
type Server struct {
	store    store.Store
	secret   string
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	log      *slog.Logger
	now      func() time.Time

	devTokens bool
}

// New returns a server. An empty secret falls back to an insecure dev secret.
// gatherer may be nil, in which case /metrics is not served.
func New(st store.Store, secret string, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	l := applog.WithComponent("server")
	if secret == "" {
		secret = "dev-secret-change-me"
		l.Warn("MAR_AUTH_SECRET not set; using insecure dev secret")
	}
	return &Server{store: st, secret: secret, metrics: m, gatherer: gatherer, log: l, now: time.Now}
}

// AllowDevTokens mounts POST /api/auth/token, which hands out curator tokens
// to anyone who asks. Only for local development and tests.
func (s *Server) AllowDevTokens() *Server {
	s.devTokens = true
	s.log.Warn("dev token endpoint enabled; curator routes are open to any caller")
	return s
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.ready).Methods(http.MethodGet)
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(version.String()))
	}).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if s.devTokens {
		r.HandleFunc("/api/auth/token", s.issueToken).Methods(http.MethodPost)
	}
	r.HandleFunc("/api/community/sessions", s.createSession).Methods(http.MethodPost)

	curator := r.PathPrefix("/api/curator/museums/{museumID}/rooms/{roomID}").Subrouter()
	curator.Use(s.requireCurator)
	s.roomRoutes(curator)

	community := r.PathPrefix("/api/community/{token}/museums/{museumID}/rooms/{roomID}").Subrouter()
	community.Use(s.requireCommunity)
	s.roomRoutes(community)
	return r
}

func (s *Server) roomRoutes(r *mux.Router) {
	r.HandleFunc("/panels", s.listPanels).Methods(http.MethodGet)
	r.HandleFunc("/panels/create", s.createPanel).Methods(http.MethodPost)
	r.HandleFunc("/panels/update", s.updatePanel).Methods(http.MethodPost)
	r.HandleFunc("/panels/delete", s.deletePanel).Methods(http.MethodPost)
	r.HandleFunc("/drawings", s.listDrawings).Methods(http.MethodGet)
	r.HandleFunc("/drawings/create", s.createDrawing).Methods(http.MethodPost)
	r.HandleFunc("/drawings/delete", s.deleteDrawing).Methods(http.MethodPost)
}

func scopeOf(r *http.Request) domain.Scope {
	v := mux.Vars(r)
	return domain.Scope{MuseumID: v["museumID"], RoomID: v["roomID"], Token: v["token"]}
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxBody))
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// POST /api/auth/token { subject, ttl_seconds } -> { token, expires_at }
// Unauthenticated; mounted only by AllowDevTokens.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := readBody(r)
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "dev"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := s.now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MuseumID string `json:"museumID"`
		RoomID   string `json:"roomID"`
	}
	b, err := readBody(r)
	if err == nil {
		err = json.Unmarshal(b, &req)
	}
	if err != nil || req.MuseumID == "" || req.RoomID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("museumID and roomID are required"))
		return
	}
	tok, err := s.store.CreateCommunitySession(r.Context(), req.MuseumID, req.RoomID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.log.Info("community session created", "museum", req.MuseumID, "room", req.RoomID)
	writeJSON(w, http.StatusCreated, map[string]string{"token": tok})
}

func (s *Server) listPanels(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListPanels(r.Context(), scopeOf(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createPanel(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := domain.DecodePanel(b)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sc := scopeOf(r)
	if p.MuseumID != sc.MuseumID || p.RoomID != sc.RoomID {
		writeError(w, http.StatusBadRequest, fmt.Errorf("panel belongs to %s/%s", p.MuseumID, p.RoomID))
		return
	}
	if err := s.store.CreatePanel(r.Context(), sc, p); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{domain.FieldPanelID: p.PanelID})
}

func (s *Server) updatePanel(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := domain.ValidatePanelUpdateJSON(b); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, _ := fields[domain.FieldPanelID].(string)
	if err := s.store.UpdatePanel(r.Context(), scopeOf(r), id, fields); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{domain.FieldPanelID: id})
}

func (s *Server) deletePanel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PanelID string `json:"panelID"`
	}
	if err := decodeID(r, &req); err != nil || req.PanelID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("panelID is required"))
		return
	}
	if err := s.store.DeletePanel(r.Context(), scopeOf(r), req.PanelID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{domain.FieldPanelID: req.PanelID})
}

func (s *Server) listDrawings(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListDrawings(r.Context(), scopeOf(r))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createDrawing(w http.ResponseWriter, r *http.Request) {
	b, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := domain.DecodeDrawing(b)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sc := scopeOf(r)
	if d.MuseumID != sc.MuseumID || d.RoomID != sc.RoomID {
		writeError(w, http.StatusBadRequest, fmt.Errorf("drawing belongs to %s/%s", d.MuseumID, d.RoomID))
		return
	}
	if err := s.store.CreateDrawing(r.Context(), sc, d); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"drawingID": d.DrawingID})
}

func (s *Server) deleteDrawing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DrawingID string `json:"drawingID"`
	}
	if err := decodeID(r, &req); err != nil || req.DrawingID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("drawingID is required"))
		return
	}
	if err := s.store.DeleteDrawing(r.Context(), scopeOf(r), req.DrawingID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"drawingID": req.DrawingID})
}

func decodeID(r *http.Request, dest any) error {
	b, err := readBody(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

// --- Helpers: JSON and metrics ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidToken):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// observe records request counts and latency by route template.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.Request(route, sw.code, time.Since(start))
		if sw.code >= 500 {
			s.log.Error("request failed", "method", r.Method, "route", route, "status", sw.code)
		}
	})
}
