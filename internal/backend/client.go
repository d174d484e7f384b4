/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend is the HTTP client for the remote panel store.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"museumar/internal/domain"
)

// Client talks to the panel server. Token is the curator bearer token;
// community requests are authorized by the token in their path instead.
type Client struct {
	BaseURL string
	Token   string
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return NewClientTimeout(baseURL, token, 10*time.Second)
}

// NewClientTimeout is NewClient with an explicit request timeout.
func NewClientTimeout(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server %s %s: %s", e.Method, e.Path, e.Status)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Status: resp.Status}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// RoomPath is the endpoint family prefix for a scope.
func RoomPath(s domain.Scope) string {
	room := "/museums/" + url.PathEscape(s.MuseumID) + "/rooms/" + url.PathEscape(s.RoomID)
	if s.Community() {
		return "/api/community/" + url.PathEscape(s.Token) + room
	}
	return "/api/curator" + room
}

// ListPanels returns the raw panel records of a room. Records are left
// undecoded so callers can validate and skip them one by one.
func (c *Client) ListPanels(ctx context.Context, s domain.Scope) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, RoomPath(s)+"/panels", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreatePanel stores a full panel record.
func (c *Client) CreatePanel(ctx context.Context, s domain.Scope, p domain.Panel) error {
	return c.doJSON(ctx, http.MethodPost, RoomPath(s)+"/panels/create", p, nil)
}

// UpdatePanel sends a partial field map keyed by panelID.
func (c *Client) UpdatePanel(ctx context.Context, s domain.Scope, panelID string, fields map[string]any) error {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body[domain.FieldPanelID] = panelID
	return c.doJSON(ctx, http.MethodPost, RoomPath(s)+"/panels/update", body, nil)
}

// DeletePanel removes a panel by id.
func (c *Client) DeletePanel(ctx context.Context, s domain.Scope, panelID string) error {
	return c.doJSON(ctx, http.MethodPost, RoomPath(s)+"/panels/delete", map[string]string{domain.FieldPanelID: panelID}, nil)
}

// ListDrawings returns the raw drawing records of a room.
func (c *Client) ListDrawings(ctx context.Context, s domain.Scope) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, RoomPath(s)+"/drawings", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) CreateDrawing(ctx context.Context, s domain.Scope, d domain.Drawing) error {
	return c.doJSON(ctx, http.MethodPost, RoomPath(s)+"/drawings/create", d, nil)
}

func (c *Client) DeleteDrawing(ctx context.Context, s domain.Scope, drawingID string) error {
	return c.doJSON(ctx, http.MethodPost, RoomPath(s)+"/drawings/delete", map[string]string{"drawingID": drawingID}, nil)
}

// CreateCommunitySession opens a shared session for a room and returns its access token.
func (c *Client) CreateCommunitySession(ctx context.Context, museumID, roomID string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	req := map[string]string{"museumID": museumID, "roomID": roomID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/community/sessions", req, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("server returned empty token")
	}
	return resp.Token, nil
}

// CuratorToken exchanges a subject name for a curator bearer token.
func (c *Client) CuratorToken(ctx context.Context, subject string) (string, time.Time, error) {
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", map[string]any{"subject": subject}, &resp); err != nil {
		return "", time.Time{}, err
	}
	return resp.Token, resp.ExpiresAt, nil
}
