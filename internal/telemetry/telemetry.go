/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends anonymous AR session events and crash reports when
// the user opted in. Only whitelisted event names and properties leave the
// device; panel text, tokens and room ids never do.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "museumar/internal/log"
	"museumar/internal/version"
)

const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventPanelAdd     = "panel_add"
	EventPanelDelete  = "panel_delete"
)

// allowed lists the properties each event may carry.
var allowed = map[string][]string{
	EventSessionStart: {"mode"},
	EventSessionEnd:   {"panels"},
	EventPanelAdd:     nil,
	EventPanelDelete:  nil,
}

const (
	EnvOptIn   = "MAR_TELEMETRY_OPT_IN"
	EnvURL     = "MAR_TELEMETRY_URL"
	EnvCrash   = "MAR_CRASH_UPLOAD_URL"
	EnvTimeout = "MAR_TELEMETRY_TIMEOUT_MS"
	EnvDebug   = "MAR_TELEMETRY_DEBUG"
)

// Config is off unless OptIn is set and a URL is configured.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrash)),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv(EnvTimeout))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Client queues events for a background sender. Event never blocks: a full
// queue drops the event. It implements arview.Events.
type Client struct {
	cfg   Config
	run   string
	log   *slog.Logger
	cli   *http.Client
	q     chan map[string]any
	once  sync.Once
	stop  chan struct{}
	inFly sync.WaitGroup
}

var (
	mu            sync.Mutex
	defaultClient *Client
)

// NewDefault replaces the package client used by Default and UploadCrash.
func NewDefault(cfg Config) {
	c := New(cfg)
	mu.Lock()
	old := defaultClient
	defaultClient = c
	mu.Unlock()
	old.Close()
}

// Default returns the package client, built from the environment on first use.
func Default() *Client {
	mu.Lock()
	defer mu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

func New(cfg Config) *Client {
	c := &Client{
		cfg:  cfg,
		run:  uuid.NewString(),
		log:  applog.WithComponent("telemetry"),
		cli:  &http.Client{Timeout: cfg.Timeout},
		q:    make(chan map[string]any, 64),
		stop: make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues name with the permitted subset of props. Unknown events are
// dropped. Safe from any goroutine.
func (c *Client) Event(name string, props map[string]any) {
	keys, known := allowed[name]
	if !c.Enabled() || !known {
		return
	}
	payload := map[string]any{
		"name":    name,
		"run":     c.run,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for _, k := range keys {
		if v, ok := props[k]; ok {
			payload[k] = v
		}
	}
	c.inFly.Add(1)
	select {
	case c.q <- payload:
	default:
		c.inFly.Done()
	}
}

// Flush waits for queued events and crash uploads, or until ctx is done.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		c.inFly.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Close stops the sender. Queued events are dropped.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.stop) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.stop:
			return
		case item := <-c.q:
			buf, _ := json.Marshal(item)
			c.post(c.cfg.EventsURL, "application/json", buf)
			c.inFly.Done()
		}
	}
}

func (c *Client) post(url, contentType string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry post failed", "url", url, slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
}

// UploadCrash posts a crash report in the background. Flush waits for it.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	c.inFly.Add(1)
	go func() {
		defer c.inFly.Done()
		c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b)
	}()
}

// UploadCrash sends report with the package client and waits up to timeout,
// since the caller is about to exit.
func UploadCrash(report []byte, timeout time.Duration) {
	c := Default()
	c.UploadCrash(report)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	c.Flush(ctx)
}
