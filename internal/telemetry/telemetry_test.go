/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventsAndCrashUpload(t *testing.T) {
	var mu sync.Mutex
	var events []map[string]any
	crashes := make(chan string, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		mu.Lock()
		events = append(events, m)
		mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		crashes <- string(b)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}

	c.Event(EventSessionStart, map[string]any{"mode": "community", "token": "secret", "text": "Amphora"})
	c.Event(EventPanelAdd, map[string]any{"panel": "p1"})
	c.Event("panel_text_changed", map[string]any{"text": "Amphora"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)

	mu.Lock()
	got := append([]map[string]any(nil), events...)
	mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("events sent = %d", len(got))
	}
	if got[0]["name"] != EventSessionStart || got[0]["mode"] != "community" {
		t.Fatalf("first event = %v", got[0])
	}
	if _, ok := got[0]["ts"].(string); !ok {
		t.Fatalf("missing ts field")
	}
	if _, leaked := got[0]["token"]; leaked {
		t.Fatalf("token left the device: %v", got[0])
	}
	if _, leaked := got[0]["text"]; leaked {
		t.Fatalf("panel text left the device: %v", got[0])
	}
	if _, leaked := got[1]["panel"]; leaked {
		t.Fatalf("panel id left the device: %v", got[1])
	}
	if got[0]["run"] == "" || got[0]["run"] != got[1]["run"] {
		t.Fatalf("run ids %v %v", got[0]["run"], got[1]["run"])
	}

	c.UploadCrash([]byte("STACKTRACE"))
	c.Flush(ctx)
	select {
	case b := <-crashes:
		if b != "STACKTRACE" {
			t.Fatalf("crash body = %q", b)
		}
	default:
		t.Fatalf("Flush returned before the crash upload finished")
	}
}

func TestDisabledSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	c.Event(EventPanelDelete, nil)
	c.UploadCrash([]byte("ignored"))

	c2 := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer c2.Close()
	c2.Event("", nil)

	c.Flush(context.Background())
	c2.Flush(context.Background())
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}
}

func TestSendErrorsAreSwallowed(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", Timeout: 50 * time.Millisecond, DebugLogging: true})
	defer c.Close()
	c.Event(EventPanelAdd, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c.Flush(ctx)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("MAR_TELEMETRY_OPT_IN", "true")
	t.Setenv("MAR_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("MAR_CRASH_UPLOAD_URL", "")
	t.Setenv("MAR_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}
	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatalf("nil client enabled")
	}
	nilClient.Flush(context.Background())
}
