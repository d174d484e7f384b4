/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	path, err := writeReport(Info{Binary: "panelserver", Dir: dir, State: func() string { return "room m1/r1" }}, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.Contains(filepath.Base(path), "crash-panelserver-") {
		t.Fatalf("unexpected path %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	for _, want := range []string{"MuseumAR Crash Report", "Panic: boom", "State: room m1/r1", "stacktrace"} {
		if !strings.Contains(s, want) {
			t.Fatalf("report misses %q:\n%s", want, s)
		}
	}
}

func TestStateCallbackPanicIsContained(t *testing.T) {
	path, err := writeReport(Info{Dir: t.TempDir(), State: func() string { panic("nested") }}, "boom", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "unavailable (nested)") {
		t.Fatalf("state line missing:\n%s", b)
	}
}

func TestRecoverExitsWithCode2(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	dir := t.TempDir()
	func() {
		defer Recover(Info{Binary: "museumar", Dir: dir})
		panic("boom")
	}()

	files, _ := os.ReadDir(dir)
	if len(files) != 1 || !strings.HasPrefix(files[0].Name(), "crash-museumar-") {
		t.Fatalf("expected one crash report, got %v", files)
	}
	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
}
