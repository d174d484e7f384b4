/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"testing"
	"time"
)

func TestParseWatchDefaultsBadRates(t *testing.T) {
	cases := []struct {
		args   []string
		fps    int
		report time.Duration
	}{
		{[]string{"hall-a"}, 10, 10 * time.Second},
		{[]string{"--report", "0", "hall-a"}, 10, 10 * time.Second},
		{[]string{"--report=-5s", "--fps=-1", "hall-a"}, 10, 10 * time.Second},
		{[]string{"--fps", "100000", "--report", "2s", "hall-a"}, maxFPS, 2 * time.Second},
	}
	for _, c := range cases {
		wf, err := parseWatch(c.args)
		if err != nil {
			t.Fatalf("%v: %v", c.args, err)
		}
		if wf.marker != "hall-a" || wf.fps != c.fps || wf.report != c.report {
			t.Errorf("%v: got %+v", c.args, wf)
		}
	}
}

func TestParseWatchNeedsMarker(t *testing.T) {
	if _, err := parseWatch([]string{"--mode", "private"}); err == nil {
		t.Fatalf("missing marker accepted")
	}
}
