/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresInOrder(t *testing.T) {
	c := Fake(epoch)
	var got []int
	c.AfterFunc(3*time.Second, func() { got = append(got, 3) })
	c.AfterFunc(1*time.Second, func() { got = append(got, 1) })
	c.AfterFunc(2*time.Second, func() { got = append(got, 2) })

	c.Advance(1500 * time.Millisecond)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("after 1.5s fired %v, want [1]", got)
	}
	c.Advance(2 * time.Second)
	if len(got) != 3 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("fired %v, want [1 2 3]", got)
	}
	if !c.Now().Equal(epoch.Add(3500 * time.Millisecond)) {
		t.Fatalf("Now = %v", c.Now())
	}
}

func TestFakeStopIsIdempotent(t *testing.T) {
	c := Fake(epoch)
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatalf("first Stop should report an active timer")
	}
	if tm.Stop() {
		t.Fatalf("second Stop should be a no-op")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Fatalf("stopped timer fired")
	}
	var nilTimer *Timer
	if nilTimer.Stop() {
		t.Fatalf("nil timer Stop must be false")
	}
	if c.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", c.Pending())
	}
}

func TestFakeCallbackMayScheduleMore(t *testing.T) {
	c := Fake(epoch)
	count := 0
	var again func()
	again = func() {
		count++
		if count < 3 {
			c.AfterFunc(time.Second, again)
		}
	}
	c.AfterFunc(time.Second, again)
	c.Advance(5 * time.Second)
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestFakeTicker(t *testing.T) {
	c := Fake(epoch)
	tk := c.NewTicker(time.Second)
	defer tk.Stop()
	c.Advance(time.Second)
	select {
	case <-tk.C:
	default:
		t.Fatalf("expected a tick")
	}
}
