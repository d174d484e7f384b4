/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package mainloop is the single UI/render-thread marshal point.
//
// Network tasks and timers run elsewhere and hand their results back through
// Post; only work items executed by the loop may touch the panel registry or
// scene state.
package mainloop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"museumar/internal/clock"
	applog "museumar/internal/log"
)

// Loop serializes work items onto one goroutine.
type Loop struct {
	clk  clock.Clock
	log  *slog.Logger
	mu   sync.Mutex
	q    []func()
	wake chan struct{}
}

// New returns a loop that schedules timers on clk.
func New(clk clock.Clock) *Loop {
	if clk == nil {
		clk = clock.Real()
	}
	return &Loop{clk: clk, log: applog.WithComponent("mainloop"), wake: make(chan struct{}, 1)}
}

// Clock returns the loop's clock.
func (l *Loop) Clock() clock.Clock { return l.clk }

// Post enqueues fn for execution on the loop. Safe from any goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.q = append(l.q, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// After runs fn on the loop once d has elapsed. Stop on the returned timer
// cancels it; a timer whose callback was already posted but not yet run is
// not recalled, so callers guard stale work themselves.
func (l *Loop) After(d time.Duration, fn func()) *clock.Timer {
	return l.clk.AfterFunc(d, func() { l.Post(fn) })
}

// Drain runs queued work, including work enqueued while draining, and
// returns how many items ran. Must only be called from the loop goroutine.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		batch := l.q
		l.q = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			l.run(fn)
			n++
		}
	}
}

// Pending reports how many work items are queued.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.q)
}

// Run drains work as it arrives until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("work item panicked", slog.Any("panic", r))
		}
	}()
	fn()
}
