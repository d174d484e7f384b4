/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package syncer pushes local panel edits to the remote store and reconciles
// pulled remote state into the registry.
package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"museumar/internal/clock"
	"museumar/internal/domain"
	"museumar/internal/drawing"
	applog "museumar/internal/log"
	"museumar/internal/metrics"
	"museumar/internal/panel"
	"museumar/internal/session"
)

// Remote is the panel store as seen by the client. *backend.Client implements it.
type Remote interface {
	ListPanels(ctx context.Context, s domain.Scope) ([]json.RawMessage, error)
	CreatePanel(ctx context.Context, s domain.Scope, p domain.Panel) error
	UpdatePanel(ctx context.Context, s domain.Scope, panelID string, fields map[string]any) error
	DeletePanel(ctx context.Context, s domain.Scope, panelID string) error
	ListDrawings(ctx context.Context, s domain.Scope) ([]json.RawMessage, error)
	CreateDrawing(ctx context.Context, s domain.Scope, d domain.Drawing) error
	DeleteDrawing(ctx context.Context, s domain.Scope, drawingID string) error
}

// Poster marshals work onto the main loop. *mainloop.Loop implements it.
type Poster interface {
	Post(fn func())
}

// State of the pull cycle.
type State int

const (
	Idle State = iota
	Pulling
)

func (s State) String() string {
	if s == Pulling {
		return "pulling"
	}
	return "idle"
}

const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 20 * time.Second
)

// Deps wires the reconciler. Place renders a pulled panel that is not yet
// local; Drop removes a local panel that vanished remotely; Busy reports
// panels under an active gesture that must not be touched.
type Deps struct {
	Remote   Remote
	Loop     Poster
	Session  *session.Context
	Registry *panel.Registry
	Drawings *drawing.Set
	Metrics  *metrics.Metrics
	Clock    clock.Clock
	Place    func(p domain.Panel) error
	Drop     func(e *panel.Entity)
	Busy     func(panelID string) bool
}

// Result counts what one merge did.
type Result struct {
	Added, Removed, Refreshed, Skipped, Invalid int
}

// Reconciler is owned by the main loop. Network calls run on their own
// goroutines and hand results back through Loop.Post.
type Reconciler struct {
	d        Deps
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup

	state      State
	lastPull   time.Time
	pullCancel context.CancelFunc

	tombstones  map[string]bool
	drawTombs   map[string]bool
	drawPending map[string]int
	drawSeq     map[string]uint64
}

// New returns an idle reconciler. Zero durations pick defaults.
func New(d Deps, interval, timeout time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	r := &Reconciler{d: d, interval: interval, timeout: timeout, log: applog.WithComponent("syncer")}
	r.reset()
	return r
}

func (r *Reconciler) reset() {
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.state = Idle
	r.lastPull = time.Time{}
	r.pullCancel = nil
	r.tombstones = map[string]bool{}
	r.drawTombs = map[string]bool{}
	r.drawPending = map[string]int{}
	r.drawSeq = map[string]uint64{}
}

// Stop cancels in-flight requests and forgets session bookkeeping. Results
// that arrive afterwards are dropped.
func (r *Reconciler) Stop() {
	r.cancel()
	if r.pullCancel != nil {
		r.pullCancel()
	}
	r.gen++
	r.reset()
}

// Wait blocks until all network goroutines returned. Their results may still
// sit in the loop queue.
func (r *Reconciler) Wait() { r.wg.Wait() }

func (r *Reconciler) State() State { return r.state }

// Tombstoned reports whether a panel was deleted locally this session.
func (r *Reconciler) Tombstoned(panelID string) bool { return r.tombstones[panelID] }

func (r *Reconciler) scope() domain.Scope { return r.d.Session.Scope() }

// writes is false on an offline device.
func (r *Reconciler) writes() bool { return r.d.Remote != nil && r.d.Session.Syncing() }

// write runs op in the background and posts done with its error.
func (r *Reconciler) write(name string, op func(ctx context.Context) error, done func(err error)) {
	ctx, gen := r.ctx, r.gen
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := op(ctx)
		r.d.Loop.Post(func() {
			if gen != r.gen {
				return
			}
			r.d.Metrics.Push(name, err)
			if err != nil {
				r.log.Warn("remote write failed", "op", name, "err", err)
			}
			if done != nil {
				done(err)
			}
		})
	}()
}

func (r *Reconciler) track(e *panel.Entity) func(error) {
	if e == nil {
		return nil
	}
	e.MarkEdited(r.d.Session.NextSeq())
	e.BeginWrite()
	// a pull that started before the ack may predate the write on the server
	return func(error) {
		e.MarkEdited(r.d.Session.NextSeq())
		e.EndWrite()
	}
}

// PushCreate stores a new panel remotely.
func (r *Reconciler) PushCreate(e *panel.Entity) {
	if !r.writes() {
		return
	}
	s := r.scope()
	rec := e.Record(s.MuseumID, s.RoomID)
	r.write("create", func(ctx context.Context) error { return r.d.Remote.CreatePanel(ctx, s, rec) }, r.track(e))
}

// PushUpdate sends changed fields of a panel.
func (r *Reconciler) PushUpdate(panelID string, fields map[string]any) {
	if !r.writes() || len(fields) == 0 {
		return
	}
	s := r.scope()
	e, _ := r.d.Registry.Get(panelID)
	r.write("update", func(ctx context.Context) error { return r.d.Remote.UpdatePanel(ctx, s, panelID, fields) }, r.track(e))
}

// PushDelete removes a panel remotely. The id stays tombstoned for the
// session so a pull that raced the delete cannot bring it back.
func (r *Reconciler) PushDelete(panelID string) {
	if !r.writes() {
		return
	}
	s := r.scope()
	r.d.Session.NextSeq()
	r.tombstones[panelID] = true
	r.write("delete", func(ctx context.Context) error { return r.d.Remote.DeletePanel(ctx, s, panelID) }, nil)
}

// PushDrawing stores a freehand point.
func (r *Reconciler) PushDrawing(p drawing.Point) {
	if !r.writes() {
		return
	}
	s := r.scope()
	rec := p.Record(s.MuseumID, s.RoomID)
	r.drawSeq[p.ID] = r.d.Session.NextSeq()
	r.drawPending[p.ID]++
	r.write("drawing_create", func(ctx context.Context) error { return r.d.Remote.CreateDrawing(ctx, s, rec) }, func(error) {
		r.drawSeq[p.ID] = r.d.Session.NextSeq()
		r.drawPending[p.ID]--
		if r.drawPending[p.ID] <= 0 {
			delete(r.drawPending, p.ID)
		}
	})
}

// PushDrawingDelete removes a freehand point remotely.
func (r *Reconciler) PushDrawingDelete(drawingID string) {
	if !r.writes() {
		return
	}
	s := r.scope()
	r.d.Session.NextSeq()
	r.drawTombs[drawingID] = true
	r.write("drawing_delete", func(ctx context.Context) error { return r.d.Remote.DeleteDrawing(ctx, s, drawingID) }, nil)
}

// Tick is called every frame and starts a pull once per interval while a
// community session runs. It reports whether a pull was started.
func (r *Reconciler) Tick(now time.Time) bool {
	if !r.d.Session.Pulls() || r.state == Pulling {
		return false
	}
	if !r.lastPull.IsZero() && now.Sub(r.lastPull) < r.interval {
		return false
	}
	r.lastPull = now
	r.startPull()
	return true
}

// Load fetches the room once, e.g. at session start, in any mode.
func (r *Reconciler) Load() bool {
	if !r.d.Session.Running() || r.state == Pulling {
		return false
	}
	r.lastPull = r.d.Clock.Now()
	r.startPull()
	return true
}

// CancelPull aborts the in-flight pull, if any.
func (r *Reconciler) CancelPull() {
	if r.pullCancel != nil {
		r.pullCancel()
	}
}

func (r *Reconciler) startPull() {
	r.state = Pulling
	startSeq := r.d.Session.Seq()
	s := r.scope()
	gen := r.gen
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	r.pullCancel = cancel
	started := r.d.Clock.Now()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		panels, err := r.d.Remote.ListPanels(ctx, s)
		var draws []json.RawMessage
		var drawErr error
		if err == nil && r.d.Drawings != nil {
			draws, drawErr = r.d.Remote.ListDrawings(ctx, s)
		}
		r.d.Loop.Post(func() {
			if gen != r.gen {
				return
			}
			r.state = Idle
			r.pullCancel = nil
			r.d.Metrics.Pull(err, r.d.Clock.Now().Sub(started))
			if err != nil {
				r.log.Warn("pull failed", "room", s.RoomID, "err", err)
				return
			}
			res := r.Merge(panels, startSeq)
			if drawErr != nil {
				r.log.Warn("drawing pull failed", "room", s.RoomID, "err", drawErr)
			} else if r.d.Drawings != nil {
				r.MergeDrawings(draws, startSeq)
			}
			r.log.Debug("pull merged", "added", res.Added, "removed", res.Removed, "refreshed", res.Refreshed, "skipped", res.Skipped, "invalid", res.Invalid)
		})
	}()
}

func (r *Reconciler) guarded(e *panel.Entity, startSeq uint64) bool {
	if e.DirtySince(startSeq) {
		return true
	}
	return r.d.Busy != nil && r.d.Busy(e.ID())
}

// Merge reconciles pulled panel records into the registry. Records fetched
// at startSeq never override panels edited later, panels with writes in
// flight, busy panels, or local deletes. Only community sessions prune
// panels missing remotely. Malformed records are skipped.
func (r *Reconciler) Merge(records []json.RawMessage, startSeq uint64) Result {
	var res Result
	s := r.scope()
	remote := make(map[string]domain.Panel, len(records))
	for _, raw := range records {
		p, err := domain.DecodePanel(raw)
		if err != nil {
			res.Invalid++
			r.log.Warn("skipping malformed panel", "err", err)
			continue
		}
		if (p.MuseumID != "" && p.MuseumID != s.MuseumID) || (p.RoomID != "" && p.RoomID != s.RoomID) {
			res.Invalid++
			r.log.Warn("skipping panel of another room", "panel", p.PanelID, "room", p.RoomID)
			continue
		}
		remote[p.PanelID] = p
	}

	ids := make([]string, 0, len(remote))
	for id := range remote {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := remote[id]
		if r.tombstones[id] {
			res.Skipped++
			continue
		}
		e, ok := r.d.Registry.Get(id)
		if !ok {
			if err := r.d.Place(p); err != nil {
				res.Invalid++
				r.log.Warn("cannot place pulled panel", "panel", id, "err", err)
				continue
			}
			res.Added++
			continue
		}
		if r.guarded(e, startSeq) {
			res.Skipped++
			continue
		}
		if refresh(e, p) {
			res.Refreshed++
		}
	}

	if r.d.Session.Pulls() {
		for _, id := range r.d.Registry.IDs() {
			if _, ok := remote[id]; ok {
				continue
			}
			e, _ := r.d.Registry.Get(id)
			if r.guarded(e, startSeq) {
				res.Skipped++
				continue
			}
			r.d.Drop(e)
			res.Removed++
		}
	}
	for id := range r.tombstones {
		if _, ok := remote[id]; !ok {
			delete(r.tombstones, id)
		}
	}

	r.d.Metrics.Reconcile("added", res.Added)
	r.d.Metrics.Reconcile("removed", res.Removed)
	r.d.Metrics.Reconcile("refreshed", res.Refreshed)
	r.d.Metrics.Reconcile("skipped", res.Skipped)
	r.d.Metrics.Reconcile("invalid", res.Invalid)
	return res
}

// refresh copies the non-positional fields of a pulled record.
func refresh(e *panel.Entity, p domain.Panel) bool {
	changed := false
	if c := p.Content(); c != e.Content() {
		e.ApplyContent(c)
		changed = true
	}
	if p.Spotlight != e.Spotlight() {
		e.SetSpotlight(p.Spotlight)
		changed = true
	}
	return changed
}

// MergeDrawings reconciles pulled drawings the same way as panels.
func (r *Reconciler) MergeDrawings(records []json.RawMessage, startSeq uint64) (added, removed int) {
	recs := make([]domain.Drawing, 0, len(records))
	for _, raw := range records {
		d, err := domain.DecodeDrawing(raw)
		if err != nil {
			r.log.Warn("skipping malformed drawing", "err", err)
			continue
		}
		recs = append(recs, d)
	}
	keep := func(id string) bool {
		return r.drawTombs[id] || r.drawPending[id] > 0 || r.drawSeq[id] > startSeq
	}
	if !r.d.Session.Pulls() {
		for _, d := range recs {
			if !keep(d.DrawingID) && r.d.Drawings.Add(d.DrawingID, d.Position(), d.Radius) {
				added++
			}
		}
		r.d.Metrics.Reconcile("drawings_added", added)
		return added, 0
	}
	added, removed = r.d.Drawings.Merge(recs, keep)
	remote := make(map[string]bool, len(recs))
	for _, d := range recs {
		remote[d.DrawingID] = true
	}
	for id := range r.drawTombs {
		if !remote[id] {
			delete(r.drawTombs, id)
		}
	}
	r.d.Metrics.Reconcile("drawings_added", added)
	r.d.Metrics.Reconcile("drawings_removed", removed)
	return added, removed
}
