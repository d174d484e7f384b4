/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"museumar/internal/arview"
	"museumar/internal/backend"
	"museumar/internal/clock"
	"museumar/internal/config"
	"museumar/internal/crash"
	"museumar/internal/domain"
	applog "museumar/internal/log"
	"museumar/internal/mainloop"
	"museumar/internal/metrics"
	"museumar/internal/scene"
	"museumar/internal/telemetry"
	"museumar/internal/version"
)

func usage() {
	fmt.Println("MuseumAR panel client")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  museumar version|-v|--version               Show version")
	fmt.Println("  museumar login <name>                       Get a curator token and store it in the keychain")
	fmt.Println("  museumar token <museumID> <roomID>          Open a community session and store its token")
	fmt.Println("  museumar watch <marker> [--mode m] [--for d] Join the room headless and log reconciliation")
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func main() {
	cfg, curatorToken, err := config.Load()
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	l := applog.WithComponent("cli")
	if err != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", err))
	}
	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	telemetry.NewDefault(tcfg)

	var coord *arview.Coordinator
	defer crash.Recover(crash.Info{Binary: "museumar", State: func() string {
		if coord == nil {
			return "no session"
		}
		return coord.Summary()
	}})

	args := os.Args
	if len(args) < 2 {
		usage()
		return
	}
	client := backend.NewClientTimeout(cfg.Backend.BaseURL, curatorToken, cfg.Backend.Timeout())
	ctx := context.Background()
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println(version.String())
	case "login":
		if len(args) < 3 {
			fmt.Println("login requires <name>")
			usage()
			os.Exit(2)
		}
		tok, exp, err := client.CuratorToken(ctx, args[2])
		if err != nil {
			fail(l, "login failed", err)
		}
		if err := config.Save(cfg, tok); err != nil {
			fail(l, "saving token failed", err)
		}
		fmt.Printf("Curator token stored, valid until %s\n", exp.Local().Format(time.RFC1123))
	case "token":
		if len(args) < 4 {
			fmt.Println("token requires <museumID> and <roomID>")
			usage()
			os.Exit(2)
		}
		museumID, roomID := args[2], args[3]
		tok, err := client.CreateCommunitySession(ctx, museumID, roomID)
		if err != nil {
			fail(l, "community session failed", err)
		}
		if err := config.SaveCommunityToken(museumID, roomID, tok); err != nil {
			fail(l, "saving token failed", err)
		}
		l.Info("community session created", slog.String("museum", museumID), slog.String("room", roomID))
		fmt.Println("Community session token:", tok)
	case "watch":
		if err := watch(cfg, client, args[2:], &coord); err != nil {
			fail(l, "watch failed", err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

type watchFlags struct {
	marker string
	mode   string
	fps    int
	report time.Duration
	limit  time.Duration
}

const maxFPS = 120

// parseWatch reads the watch flags. Tickers need positive periods, so
// non-positive rates fall back to their defaults.
func parseWatch(args []string) (watchFlags, error) {
	var wf watchFlags
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	fs.StringVar(&wf.mode, "mode", "community", "session mode: private, community or curator")
	fs.IntVar(&wf.fps, "fps", 10, "frame ticks per second")
	fs.DurationVar(&wf.report, "report", 10*time.Second, "how often to log the session summary")
	fs.DurationVar(&wf.limit, "for", 0, "stop after this long (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return wf, err
	}
	if fs.NArg() < 1 {
		return wf, errors.New("watch requires <marker>")
	}
	wf.marker = fs.Arg(0)
	if wf.fps <= 0 {
		wf.fps = 10
	}
	if wf.fps > maxFPS {
		wf.fps = maxFPS
	}
	if wf.report <= 0 {
		wf.report = 10 * time.Second
	}
	return wf, nil
}

// watch joins a room without a camera: a scene.Memory stands in for the
// render engine and frame ticks come from a ticker.
func watch(cfg config.AppConfig, client *backend.Client, args []string, out **arview.Coordinator) error {
	wf, err := parseWatch(args)
	if err != nil {
		return err
	}
	marker := wf.marker
	room, ok := cfg.Room(marker)
	if !ok {
		return fmt.Errorf("%w: %q (add it under rooms: in the config file)", arview.ErrUnknownRoom, marker)
	}
	mode := domain.ParseMode(wf.mode)
	token := ""
	if mode == domain.ModeCommunity {
		t, err := config.CommunityToken(room.MuseumID, room.RoomID)
		if err != nil {
			return err
		}
		if t == "" {
			return fmt.Errorf("no community token for %s/%s; run: museumar token %s %s", room.MuseumID, room.RoomID, room.MuseumID, room.RoomID)
		}
		token = t
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if wf.limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wf.limit)
		defer cancel()
	}

	clk := clock.Real()
	loop := mainloop.New(clk)
	r := scene.NewMemory()
	coord := arview.New(arview.Deps{
		Renderer: r,
		Loop:     loop,
		Remote:   client,
		Metrics:  metrics.New(nil),
		Events:   telemetry.Default(),
	}, arview.OptionsFrom(cfg))
	*out = coord
	l := applog.WithRoom(applog.WithComponent("watch"), room.MuseumID, room.RoomID)

	started := make(chan error, 1)
	loop.Post(func() {
		if err := coord.SelectMode(mode, token); err != nil {
			started <- err
			return
		}
		anchor := r.CreateNode(scene.NodeSpec{Kind: scene.KindGroup, Name: "anchor:" + marker})
		coord.OnAnchorAdded(marker, anchor)
		if !coord.Session().Running() {
			started <- fmt.Errorf("session for %q did not start", marker)
			return
		}
		started <- nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error {
		select {
		case err := <-started:
			return err
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		frames := clk.NewTicker(time.Second / time.Duration(wf.fps))
		defer frames.Stop()
		summary := clk.NewTicker(wf.report)
		defer summary.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-frames.C:
				loop.Post(func() { coord.OnFrameTick(now) })
			case <-summary.C:
				loop.Post(func() { l.Info("session", "summary", coord.Summary()) })
			}
		}
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	// the loop has stopped; finish on this goroutine
	loop.Drain()
	coord.EndSession()
	coord.Reconciler().Wait()
	flush, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	telemetry.Default().Flush(flush)
	return err
}
