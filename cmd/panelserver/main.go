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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"museumar/internal/crash"
	applog "museumar/internal/log"
	"museumar/internal/metrics"
	"museumar/internal/server"
	"museumar/internal/store"
	"museumar/internal/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(args []string) error {
	applog.Init(applog.FromEnv())
	defer crash.Recover(crash.Info{Binary: "panelserver"})
	l := applog.WithComponent("panelserver")

	fs := pflag.NewFlagSet("panelserver", pflag.ContinueOnError)
	addr := fs.String("addr", envOr("MAR_ADDR", ":8080"), "listen address")
	kind := fs.String("store", envOr("MAR_STORE", "memory"), "panel store: memory, sqlite or postgres")
	dsn := fs.String("dsn", os.Getenv("MAR_DSN"), "sqlite file path or postgres connection URL")
	devTokens := fs.Bool("dev-tokens", os.Getenv("MAR_DEV_TOKENS") == "1", "serve unauthenticated curator tokens (development only)")
	showVersion := fs.BoolP("version", "v", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Println("panelserver", version.String())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, *kind, *dsn)
	if err != nil {
		return fmt.Errorf("open %s store: %w", *kind, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			l.Error("store close failed", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	api := server.New(st, os.Getenv("MAR_AUTH_SECRET"), metrics.New(reg), reg)
	if *devTokens {
		api.AllowDevTokens()
	}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Info("listening", "addr", *addr, "store", *kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
