/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package metrics holds the Prometheus collectors of the client and server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "museumar"

type Metrics struct {
	pushes          *prometheus.CounterVec
	pulls           *prometheus.CounterVec
	pullDuration    prometheus.Histogram
	reconciled      *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "pushes_total",
			Help: "Remote writes by operation and result.",
		}, []string{"op", "result"}),
		pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "pulls_total",
			Help: "Remote pulls by result.",
		}, []string{"result"}),
		pullDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "sync", Name: "pull_duration_seconds",
			Help:    "Duration of remote pulls.",
			Buckets: prometheus.DefBuckets,
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sync", Name: "reconciled_total",
			Help: "Reconciliation outcomes per record.",
		}, []string{"kind"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "server", Name: "requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "server", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(m.pushes, m.pulls, m.pullDuration, m.reconciled, m.requests, m.requestDuration)
	}
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Push records the outcome of one remote write.
func (m *Metrics) Push(op string, err error) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(op, result(err)).Inc()
}

// Pull records one pull and its duration.
func (m *Metrics) Pull(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.pulls.WithLabelValues(result(err)).Inc()
	m.pullDuration.Observe(d.Seconds())
}

// Reconcile adds n outcomes of the given kind.
func (m *Metrics) Reconcile(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconciled.WithLabelValues(kind).Add(float64(n))
}

// Request records one served HTTP request.
func (m *Metrics) Request(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}
