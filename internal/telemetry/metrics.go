/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry exposes Prometheus collectors for the drawing tool and an
// opt-in crash report uploader.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Save results.
const (
	ResultOK      = "ok"
	ResultPartial = "partial" // saved, but at least one upload failed
	ResultError   = "error"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Snaps          prometheus.Counter
	Guides         *prometheus.CounterVec
	Saves          *prometheus.CounterVec
	UploadFailures prometheus.Counter
	AutosaveRuns   prometheus.Counter
	SaveDuration   prometheus.Histogram
	Requests       *prometheus.CounterVec
	RequestTime    *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Snaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drawtool_snaps_total",
			Help: "Drag-move ticks that snapped to at least one guide",
		}),
		Guides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drawtool_guides_total",
			Help: "Guides emitted during drags",
		}, []string{"orientation"}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drawtool_saves_total",
			Help: "Save attempts by result",
		}, []string{"result"}),
		UploadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drawtool_upload_failures_total",
			Help: "Image uploads that failed",
		}),
		AutosaveRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "drawtool_autosave_runs_total",
			Help: "Debounced autosaves that fired",
		}),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drawtool_save_duration_seconds",
			Help:    "Duration of save calls including uploads",
			Buckets: prometheus.DefBuckets,
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drawtool_http_requests_total",
			Help: "HTTP requests by route template, method and status",
		}, []string{"route", "method", "status"}),
		RequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "drawtool_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	if reg != nil {
		reg.MustRegister(m.Snaps, m.Guides, m.Saves, m.UploadFailures, m.AutosaveRuns,
			m.SaveDuration, m.Requests, m.RequestTime)
	}
	return m
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns the collectors registered with the global Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() { defaultMetrics = NewMetrics(prometheus.DefaultRegisterer) })
	return defaultMetrics
}

// Snapped records one drag tick and the orientations of the guides it produced.
func (m *Metrics) Snapped(orientations ...string) {
	if m == nil || len(orientations) == 0 {
		return
	}
	m.Snaps.Inc()
	for _, o := range orientations {
		m.Guides.WithLabelValues(o).Inc()
	}
}

func (m *Metrics) Saved(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Saves.WithLabelValues(result).Inc()
	m.SaveDuration.Observe(d.Seconds())
}

func (m *Metrics) UploadFailed() {
	if m != nil {
		m.UploadFailures.Inc()
	}
}

func (m *Metrics) Autosaved() {
	if m != nil {
		m.AutosaveRuns.Inc()
	}
}

// Request records a served HTTP request.
func (m *Metrics) Request(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestTime.WithLabelValues(route, method).Observe(d.Seconds())
}

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}
