/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Snapped("vertical", "horizontal")
	m.Snapped()
	m.Saved(ResultOK, 10*time.Millisecond)
	m.Saved(ResultPartial, 10*time.Millisecond)
	m.UploadFailed()
	m.Autosaved()
	m.Request("/api/blocks/{id}", http.MethodGet, 200, time.Millisecond)

	if got := testutil.ToFloat64(m.Snaps); got != 1 {
		t.Fatalf("snaps = %v", got)
	}
	if got := testutil.ToFloat64(m.Guides.WithLabelValues("vertical")); got != 1 {
		t.Fatalf("vertical guides = %v", got)
	}
	if got := testutil.ToFloat64(m.Saves.WithLabelValues(ResultPartial)); got != 1 {
		t.Fatalf("partial saves = %v", got)
	}
	if got := testutil.ToFloat64(m.UploadFailures); got != 1 {
		t.Fatalf("upload failures = %v", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("/api/blocks/{id}", "GET", "200")); got != 1 {
		t.Fatalf("requests = %v", got)
	}
	if n := testutil.CollectAndCount(m.SaveDuration); n != 1 {
		t.Fatalf("histogram series = %d", n)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Snapped("vertical")
	m.Saved(ResultError, time.Second)
	m.UploadFailed()
	m.Autosaved()
	m.Request("/", "GET", 500, 0)
}

func TestUploadCrash(t *testing.T) {
	var mu sync.Mutex
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = b
		mu.Unlock()
	}))
	defer srv.Close()

	if err := UploadCrash(context.Background(), ReportConfig{URL: srv.URL}, []byte("x")); err != nil {
		t.Fatalf("disabled upload should be a no-op: %v", err)
	}
	cfg := ReportConfig{OptIn: true, URL: srv.URL, Timeout: time.Second}
	if err := UploadCrash(context.Background(), cfg, []byte("STACKTRACE")); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if string(got) != "STACKTRACE" {
		t.Fatalf("server got %q", got)
	}
}

func TestUploadCrashError(t *testing.T) {
	cfg := ReportConfig{OptIn: true, URL: "http://127.0.0.1:1/crash", Timeout: 50 * time.Millisecond}
	if err := UploadCrash(context.Background(), cfg, []byte("oops")); err == nil {
		t.Fatalf("expected an error for an unreachable endpoint")
	}
}

func TestReportConfigFromEnv(t *testing.T) {
	t.Setenv("DT_CRASH_UPLOAD_OPT_IN", "yes")
	t.Setenv("DT_CRASH_UPLOAD_URL", "http://example.invalid/crash")
	t.Setenv("DT_CRASH_UPLOAD_TIMEOUT_MS", "100")
	cfg := ReportConfigFromEnv()
	if !cfg.Enabled() || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
