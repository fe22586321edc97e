/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"drawingtool/internal/domain"
	"drawingtool/internal/storage"
	"drawingtool/internal/telemetry"
	"drawingtool/internal/textlayout"
)

const sceneJSON = `{"attrs":{},"className":"Layer","children":[{"attrs":{"id":"t1","name":"object","x":10,"y":10,"width":150,"text":"Hello"},"className":"Text"}]}`

type fixture struct {
	srv     *httptest.Server
	store   *storage.SQLite
	metrics *telemetry.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "blocks.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)
	s, err := New(Options{Store: st, Metrics: m, Gatherer: reg, Fonts: textlayout.BasicProvider{}})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return fixture{srv: ts, store: st, metrics: m}
}

func (f fixture) do(t *testing.T, method, path string, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func payload(t *testing.T, d domain.Data) string {
	t.Helper()
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["status"] != "ok" {
		t.Fatalf("body = %v err=%v", body, err)
	}
}

func TestBlockLifecycle(t *testing.T) {
	f := newFixture(t)
	d := domain.Data{CanvasJSON: domain.StringPtr(sceneJSON), CanvasHeight: 600}

	if resp := f.do(t, http.MethodGet, "/api/blocks/b1", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing block status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPut, "/api/blocks/b1", payload(t, d)); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("put status = %d", resp.StatusCode)
	}
	d.CanvasHeight = 700
	if resp := f.do(t, http.MethodPut, "/api/blocks/b1", payload(t, d)); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("second put status = %d", resp.StatusCode)
	}

	resp := f.do(t, http.MethodGet, "/api/blocks/b1", "")
	var got domain.Data
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.CanvasHeight != 700 || got.CanvasJSON == nil || *got.CanvasJSON != sceneJSON {
		t.Fatalf("got %+v", got)
	}

	resp = f.do(t, http.MethodGet, "/api/blocks/b1/history?n=5", "")
	var hist []snapshot
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].Data.CanvasHeight != 700 || hist[1].Data.CanvasHeight != 600 {
		t.Fatalf("history = %+v", hist)
	}
	if resp := f.do(t, http.MethodGet, "/api/blocks/b1/history?n=x", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad n status = %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/api/blocks", "")
	var list []blockInfo
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil || len(list) != 1 || list[0].ID != "b1" {
		t.Fatalf("list = %+v err=%v", list, err)
	}

	if resp := f.do(t, http.MethodDelete, "/api/blocks/b1", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodDelete, "/api/blocks/b1", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d", resp.StatusCode)
	}
}

func TestPutRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"malformed scene": `{"canvasJson":"{oops","canvasImages":[],"canvasHeight":500}`,
		"schema":          `{"canvasJson":null,"canvasImages":[{"id":"x"}],"canvasHeight":500}`,
		"negative height": `{"canvasJson":null,"canvasImages":[],"canvasHeight":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if resp := f.do(t, http.MethodPut, "/api/blocks/b1", body); resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d", resp.StatusCode)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	f := newFixture(t)
	for body, want := range map[string]bool{
		payload(t, domain.Data{CanvasJSON: domain.StringPtr(sceneJSON)}): true,
		`{"canvasJson":"not json"}`:                                       false,
	} {
		resp := f.do(t, http.MethodPost, "/api/validate", body)
		var v validateResponse
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			t.Fatal(err)
		}
		if v.Valid != want {
			t.Fatalf("validate(%s) = %+v", body, v)
		}
	}
}

func TestRenderPNG(t *testing.T) {
	f := newFixture(t)
	d := domain.Data{CanvasJSON: domain.StringPtr(sceneJSON), CanvasHeight: 400}
	f.do(t, http.MethodPut, "/api/blocks/b1", payload(t, d))

	resp := f.do(t, http.MethodGet, "/api/blocks/b1/render.png?width=525", "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("status=%d type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	raw, _ := io.ReadAll(resp.Body)
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 525 || b.Dy() != 200 {
		t.Fatalf("bounds = %v", b)
	}

	resp = f.do(t, http.MethodGet, "/api/blocks/b1/render.svg", "")
	raw, _ = io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "Hello") {
		t.Fatalf("svg missing text")
	}
	if resp := f.do(t, http.MethodGet, "/api/blocks/b1/render.png?width=0", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad width status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/api/blocks/nope/render.png", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing render status = %d", resp.StatusCode)
	}
}

func TestMetricsUseRouteTemplates(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/blocks/a", "")
	f.do(t, http.MethodGet, "/api/blocks/b", "")
	n := testutil.ToFloat64(f.metrics.Requests.WithLabelValues("/api/blocks/{id}", http.MethodGet, "404"))
	if n != 2 {
		t.Fatalf("requests counted = %v", n)
	}
	resp := f.do(t, http.MethodGet, "/metrics", "")
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "drawtool_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/blocks/b1", nil)
	req.Header.Set("Origin", "https://host.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("missing CORS headers: %v", resp.Header)
	}
}
