/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes stored drawing blocks over HTTP for host pages:
// load, save, validate, history and server-side rendering.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"drawingtool/internal/config"
	"drawingtool/internal/domain"
	"drawingtool/internal/editor"
	"drawingtool/internal/export"
	"drawingtool/internal/imageio"
	applog "drawingtool/internal/log"
	"drawingtool/internal/storage"
	"drawingtool/internal/telemetry"
	"drawingtool/internal/textedit"
	"drawingtool/internal/textlayout"
	"drawingtool/internal/version"
)

// MaxBodyBytes caps block payloads accepted by PUT and validate.
const MaxBodyBytes = 32 << 20

const defaultHistory = 10

// Options configures New. Store is required.
type Options struct {
	Store   storage.Store
	Config  *config.AppConfig
	Metrics *telemetry.Metrics
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	Loader   *imageio.Loader
	Fonts    textlayout.Provider
	// AllowedOrigins for CORS; "*" when empty.
	AllowedOrigins []string
}

// Server routes block requests to the store.
type Server struct {
	store    storage.Store
	cfg      config.AppConfig
	metrics  *telemetry.Metrics
	gatherer prometheus.Gatherer
	loader   *imageio.Loader
	fonts    textlayout.Provider
	origins  []string
	router   *mux.Router
	log      *slog.Logger
}

func New(o Options) (*Server, error) {
	if o.Store == nil {
		return nil, errors.New("server: store is required")
	}
	s := &Server{
		store:    o.Store,
		cfg:      config.Defaults(),
		metrics:  o.Metrics,
		gatherer: o.Gatherer,
		loader:   o.Loader,
		fonts:    o.Fonts,
		origins:  o.AllowedOrigins,
		log:      applog.WithComponent("server"),
	}
	if o.Config != nil {
		s.cfg = *o.Config
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(s.monitor)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/validate", s.validate).Methods(http.MethodPost)
	api.HandleFunc("/blocks", s.listBlocks).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id}", s.getBlock).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id}", s.putBlock).Methods(http.MethodPut)
	api.HandleFunc("/blocks/{id}", s.deleteBlock).Methods(http.MethodDelete)
	api.HandleFunc("/blocks/{id}/history", s.history).Methods(http.MethodGet)
	api.HandleFunc("/blocks/{id}/render.{ext:png|jpg|jpeg|svg|pdf}", s.render).Methods(http.MethodGet)
	s.router = r
}

// Handler returns the router wrapped in recovery, access logging and CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}), handlers.PrintRecoveryStack(false))(h)
	h = handlers.CombinedLoggingHandler(accessWriter{applog.WithComponent("http")}, h)
	return handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(h)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// monitor records request counts and durations per route template.
func (s *Server) monitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &telemetry.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.URL.Path
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.metrics.Request(route, r.Method, rec.Status, time.Since(start))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.String()})
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	if _, err := domain.ValidateDocument(raw); err != nil {
		writeJSON(w, http.StatusOK, validateResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: true})
}

type blockInfo struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) listBlocks(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, "list blocks", err)
		return
	}
	out := make([]blockInfo, 0, len(list))
	for _, b := range list {
		out = append(out, blockInfo{ID: b.ID, Version: b.Version, UpdatedAt: b.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getBlock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.fail(w, "get block", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) putBlock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	d, err := domain.ValidateDocument(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Put(r.Context(), id, d); err != nil {
		s.fail(w, "put block", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, "delete block", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type snapshot struct {
	Version int64       `json:"version"`
	SavedAt time.Time   `json:"savedAt"`
	Data    domain.Data `json:"data"`
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	n := defaultHistory
	if v := r.URL.Query().Get("n"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid n %q", v))
			return
		}
		n = i
	}
	snaps, err := s.store.History(r.Context(), mux.Vars(r)["id"], n)
	if err != nil {
		s.fail(w, "history", err)
		return
	}
	out := make([]snapshot, 0, len(snaps))
	for _, sn := range snaps {
		out = append(out, snapshot{Version: sn.Version, SavedAt: sn.SavedAt, Data: sn.Data})
	}
	writeJSON(w, http.StatusOK, out)
}

var contentTypes = map[export.Format]string{
	export.FormatPNG:  "image/png",
	export.FormatJPEG: "image/jpeg",
	export.FormatSVG:  "image/svg+xml",
	export.FormatPDF:  "application/pdf",
}

// render loads the block into a read-only editor and writes it in the format
// named by the extension. ?width= and ?height= scale raster output.
func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	format, err := export.FormatFromPath("render." + vars["ext"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opt := export.Options{Format: format, Provider: s.fonts}
	q := r.URL.Query()
	for key, dst := range map[string]*int{"width": &opt.Width, "height": &opt.Height} {
		if v := q.Get(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil || i <= 0 || i > 8192 {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid %s %q", key, v))
				return
			}
			*dst = i
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout())
	defer cancel()
	d, err := s.store.Get(ctx, vars["id"])
	if err != nil {
		s.fail(w, "render", err)
		return
	}
	cfg := s.cfg
	ed, err := editor.New(ctx, editor.Options{
		Data:     d,
		ReadOnly: true,
		BlockID:  vars["id"],
		Loader:   s.loader,
		Config:   &cfg,
		Metrics:  s.metrics,
		Document: textedit.NewDocument(),
		Fonts:    s.fonts,
	})
	if err != nil {
		s.fail(w, "render", err)
		return
	}
	defer ed.Destroy()

	w.Header().Set("Content-Type", contentTypes[format])
	if err := ed.Export(w, opt); err != nil {
		s.log.Error("render failed", slog.String("id", vars["id"]), slog.Any("err", err))
	}
}

// fail maps store errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrEmptyBlockID):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.log.Error(op+" failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func readBody(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxBodyBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", MaxBodyBytes)
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// accessWriter turns access log lines into log records.
type accessWriter struct{ l *slog.Logger }

func (a accessWriter) Write(p []byte) (int, error) {
	a.l.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

type recoveryLogger struct{ l *slog.Logger }

func (r recoveryLogger) Println(v ...interface{}) {
	r.l.Error("handler panic", slog.String("panic", fmt.Sprint(v...)))
}
