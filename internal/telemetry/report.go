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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	applog "drawingtool/internal/log"
)

// ReportConfig controls crash report uploads. Uploads are opt-in.
//
// Environment variables (read by ReportConfigFromEnv):
// - DT_CRASH_UPLOAD_OPT_IN: "1", "true", "yes" to enable
// - DT_CRASH_UPLOAD_URL: URL to POST crash reports to
// - DT_CRASH_UPLOAD_TIMEOUT_MS: request timeout, default 1500ms
type ReportConfig struct {
	OptIn   bool
	URL     string
	Timeout time.Duration
}

func ReportConfigFromEnv() ReportConfig {
	cfg := ReportConfig{
		OptIn:   parseBool(os.Getenv("DT_CRASH_UPLOAD_OPT_IN")),
		URL:     strings.TrimSpace(os.Getenv("DT_CRASH_UPLOAD_URL")),
		Timeout: 1500 * time.Millisecond,
	}
	if ms := strings.TrimSpace(os.Getenv("DT_CRASH_UPLOAD_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Enabled reports whether reports will be sent.
func (c ReportConfig) Enabled() bool { return c.OptIn && c.URL != "" }

// UploadCrash posts report to the configured URL. It is a no-op when disabled.
func UploadCrash(ctx context.Context, cfg ReportConfig, report []byte) error {
	if !cfg.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(report))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		applog.WithComponent("telemetry").Debug("crash upload failed", slog.Any("err", err))
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("crash upload: %s", resp.Status)
	}
	return nil
}
