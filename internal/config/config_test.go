/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	d := Defaults()
	if cfg.Canvas != d.Canvas || cfg.Guides != d.Guides || cfg.Link != d.Link {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Autosave.AutosaveDelay() != time.Second {
		t.Fatalf("autosave delay = %v", cfg.Autosave.AutosaveDelay())
	}
}

func TestLoadFileKeepsDefaultsForAbsentKeys(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("canvas:\n  height: 700\nguides:\n  tolerance: 8\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Canvas.Height != 700 || cfg.Guides.Tolerance != 8 {
		t.Fatalf("file values not applied: %+v %+v", cfg.Canvas, cfg.Guides)
	}
	if cfg.Canvas.Width != 1050 || cfg.Text.FontSize != 16 || !cfg.Guides.Enabled {
		t.Fatalf("defaults lost for absent keys: %+v", cfg)
	}
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte("canvas: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvCanvasHeight, "900")
	t.Setenv(EnvAutosaveDelay, "2000")
	t.Setenv(EnvGuides, "off")
	t.Setenv(EnvUploadURL, "https://upload.test/api")
	t.Setenv(EnvLogLevel, "ERROR")
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Canvas.Height != 900 || cfg.Autosave.DelayMs != 2000 || cfg.Guides.Enabled {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.Upload.URL != "https://upload.test/api" || cfg.Logging.Level != "error" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Upload, cfg.Logging)
	}
}

func TestNormalizeRepairsValues(t *testing.T) {
	cfg := Defaults()
	cfg.Canvas.ImageScaleFactor = 3
	cfg.Guides.Tolerance = -1
	cfg.Text.LineHeight = 0
	cfg.normalize()
	d := Defaults()
	if cfg.Canvas.ImageScaleFactor != d.Canvas.ImageScaleFactor || cfg.Guides.Tolerance != 5 || cfg.Text.LineHeight != 1.6 {
		t.Fatalf("normalize did not repair: %+v", cfg)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Defaults()
	cfg.Link.Color = "#ff0000"
	if err := Save(p, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Link.Color != "#ff0000" {
		t.Fatalf("round trip lost link color: %+v", got.Link)
	}
}

func TestConfigPathEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/x/dt.yaml")
	p, err := ConfigPath()
	if err != nil || p != "/tmp/x/dt.yaml" {
		t.Fatalf("ConfigPath = %q, %v", p, err)
	}
}

func TestUploadTokenKeyring(t *testing.T) {
	keyring.MockInit()
	if tok, err := UploadToken(); err != nil || tok != "" {
		t.Fatalf("expected empty token, got %q %v", tok, err)
	}
	if err := SetUploadToken("s3cret"); err != nil {
		t.Fatalf("SetUploadToken: %v", err)
	}
	if tok, _ := UploadToken(); tok != "s3cret" {
		t.Fatalf("token = %q", tok)
	}
	if err := SetUploadToken(""); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	if tok, _ := UploadToken(); tok != "" {
		t.Fatalf("token not cleared: %q", tok)
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte("canvas:\n  height: 600\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan AppConfig, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, p, func(c AppConfig) { got <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(p, []byte("canvas:\n  height: 800\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-got:
			if c.Canvas.Height == 800 {
				cancel()
				if err := <-done; err != nil {
					t.Fatalf("Watch returned %v", err)
				}
				return
			}
		case <-deadline:
			t.Fatalf("no reload observed")
		}
	}
}
