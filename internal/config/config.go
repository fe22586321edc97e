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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied after the file.
// Secrets (the upload token) are kept in the OS keyring, see keyring.go.
type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	Canvas        CanvasConfig   `yaml:"canvas"`
	Text          TextConfig     `yaml:"text"`
	Guides        GuidesConfig   `yaml:"guides"`
	Autosave      AutosaveConfig `yaml:"autosave"`
	Link          LinkConfig     `yaml:"link"`
	Upload        UploadConfig   `yaml:"upload"`
	Storage       StorageConfig  `yaml:"storage"`
	Server        ServerConfig   `yaml:"server"`
	Logging       LoggingConfig  `yaml:"logging"`
}

type CanvasConfig struct {
	Width            float64 `yaml:"width"`
	Height           float64 `yaml:"height"`
	ImageScaleFactor float64 `yaml:"image_scale_factor"`
	MinObjectWidth   float64 `yaml:"min_object_width"`
	MinObjectHeight  float64 `yaml:"min_object_height"`
}

type TextConfig struct {
	Font            string  `yaml:"font"`
	FontSize        float64 `yaml:"font_size"`
	Color           string  `yaml:"color"`
	Width           float64 `yaml:"width"`
	Align           string  `yaml:"align"`
	Wrap            string  `yaml:"wrap"`
	LineHeight      float64 `yaml:"line_height"`
	Padding         float64 `yaml:"padding"`
	TextareaPadding float64 `yaml:"textarea_padding"`
	Placeholder     string  `yaml:"placeholder"`
}

type GuidesConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Tolerance float64 `yaml:"tolerance"`
}

type AutosaveConfig struct {
	DelayMs int `yaml:"delay_ms"`
}

type LinkConfig struct {
	Color      string `yaml:"color"`
	Decoration string `yaml:"decoration"`
}

type UploadConfig struct {
	URL         string  `yaml:"url"`
	TimeoutMs   int     `yaml:"timeout_ms"`
	RatePerSec  float64 `yaml:"rate_per_sec"`
	Burst       int     `yaml:"burst"`
	Concurrency int     `yaml:"concurrency"`
	// Token is not stored on disk; it lives in the OS keyring.
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" | "postgres"
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// Defaults mirrors the values the drawing tool has always shipped with.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Canvas:        CanvasConfig{Width: 1050, Height: 500, ImageScaleFactor: 0.8, MinObjectWidth: 20, MinObjectHeight: 20},
		Text: TextConfig{
			Font: "Open Sans, sans-serif", FontSize: 16, Color: "#000000", Width: 150,
			Align: "left", Wrap: "word", LineHeight: 1.6, Padding: 0, TextareaPadding: 5,
			Placeholder: "Click to edit",
		},
		Guides:   GuidesConfig{Enabled: true, Tolerance: 5},
		Autosave: AutosaveConfig{DelayMs: 1000},
		Link:     LinkConfig{Color: "#0066cc", Decoration: "underline"},
		Upload:   UploadConfig{TimeoutMs: 15000, RatePerSec: 4, Burst: 4, Concurrency: 4},
		Storage:  StorageConfig{Driver: "sqlite", Path: "drawingtool.sqlite"},
		Server:   ServerConfig{Addr: ":8080"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath     = "DT_CONFIG"
	EnvCanvasHeight   = "DT_CANVAS_HEIGHT"
	EnvAutosaveDelay  = "DT_AUTOSAVE_DELAY_MS"
	EnvGuides         = "DT_GUIDES"
	EnvUploadURL      = "DT_UPLOAD_URL"
	EnvStorageDriver  = "DT_STORAGE_DRIVER"
	EnvStoragePath    = "DT_STORAGE_PATH"
	EnvStorageDSN     = "DT_PG_DSN"
	EnvServerAddr     = "DT_SERVER_ADDR"
	EnvLogLevel       = "DT_LOG_LEVEL"
	EnvLogFormat      = "DT_LOG_FORMAT"
	EnvLogSource      = "DT_LOG_SOURCE"
	EnvLogFile        = "DT_LOG_FILE"
	currentConfigVers = 1
)

// ConfigPath returns the per-user config file path. DT_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "DrawingTool")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "DrawingTool")
	default:
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(home, ".config", "drawingtool")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present) over the defaults and applies env overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path. A missing file is not an error.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		// Unmarshal onto the defaults so absent keys keep their default value.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	cfg.normalize()
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// normalize replaces nonsensical values with defaults.
func (c *AppConfig) normalize() {
	d := Defaults()
	if c.ConfigVersion == 0 {
		c.ConfigVersion = currentConfigVers
	}
	if c.Canvas.Width <= 0 {
		c.Canvas.Width = d.Canvas.Width
	}
	if c.Canvas.Height <= 0 {
		c.Canvas.Height = d.Canvas.Height
	}
	if c.Canvas.ImageScaleFactor <= 0 || c.Canvas.ImageScaleFactor > 1 {
		c.Canvas.ImageScaleFactor = d.Canvas.ImageScaleFactor
	}
	if c.Canvas.MinObjectWidth < 0 {
		c.Canvas.MinObjectWidth = d.Canvas.MinObjectWidth
	}
	if c.Canvas.MinObjectHeight < 0 {
		c.Canvas.MinObjectHeight = d.Canvas.MinObjectHeight
	}
	if c.Text.FontSize <= 0 {
		c.Text.FontSize = d.Text.FontSize
	}
	if c.Text.LineHeight <= 0 {
		c.Text.LineHeight = d.Text.LineHeight
	}
	if c.Guides.Tolerance <= 0 {
		c.Guides.Tolerance = d.Guides.Tolerance
	}
	if c.Autosave.DelayMs <= 0 {
		c.Autosave.DelayMs = d.Autosave.DelayMs
	}
	if c.Upload.Concurrency <= 0 {
		c.Upload.Concurrency = d.Upload.Concurrency
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

func applyEnvOverrides(cfg *AppConfig) {
	if v, ok := envFloat(EnvCanvasHeight); ok {
		cfg.Canvas.Height = v
	}
	if v, ok := envFloat(EnvAutosaveDelay); ok {
		cfg.Autosave.DelayMs = int(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvGuides)); v != "" {
		cfg.Guides.Enabled = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvUploadURL)); v != "" {
		cfg.Upload.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		cfg.Storage.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func envFloat(key string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// AutosaveDelay returns the debounce delay for autosave.
func (a AutosaveConfig) AutosaveDelay() time.Duration {
	if a.DelayMs <= 0 {
		return time.Duration(Defaults().Autosave.DelayMs) * time.Millisecond
	}
	return time.Duration(a.DelayMs) * time.Millisecond
}

// Timeout returns the per-request upload timeout.
func (u UploadConfig) Timeout() time.Duration {
	if u.TimeoutMs <= 0 {
		return time.Duration(Defaults().Upload.TimeoutMs) * time.Millisecond
	}
	return time.Duration(u.TimeoutMs) * time.Millisecond
}
