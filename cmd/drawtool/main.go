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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"drawingtool/internal/bus"
	"drawingtool/internal/config"
	"drawingtool/internal/crash"
	"drawingtool/internal/domain"
	"drawingtool/internal/editor"
	"drawingtool/internal/export"
	"drawingtool/internal/imageio"
	applog "drawingtool/internal/log"
	"drawingtool/internal/scene"
	"drawingtool/internal/server"
	"drawingtool/internal/storage"
	"drawingtool/internal/telemetry"
	"drawingtool/internal/textedit"
	"drawingtool/internal/upload"
	"drawingtool/internal/version"
)

func usage() {
	fmt.Println("Drawing Tool")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  drawtool version|-v|--version              Show version")
	fmt.Println("  drawtool validate <file>                   Check a block payload")
	fmt.Println("  drawtool info <file>                       Print a summary of a block payload")
	fmt.Println("  drawtool export <file> <out> [preset]      Render a block (png, jpg, svg, json, pdf; preset web|print|thumb)")
	fmt.Println("  drawtool put <file> <block-id>             Upload inline images and store the block")
	fmt.Println("  drawtool token <value>                     Store the upload token in the OS keyring (empty removes it)")
	fmt.Println("  drawtool serve                             Serve blocks over HTTP")
}

func logOptions(c config.LoggingConfig) applog.Options {
	return applog.Options{Level: c.Level, Format: c.Format, AddSource: c.Source, File: c.File}
}

func main() {
	_ = godotenv.Load()
	cfg, cfgErr := config.Load()
	applog.Init(logOptions(cfg.Logging))
	l := applog.WithComponent("cli")
	defer crash.Recover("")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("Drawing Tool")
		fmt.Println(version.String())
	case "validate":
		need(args, 3, "validate requires <file>")
		if _, err := readBlock(args[2]); err != nil {
			fail(l, "invalid block", err)
		}
		fmt.Println("valid")
	case "info":
		need(args, 3, "info requires <file>")
		d, err := readBlock(args[2])
		if err != nil {
			fail(l, "read block", err)
		}
		ed, err := openEditor(ctx, cfg, blockName(args[2]), d, editor.Options{ReadOnly: true})
		if err != nil {
			fail(l, "load block", err)
		}
		defer ed.Destroy()
		printInfo(ed, d)
	case "export":
		need(args, 4, "export requires <file> and <out>")
		if err := runExport(ctx, cfg, args[2], args[3], args[4:]); err != nil {
			fail(l, "export failed", err)
		}
		fmt.Println("Wrote", args[3])
	case "put":
		need(args, 4, "put requires <file> and <block-id>")
		if err := runPut(ctx, cfg, args[2], args[3]); err != nil {
			fail(l, "put failed", err)
		}
		fmt.Println("Stored block", args[3])
	case "token":
		need(args, 3, "token requires <value>")
		if err := config.SetUploadToken(args[2]); err != nil {
			fail(l, "store token", err)
		}
		fmt.Println("Token updated")
	case "serve":
		if err := runServe(ctx, cfg); err != nil {
			fail(l, "serve failed", err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func need(args []string, n int, msg string) {
	if len(args) < n {
		fmt.Println(msg)
		usage()
		os.Exit(2)
	}
}

func fail(l *slog.Logger, msg string, err error) {
	l.Error(msg, slog.Any("err", err))
	fmt.Println("Error:", err)
	os.Exit(1)
}

func readBlock(path string) (domain.Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Data{}, err
	}
	return domain.ValidateDocument(raw)
}

// blockName derives a block id from a file name.
func blockName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

func openEditor(ctx context.Context, cfg config.AppConfig, blockID string, d domain.Data, o editor.Options) (*editor.Editor, error) {
	o.BlockID = blockID
	o.Data = d
	o.Config = &cfg
	o.Document = textedit.NewDocument()
	o.Loader = imageio.NewLoader(nil)
	return editor.New(ctx, o)
}

func printInfo(ed *editor.Editor, d domain.Data) {
	w, h := ed.Size()
	counts := map[scene.Kind]int{}
	links := 0
	for _, o := range ed.Objects() {
		counts[o.Kind]++
		if o.HasLink() {
			links++
		}
	}
	fmt.Printf("Block: %s\n", ed.BlockID())
	fmt.Printf("Canvas: %gx%g\n", w, h)
	fmt.Printf("Texts: %d (links: %d)\n", counts[scene.KindText], links)
	fmt.Printf("Images: %d placed, %d stored\n", counts[scene.KindImage], len(d.CanvasImages))
	if n := counts[scene.KindGeneric]; n > 0 {
		fmt.Printf("Other: %d\n", n)
	}
}

func runExport(ctx context.Context, cfg config.AppConfig, in, out string, rest []string) error {
	d, err := readBlock(in)
	if err != nil {
		return err
	}
	format, err := export.FormatFromPath(out)
	if err != nil {
		return err
	}
	opt := export.Options{Format: format}
	if len(rest) > 0 {
		p, err := export.ForPreset(export.Preset(rest[0]))
		if err != nil {
			return err
		}
		if p.Format != format {
			return fmt.Errorf("preset %s writes %s, not %s", rest[0], p.Format, format)
		}
		opt = p
	}
	ed, err := openEditor(ctx, cfg, blockName(in), d, editor.Options{ReadOnly: true})
	if err != nil {
		return err
	}
	defer ed.Destroy()

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := ed.Export(f, opt); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// runPut loads a block, uploads inline image data when an upload URL is
// configured and stores the result.
func runPut(ctx context.Context, cfg config.AppConfig, in, blockID string) error {
	d, err := readBlock(in)
	if err != nil {
		return err
	}
	st, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	o := editor.Options{
		Persist:  storage.Persister(st),
		Notifier: editor.NotifierFunc(func(n bus.Notify) { fmt.Println(n.Message) }),
	}
	if cfg.Upload.URL != "" {
		tok, err := config.UploadToken()
		if err != nil {
			applog.WithComponent("cli").Warn("upload token unavailable", slog.Any("err", err))
		}
		o.Uploader = upload.NewClient(upload.Options{
			URL:        cfg.Upload.URL,
			Token:      tok,
			Timeout:    cfg.Upload.Timeout(),
			RatePerSec: cfg.Upload.RatePerSec,
			Burst:      cfg.Upload.Burst,
		}).Func()
	}
	ed, err := openEditor(ctx, cfg, blockID, d, o)
	if err != nil {
		return err
	}
	defer ed.Destroy()
	ed.SetDirty(true)
	_, err = ed.Save(ctx)
	return err
}

func runServe(ctx context.Context, cfg config.AppConfig) error {
	l := applog.WithComponent("cli")
	st, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if path, err := config.ConfigPath(); err == nil {
		go func() {
			err := config.Watch(ctx, path, func(c config.AppConfig) {
				applog.Init(logOptions(c.Logging))
			})
			if err != nil {
				l.Warn("config watch stopped", slog.Any("err", err))
			}
		}()
	}

	srv, err := server.New(server.Options{
		Store:   st,
		Config:  &cfg,
		Metrics: telemetry.Default(),
		Loader:  imageio.NewLoader(nil),
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
