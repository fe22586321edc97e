/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imageio resolves image sources (data URLs, http(s) URLs, files)
// into decoded pixels and sizes them for placement.
package imageio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	applog "drawingtool/internal/log"
)

var (
	ErrNotImage = errors.New("source is not an image")
	ErrTooLarge = errors.New("image exceeds size limit")
)

// DefaultMaxBytes caps how much of a source is read.
const DefaultMaxBytes = 32 << 20

// Loader fetches and decodes image sources.
type Loader struct {
	Client   *http.Client
	MaxBytes int64
	log      *slog.Logger
}

func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{Client: client, MaxBytes: DefaultMaxBytes, log: applog.WithComponent("imageio")}
}

// Load decodes src. It returns the image and the registered format name.
func (l *Loader) Load(ctx context.Context, src string) (image.Image, string, error) {
	if l.log == nil {
		l.log = applog.WithComponent("imageio")
	}
	raw, err := l.fetch(ctx, src)
	if err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", fmt.Errorf("decode %s: %w", short(src), ErrNotImage)
		}
		return nil, "", fmt.Errorf("decode %s: %w", short(src), err)
	}
	l.log.Debug("image loaded", slog.String("format", format),
		slog.Int("w", img.Bounds().Dx()), slog.Int("h", img.Bounds().Dy()))
	return img, format, nil
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return l.limit(decodeDataURL(src))
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetchHTTP(ctx, src)
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, err
		}
		return l.readFile(u.Path)
	case src == "":
		return nil, fmt.Errorf("empty source: %w", ErrNotImage)
	default:
		return l.readFile(src)
	}
}

func (l *Loader) limit(b []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if l.max() > 0 && int64(len(b)) > l.max() {
		return nil, ErrTooLarge
	}
	return b, nil
}

func (l *Loader) max() int64 {
	if l.MaxBytes == 0 {
		return DefaultMaxBytes
	}
	return l.MaxBytes
}

func (l *Loader) readAll(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, l.max()+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > l.max() {
		return nil, ErrTooLarge
	}
	return b, nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()
	return l.readAll(f)
}

func (l *Loader) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !isImageType(ct) && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("fetch image: content type %q: %w", ct, ErrNotImage)
	}
	return l.readAll(resp.Body)
}

func isImageType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && strings.HasPrefix(mt, "image/")
}

// decodeDataURL returns the payload of a data: URL whose media type is image/*.
func decodeDataURL(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url: %w", ErrNotImage)
	}
	isBase64 := strings.HasSuffix(meta, ";base64")
	meta = strings.TrimSuffix(meta, ";base64")
	if meta == "" || !isImageType(meta) {
		return nil, fmt.Errorf("data url type %q: %w", meta, ErrNotImage)
	}
	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("data url payload: %w", err)
		}
		return b, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data url payload: %w", err)
	}
	return []byte(s), nil
}

// EncodeDataURL renders img as a base64 PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// IsDataURL reports whether src carries its bytes inline.
func IsDataURL(src string) bool { return strings.HasPrefix(src, "data:") }

// FitWithin scales (w, h) down to fit maxW x maxH, keeping the aspect ratio.
// Sizes that already fit are returned unchanged.
func FitWithin(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	ratio := w / h
	if w > maxW {
		w = maxW
		h = w / ratio
	}
	if h > maxH {
		h = maxH
		w = h * ratio
	}
	return w, h
}

func short(src string) string {
	if IsDataURL(src) {
		if i := strings.IndexByte(src, ','); i > 0 {
			return src[:i]
		}
	}
	if len(src) > 80 {
		return src[:80] + "..."
	}
	return src
}
