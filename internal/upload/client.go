/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package upload sends image data to the host's asset endpoint and returns
// the URL to persist instead.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	applog "drawingtool/internal/log"
)

// Func uploads sourceData (usually a data URL) and returns its public URL.
type Func func(ctx context.Context, sourceData string) (string, error)

var ErrNoURL = errors.New("upload response carries no url")

// Options configures a Client.
type Options struct {
	URL        string
	Token      string // bearer token
	Timeout    time.Duration
	RatePerSec float64 // 0 disables throttling
	Burst      int
}

// Client is an HTTP uploader. It is safe for concurrent use.
type Client struct {
	url     string
	token   string
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewClient(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 0)
	if o.RatePerSec > 0 {
		if o.Burst < 1 {
			o.Burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(o.RatePerSec), o.Burst)
	}
	return &Client{
		url:     strings.TrimSpace(o.URL),
		token:   o.Token,
		client:  &http.Client{Timeout: o.Timeout},
		limiter: lim,
		log:     applog.WithComponent("upload"),
	}
}

type request struct {
	Data string `json:"data"`
}

type response struct {
	URL string `json:"url"`
}

// Upload implements Func.
func (c *Client) Upload(ctx context.Context, sourceData string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	body, err := json.Marshal(request{Data: sourceData})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload: server %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("upload: decode response: %w", err)
	}
	if out.URL == "" {
		return "", ErrNoURL
	}
	c.log.Debug("uploaded", slog.Int("bytes", len(sourceData)), slog.Duration("took", time.Since(start)))
	return out.URL, nil
}

// Func returns c.Upload as a Func.
func (c *Client) Func() Func { return c.Upload }
