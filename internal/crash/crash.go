/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns panics into logged errors at interaction boundaries and
// into crash reports at process level.
package crash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "drawingtool/internal/log"
	"drawingtool/internal/telemetry"
	"drawingtool/internal/version"
)

// ErrPanic wraps a panic recovered by Guard.
var ErrPanic = errors.New("panic in handler")

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Guard runs fn and converts a panic into an error wrapping ErrPanic.
// The panic and its stack are logged on l with the operation name.
func Guard(l *slog.Logger, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if l == nil {
				l = applog.WithComponent("crash")
			}
			applog.WithOperation(l, op).Error("panic recovered",
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: %w: %v", op, ErrPanic, r)
		}
	}()
	return fn()
}

// Recover captures a panic, logs it with a stacktrace, writes a report file
// into dir (the temp dir when empty) and exits with code 2.
//
// Usage: defer crash.Recover(dir)
func Recover(dir string) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, report, err := writeReport(dir, r, stack)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		if err := telemetry.UploadCrash(context.Background(), telemetry.ReportConfigFromEnv(), report); err != nil {
			l.Warn("crash report upload failed", slog.Any("err", err))
		}
		_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
		_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
		exitFn(2)
	}
}

func writeReport(dir string, panicVal any, stack []byte) (string, []byte, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Drawing Tool Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return path, buf.Bytes(), err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, buf.Bytes(), err
	}
	return path, buf.Bytes(), nil
}
