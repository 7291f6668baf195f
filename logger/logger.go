// Package logger routes the service's printf-style logging through a single
// slog text handler whose level can change at runtime.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	level  = new(slog.LevelVar)
	active atomic.Pointer[slog.Logger]
)

func init() {
	SetOutput(os.Stdout)
}

// SetOutput sends subsequent records to w. A nil w means stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	active.Store(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// SetLevel takes a log.level value from config: debug, info, warn (or
// warning) or error, in any case. Unknown names mean info.
func SetLevel(name string) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "warning") {
		name = "warn"
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		l = slog.LevelInfo
	}
	level.Set(l)
}

func logf(l slog.Level, format string, v ...any) {
	lg := active.Load()
	ctx := context.Background()
	if !lg.Enabled(ctx, l) {
		return
	}
	lg.Log(ctx, l, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v...) }
func Infof(format string, v ...any)  { logf(slog.LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { logf(slog.LevelWarn, format, v...) }
func Errorf(format string, v ...any) { logf(slog.LevelError, format, v...) }

// Writer is a sink for libraries that log on their own: Println (gorilla's
// recovery handler) logs at error, Write (access logs) at info.
type Writer struct{}

func (Writer) Println(v ...any) {
	logf(slog.LevelError, "%s", strings.TrimSpace(fmt.Sprintln(v...)))
}

func (Writer) Write(p []byte) (int, error) {
	logf(slog.LevelInfo, "%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
