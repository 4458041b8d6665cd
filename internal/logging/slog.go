// ManicSync - ManicTime Server Activity Synchronization
// Copyright 2026 ManicSync Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/manicsync/manicsync

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogLogger returns a *slog.Logger that forwards records to the global
// zerolog logger. It exists for libraries that speak slog, such as the
// supervisor's event hook.
func SlogLogger() *slog.Logger {
	return slog.New(&slogBridge{})
}

// slogBridge adapts slog records onto the zerolog global.
type slogBridge struct {
	attrs []slog.Attr
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return slogToZerolog(level) >= GetLevel()
}

func (b *slogBridge) Handle(_ context.Context, rec slog.Record) error {
	logger := Logger()
	ev := logger.WithLevel(slogToZerolog(rec.Level))
	for _, attr := range b.attrs {
		ev = appendAttr(ev, attr)
	}
	rec.Attrs(func(attr slog.Attr) bool {
		ev = appendAttr(ev, attr)
		return true
	})
	ev.Msg(rec.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return &slogBridge{attrs: merged}
}

// WithGroup flattens groups; the supervisor hook does not nest them.
func (b *slogBridge) WithGroup(string) slog.Handler {
	return b
}

func appendAttr(ev *zerolog.Event, attr slog.Attr) *zerolog.Event {
	return ev.Interface(attr.Key, attr.Value.Any())
}

func slogToZerolog(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
