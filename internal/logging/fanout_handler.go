package logging

import (
	"context"
	"errors"
	"log/slog"
)

// mirrorHandler writes every record to the console handler and a copy to
// the JSON log file. Each side filters by its own level.
type mirrorHandler struct {
	console slog.Handler
	file    slog.Handler
}

func newMirrorHandler(console, file slog.Handler) slog.Handler {
	if file == nil {
		return console
	}
	return mirrorHandler{console: console, file: file}
}

func (h mirrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h mirrorHandler) Handle(ctx context.Context, record slog.Record) error {
	var fileErr, consoleErr error
	if h.file.Enabled(ctx, record.Level) {
		fileErr = h.file.Handle(ctx, record.Clone())
	}
	if h.console.Enabled(ctx, record.Level) {
		consoleErr = h.console.Handle(ctx, record)
	}
	return errors.Join(consoleErr, fileErr)
}

func (h mirrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return mirrorHandler{console: h.console.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h mirrorHandler) WithGroup(name string) slog.Handler {
	return mirrorHandler{console: h.console.WithGroup(name), file: h.file.WithGroup(name)}
}
