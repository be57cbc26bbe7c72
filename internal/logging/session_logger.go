// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// This file is the agent's only per-unit-of-work debug log: one file per
// MQTT connection generation rather than one per backup session, since a
// long-lived agent process has no session boundary of its own. A
// generation's file is intentionally left in place across a hard-reset
// reconnect (the next generation gets a new id, so nothing is overwritten)
// and only removed once mqttconn.Connection.finishClose confirms the
// connection itself is done — see RemoveConnectionLog's caller.
//
// fanOutHandler is a slog.Handler that dispatches every record to two
// handlers. Used by NewConnectionLogger to write simultaneously to the base
// logger and a connection's dedicated debug file.
type fanOutHandler struct {
	primary   slog.Handler
	secondary slog.Handler
}

func (h *fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.secondary.Enabled(ctx, level)
}

func (h *fanOutHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.primary.Enabled(ctx, r.Level) {
		if err := h.primary.Handle(ctx, r); err != nil {
			return err
		}
	}
	// A write failure on the secondary file must never block the primary log.
	if h.secondary.Enabled(ctx, r.Level) {
		_ = h.secondary.Handle(ctx, r)
	}
	return nil
}

func (h *fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithAttrs(attrs),
		secondary: h.secondary.WithAttrs(attrs),
	}
}

func (h *fanOutHandler) WithGroup(name string) slog.Handler {
	return &fanOutHandler{
		primary:   h.primary.WithGroup(name),
		secondary: h.secondary.WithGroup(name),
	}
}

// NewConnectionLogger builds a logger that writes to both the base (global)
// logger and a file dedicated to one broker connection generation, at:
//
//	{connLogDir}/{agentName}/{generationID}.log
//
// Returns the enriched logger, an io.Closer to close the file, and the
// file's path (absolute only if connLogDir is). The Closer must be called (defer) once the
// connection generation ends (hard reset, graceful close).
//
// If connLogDir is empty, returns the base logger unmodified (no-op).
func NewConnectionLogger(baseLogger *slog.Logger, connLogDir, agentName, generationID string) (*slog.Logger, io.Closer, string, error) {
	if connLogDir == "" {
		return baseLogger, io.NopCloser(nil), "", nil
	}

	dir := filepath.Join(connLogDir, agentName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, "", fmt.Errorf("creating connection log directory %s: %w", dir, err)
	}

	logPath := filepath.Join(dir, generationID+".log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, "", fmt.Errorf("opening connection log file %s: %w", logPath, err)
	}

	// The per-generation file always runs JSON at debug level for full capture.
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	combined := &fanOutHandler{
		primary:   baseLogger.Handler(),
		secondary: fileHandler,
	}

	return slog.New(combined), f, logPath, nil
}

// RemoveConnectionLog removes a finished generation's log file once its
// connection closed cleanly. No-op if connLogDir is empty or the file does
// not exist.
func RemoveConnectionLog(connLogDir, agentName, generationID string) {
	if connLogDir == "" {
		return
	}
	logPath := filepath.Join(connLogDir, agentName, generationID+".log")
	os.Remove(logPath)
}
