package ober

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with ober-specific context.
// Field names are shared by every tier so logs can be joined on them.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithTier adds the artifact tier ("documents", "tokens", "senses", ...).
func (l *Logger) WithTier(tier string) *Logger {
	return &Logger{
		Logger: l.Logger.With("tier", tier),
	}
}

// WithVersion adds a content version field to the logger.
func (l *Logger) WithVersion(v int) *Logger {
	return &Logger{
		Logger: l.Logger.With("content_version", v),
	}
}

// WithBatch adds a batch field to the logger.
func (l *Logger) WithBatch(b int) *Logger {
	return &Logger{
		Logger: l.Logger.With("batch", b),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogBatchCommit logs a document ingestion run.
func (l *Logger) LogBatchCommit(ctx context.Context, set string, batches, documents int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "document ingestion failed",
			"document_set", set,
			"batches", batches,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "documents added",
		"document_set", set,
		"batches", batches,
		"documents", documents,
	)
}

// LogVectorsSave logs a dictionary save.
func (l *Logger) LogVectorsSave(ctx context.Context, schema string, contentVersion, vectorsVersion int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "vectors save failed",
			"schema", schema,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "vectors saved",
		"schema", schema,
		"content_version", contentVersion,
		"vectors_version", vectorsVersion,
	)
}

// LogGraphExport logs a similarity graph export.
func (l *Logger) LogGraphExport(ctx context.Context, path string, nodes, edges int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "graph export failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "graph exported",
		"path", path,
		"nodes", nodes,
		"edges", edges,
		"duration", d,
	)
}

// LogLoad logs a dictionary load.
func (l *Logger) LogLoad(ctx context.Context, schema string, contentVersion, vectorsVersion, symbols int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"schema", schema,
			"content_version", contentVersion,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "load completed",
		"schema", schema,
		"content_version", contentVersion,
		"vectors_version", vectorsVersion,
		"symbols", symbols,
	)
}

// LogClusterRun logs a clusterer invocation.
func (l *Logger) LogClusterRun(ctx context.Context, clusterVersion int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "clustering failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "clustering completed",
		"cluster_version", clusterVersion,
		"duration", d,
	)
}
