package oxd

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) AssetStored(ctx context.Context, path ArchivePath, key StorageKey) error {
	return nil
}

func (n *NoopEventSink) DocumentImported(ctx context.Context, result *ImportResult) error {
	return nil
}

func (n *NoopEventSink) DocumentExported(ctx context.Context, documentID uuid.UUID, assets int) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action.
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses slog.Default.
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// AssetStored logs at debug level, once per archive entry
func (l *LoggingEventSink) AssetStored(ctx context.Context, path ArchivePath, key StorageKey) error {
	l.logger.DebugContext(ctx, "asset stored", "path", path, "key", key)
	return nil
}

// DocumentImported logs the import commit
func (l *LoggingEventSink) DocumentImported(ctx context.Context, result *ImportResult) error {
	attrs := []any{"document_id", result.Document.ID, "assets", len(result.Assets)}
	if result.Project != nil {
		attrs = append(attrs, "project_id", result.Project.ID, "slug", result.Project.Slug)
	}
	l.logger.InfoContext(ctx, "document imported", attrs...)
	return nil
}

// DocumentExported logs the finished export
func (l *LoggingEventSink) DocumentExported(ctx context.Context, documentID uuid.UUID, assets int) error {
	l.logger.InfoContext(ctx, "document exported", "document_id", documentID, "assets", assets)
	return nil
}
