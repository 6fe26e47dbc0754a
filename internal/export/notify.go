// SPDX-FileCopyrightText: © 2025 chichekebbab
//
// SPDX-License-Identifier: AGPL-3.0-only

package export

import (
	"context"
	"log/slog"
)

// EventType identifies a user-facing pipeline event. The pipeline
// emits semantic events; rendering them into localized messages is
// the consumer's job.
type EventType string

// All the event types.
const (
	// EventChunkFlushed fires after a chunk archive was delivered.
	EventChunkFlushed EventType = "chunk_flushed"

	// EventCompleted fires once at the end of a session with at
	// least one captured item.
	EventCompleted EventType = "completed"

	// EventNothingExported fires instead of [EventCompleted] when no
	// item at all could be captured.
	EventNothingExported EventType = "nothing_exported"
)

// Event is a user-facing pipeline notification.
type Event struct {
	Type     EventType
	Filename string
	Chunk    int
	Chunks   int
	Exported int
	Total    int
}

// Notifier receives pipeline events.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

// NotifierFunc is a function implementing [Notifier].
type NotifierFunc func(ctx context.Context, evt Event)

// Notify implements [Notifier].
func (f NotifierFunc) Notify(ctx context.Context, evt Event) {
	f(ctx, evt)
}

// LogNotifier returns a [Notifier] writing every event to a logger.
func LogNotifier(logger *slog.Logger) Notifier {
	return NotifierFunc(func(ctx context.Context, evt Event) {
		attrs := []slog.Attr{
			slog.Int("exported", evt.Exported),
			slog.Int("total", evt.Total),
		}
		switch evt.Type {
		case EventChunkFlushed:
			attrs = append(attrs,
				slog.String("file", evt.Filename),
				slog.Int("chunk", evt.Chunk),
				slog.Int("chunks", evt.Chunks),
			)
			logger.LogAttrs(ctx, slog.LevelInfo, "archive ready", attrs...)
		case EventNothingExported:
			logger.LogAttrs(ctx, slog.LevelError, "no card could be captured", attrs...)
		default:
			logger.LogAttrs(ctx, slog.LevelInfo, "export finished", attrs...)
		}
	})
}
