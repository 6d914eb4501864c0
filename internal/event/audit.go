package event

import (
	"context"
	"log/slog"
)

// LogSubscriber writes every event from a bus subscription as an audit log
// line until ctx is cancelled or the subscription closes. Subscribe before
// starting it so no early event is missed.
func LogSubscriber(ctx context.Context, events <-chan Event, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			logEvent(ctx, logger, e)
		}
	}
}

func logEvent(ctx context.Context, logger *slog.Logger, e Event) {
	attrs := []slog.Attr{
		slog.String("event_id", e.ID),
		slog.String("event_type", string(e.Type)),
		slog.Time("occurred_at", e.Timestamp),
	}
	if e.ActorID != 0 {
		attrs = append(attrs, slog.Int64("actor_id", e.ActorID))
	}
	if e.SubjectID != 0 {
		attrs = append(attrs, slog.Int64("subject_id", e.SubjectID))
	}
	for key, value := range e.Attrs {
		attrs = append(attrs, slog.String(key, value))
	}

	level := slog.LevelInfo
	if e.Type == TypeLoginFailed {
		level = slog.LevelWarn
	}

	logger.LogAttrs(ctx, level, "audit", attrs...)
}
