package service

import (
	"context"
	"log/slog"

	"marketplace-auth/internal/event"
	"marketplace-auth/internal/model"
	"marketplace-auth/pkg/apierror"
)

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// AuditService persists bus events so administrators can review logins,
// migrations and account changes after the fact.
type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

func (s *AuditService) Record(ctx context.Context, e event.Event) error {
	return s.store.Log(ctx, model.AuditEntry{
		ID:         e.ID,
		Type:       string(e.Type),
		OccurredAt: e.Timestamp,
		ActorID:    e.ActorID,
		SubjectID:  e.SubjectID,
		Attrs:      e.Attrs,
	})
}

// Run persists events from bus until ctx is cancelled. A failed write is
// logged and the event is lost.
// Run persists events from a bus subscription until ctx is cancelled or the
// subscription closes.
func (s *AuditService) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := s.Record(ctx, e); err != nil {
				slog.Error("persist audit event", "event_id", e.ID, "event_type", string(e.Type), "error", err)
			}
		}
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if !query.From.IsZero() && !query.To.IsZero() && query.From.After(query.To) {
		return nil, model.Meta{}, apierror.BadRequest("'from' must not be after 'to'", "from")
	}

	return s.store.Query(ctx, query)
}
