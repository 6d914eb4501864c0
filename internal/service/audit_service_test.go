package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"marketplace-auth/internal/event"
	"marketplace-auth/internal/model"
	"marketplace-auth/internal/repository"
	"marketplace-auth/pkg/apierror"
)

func TestAuditService_Record(t *testing.T) {
	ctx := context.Background()
	store := new(repository.MockAuditRepository)
	svc := NewAuditService(store)

	e := event.New(event.TypeRoleChanged, 1, 42, map[string]string{"to": "Admin"})
	store.On("Log", ctx, model.AuditEntry{
		ID:         e.ID,
		Type:       "user.role_changed",
		OccurredAt: e.Timestamp,
		ActorID:    1,
		SubjectID:  42,
		Attrs:      map[string]string{"to": "Admin"},
	}).Return(nil)

	require.NoError(t, svc.Record(ctx, e))
	store.AssertExpectations(t)
}

func TestAuditService_Run(t *testing.T) {
	store := new(repository.MockAuditRepository)
	svc := NewAuditService(store)
	bus := event.NewBus()

	persisted := make(chan model.AuditEntry, 2)
	store.On("Log", mock.Anything, mock.AnythingOfType("model.AuditEntry")).
		Run(func(args mock.Arguments) { persisted <- args.Get(1).(model.AuditEntry) }).
		Return(errors.New("db down")).Once()
	store.On("Log", mock.Anything, mock.AnythingOfType("model.AuditEntry")).
		Run(func(args mock.Arguments) { persisted <- args.Get(1).(model.AuditEntry) }).
		Return(nil)

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	bus.Publish(event.New(event.TypeLoginFailed, 0, 7, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, events)
		close(done)
	}()

	// The event published before Run started is persisted; its failure does
	// not stop the loop.
	select {
	case entry := <-persisted:
		assert.Equal(t, string(event.TypeLoginFailed), entry.Type)
	case <-time.After(time.Second):
		t.Fatal("early event was not persisted")
	}

	bus.Publish(event.New(event.TypeUserDeleted, 1, 7, nil))
	require.Eventually(t, func() bool {
		for {
			select {
			case entry := <-persisted:
				if entry.Type == string(event.TypeUserDeleted) {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestAuditService_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects inverted range", func(t *testing.T) {
		svc := NewAuditService(new(repository.MockAuditRepository))
		now := time.Now()

		_, _, err := svc.Query(ctx, model.AuditQuery{From: now, To: now.Add(-time.Hour)})
		requireAPICode(t, err, apierror.CodeBadRequest)
	})

	t.Run("delegates to the store", func(t *testing.T) {
		store := new(repository.MockAuditRepository)
		svc := NewAuditService(store)
		q := model.AuditQuery{Type: "login.failed", Page: 1, Limit: 10}
		store.On("Query", ctx, q).Return([]model.AuditEntry{{ID: "a"}}, model.Meta{Total: 1}, nil)

		items, meta, err := svc.Query(ctx, q)
		require.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, 1, meta.Total)
	})
}
