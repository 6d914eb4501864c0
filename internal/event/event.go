package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserRegistered     Type = "user.registered"
	TypeLoginSucceeded     Type = "login.succeeded"
	TypeLoginFailed        Type = "login.failed"
	TypeCredentialMigrated Type = "credential.migrated"
	TypePasswordChanged    Type = "password.changed"
	TypeRoleChanged        Type = "user.role_changed"
	TypeStatusChanged      Type = "user.status_changed"
	TypeUserDeleted        Type = "user.deleted"
	TypeTokenRevoked       Type = "token.revoked"
)

// Event never carries passwords, digests or tokens.
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	ActorID   int64             `json:"actor_id,omitempty"`
	SubjectID int64             `json:"subject_id,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

func New(t Type, actorID int64, subjectID int64, attrs map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		ActorID:   actorID,
		SubjectID: subjectID,
		Attrs:     attrs,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
