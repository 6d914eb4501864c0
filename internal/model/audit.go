package model

import "time"

// AuditEntry is a persisted authentication event.
type AuditEntry struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	ActorID    int64             `json:"actor_id,omitempty"`
	SubjectID  int64             `json:"subject_id,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

type AuditQuery struct {
	Type      string
	ActorID   int64
	SubjectID int64
	From      time.Time
	To        time.Time
	Page      int
	Limit     int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
