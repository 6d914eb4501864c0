package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-auth/internal/model"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
	maxAuditPage      = 1_000_000
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Log is idempotent on the event id.
func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	var attrsJSON []byte
	if len(entry.Attrs) > 0 {
		var err error
		attrsJSON, err = json.Marshal(entry.Attrs)
		if err != nil {
			return fmt.Errorf("marshal audit attrs: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_events (id, type, occurred_at, actor_id, subject_id, attrs)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Type, entry.OccurredAt.UTC(),
		nullableID(entry.ActorID), nullableID(entry.SubjectID), attrsJSON)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query = NormalizeAuditQuery(query)

	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if eventType := strings.TrimSpace(query.Type); eventType != "" {
		where = append(where, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, eventType)
		argIdx++
	}
	if query.ActorID > 0 {
		where = append(where, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, query.ActorID)
		argIdx++
	}
	if query.SubjectID > 0 {
		where = append(where, fmt.Sprintf("subject_id = $%d", argIdx))
		args = append(args, query.SubjectID)
		argIdx++
	}
	if !query.From.IsZero() {
		where = append(where, fmt.Sprintf("occurred_at >= $%d", argIdx))
		args = append(args, query.From.UTC())
		argIdx++
	}
	if !query.To.IsZero() {
		where = append(where, fmt.Sprintf("occurred_at <= $%d", argIdx))
		args = append(args, query.To.UTC())
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM auth_events %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}

	meta := model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages(total, query.Limit)}

	offset := (query.Page - 1) * query.Limit
	dataQuery := fmt.Sprintf(
		`SELECT id::text, type, occurred_at, COALESCE(actor_id, 0), COALESCE(subject_id, 0), attrs
		 FROM auth_events %s
		 ORDER BY occurred_at DESC
		 LIMIT $%d OFFSET $%d`, whereClause, argIdx, argIdx+1)
	args = append(args, query.Limit, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		var occurredAt time.Time
		var attrsJSON []byte

		if err := rows.Scan(&e.ID, &e.Type, &occurredAt, &e.ActorID, &e.SubjectID, &attrsJSON); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan audit entry: %w", err)
		}

		e.OccurredAt = occurredAt.UTC()
		if len(attrsJSON) > 0 {
			attrs := map[string]string{}
			if jsonErr := json.Unmarshal(attrsJSON, &attrs); jsonErr == nil {
				e.Attrs = attrs
			}
		}

		entries = append(entries, e)
	}

	return entries, meta, rows.Err()
}

// NormalizeAuditQuery clamps paging to the bounds Query enforces.
func NormalizeAuditQuery(query model.AuditQuery) model.AuditQuery {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Page > maxAuditPage {
		query.Page = maxAuditPage
	}
	if query.Limit <= 0 {
		query.Limit = defaultAuditLimit
	}
	if query.Limit > maxAuditLimit {
		query.Limit = maxAuditLimit
	}
	return query
}

func totalPages(total int, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func nullableID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
