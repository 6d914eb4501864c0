package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketplace-auth/internal/model"
	"marketplace-auth/internal/service"
	"marketplace-auth/pkg/apierror"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	from, err := parseOptionalTime(query.Get("from"))
	if err != nil {
		writeError(w, apierror.BadRequest("invalid 'from' datetime format", query.Get("from")))
		return
	}
	to, err := parseOptionalTime(query.Get("to"))
	if err != nil {
		writeError(w, apierror.BadRequest("invalid 'to' datetime format", query.Get("to")))
		return
	}

	items, meta, err := h.service.Query(r.Context(), model.AuditQuery{
		Type:      strings.TrimSpace(query.Get("type")),
		ActorID:   int64(parseIntOrDefault(query.Get("actor_id"), 0)),
		SubjectID: int64(parseIntOrDefault(query.Get("subject_id"), 0)),
		From:      from,
		To:        to,
		Page:      parseIntOrDefault(query.Get("page"), 1),
		Limit:     parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items}, &meta)
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}

	return v
}

func parseOptionalTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	value, err := time.Parse(time.RFC3339Nano, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return value.UTC(), nil
}
