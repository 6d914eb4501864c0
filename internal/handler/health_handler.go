package handler

import (
	"context"
	"log/slog"
	"net/http"

	"marketplace-auth/pkg/apierror"
)

type pinger interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db pinger
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Health(r.Context()); err != nil {
			slog.Warn("health check failed", "error", err)
			writeError(w, apierror.New("SERVICE_UNAVAILABLE", "database unreachable", "", http.StatusServiceUnavailable))
			return
		}
	}

	writeSuccess(w, http.StatusOK, map[string]any{"status": "ok", "database": "ok"}, nil)
}
