package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"marketplace-auth/internal/middleware"
	"marketplace-auth/internal/model"
	"marketplace-auth/pkg/apierror"
)

// actorFromRequest returns the authenticated caller. Routes behind RequireAuth
// always have one; the error covers handlers mounted without it.
func actorFromRequest(r *http.Request) (*model.AuthClaims, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, apierror.New(apierror.CodeUnauthorized, "authentication required", "", http.StatusUnauthorized)
	}
	return claims, nil
}

func userIDParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	if raw == "" {
		return 0, apierror.BadRequest("user id is required", "id")
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("user id must be a positive integer", "id")
	}
	return id, nil
}
