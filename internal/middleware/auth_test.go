package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-auth/internal/model"
)

type stubValidator struct {
	claims *model.AuthClaims
	token  string
}

func (s stubValidator) ValidateToken(_ context.Context, token string) (*model.AuthClaims, error) {
	if token != s.token {
		return nil, errors.New("bad token")
	}
	return s.claims, nil
}

func TestRequireAuth(t *testing.T) {
	mw := NewAuthMiddleware(stubValidator{
		token:  "good",
		claims: &model.AuthClaims{UserID: 42, Role: model.RoleModerator},
	})

	var seen *model.AuthClaims
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", status: http.StatusNoContent},
		{name: "scheme is case-insensitive", header: "bearer   good", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, int64(42), seen.UserID)
			} else {
				assert.Nil(t, seen)
				assert.Contains(t, rec.Body.String(), `"UNAUTHORIZED"`)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	mw := NewAuthMiddleware(stubValidator{})
	handler := mw.RequireRoles(model.RoleAdmin, model.RoleModerator)(okHandler())

	t.Run("no claims", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("insufficient role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), &model.AuthClaims{UserID: 1, Role: model.RoleUser}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), `"FORBIDDEN"`)
	})

	t.Run("allowed role in any case", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithClaims(req.Context(), &model.AuthClaims{UserID: 1, Role: "moderator"}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
