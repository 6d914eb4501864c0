//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-auth/internal/credential"
	"marketplace-auth/internal/model"
)

func registerRequest(c credentials) model.RegisterRequest {
	return model.RegisterRequest{
		Username:  c.Username,
		Email:     c.Username + "@example.com",
		Password:  c.Password,
		FirstName: "Test",
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()

	id := env.register(t, user)
	assert.Equal(t, credential.FormatModern, credential.DetectFormat(env.storedHash(t, id)))

	accessToken := env.login(t, user)

	resp, body := env.do(t, http.MethodGet, "/api/v1/auth/me", nil, accessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body.Data), user.Username)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/register", registerRequest(user), "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLegacyCredentialMigratesOnLogin(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()
	id := env.register(t, user)

	_, err := env.db.Pool.Exec(context.Background(), `UPDATE users SET password_hash = $1 WHERE id = $2`, user.Password, id)
	require.NoError(t, err)
	require.Equal(t, credential.FormatLegacy, credential.DetectFormat(env.storedHash(t, id)))

	env.login(t, user)

	migrated := env.storedHash(t, id)
	assert.Equal(t, credential.FormatModern, credential.DetectFormat(migrated))
	assert.True(t, credential.NewVerifier(nil).Verify(migrated, user.Password))

	// Second login goes through the modern path.
	env.login(t, user)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()
	env.register(t, user)

	wrongResp, wrongBody := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"login": user.Username, "password": "nope-nope"}, "")
	unknownResp, unknownBody := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"login": "ghost_" + shortID(), "password": "nope-nope"}, "")

	assert.Equal(t, http.StatusUnauthorized, wrongResp.StatusCode)
	assert.Equal(t, wrongResp.StatusCode, unknownResp.StatusCode)
	assert.Equal(t, wrongBody.Error, unknownBody.Error)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()
	env.register(t, user)
	accessToken := env.login(t, user)

	next := user.Password + "-2"
	resp, body := env.do(t, http.MethodPost, "/api/v1/auth/change-password", model.ChangePasswordRequest{
		CurrentPassword: user.Password,
		NewPassword:     next,
		ConfirmPassword: next,
	}, accessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%+v", body.Error)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"login": user.Username, "password": user.Password}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env.login(t, credentials{Username: user.Username, Password: next})
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()
	env.register(t, user)
	accessToken := env.login(t, user)

	resp, body := env.do(t, http.MethodPost, "/api/v1/auth/logout", nil, accessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%+v", body.Error)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", nil, accessToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	fresh := env.login(t, user)
	resp, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", nil, fresh)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	user := newUser()
	id := env.register(t, user)

	userToken := env.login(t, user)
	adminToken := env.login(t, env.admin)

	resp, _ := env.do(t, http.MethodGet, "/api/v1/admin/users", nil, userToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/v1/admin/users", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body.Data), user.Username)

	resp, body = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/role", id), map[string]string{"role": "moderator"}, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%+v", body.Error)

	// The role is read per request, so the token issued before the change
	// already acts as Moderator.
	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/users", nil, userToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/status", id), map[string]int{"status": 2}, adminToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", nil, userToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"login": user.Username, "password": user.Password}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/users/%d", id), nil, adminToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/audit?subject_id=%d", id), nil, adminToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
}
