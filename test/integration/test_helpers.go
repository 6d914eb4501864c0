//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"marketplace-auth/internal/config"
	"marketplace-auth/internal/credential"
	"marketplace-auth/internal/database"
	"marketplace-auth/internal/event"
	"marketplace-auth/internal/handler"
	"marketplace-auth/internal/middleware"
	"marketplace-auth/internal/repository"
	"marketplace-auth/internal/router"
	"marketplace-auth/internal/service"
	"marketplace-auth/internal/token"
)

type testEnv struct {
	server *httptest.Server
	db     *database.DB
	admin  credentials
}

type credentials struct {
	Username string
	Password string
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	url := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.Options{URL: url, MaxConns: 4, MinConns: 0})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))

	cfg := &config.Config{
		ServerPort:       "8080",
		RequestTimeout:   10 * time.Second,
		JWTIssuer:        "marketplace-auth",
		JWTAudience:      "marketplace-clients",
		JWTLifetime:      15 * time.Minute,
		JWTSigningKey:    "integration-signing-key-0123456789abcdef",
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	issuer, err := token.NewIssuer(cfg.TokenConfig())
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db.Pool)
	roleRepo := repository.NewRoleRepository(db.Pool)
	bus := event.NewBus()

	authService, err := service.NewAuthService(credential.NewVerifier(nil), issuer, userRepo, roleRepo, nil, bus)
	require.NoError(t, err)
	authService.SetRevocationStore(repository.NewTokenRepository(db.Pool))
	auditService := service.NewAuditService(repository.NewAuditRepository(db.Pool))

	auditEvents, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)
	subCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go auditService.Run(subCtx, auditEvents)

	admin := credentials{Username: "admin_" + shortID(), Password: "admin-pass-1"}
	require.NoError(t, createAdmin(ctx, db, authService, roleRepo, admin))

	server := httptest.NewServer(router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(authService),
		Audit:  handler.NewAuditHandler(auditService),
		Health: handler.NewHealthHandler(db),
		Docs:   handler.NewDocsHandler(),
	}))
	t.Cleanup(server.Close)

	return &testEnv{server: server, db: db, admin: admin}
}

// createAdmin registers a user and promotes it directly, since a shared test
// database usually already has an Admin and BootstrapAdmin would skip.
func createAdmin(ctx context.Context, db *database.DB, svc *service.AuthService, roles *repository.RoleRepository, c credentials) error {
	user, err := svc.Register(ctx, registerRequest(c))
	if err != nil {
		return err
	}

	role, err := roles.FindByName(ctx, "Admin")
	if err != nil {
		return err
	}

	_, err = db.Pool.Exec(ctx, `UPDATE users SET role_id = $1 WHERE id = $2`, role.ID, user.ID)
	return err
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func newUser() credentials {
	return credentials{Username: "user_" + shortID(), Password: "secret-" + shortID()}
}

func (e *testEnv) do(t *testing.T, method string, path string, body any, accessToken string) (*http.Response, envelope) {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var parsed envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func (e *testEnv) register(t *testing.T, c credentials) int64 {
	t.Helper()

	resp, body := e.do(t, http.MethodPost, "/api/v1/auth/register", registerRequest(c), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%+v", body.Error)

	var user struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &user))
	return user.ID
}

func (e *testEnv) login(t *testing.T, c credentials) string {
	t.Helper()

	resp, body := e.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"login": c.Username, "password": c.Password}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, "%+v", body.Error)

	var parsed struct {
		Token     string `json:"token"`
		TokenType string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &parsed))
	require.Equal(t, "Bearer", parsed.TokenType)
	require.NotEmpty(t, parsed.Token)
	return parsed.Token
}

func (e *testEnv) storedHash(t *testing.T, userID int64) string {
	t.Helper()

	var hash string
	require.NoError(t, e.db.Pool.QueryRow(context.Background(), `SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&hash))
	return hash
}
