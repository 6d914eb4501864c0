package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"marketplace-auth/internal/credential"
	"marketplace-auth/internal/event"
	"marketplace-auth/internal/metrics"
	"marketplace-auth/internal/model"
	"marketplace-auth/internal/token"
	"marketplace-auth/internal/util"
	"marketplace-auth/pkg/apierror"
)

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByLogin(ctx context.Context, login string) (model.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username string, email string) (bool, error)
	HasAdmin(ctx context.Context) (bool, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	UpdateRole(ctx context.Context, userID int64, roleID int64) error
	UpdateStatus(ctx context.Context, userID int64, status model.UserStatus) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]model.User, error)
}

type RoleStore interface {
	FindByName(ctx context.Context, name string) (model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
}

type TokenIssuer interface {
	Issue(identity model.Identity) (token.Token, error)
	Parse(raw string) (*model.AuthClaims, error)
}

type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, userID int64, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	CleanExpired(ctx context.Context) (int64, error)
}

type MetricsRecorder interface {
	RecordLogin(result string)
	RecordMigration()
	RecordTokenIssued(role string)
	RecordRegistration()
}

type noopMetrics struct{}

func (noopMetrics) RecordLogin(string)       {}
func (noopMetrics) RecordMigration()         {}
func (noopMetrics) RecordTokenIssued(string) {}
func (noopMetrics) RecordRegistration()      {}

// timingPassword only feeds the digest used to equalize lookups of unknown
// users; it never matches a real account.
const timingPassword = "marketplace-auth-timing-equalizer"

type AuthService struct {
	verifier    *credential.Verifier
	tokens      TokenIssuer
	users       UserStore
	roles       RoleStore
	metrics     MetricsRecorder
	bus         event.Bus
	revocations RevocationStore
	dummyDigest string
	now         func() time.Time
}

func NewAuthService(verifier *credential.Verifier, tokens TokenIssuer, users UserStore, roles RoleStore, recorder MetricsRecorder, bus event.Bus) (*AuthService, error) {
	if verifier == nil || tokens == nil || users == nil || roles == nil {
		return nil, errors.New("auth service: verifier, token issuer and stores are required")
	}
	if recorder == nil {
		recorder = noopMetrics{}
	}

	dummy, err := verifier.Hash(timingPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare timing digest: %w", err)
	}

	return &AuthService{
		verifier:    verifier,
		tokens:      tokens,
		users:       users,
		roles:       roles,
		metrics:     recorder,
		bus:         bus,
		dummyDigest: dummy,
		now:         time.Now,
	}, nil
}

// Login never tells the caller why it failed: unknown user, wrong password
// and disabled account all return the same error.
func (s *AuthService) Login(ctx context.Context, login string, password string) (model.LoginResponse, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return model.LoginResponse{}, apierror.BadRequest("login and password are required", "")
	}
	// No account can hold a longer password, so skip the lookup entirely.
	if utf8.RuneCountInString(password) > util.PasswordMaxLength {
		s.loginFailed(0, "password_too_long")
		return model.LoginResponse{}, apierror.InvalidCredentials()
	}

	user, err := s.users.FindByLogin(ctx, login)
	if errors.Is(err, model.ErrUserNotFound) {
		s.verifier.Verify(s.dummyDigest, password)
		s.loginFailed(0, "unknown_user")
		return model.LoginResponse{}, apierror.InvalidCredentials()
	}
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("login lookup: %w", err)
	}

	result := s.verifier.Check(user.PasswordHash, password)
	if !result.OK {
		s.loginFailed(user.ID, "bad_password")
		return model.LoginResponse{}, apierror.InvalidCredentials()
	}

	if !user.CanLogin() {
		s.loginFailed(user.ID, "status_"+user.Status.String())
		return model.LoginResponse{}, apierror.InvalidCredentials()
	}

	if result.NeedsRehash {
		s.migrateCredential(ctx, user.ID, password)
	}

	issued, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("issue token: %w", err)
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	s.metrics.RecordTokenIssued(user.RoleName)
	s.publish(event.New(event.TypeLoginSucceeded, user.ID, user.ID, map[string]string{
		"credential_format": result.Format.String(),
		"token_id":          issued.ID,
	}))

	return model.LoginResponse{
		User:      user.AuthUser(),
		Token:     issued.Value,
		TokenType: "Bearer",
		ExpiresAt: issued.ExpiresAt,
		Role:      user.RoleName,
	}, nil
}

// migrateCredential replaces a legacy credential with a modern digest. A
// failure here is logged and retried on the next login.
func (s *AuthService) migrateCredential(ctx context.Context, userID int64, password string) {
	digest, err := s.verifier.Hash(password)
	if err != nil {
		slog.Warn("credential migration failed", "user_id", userID, "stage", "hash", "error", err)
		return
	}

	if err := s.users.UpdatePassword(ctx, userID, digest); err != nil {
		slog.Warn("credential migration failed", "user_id", userID, "stage", "persist", "error", err)
		return
	}

	s.metrics.RecordMigration()
	s.publish(event.New(event.TypeCredentialMigrated, userID, userID, map[string]string{"from": credential.FormatLegacy.String()}))
}

func (s *AuthService) loginFailed(userID int64, reason string) {
	s.metrics.RecordLogin(metrics.LoginFailure)
	s.publish(event.New(event.TypeLoginFailed, 0, userID, map[string]string{"reason": reason}))
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.AuthUser, error) {
	user, err := s.createUser(ctx, req, model.RoleUser)
	if err != nil {
		return model.AuthUser{}, err
	}

	s.metrics.RecordRegistration()
	s.publish(event.New(event.TypeUserRegistered, user.ID, user.ID, map[string]string{"role": user.RoleName}))

	return user.AuthUser(), nil
}

// BootstrapAdmin creates the first Admin from configuration. It does nothing
// when no username is configured or an Admin already exists.
func (s *AuthService) BootstrapAdmin(ctx context.Context, username string, email string, password string) error {
	if strings.TrimSpace(username) == "" {
		return nil
	}

	has, err := s.users.HasAdmin(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	user, err := s.createUser(ctx, model.RegisterRequest{
		Username:  username,
		Email:     email,
		Password:  password,
		FirstName: username,
	}, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	slog.Info("initial admin created", "user_id", user.ID, "username", user.Username)
	s.publish(event.New(event.TypeUserRegistered, 0, user.ID, map[string]string{"role": user.RoleName, "source": "bootstrap"}))
	return nil
}

func (s *AuthService) createUser(ctx context.Context, req model.RegisterRequest, roleName string) (model.User, error) {
	username, err := util.SanitizeUsername(req.Username)
	if err != nil {
		return model.User{}, err
	}
	email, err := util.NormalizeEmail(req.Email)
	if err != nil {
		return model.User{}, err
	}
	firstName, err := util.SanitizeName(req.FirstName, "first_name", true)
	if err != nil {
		return model.User{}, err
	}
	lastName, err := util.SanitizeName(req.LastName, "last_name", false)
	if err != nil {
		return model.User{}, err
	}
	if err := util.ValidatePassword(req.Password); err != nil {
		return model.User{}, err
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return model.User{}, err
	}
	if exists {
		return model.User{}, apierror.Conflict("username or email already exists", "")
	}

	role, err := s.roles.FindByName(ctx, roleName)
	if err != nil {
		return model.User{}, fmt.Errorf("resolve role %q: %w", roleName, err)
	}

	digest, err := s.verifier.Hash(req.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, model.User{
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		FirstName:    firstName,
		LastName:     lastName,
		JoinDate:     s.now().UTC(),
		Status:       model.UserStatusActive,
		RoleID:       role.ID,
		RoleName:     role.Name,
	})
	if errors.Is(err, model.ErrUserAlreadyExists) {
		return model.User{}, apierror.Conflict("username or email already exists", "")
	}
	if err != nil {
		return model.User{}, err
	}

	return created, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int64, req model.ChangePasswordRequest) error {
	if req.CurrentPassword == "" {
		return apierror.BadRequest("current password is required", "current_password")
	}
	if err := util.ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword != req.ConfirmPassword {
		return apierror.BadRequest("passwords do not match", "confirm_password")
	}
	if req.NewPassword == req.CurrentPassword {
		return apierror.BadRequest("new password must differ from the current password", "new_password")
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	if !s.verifier.Verify(user.PasswordHash, req.CurrentPassword) {
		return apierror.New("INVALID_PASSWORD", "current password is incorrect", "current_password", http.StatusBadRequest)
	}

	digest, err := s.verifier.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, digest); err != nil {
		return err
	}

	s.publish(event.New(event.TypePasswordChanged, user.ID, user.ID, nil))
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID int64) (model.AuthUser, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.AuthUser(), nil
}

// SetRevocationStore enables logout. Without a store every signed, unexpired
// token stays valid until it expires.
func (s *AuthService) SetRevocationStore(store RevocationStore) {
	s.revocations = store
}

func (s *AuthService) ValidateToken(ctx context.Context, raw string) (*model.AuthClaims, error) {
	claims, err := s.tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, invalidToken()
	}

	if s.revocations != nil && claims.TokenID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, invalidToken()
		}
	}

	// Status, deletion and role are read from the store so admin changes
	// apply to tokens already issued.
	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, invalidToken()
	}
	if err != nil {
		return nil, fmt.Errorf("load token subject: %w", err)
	}
	if !user.CanLogin() {
		return nil, invalidToken()
	}

	claims.Role = user.RoleName
	claims.Username = user.Username
	return claims, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *model.AuthClaims) error {
	if s.revocations == nil {
		return apierror.New("NOT_SUPPORTED", "token revocation is not enabled", "", http.StatusNotImplemented)
	}
	if claims == nil || claims.TokenID == "" {
		return apierror.BadRequest("token has no id", "")
	}

	expiresAt := claims.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(24 * time.Hour)
	}

	if err := s.revocations.Revoke(ctx, claims.TokenID, claims.UserID, expiresAt); err != nil {
		return err
	}

	s.publish(event.New(event.TypeTokenRevoked, claims.UserID, claims.UserID, map[string]string{"token_id": claims.TokenID}))
	return nil
}

// StartRevocationCleanup prunes revocations of already-expired tokens every
// interval until ctx is cancelled.
func (s *AuthService) StartRevocationCleanup(ctx context.Context, interval time.Duration) {
	if s.revocations == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.revocations.CleanExpired(ctx)
			if err != nil {
				slog.Warn("revoked token cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Debug("revoked tokens pruned", "count", removed)
			}
		}
	}
}

func invalidToken() *apierror.APIError {
	return apierror.New(apierror.CodeUnauthorized, "invalid or expired token", "", http.StatusUnauthorized)
}

func (s *AuthService) findUser(ctx context.Context, userID int64) (model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, apierror.NotFound("user not found", fmt.Sprint(userID))
	}
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (s *AuthService) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
