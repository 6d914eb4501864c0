// Package token issues and parses the HS256 bearer tokens handed out after a
// successful login.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"marketplace-auth/internal/model"
)

// MinSigningKeyLength is the HS256 key floor (256 bits).
const MinSigningKeyLength = 32

var (
	ErrConfiguration   = errors.New("invalid token configuration")
	ErrMissingIdentity = errors.New("token subject is required")
	ErrMissingRole     = errors.New("token role is required")
	ErrInvalidToken    = errors.New("invalid token")
)

type Config struct {
	Issuer     string
	Audience   string
	Lifetime   time.Duration
	SigningKey string
}

func (c Config) validate() error {
	if strings.TrimSpace(c.SigningKey) == "" {
		return fmt.Errorf("%w: signing key is required", ErrConfiguration)
	}
	if len(c.SigningKey) < MinSigningKeyLength {
		return fmt.Errorf("%w: signing key must be at least %d bytes", ErrConfiguration, MinSigningKeyLength)
	}
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%w: issuer is required", ErrConfiguration)
	}
	if strings.TrimSpace(c.Audience) == "" {
		return fmt.Errorf("%w: audience is required", ErrConfiguration)
	}
	if c.Lifetime <= 0 {
		return fmt.Errorf("%w: lifetime must be positive", ErrConfiguration)
	}
	return nil
}

// Claims is the payload of an access token.
type Claims struct {
	Role     string `json:"role"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

type Token struct {
	Value     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer holds only immutable configuration and is safe for concurrent use.
type Issuer struct {
	issuer   string
	audience string
	lifetime time.Duration
	key      []byte
	clock    func() time.Time
}

func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Issuer{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		lifetime: cfg.Lifetime,
		key:      []byte(cfg.SigningKey),
		clock:    time.Now,
	}, nil
}

func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

// IssueToken returns the compact serialized token for the identity.
func (i *Issuer) IssueToken(userID int64, role string, username string) (string, error) {
	issued, err := i.Issue(model.Identity{UserID: userID, Role: role, Username: username})
	if err != nil {
		return "", err
	}
	return issued.Value, nil
}

func (i *Issuer) Issue(identity model.Identity) (Token, error) {
	if identity.UserID <= 0 {
		return Token{}, ErrMissingIdentity
	}
	role := strings.TrimSpace(identity.Role)
	if role == "" {
		return Token{}, ErrMissingRole
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.lifetime)
	id := uuid.NewString()

	claims := Claims{
		Role:     role,
		Username: strings.TrimSpace(identity.Username),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(identity.UserID, 10),
			Audience:  jwt.ClaimStrings{i.audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        id,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{Value: signed, ID: id, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

// Parse validates signature, algorithm, issuer, audience and expiry.
func (i *Issuer) Parse(raw string) (*model.AuthClaims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidToken
	}
	if claims.Role == "" {
		return nil, ErrInvalidToken
	}

	return &model.AuthClaims{
		UserID:    userID,
		Username:  claims.Username,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
