package model

import (
	"strings"
	"time"
)

const (
	RoleAdmin     = "Admin"
	RoleModerator = "Moderator"
	RoleUser      = "User"
)

type UserStatus int

const (
	UserStatusActive UserStatus = iota
	UserStatusInactive
	UserStatusBanned
	UserStatusSuspended
)

func (s UserStatus) Valid() bool {
	return s >= UserStatusActive && s <= UserStatusSuspended
}

func (s UserStatus) String() string {
	switch s {
	case UserStatusActive:
		return "active"
	case UserStatusInactive:
		return "inactive"
	case UserStatusBanned:
		return "banned"
	case UserStatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name,omitempty"`
	JoinDate     time.Time  `json:"join_date"`
	Status       UserStatus `json:"status"`
	RoleID       int64      `json:"role_id"`
	RoleName     string     `json:"role"`
	IsDeleted    bool       `json:"is_deleted"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u User) CanLogin() bool {
	return !u.IsDeleted && u.Status == UserStatusActive
}

func (u User) Identity() Identity {
	return Identity{UserID: u.ID, Role: u.RoleName, Username: u.Username}
}

func (u User) AuthUser() AuthUser {
	return AuthUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.RoleName,
		Status:    u.Status.String(),
		JoinDate:  u.JoinDate,
	}
}

type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	IsDeleted bool      `json:"is_deleted"`
}

// Identity is what a verified login hands to the token issuer.
type Identity struct {
	UserID   int64
	Role     string
	Username string
}

type AuthClaims struct {
	UserID    int64     `json:"sub"`
	Username  string    `json:"username,omitempty"`
	Role      string    `json:"role"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"exp"`
}

func (c *AuthClaims) HasRole(roles ...string) bool {
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), c.Role) {
			return true
		}
	}
	return false
}

type AuthUser struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	JoinDate  time.Time `json:"join_date"`
}

type AuthUserList struct {
	Users []AuthUser `json:"users"`
}

type RoleList struct {
	Roles []Role `json:"roles"`
}

type LoginResponse struct {
	User      AuthUser  `json:"user"`
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	Role      string    `json:"role"`
}
