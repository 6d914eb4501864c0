package util

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"marketplace-auth/pkg/apierror"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 50
	PasswordMinLength = 6
	PasswordMaxLength = 100
	NameMaxLength     = 100
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// SanitizeUsername strips invisible characters and enforces the allowed
// username alphabet. Case is preserved; lookups compare case-insensitively.
func SanitizeUsername(name string) (string, error) {
	cleaned := stripInvisible(strings.TrimSpace(name))
	if cleaned == "" {
		return "", apierror.BadRequest("username is required", "username")
	}

	length := utf8.RuneCountInString(cleaned)
	if length < UsernameMinLength || length > UsernameMaxLength {
		return "", apierror.BadRequest("username must be between 3 and 50 characters", "username")
	}

	if !usernamePattern.MatchString(cleaned) {
		return "", apierror.BadRequest("username may only contain letters, digits, '.', '_' and '-'", "username")
	}

	return cleaned, nil
}

// NormalizeEmail accepts a bare address only and lowercases it.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", apierror.BadRequest("email is required", "email")
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed || addr.Name != "" {
		return "", apierror.BadRequest("invalid email format", "email")
	}

	return strings.ToLower(addr.Address), nil
}

// SanitizeName is used for first and last names. Empty input is allowed
// unless required is set.
func SanitizeName(name string, field string, required bool) (string, error) {
	cleaned := stripInvisible(strings.TrimSpace(name))
	if cleaned == "" && required {
		return "", apierror.BadRequest(field+" is required", field)
	}

	if utf8.RuneCountInString(cleaned) > NameMaxLength {
		return "", apierror.BadRequest(field+" cannot exceed 100 characters", field)
	}

	return cleaned, nil
}

// ValidatePassword enforces length bounds only. The password itself is never
// altered: trimming it would change what the user has to type.
func ValidatePassword(password string) error {
	if password == "" {
		return apierror.BadRequest("password is required", "password")
	}

	length := utf8.RuneCountInString(password)
	if length < PasswordMinLength || length > PasswordMaxLength {
		return apierror.BadRequest("password must be between 6 and 100 characters", "password")
	}

	return nil
}

func stripInvisible(value string) string {
	builder := strings.Builder{}
	builder.Grow(len(value))

	for _, char := range value {
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	return builder.String()
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u200E', // Left-to-Right Mark
		'\u200F', // Right-to-Left Mark
		'\u2060', // Word Joiner
		'\uFEFF': // Zero-Width No-Break Space / BOM
		return true
	}

	return unicode.Is(unicode.Cf, r)
}
