package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeUsername(t *testing.T) {
	t.Parallel()

	t.Run("trims and keeps case", func(t *testing.T) {
		actual, err := SanitizeUsername("  Alice.Smith ")
		require.NoError(t, err)
		require.Equal(t, "Alice.Smith", actual)
	})

	t.Run("strips zero width characters", func(t *testing.T) {
		actual, err := SanitizeUsername("bo\u200Bb_1")
		require.NoError(t, err)
		require.Equal(t, "bob_1", actual)
	})

	t.Run("rejects empty usernames", func(t *testing.T) {
		_, err := SanitizeUsername("   ")
		require.Error(t, err)
	})

	t.Run("rejects short and long usernames", func(t *testing.T) {
		_, err := SanitizeUsername("ab")
		require.Error(t, err)

		_, err = SanitizeUsername(strings.Repeat("a", 51))
		require.Error(t, err)
	})

	t.Run("rejects disallowed characters", func(t *testing.T) {
		for _, name := range []string{"alice smith", "alice@home", "-alice", "ali/ce"} {
			_, err := SanitizeUsername(name)
			require.Error(t, err, name)
		}
	})
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	actual, err := NormalizeEmail(" Alice@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", actual)

	for _, email := range []string{"", "not-an-email", "Alice <alice@example.com>", "alice@"} {
		_, err := NormalizeEmail(email)
		require.Error(t, err, email)
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	actual, err := SanitizeName("  Layla ", "first_name", true)
	require.NoError(t, err)
	require.Equal(t, "Layla", actual)

	_, err = SanitizeName(" ", "first_name", true)
	require.Error(t, err)

	actual, err = SanitizeName("", "last_name", false)
	require.NoError(t, err)
	require.Equal(t, "", actual)

	_, err = SanitizeName(strings.Repeat("x", 101), "last_name", false)
	require.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePassword("secret"))
	require.NoError(t, ValidatePassword(" spaced secret "))
	require.Error(t, ValidatePassword(""))
	require.Error(t, ValidatePassword("12345"))
	require.Error(t, ValidatePassword(strings.Repeat("p", 101)))
}
