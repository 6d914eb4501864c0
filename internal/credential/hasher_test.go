package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Low iteration count keeps the suite fast; production code cannot build
// a Hasher below MinIterations.
func newTestHasher() *Hasher {
	return &Hasher{iterations: 1_000, random: rand.Reader}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestNewHasher(t *testing.T) {
	t.Parallel()

	t.Run("applies the default below the floor", func(t *testing.T) {
		require.Equal(t, DefaultIterations, NewHasher(0).Iterations())
		require.Equal(t, DefaultIterations, NewHasher(10_000).Iterations())
	})

	t.Run("keeps a stronger count", func(t *testing.T) {
		require.Equal(t, 250_000, NewHasher(250_000).Iterations())
	})
}

func TestHasherHash(t *testing.T) {
	t.Parallel()

	h := newTestHasher()

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := h.Hash("")
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("produces a 48 byte digest", func(t *testing.T) {
		for _, password := range []string{"a", "secret123", strings.Repeat("long", 200), "pässwörd ✓"} {
			digest, err := h.Hash(password)
			require.NoError(t, err)
			require.Len(t, digest, 64)

			raw, err := base64.StdEncoding.DecodeString(digest)
			require.NoError(t, err)
			require.Len(t, raw, DigestSize)
		}
	})

	t.Run("salts every digest", func(t *testing.T) {
		first, err := h.Hash("same-password")
		require.NoError(t, err)
		second, err := h.Hash("same-password")
		require.NoError(t, err)
		require.NotEqual(t, first, second)
	})

	t.Run("surfaces entropy failures", func(t *testing.T) {
		broken := &Hasher{iterations: 1_000, random: failingReader{}}
		_, err := broken.Hash("secret123")
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrInvalidInput)
	})
}

func TestHasherVerify(t *testing.T) {
	t.Parallel()

	h := newTestHasher()
	digest, err := h.Hash("correct horse")
	require.NoError(t, err)

	tests := []struct {
		name     string
		stored   string
		provided string
		want     bool
	}{
		{name: "round trip", stored: digest, provided: "correct horse", want: true},
		{name: "wrong password", stored: digest, provided: "correct horsf", want: false},
		{name: "empty password", stored: digest, provided: "", want: false},
		{name: "empty digest", stored: "", provided: "correct horse", want: false},
		{name: "not base64", stored: "plainTextValue!", provided: "plainTextValue!", want: false},
		{name: "short digest", stored: base64.StdEncoding.EncodeToString(make([]byte, 32)), provided: "x", want: false},
		{name: "zero digest", stored: base64.StdEncoding.EncodeToString(make([]byte, DigestSize)), provided: "x", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.Verify(tt.stored, tt.provided))
		})
	}

	t.Run("digest from a different iteration count does not verify", func(t *testing.T) {
		other := &Hasher{iterations: 2_000, random: rand.Reader}
		require.False(t, other.Verify(digest, "correct horse"))
	})
}

func TestHasherDefaultIterationsRoundTrip(t *testing.T) {
	t.Parallel()

	h := NewHasher(DefaultIterations)
	digest, err := h.Hash("secret123")
	require.NoError(t, err)
	require.True(t, h.Verify(digest, "secret123"))
	require.False(t, h.Verify(digest, "secret124"))
}

func TestIsLegacyFormat(t *testing.T) {
	t.Parallel()

	h := newTestHasher()
	digest, err := h.Hash("p")
	require.NoError(t, err)

	assert.False(t, h.IsLegacyFormat(digest))
	assert.True(t, h.IsLegacyFormat("plainTextValue"))
	assert.True(t, h.IsLegacyFormat(""))
	assert.True(t, h.IsLegacyFormat("c2VjcmV0MTIz"))
	assert.False(t, h.IsLegacyFormat(base64.StdEncoding.EncodeToString(make([]byte, DigestSize))))
}

func TestHasherConcurrentHash(t *testing.T) {
	t.Parallel()

	const workers = 1000

	h := newTestHasher()
	digests := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			digests[i], errs[i] = h.Hash("shared-password")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.True(t, h.Verify(digests[i], "shared-password"))
		seen[digests[i]] = struct{}{}
	}

	require.Len(t, seen, workers)
}
