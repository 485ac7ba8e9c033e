package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashKeyDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.HashKey("https://example.com/a")
	require.NoError(t, err)
	require.Equal(t, "2dce0a4c50441bfccfa9caf4b58c3cba6e06c420505dd829f0436de1aa44baac", got)

	again, err := h.HashKey("https://example.com/a")
	require.NoError(t, err)
	require.Equal(t, got, again)

	other, err := h.HashKey("https://example.com/b")
	require.NoError(t, err)
	require.NotEqual(t, got, other)
}

func TestHashKeySharesDigestAcrossVariants(t *testing.T) {
	t.Parallel()

	h := New()
	want, err := h.HashKey("https://example.com/a")
	require.NoError(t, err)
	for _, variant := range []string{"HTTPS://Example.com/a/", "https://example.com:443/a?utm_source=x", "https://example.com/a#top"} {
		got, err := h.HashKey(variant)
		require.NoError(t, err)
		require.Equal(t, want, got, variant)
	}
}

func TestHashKeyRejectsRelativeURL(t *testing.T) {
	t.Parallel()

	_, err := New().HashKey("/a")
	require.ErrorContains(t, err, "hash key")
}
