package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate_FormatInvariant(t *testing.T) {
	for i := 0; i < 32; i++ {
		tok, err := Generate()
		require.NoError(t, err)
		require.Len(t, tok, 43)
		require.True(t, IsValidFormat(tok))
		require.NotContains(t, tok, "+")
		require.NotContains(t, tok, "/")
		require.NotContains(t, tok, "=")
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := Generate()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token generated")
		seen[tok] = struct{}{}
	}
}

func TestIsValidFormat(t *testing.T) {
	valid, err := Generate()
	require.NoError(t, err)

	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"generated token", valid, true},
		{"empty", "", false},
		{"too short", valid[:42], false},
		{"too long", valid + "a", false},
		{"base64 standard alphabet", strings.Repeat("a", 41) + "+/", false},
		{"padding char", strings.Repeat("a", 42) + "=", false},
		{"whitespace", strings.Repeat("a", 42) + " ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsValidFormat(tc.input))
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	tok, err := Generate()
	require.NoError(t, err)

	h1 := Hash(tok)
	h2 := Hash(tok)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
	require.Equal(t, strings.ToLower(h1), h1)

	other, err := Generate()
	require.NoError(t, err)
	require.NotEqual(t, h1, Hash(other))
}

func TestVerifyHash_RoundTrip(t *testing.T) {
	tok, hash, err := GenerateWithHash()
	require.NoError(t, err)
	require.True(t, VerifyHash(tok, hash))

	other, err := Generate()
	require.NoError(t, err)
	require.False(t, VerifyHash(other, hash))
	require.False(t, VerifyHash(tok, hash[:40]))
	require.False(t, VerifyHash(tok, ""))
}
