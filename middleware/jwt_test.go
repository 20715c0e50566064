package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret-32bytes-padded!!"

func TestParseToken_Valid(t *testing.T) {
	tok, err := GenerateToken("p1", testSecret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.PlayerID)
	assert.Equal(t, "p1", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestParseToken_Rejects(t *testing.T) {
	good, err := GenerateToken("p1", testSecret, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("p1", testSecret, -time.Second)
	require.NoError(t, err)
	anonymous, err := GenerateToken("", testSecret, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name, token, secret string
	}{
		{"wrong secret", good, "wrong-secret"},
		{"expired", expired, testSecret},
		{"no player", anonymous, testSecret},
		{"malformed", "not.a.jwt", testSecret},
		{"empty", "", testSecret},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseToken(tc.token, tc.secret)
			assert.Error(t, err)
		})
	}
}

func TestGenerateToken_Unique(t *testing.T) {
	t1, _ := GenerateToken("p1", testSecret, time.Hour)
	t2, _ := GenerateToken("p1", testSecret, time.Hour)
	assert.NotEqual(t, t1, t2)
}
