package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTProvider_RequiresSecret(t *testing.T) {
	_, err := NewJWTProvider(JWTConfig{})
	assert.Error(t, err)
}

func TestJWTProvider_MintsVerifiableToken(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	p, err := NewJWTProvider(JWTConfig{Secret: secret, Issuer: "emr-console", Subject: "console", Audience: "emr-api", TTL: time.Hour})
	require.NoError(t, err)

	tok, err := p.Token(context.Background())
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithIssuer("emr-console"), jwt.WithAudience("emr-api"))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "console", claims.Subject)
}

func TestJWTProvider_CachesUntilNearExpiry(t *testing.T) {
	p, err := NewJWTProvider(JWTConfig{Secret: []byte("k"), TTL: 10 * time.Minute})
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	first, err := p.Token(context.Background())
	require.NoError(t, err)
	second, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	now = now.Add(10*time.Minute - refreshSkew)
	third, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestJWTProvider_ConcurrentCallers(t *testing.T) {
	p, err := NewJWTProvider(JWTConfig{Secret: []byte("k")})
	require.NoError(t, err)

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = p.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens {
		assert.NotEmpty(t, tok)
	}
}
