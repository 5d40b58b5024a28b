package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// TokenProvider supplies the bearer credential attached to backend calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed, pre-issued bearer token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	return string(s), nil
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// refreshSkew is how long before expiry a cached token is replaced.
const refreshSkew = 30 * time.Second

// JWTConfig configures a JWTProvider.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Subject  string
	Audience string
	TTL      time.Duration
}

// JWTProvider mints HS256 service tokens for the backend and caches them
// until shortly before expiry.
type JWTProvider struct {
	cfg JWTConfig
	now func() time.Time

	mu      sync.Mutex
	cached  string
	expires time.Time

	group singleflight.Group
}

// NewJWTProvider validates cfg and returns a provider.
func NewJWTProvider(cfg JWTConfig) (*JWTProvider, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.TTL <= refreshSkew {
		cfg.TTL = 15 * time.Minute
	}
	return &JWTProvider{cfg: cfg, now: time.Now}, nil
}

func (p *JWTProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.cached != "" && p.now().Add(refreshSkew).Before(p.expires) {
		tok := p.cached
		p.mu.Unlock()
		return tok, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do("token", func() (any, error) {
		return p.mint()
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *JWTProvider) mint() (string, error) {
	now := p.now()
	exp := now.Add(p.cfg.TTL)

	claims := jwt.RegisteredClaims{
		Issuer:    p.cfg.Issuer,
		Subject:   p.cfg.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	if p.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{p.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	p.mu.Lock()
	p.cached, p.expires = signed, exp
	p.mu.Unlock()
	return signed, nil
}
