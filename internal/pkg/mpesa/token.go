package mpesa

import (
	"context"
	"sync"
	"time"
)

// TokenSource hands out bearer tokens for push requests. The implementation
// decides the token lifetime policy.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type tokenFetcher interface {
	FetchBearerToken(ctx context.Context) (*Token, error)
}

// PerRequestTokens fetches a fresh token for every push.
type PerRequestTokens struct {
	fetcher tokenFetcher
}

func NewPerRequestTokens(fetcher tokenFetcher) *PerRequestTokens {
	return &PerRequestTokens{fetcher: fetcher}
}

func (p *PerRequestTokens) Token(ctx context.Context) (string, error) {
	tok, err := p.fetcher.FetchBearerToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// CachedTokens reuses a token until margin before its reported expiry.
// Tokens without a reported lifetime are never cached.
type CachedTokens struct {
	fetcher tokenFetcher
	margin  time.Duration
	now     func() time.Time

	mu      sync.Mutex
	current *Token
}

func NewCachedTokens(fetcher tokenFetcher, margin time.Duration) *CachedTokens {
	if margin < 0 {
		margin = 0
	}
	return &CachedTokens{fetcher: fetcher, margin: margin, now: time.Now}
}

func (c *CachedTokens) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid() {
		return c.current.AccessToken, nil
	}

	tok, err := c.fetcher.FetchBearerToken(ctx)
	if err != nil {
		c.current = nil
		return "", err
	}
	if tok.ExpiresIn > c.margin {
		c.current = tok
	} else {
		c.current = nil
	}
	return tok.AccessToken, nil
}

// Invalidate drops the cached token, e.g. after the gateway rejected it.
func (c *CachedTokens) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *CachedTokens) valid() bool {
	if c.current == nil {
		return false
	}
	expiresAt := c.current.ExpiresAt()
	if expiresAt.IsZero() {
		return false
	}
	return c.now().Before(expiresAt.Add(-c.margin))
}
