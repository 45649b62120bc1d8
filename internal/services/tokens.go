package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTokenMargin is how long before expiry a cached token stops being handed out.
	DefaultTokenMargin = 60 * time.Second

	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	exchangeTimeout = 15 * time.Second
)

// TokenCache obtains client-credentials bearer tokens and caches them until shortly before expiry.
//
// Concurrent callers that find the cache stale share a single exchange.
type TokenCache struct {
	provider string
	config   *clientcredentials.Config
	client   *http.Client
	margin   time.Duration
	now      func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time

	group     singleflight.Group
	exchanges atomic.Int64
}

var _ TokenSource = (*TokenCache)(nil)

// TokenOption configures a TokenCache.
type TokenOption func(*TokenCache)

// WithTokenHTTPClient sets the client used for the exchange call.
func WithTokenHTTPClient(client *http.Client) TokenOption {
	return func(c *TokenCache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMargin overrides [DefaultTokenMargin].
func WithMargin(margin time.Duration) TokenOption {
	return func(c *TokenCache) {
		if margin >= 0 {
			c.margin = margin
		}
	}
}

// NewTokenCache creates a cache for the given provider from "client_id", "client_secret" and optional "token_url".
func NewTokenCache(provider string, credentials map[string]string, opts ...TokenOption) (*TokenCache, error) {
	clientID := strings.TrimSpace(credentials["client_id"])
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := strings.TrimSpace(credentials["client_secret"])
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	tokenURL := strings.TrimSpace(credentials["token_url"])
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	cache := &TokenCache{
		provider: provider,
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		client: &http.Client{Timeout: exchangeTimeout},
		margin: DefaultTokenMargin,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache, nil
}

// Token returns a cached token whose remaining lifetime exceeds the margin, exchanging for a new one otherwise.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	ch := c.group.DoChan("token", func() (any, error) {
		if token, ok := c.cached(); ok {
			return token, nil
		}
		// Shared by every waiter, so the first caller's cancellation must not abort it.
		exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeTimeout)
		defer cancel()
		return c.exchange(exCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call exchanges again.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
}

// Exchanges reports how many exchange calls have been made.
func (c *TokenCache) Exchanges() int64 {
	return c.exchanges.Load()
}

// Expiry returns the time after which the cached token will be refreshed.
func (c *TokenCache) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Before(c.expiry) {
		return "", false
	}
	return c.token, true
}

func (c *TokenCache) exchange(ctx context.Context) (string, error) {
	c.exchanges.Add(1)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)
	tok, err := c.config.Token(ctx)
	if err != nil {
		return "", &shared.CredentialError{Provider: c.provider, Err: err}
	}
	if tok.AccessToken == "" {
		return "", &shared.CredentialError{Provider: c.provider, Err: errors.New("response missing access_token")}
	}
	if tok.Expiry.IsZero() {
		return "", &shared.CredentialError{Provider: c.provider, Err: errors.New("response missing expires_in")}
	}

	// oauth2 stamps Expiry against the wall clock; carry the lifetime over to ours.
	lifetime := time.Until(tok.Expiry)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = tok.AccessToken
	c.expiry = c.now().Add(lifetime - c.margin)
	return c.token, nil
}
