package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/crate/internal/shared"
	tu "github.com/desertthunder/crate/internal/testing"
)

func tokenServer(t *testing.T, hits *atomic.Int64, body map[string]any, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if id, secret, ok := r.BasicAuth(); !ok || id != "id" || secret != "secret" {
			t.Errorf("expected basic auth with client credentials")
		}
		tu.WriteJSON(t, w, status, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestCache(t *testing.T, tokenURL string, opts ...TokenOption) *TokenCache {
	t.Helper()
	cache, err := NewTokenCache("spotify", map[string]string{
		"client_id":     "id",
		"client_secret": "secret",
		"token_url":     tokenURL,
	}, opts...)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return cache
}

func TestTokenCache(t *testing.T) {
	valid := map[string]any{"access_token": "abc", "token_type": "bearer", "expires_in": 3600}

	t.Run("NewTokenCache", func(t *testing.T) {
		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewTokenCache("spotify", map[string]string{"client_secret": "secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewTokenCache("spotify", map[string]string{"client_id": "id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("Reuses Cached Token", func(t *testing.T) {
		var hits atomic.Int64
		srv := tokenServer(t, &hits, valid, http.StatusOK)
		cache := newTestCache(t, srv.URL)

		for range 3 {
			token, err := cache.Token(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token != "abc" {
				t.Errorf("expected token 'abc', got %q", token)
			}
		}

		if hits.Load() != 1 {
			t.Errorf("expected 1 exchange, got %d", hits.Load())
		}
	})

	t.Run("Refreshes Inside Safety Margin", func(t *testing.T) {
		var hits atomic.Int64
		body := map[string]any{"access_token": "abc", "token_type": "bearer", "expires_in": 120}
		srv := tokenServer(t, &hits, body, http.StatusOK)
		clock := tu.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		cache := newTestCache(t, srv.URL, WithClock(clock.Now))

		if _, err := cache.Token(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		clock.Advance(30 * time.Second)
		if _, err := cache.Token(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hits.Load() != 1 {
			t.Errorf("expected cached token with 90s left, got %d exchanges", hits.Load())
		}

		clock.Advance(31 * time.Second)
		if _, err := cache.Token(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hits.Load() != 2 {
			t.Errorf("expected refresh with under 60s left, got %d exchanges", hits.Load())
		}
	})

	t.Run("Concurrent Callers Share One Exchange", func(t *testing.T) {
		var hits atomic.Int64
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			<-release
			tu.WriteJSON(t, w, http.StatusOK, valid)
		}))
		defer srv.Close()
		cache := newTestCache(t, srv.URL)

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := cache.Token(context.Background()); err != nil {
					errs <- err
				}
			}()
		}

		for hits.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		close(release)
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Errorf("expected no error, got %v", err)
		}
		if hits.Load() != 1 {
			t.Errorf("expected 1 exchange, got %d", hits.Load())
		}
		if cache.Exchanges() != 1 {
			t.Errorf("expected 1 recorded exchange, got %d", cache.Exchanges())
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		var hits atomic.Int64
		srv := tokenServer(t, &hits, map[string]any{"error": "invalid_client"}, http.StatusBadRequest)
		cache := newTestCache(t, srv.URL)

		_, err := cache.Token(context.Background())
		if !errors.Is(err, shared.ErrCredential) {
			t.Fatalf("expected ErrCredential, got %v", err)
		}
		if !shared.IsCredentialError(err) {
			t.Errorf("expected CredentialError, got %T", err)
		}

		if _, err := cache.Token(context.Background()); err == nil {
			t.Error("expected failure to not be cached")
		}
		if hits.Load() != 2 {
			t.Errorf("expected 2 exchanges, got %d", hits.Load())
		}
	})

	t.Run("Malformed Payload", func(t *testing.T) {
		cases := map[string]map[string]any{
			"missing access token": {"token_type": "bearer", "expires_in": 3600},
			"missing expires in":   {"access_token": "abc", "token_type": "bearer"},
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				var hits atomic.Int64
				srv := tokenServer(t, &hits, body, http.StatusOK)
				cache := newTestCache(t, srv.URL)

				if _, err := cache.Token(context.Background()); !errors.Is(err, shared.ErrCredential) {
					t.Errorf("expected ErrCredential, got %v", err)
				}
				if !cache.Expiry().IsZero() {
					t.Error("expected nothing cached")
				}
			})
		}
	})

	t.Run("Invalidate", func(t *testing.T) {
		var hits atomic.Int64
		srv := tokenServer(t, &hits, valid, http.StatusOK)
		cache := newTestCache(t, srv.URL)

		if _, err := cache.Token(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		cache.Invalidate()
		if _, err := cache.Token(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if hits.Load() != 2 {
			t.Errorf("expected 2 exchanges, got %d", hits.Load())
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
			tu.WriteJSON(t, w, http.StatusOK, valid)
		}))
		defer srv.Close()
		defer close(release)
		cache := newTestCache(t, srv.URL)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := cache.Token(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}
