package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/time/rate"
)

// TokenSource hands out bearer tokens for a provider.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// CatalogSource defines the streaming catalog operations, one per source strategy.
type CatalogSource interface {
	// NewReleases returns up to limit newly released albums.
	NewReleases(ctx context.Context, limit int) ([]models.RawReleaseGroup, error)

	// TopTracks returns up to limit tracks from the fixed top-tracks collection.
	TopTracks(ctx context.Context, limit int) ([]models.RawTrackItem, error)

	// FeaturedCollectionTracks returns up to limit tracks gathered across featured collections.
	// A collection that fails is logged and skipped.
	FeaturedCollectionTracks(ctx context.Context, limit int) ([]models.RawTrackItem, error)
}

// ReleaseGroupSource defines the community metadata database operations.
type ReleaseGroupSource interface {
	// BrowseReleaseGroups returns up to limit release groups matching query.
	BrowseReleaseGroups(ctx context.Context, query string, limit int) ([]models.RawReleaseGroup, error)

	// ReleaseRecordings lists the recordings of a representative release of the release group.
	ReleaseRecordings(ctx context.Context, releaseGroupKey string) (*ReleaseListing, error)
}

// CoverArtSource looks up front cover images.
type CoverArtSource interface {
	// FrontCover returns the front cover image URL, or [shared.ErrNotFound] when there is none.
	FrontCover(ctx context.Context, key string) (string, error)
}

// RetryPolicy bounds retries of a provider call. Backoff is exponential.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when a client is built without one.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}

// RetryPolicyFromConfig converts the [shared.RetryConfig] section.
func RetryPolicyFromConfig(c shared.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      c.MaxRetries,
		InitialInterval: c.InitialInterval.Duration,
		MaxInterval:     c.MaxInterval.Duration,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Option configures a provider client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	logger     *log.Logger
	retry      RetryPolicy
	limiter    *rate.Limiter
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithLogger sets the logger used for retries and skipped records.
func WithLogger(logger *log.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(policy RetryPolicy) Option {
	return func(o *clientOptions) {
		o.retry = policy
	}
}

// WithRateLimit spaces requests at least interval apart. Zero disables pacing.
func WithRateLimit(interval time.Duration) Option {
	return func(o *clientOptions) {
		if interval > 0 {
			o.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

func buildOptions(timeout time.Duration, opts []Option) clientOptions {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	o := clientOptions{
		httpClient: &http.Client{Timeout: timeout},
		logger:     shared.DiscardLogger(),
		retry:      DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// requester performs GET requests that decode JSON, with bounded retries.
type requester struct {
	provider       string
	userAgent      string
	opts           clientOptions
	authorize      func(ctx context.Context, req *http.Request) error
	onUnauthorized func()
}

// retryableStatus reports statuses worth another attempt.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusUnauthorized || status >= 500
}

// getJSON fetches url into out. A 404 surfaces as [shared.ErrNotFound] inside a [shared.FetchError];
// credential failures are returned untouched.
func (r *requester) getJSON(ctx context.Context, url string, out any) error {
	var status int

	op := func() error {
		if r.opts.limiter != nil {
			if err := r.opts.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if r.userAgent != "" {
			req.Header.Set("User-Agent", r.userAgent)
		}
		if r.authorize != nil {
			if err := r.authorize(ctx, req); err != nil {
				return backoff.Permanent(err)
			}
		}

		resp, err := r.opts.httpClient.Do(req)
		if err != nil {
			status = 0
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		switch {
		case status == http.StatusNotFound:
			return backoff.Permanent(shared.ErrNotFound)
		case status == http.StatusUnauthorized && r.onUnauthorized != nil:
			r.onUnauthorized()
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("%s API error: status %d", r.provider, status)
		case retryableStatus(status) && status != http.StatusUnauthorized:
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("%s API error: status %d", r.provider, status)
		case status < 200 || status >= 300:
			return backoff.Permanent(fmt.Errorf("%s API error: status %d", r.provider, status))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		r.opts.logger.Warn("retrying provider request", "provider", r.provider, "url", url, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(op, r.opts.retry.backOff(ctx), notify)
	if err == nil {
		return nil
	}

	var credErr *shared.CredentialError
	if errors.As(err, &credErr) {
		return err
	}
	return &shared.FetchError{Provider: r.provider, URL: url, Status: status, Err: err}
}
