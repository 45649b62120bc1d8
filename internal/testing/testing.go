// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// StaticTokens is a test double for [services.TokenSource]
type StaticTokens struct {
	Value         string
	Err           error
	invalidations atomic.Int64
}

func (s *StaticTokens) Token(ctx context.Context) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Value, nil
}

func (s *StaticTokens) Invalidate() { s.invalidations.Add(1) }

func (s *StaticTokens) Invalidations() int64 { return s.invalidations.Load() }

// FakeClock is a settable clock
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewMemoryDB opens an in-memory catalog with migrations applied. It is closed with the test.
func NewMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// WriteJSON encodes v as a JSON response
func WriteJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

// ReleaseGroup builds a raw album credited to the given artist keys, each named "Artist <key>".
func ReleaseGroup(key, title, primary string, artistKeys ...string) models.RawReleaseGroup {
	credits := make([]models.RawArtistCredit, 0, len(artistKeys))
	for _, a := range artistKeys {
		credits = append(credits, models.RawArtistCredit{Key: a, Name: "Artist " + a})
	}
	return models.RawReleaseGroup{
		Key:              key,
		Title:            title,
		PrimaryType:      primary,
		FirstReleaseDate: "2001",
		ArtistCredits:    credits,
		Source:           models.SourceMusicBrainz,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
