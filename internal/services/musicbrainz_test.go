package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	tu "github.com/desertthunder/crate/internal/testing"
)

func newTestMusicBrainz(t *testing.T, srv *httptest.Server) *MusicBrainzService {
	t.Helper()
	cfg := shared.MusicBrainzConfig{BaseURL: srv.URL, UserAgent: "crate-test/1.0 (test@example.com)"}
	s, err := NewMusicBrainzService(cfg, WithRetry(fastRetry), WithRateLimit(1))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return s
}

func TestMusicBrainzService(t *testing.T) {
	t.Run("Requires User Agent", func(t *testing.T) {
		_, err := NewMusicBrainzService(shared.MusicBrainzConfig{})
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("BrowseReleaseGroups", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/release-group" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.Header.Get("User-Agent"); got != "crate-test/1.0 (test@example.com)" {
				t.Errorf("expected user agent, got %q", got)
			}
			if got := r.URL.Query().Get("fmt"); got != "json" {
				t.Errorf("expected fmt=json, got %q", got)
			}
			if got := r.URL.Query().Get("query"); got != "tag:jazz" {
				t.Errorf("expected query, got %q", got)
			}

			tu.WriteJSON(t, w, http.StatusOK, map[string]any{
				"count":  1,
				"offset": 0,
				"release-groups": []map[string]any{{
					"id":                 "rg-1",
					"title":              "Kind of Blue",
					"primary-type":       "Album",
					"secondary-types":    []string{"Live"},
					"first-release-date": "1959-08",
					"artist-credit": []map[string]any{{
						"name": "Miles",
						"artist": map[string]any{
							"id":        "ar-1",
							"name":      "Miles Davis",
							"sort-name": "Davis, Miles",
							"type":      "Person",
							"area":      map[string]any{"name": "United States"},
						},
					}},
				}},
			})
		}))
		defer srv.Close()

		s := newTestMusicBrainz(t, srv)
		groups, err := s.BrowseReleaseGroups(context.Background(), "tag:jazz", 25)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(groups) != 1 {
			t.Fatalf("expected 1 release group, got %d", len(groups))
		}

		rg := groups[0]
		if rg.Key != "rg-1" || rg.PrimaryType != "Album" || rg.FirstReleaseDate != "1959-08" {
			t.Errorf("unexpected release group %+v", rg)
		}
		if rg.Source != models.SourceMusicBrainz {
			t.Errorf("expected source musicbrainz, got %s", rg.Source)
		}
		if len(rg.SecondaryTypes) != 1 || rg.SecondaryTypes[0] != "Live" {
			t.Errorf("expected secondary types [Live], got %v", rg.SecondaryTypes)
		}

		credit := rg.ArtistCredits[0]
		if credit.Name != "Miles Davis" || credit.SortName != "Davis, Miles" || credit.Area != "United States" {
			t.Errorf("unexpected artist credit %+v", credit)
		}
	})

	t.Run("BrowseReleaseGroups Requires Query", func(t *testing.T) {
		s, _ := NewMusicBrainzService(shared.MusicBrainzConfig{UserAgent: "ua"})
		if _, err := s.BrowseReleaseGroups(context.Background(), " ", 10); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("ReleaseRecordings", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/release":
				if got := r.URL.Query().Get("release-group"); got != "rg-1" {
					t.Errorf("expected release-group rg-1, got %q", got)
				}
				tu.WriteJSON(t, w, http.StatusOK, map[string]any{"releases": []map[string]any{{"id": "rel-1"}}})
			case "/release/rel-1":
				if got := r.URL.Query().Get("inc"); got != "recordings" {
					t.Errorf("expected inc=recordings, got %q", got)
				}
				tu.WriteJSON(t, w, http.StatusOK, map[string]any{
					"id":     "rel-1",
					"status": "Official",
					"media": []map[string]any{
						{"position": 1, "tracks": []map[string]any{
							{"position": 1, "title": "So What", "recording": map[string]any{"id": "rec-1", "title": "So What", "length": 562000}},
							{"position": 2, "title": "Freddie Freeloader", "length": 586000, "recording": map[string]any{"id": "rec-2", "title": "Freddie Freeloader"}},
						}},
						{"position": 2, "tracks": []map[string]any{
							{"position": 1, "title": "Flamenco Sketches", "recording": map[string]any{"id": "rec-3", "title": "Flamenco Sketches"}},
						}},
					},
				})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer srv.Close()

		s := newTestMusicBrainz(t, srv)
		listing, err := s.ReleaseRecordings(context.Background(), "rg-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if listing.ReleaseKey != "rel-1" || listing.Status != "Official" {
			t.Errorf("unexpected listing %+v", listing)
		}
		if len(listing.Recordings) != 3 {
			t.Fatalf("expected 3 recordings, got %d", len(listing.Recordings))
		}
		if rec := listing.Recordings[1]; rec.LengthMS != 586000 || rec.Position != 2 || rec.DiscNumber != 1 {
			t.Errorf("expected track length fallback, got %+v", rec)
		}
		if rec := listing.Recordings[2]; rec.Position != 1 || rec.DiscNumber != 2 || rec.LengthMS != 0 {
			t.Errorf("expected second disc, got %+v", rec)
		}
	})

	t.Run("ReleaseRecordings Without Releases", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, http.StatusOK, map[string]any{"releases": []any{}})
		}))
		defer srv.Close()

		s := newTestMusicBrainz(t, srv)
		if _, err := s.ReleaseRecordings(context.Background(), "rg-1"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
