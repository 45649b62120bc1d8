// Spotify Web API catalog client
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

const (
	spotifyProvider = "spotify"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultTopTracksPlaylist is the global top 50 chart.
	DefaultTopTracksPlaylist = "37i9dQZEVXbMDoHDwVN2tF"

	spotifyBrowsePageSize   = 50
	spotifyPlaylistPageSize = 100
	spotifyFeaturedLimit    = 20
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	AlbumType            string          `json:"album_type"` // album, single, compilation
	Artists              []SpotifyArtist `json:"artists"`
	ReleaseDate          string          `json:"release_date"`
	ReleaseDatePrecision string          `json:"release_date_precision"`
	TotalTracks          int             `json:"total_tracks"`
	Images               []SpotifyImage  `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	TrackNumber int             `json:"track_number"`
	DiscNumber  int             `json:"disc_number"`
	Type        string          `json:"type"`
}

// SpotifyCollection is a featured playlist summary.
type SpotifyCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type spotifyNewReleasesResponse struct {
	Albums spotifyPage[SpotifyAlbum] `json:"albums"`
}

type spotifyFeaturedResponse struct {
	Message   string                         `json:"message"`
	Playlists spotifyPage[SpotifyCollection] `json:"playlists"`
}

type spotifyPlaylistItem struct {
	Track *SpotifyTrack `json:"track"`
}

// collectionResult is the outcome of reading one featured collection.
type collectionResult struct {
	ID    string
	Items []models.RawTrackItem
	Err   error
}

// SpotifyService reads the Spotify catalog with client-credentials tokens.
type SpotifyService struct {
	baseURL           string
	country           string
	topTracksPlaylist string
	tokens            TokenSource
	req               *requester
}

var _ CatalogSource = (*SpotifyService)(nil)

// NewSpotifyService creates a catalog client. tokens supplies bearer credentials.
func NewSpotifyService(cfg shared.SpotifyConfig, tokens TokenSource, opts ...Option) (*SpotifyService, error) {
	if tokens == nil {
		return nil, fmt.Errorf("%w: spotify token source is required", shared.ErrMissingCredentials)
	}

	o := buildOptions(cfg.Timeout.Duration, opts)
	s := &SpotifyService{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		country:           cfg.Country,
		topTracksPlaylist: cfg.TopTracksPlaylist,
		tokens:            tokens,
	}
	if s.baseURL == "" {
		s.baseURL = spotifyBaseURL
	}
	if s.topTracksPlaylist == "" {
		s.topTracksPlaylist = DefaultTopTracksPlaylist
	}

	s.req = &requester{
		provider: spotifyProvider,
		opts:     o,
		authorize: func(ctx context.Context, req *http.Request) error {
			token, err := tokens.Token(ctx)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+token)
			return nil
		},
	}
	if inv, ok := tokens.(interface{ Invalidate() }); ok {
		s.req.onUnauthorized = inv.Invalidate
	}
	return s, nil
}

// Name returns the provider name
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// NewReleases pages through /browse/new-releases until limit albums are collected.
//
// On a page failure the albums gathered so far are returned together with the error.
func (s *SpotifyService) NewReleases(ctx context.Context, limit int) ([]models.RawReleaseGroup, error) {
	if limit <= 0 {
		return nil, nil
	}

	albums := make([]models.RawReleaseGroup, 0, limit)
	offset := 0
	for len(albums) < limit {
		params := url.Values{}
		params.Set("limit", fmt.Sprintf("%d", min(spotifyBrowsePageSize, limit-len(albums))))
		params.Set("offset", fmt.Sprintf("%d", offset))
		if s.country != "" {
			params.Set("country", s.country)
		}

		var resp spotifyNewReleasesResponse
		if err := s.req.getJSON(ctx, s.baseURL+"/browse/new-releases?"+params.Encode(), &resp); err != nil {
			return albums, fmt.Errorf("failed to fetch new releases: %w", err)
		}

		for _, album := range resp.Albums.Items {
			albums = append(albums, album.raw())
		}

		offset += len(resp.Albums.Items)
		if resp.Albums.Next == nil || len(resp.Albums.Items) == 0 {
			break
		}
	}
	return truncate(albums, limit), nil
}

// TopTracks reads the fixed top-tracks playlist.
func (s *SpotifyService) TopTracks(ctx context.Context, limit int) ([]models.RawTrackItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	items, err := s.PlaylistTracks(ctx, s.topTracksPlaylist, limit)
	if err != nil {
		return items, fmt.Errorf("failed to fetch top tracks: %w", err)
	}
	return items, nil
}

// FeaturedCollectionTracks lists featured playlists and gathers their tracks.
//
// A collection that cannot be read is logged and skipped. The call fails only when nothing
// was collected and at least one step failed.
func (s *SpotifyService) FeaturedCollectionTracks(ctx context.Context, limit int) ([]models.RawTrackItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	collections, err := s.FeaturedCollections(ctx, spotifyFeaturedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch featured collections: %w", err)
	}

	results := make([]collectionResult, 0, len(collections))
	collected := 0
	for _, c := range collections {
		if collected >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			results = append(results, collectionResult{ID: c.ID, Err: err})
			break
		}

		items, err := s.PlaylistTracks(ctx, c.ID, limit-collected)
		results = append(results, collectionResult{ID: c.ID, Items: items, Err: err})
		collected += len(items)
	}

	var (
		tracks []models.RawTrackItem
		errs   []error
	)
	for _, r := range results {
		if r.Err != nil {
			s.req.opts.logger.Warn("skipping featured collection", "collection", r.ID, "error", r.Err)
			errs = append(errs, fmt.Errorf("collection %s: %w", r.ID, r.Err))
		}
		tracks = append(tracks, r.Items...)
	}

	if len(tracks) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return truncate(tracks, limit), nil
}

// FeaturedCollections returns the featured playlists for the configured country.
func (s *SpotifyService) FeaturedCollections(ctx context.Context, limit int) ([]SpotifyCollection, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", min(limit, spotifyBrowsePageSize)))
	if s.country != "" {
		params.Set("country", s.country)
	}

	var resp spotifyFeaturedResponse
	if err := s.req.getJSON(ctx, s.baseURL+"/browse/featured-playlists?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	collections := make([]SpotifyCollection, 0, len(resp.Playlists.Items))
	for _, c := range resp.Playlists.Items {
		if c.ID != "" {
			collections = append(collections, c)
		}
	}
	return collections, nil
}

// PlaylistTracks pages through a playlist's tracks. Local files and removed tracks are skipped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]models.RawTrackItem, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	var items []models.RawTrackItem
	offset := 0
	for len(items) < limit {
		params := url.Values{}
		params.Set("limit", fmt.Sprintf("%d", min(spotifyPlaylistPageSize, limit-len(items))))
		params.Set("offset", fmt.Sprintf("%d", offset))
		if s.country != "" {
			params.Set("market", s.country)
		}

		endpoint := fmt.Sprintf("%s/playlists/%s/tracks?%s", s.baseURL, url.PathEscape(playlistID), params.Encode())
		var page spotifyPage[spotifyPlaylistItem]
		if err := s.req.getJSON(ctx, endpoint, &page); err != nil {
			return items, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			items = append(items, item.Track.raw())
		}

		offset += len(page.Items)
		if page.Next == nil || len(page.Items) == 0 {
			break
		}
	}
	return truncate(items, limit), nil
}

// primaryType maps album_type onto release-group primary/secondary types.
func (a SpotifyAlbum) primaryType() (string, []string) {
	switch strings.ToLower(a.AlbumType) {
	case "album":
		return "Album", nil
	case "single":
		return "Single", nil
	case "compilation":
		return "Album", []string{"Compilation"}
	default:
		return a.AlbumType, nil
	}
}

func (a SpotifyAlbum) raw() models.RawReleaseGroup {
	primary, secondary := a.primaryType()
	credits := make([]models.RawArtistCredit, 0, len(a.Artists))
	for _, artist := range a.Artists {
		credits = append(credits, models.RawArtistCredit{Key: artist.ID, Name: artist.Name})
	}
	return models.RawReleaseGroup{
		Key:              a.ID,
		Title:            a.Name,
		PrimaryType:      primary,
		SecondaryTypes:   secondary,
		FirstReleaseDate: a.ReleaseDate,
		ArtistCredits:    credits,
		Source:           models.SourceSpotify,
	}
}

func (t SpotifyTrack) raw() models.RawTrackItem {
	return models.RawTrackItem{
		Album: t.Album.raw(),
		Recording: models.RawRecording{
			Key:        t.ID,
			Title:      t.Name,
			LengthMS:   t.DurationMS,
			Position:   t.TrackNumber,
			DiscNumber: t.DiscNumber,
		},
	}
}

func truncate[T any](items []T, limit int) []T {
	if limit >= 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
