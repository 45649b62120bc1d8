// MusicBrainz web service client
//
// Response types based on https://musicbrainz.org/doc/MusicBrainz_API
package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

const (
	musicBrainzProvider = "musicbrainz"
	musicBrainzBaseURL  = "https://musicbrainz.org/ws/2"
	musicBrainzPageSize = 100

	// DefaultMusicBrainzInterval matches the documented one request per second limit.
	DefaultMusicBrainzInterval = time.Second
)

// MusicBrainzArea is an artist's area.
type MusicBrainzArea struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MusicBrainzArtist is the artist inside an artist credit.
type MusicBrainzArtist struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	SortName       string           `json:"sort-name"`
	Type           string           `json:"type"`
	Disambiguation string           `json:"disambiguation"`
	Area           *MusicBrainzArea `json:"area"`
}

// MusicBrainzArtistCredit is one credited artist.
type MusicBrainzArtistCredit struct {
	Name       string            `json:"name"`
	JoinPhrase string            `json:"joinphrase"`
	Artist     MusicBrainzArtist `json:"artist"`
}

// MusicBrainzReleaseGroup is a release group search result.
type MusicBrainzReleaseGroup struct {
	ID               string                    `json:"id"`
	Title            string                    `json:"title"`
	PrimaryType      string                    `json:"primary-type"`
	SecondaryTypes   []string                  `json:"secondary-types"`
	FirstReleaseDate string                    `json:"first-release-date"`
	ArtistCredit     []MusicBrainzArtistCredit `json:"artist-credit"`
}

// MusicBrainzRecording is a recording.
type MusicBrainzRecording struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Length         *int   `json:"length"`
	Disambiguation string `json:"disambiguation"`
}

// MusicBrainzTrack is a track on a medium.
type MusicBrainzTrack struct {
	ID        string               `json:"id"`
	Position  int                  `json:"position"`
	Title     string               `json:"title"`
	Length    *int                 `json:"length"`
	Recording MusicBrainzRecording `json:"recording"`
}

// MusicBrainzMedium is one disc (or other medium) of a release.
type MusicBrainzMedium struct {
	Position int                `json:"position"`
	Format   string             `json:"format"`
	Tracks   []MusicBrainzTrack `json:"tracks"`
}

// MusicBrainzRelease is a concrete release of a release group.
type MusicBrainzRelease struct {
	ID     string              `json:"id"`
	Title  string              `json:"title"`
	Status string              `json:"status"`
	Date   string              `json:"date"`
	Media  []MusicBrainzMedium `json:"media"`
}

type musicBrainzSearchResponse struct {
	Count         int                       `json:"count"`
	Offset        int                       `json:"offset"`
	ReleaseGroups []MusicBrainzReleaseGroup `json:"release-groups"`
}

type musicBrainzReleaseBrowse struct {
	ReleaseCount int                  `json:"release-count"`
	Releases     []MusicBrainzRelease `json:"releases"`
}

// ReleaseListing is the track listing of one release of a release group.
type ReleaseListing struct {
	ReleaseKey string
	Status     string
	Recordings []models.RawRecording
}

// MusicBrainzService queries MusicBrainz. Requests are paced and carry a User-Agent, as the service requires.
type MusicBrainzService struct {
	baseURL string
	req     *requester
}

var _ ReleaseGroupSource = (*MusicBrainzService)(nil)

// NewMusicBrainzService creates a client. A user agent is mandatory.
func NewMusicBrainzService(cfg shared.MusicBrainzConfig, opts ...Option) (*MusicBrainzService, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, fmt.Errorf("%w: musicbrainz user_agent is required", shared.ErrMissingConfig)
	}

	interval := cfg.RateInterval.Duration
	if interval <= 0 {
		interval = DefaultMusicBrainzInterval
	}
	opts = append([]Option{WithRateLimit(interval)}, opts...)

	s := &MusicBrainzService{baseURL: strings.TrimRight(cfg.BaseURL, "/")}
	if s.baseURL == "" {
		s.baseURL = musicBrainzBaseURL
	}
	s.req = &requester{
		provider:  musicBrainzProvider,
		userAgent: cfg.UserAgent,
		opts:      buildOptions(cfg.Timeout.Duration, opts),
	}
	return s, nil
}

// Name returns the provider name
func (s *MusicBrainzService) Name() string {
	return "MusicBrainz"
}

// BrowseReleaseGroups searches release groups with a Lucene query.
func (s *MusicBrainzService) BrowseReleaseGroups(ctx context.Context, query string, limit int) ([]models.RawReleaseGroup, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: release group query", shared.ErrMissingArgument)
	}
	if limit <= 0 {
		return nil, nil
	}

	groups := make([]models.RawReleaseGroup, 0, limit)
	offset := 0
	for len(groups) < limit {
		params := url.Values{}
		params.Set("query", query)
		params.Set("limit", fmt.Sprintf("%d", min(musicBrainzPageSize, limit-len(groups))))
		params.Set("offset", fmt.Sprintf("%d", offset))
		params.Set("fmt", "json")

		var resp musicBrainzSearchResponse
		if err := s.req.getJSON(ctx, s.baseURL+"/release-group?"+params.Encode(), &resp); err != nil {
			return groups, fmt.Errorf("failed to search release groups: %w", err)
		}

		for _, rg := range resp.ReleaseGroups {
			groups = append(groups, rg.raw())
		}

		offset += len(resp.ReleaseGroups)
		if len(resp.ReleaseGroups) == 0 || offset >= resp.Count {
			break
		}
	}
	return truncate(groups, limit), nil
}

// ReleaseRecordings picks the first release of the group and returns its recordings.
//
// Returns [shared.ErrNotFound] when the group has no releases.
func (s *MusicBrainzService) ReleaseRecordings(ctx context.Context, releaseGroupKey string) (*ReleaseListing, error) {
	if releaseGroupKey == "" {
		return nil, fmt.Errorf("%w: release group key", shared.ErrMissingArgument)
	}

	params := url.Values{}
	params.Set("release-group", releaseGroupKey)
	params.Set("limit", "1")
	params.Set("fmt", "json")

	var browse musicBrainzReleaseBrowse
	if err := s.req.getJSON(ctx, s.baseURL+"/release?"+params.Encode(), &browse); err != nil {
		return nil, fmt.Errorf("failed to browse releases: %w", err)
	}
	if len(browse.Releases) == 0 {
		return nil, fmt.Errorf("%w: no releases for release group %s", shared.ErrNotFound, releaseGroupKey)
	}

	releaseID := browse.Releases[0].ID
	var release MusicBrainzRelease
	endpoint := fmt.Sprintf("%s/release/%s?inc=recordings&fmt=json", s.baseURL, url.PathEscape(releaseID))
	if err := s.req.getJSON(ctx, endpoint, &release); err != nil {
		return nil, fmt.Errorf("failed to fetch release %s: %w", releaseID, err)
	}

	return release.listing(), nil
}

func (rg MusicBrainzReleaseGroup) raw() models.RawReleaseGroup {
	credits := make([]models.RawArtistCredit, 0, len(rg.ArtistCredit))
	for _, c := range rg.ArtistCredit {
		name := c.Artist.Name
		if name == "" {
			name = c.Name
		}
		credit := models.RawArtistCredit{
			Key:            c.Artist.ID,
			Name:           name,
			SortName:       c.Artist.SortName,
			Type:           c.Artist.Type,
			Disambiguation: c.Artist.Disambiguation,
		}
		if c.Artist.Area != nil {
			credit.Area = c.Artist.Area.Name
		}
		credits = append(credits, credit)
	}

	return models.RawReleaseGroup{
		Key:              rg.ID,
		Title:            rg.Title,
		PrimaryType:      rg.PrimaryType,
		SecondaryTypes:   rg.SecondaryTypes,
		FirstReleaseDate: rg.FirstReleaseDate,
		ArtistCredits:    credits,
		Source:           models.SourceMusicBrainz,
	}
}

func (r MusicBrainzRelease) listing() *ReleaseListing {
	listing := &ReleaseListing{ReleaseKey: r.ID, Status: r.Status}
	for i, medium := range r.Media {
		disc := medium.Position
		if disc <= 0 {
			disc = i + 1
		}
		for _, track := range medium.Tracks {
			rec := models.RawRecording{
				Key:            track.Recording.ID,
				Title:          track.Recording.Title,
				Disambiguation: track.Recording.Disambiguation,
				Position:       track.Position,
				DiscNumber:     disc,
			}
			if rec.Title == "" {
				rec.Title = track.Title
			}
			switch {
			case track.Recording.Length != nil:
				rec.LengthMS = *track.Recording.Length
			case track.Length != nil:
				rec.LengthMS = *track.Length
			}
			listing.Recordings = append(listing.Recordings, rec)
		}
	}
	return listing
}
