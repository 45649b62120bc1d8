package services

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/desertthunder/crate/internal/shared"
)

const (
	coverArtProvider = "coverart"
	coverArtBaseURL  = "https://coverartarchive.org"

	// CoverArtReleaseGroup and CoverArtRelease are the supported lookup entities.
	CoverArtReleaseGroup = "release-group"
	CoverArtRelease      = "release"
)

// CoverArtImage is one image in an archive listing.
type CoverArtImage struct {
	ID       any      `json:"id"` // number or string depending on age of the entry
	Image    string   `json:"image"`
	Front    bool     `json:"front"`
	Back     bool     `json:"back"`
	Types    []string `json:"types"`
	Approved bool     `json:"approved"`
}

type coverArtListing struct {
	Release string          `json:"release"`
	Images  []CoverArtImage `json:"images"`
}

// CoverArtService looks up front covers in the Cover Art Archive.
type CoverArtService struct {
	baseURL string
	entity  string
	req     *requester
}

var _ CoverArtSource = (*CoverArtService)(nil)

// NewCoverArtService creates an archive client.
func NewCoverArtService(cfg shared.CoverArtConfig, opts ...Option) (*CoverArtService, error) {
	entity := cfg.Entity
	if entity == "" {
		entity = CoverArtReleaseGroup
	}
	if entity != CoverArtReleaseGroup && entity != CoverArtRelease {
		return nil, fmt.Errorf("%w: unknown cover art entity %q", shared.ErrInvalidConfig, entity)
	}

	s := &CoverArtService{baseURL: strings.TrimRight(cfg.BaseURL, "/"), entity: entity}
	if s.baseURL == "" {
		s.baseURL = coverArtBaseURL
	}
	s.req = &requester{provider: coverArtProvider, opts: buildOptions(cfg.Timeout.Duration, opts)}
	return s, nil
}

// Name returns the provider name
func (s *CoverArtService) Name() string {
	return "Cover Art Archive"
}

// FrontCover returns the URL of the front cover for key.
func (s *CoverArtService) FrontCover(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: cover art key", shared.ErrMissingArgument)
	}

	var listing coverArtListing
	endpoint := fmt.Sprintf("%s/%s/%s", s.baseURL, s.entity, url.PathEscape(key))
	if err := s.req.getJSON(ctx, endpoint, &listing); err != nil {
		return "", err
	}

	if image, ok := frontImage(listing.Images); ok {
		return image, nil
	}
	return "", fmt.Errorf("%w: no front cover for %s", shared.ErrNotFound, key)
}

// frontImage prefers the front flag, falling back to the "Front" type tag.
func frontImage(images []CoverArtImage) (string, bool) {
	for _, img := range images {
		if img.Front && img.Image != "" {
			return img.Image, true
		}
	}
	for _, img := range images {
		if img.Image != "" && slices.ContainsFunc(img.Types, func(t string) bool { return strings.EqualFold(t, "Front") }) {
			return img.Image, true
		}
	}
	return "", false
}
