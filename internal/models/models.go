// package models defines the canonical catalog schema and the raw provider shapes it is built from
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/crate/internal/shared"
)

// DefaultRole is the role assigned to an album artist credit when the provider gives none.
const DefaultRole = "Main"

// Entity defines the base interface for all canonical catalog entities.
// Identity is the provider-assigned natural key, never a surrogate.
type Entity interface {
	NaturalKey() string // NaturalKey returns the provider-assigned identifier used for upsert matching
	Validate() error    // Validate checks the entity's required fields
}

// Timestamps carries store-managed creation/update times. Zero until persisted.
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Artist is a canonical performer or group.
type Artist struct {
	Key            string
	Name           string
	SortName       *string
	Type           *string // "Person", "Group", ... or nil
	Area           *string
	Disambiguation *string
	Timestamps
}

func (a Artist) NaturalKey() string { return a.Key }

func (a Artist) Validate() error {
	if strings.TrimSpace(a.Key) == "" {
		return fmt.Errorf("%w: artist key is required", shared.ErrValidation)
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: artist %s has no name", shared.ErrValidation, a.Key)
	}
	return nil
}

// Album is a canonical release group.
type Album struct {
	Key            string
	Title          string
	ReleaseDate    *string // YYYY-MM-DD
	Status         *string
	PrimaryType    string
	SecondaryTypes []string // nil when the provider lists none
	CoverArtURL    *string
	Source         string
	Timestamps
}

func (a Album) NaturalKey() string { return a.Key }

func (a Album) Validate() error {
	if strings.TrimSpace(a.Key) == "" {
		return fmt.Errorf("%w: album key is required", shared.ErrValidation)
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("%w: album %s has no title", shared.ErrValidation, a.Key)
	}
	if strings.TrimSpace(a.PrimaryType) == "" {
		return fmt.Errorf("%w: album %s has no primary type", shared.ErrValidation, a.Key)
	}
	return nil
}

// Track is a canonical recording.
type Track struct {
	Key            string
	Title          string
	LengthMS       *int
	Disambiguation *string
	Timestamps
}

func (t Track) NaturalKey() string { return t.Key }

func (t Track) Validate() error {
	if strings.TrimSpace(t.Key) == "" {
		return fmt.Errorf("%w: track key is required", shared.ErrValidation)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: track %s has no title", shared.ErrValidation, t.Key)
	}
	if t.LengthMS != nil && *t.LengthMS < 0 {
		return fmt.Errorf("%w: track %s has negative length", shared.ErrValidation, t.Key)
	}
	return nil
}

// AlbumArtist links an album to a credited artist.
type AlbumArtist struct {
	AlbumKey  string
	ArtistKey string
	Role      string
}

// NaturalKey is the full tuple; identical tuples collapse at write time.
func (r AlbumArtist) NaturalKey() string {
	return r.AlbumKey + "|" + r.ArtistKey + "|" + r.Role
}

func (r AlbumArtist) Validate() error {
	if r.AlbumKey == "" || r.ArtistKey == "" || r.Role == "" {
		return fmt.Errorf("%w: album artist relation %q is incomplete", shared.ErrValidation, r.NaturalKey())
	}
	return nil
}

// AlbumTrack places a track on an album at a position and disc.
type AlbumTrack struct {
	AlbumKey   string
	TrackKey   string
	Position   int
	DiscNumber int
}

func (r AlbumTrack) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%d|%d", r.AlbumKey, r.TrackKey, r.Position, r.DiscNumber)
}

func (r AlbumTrack) Validate() error {
	if r.AlbumKey == "" || r.TrackKey == "" {
		return fmt.Errorf("%w: album track relation %q is incomplete", shared.ErrValidation, r.NaturalKey())
	}
	if r.Position < 1 || r.DiscNumber < 1 {
		return fmt.Errorf("%w: album track relation %q has invalid position", shared.ErrValidation, r.NaturalKey())
	}
	return nil
}

// Position is a track's slot on an album.
type Position struct {
	Number int
	Disc   int
}
