package models

// Provider names recorded on albums.
const (
	SourceSpotify     = "spotify"
	SourceMusicBrainz = "musicbrainz"
)

// RawArtistCredit is an artist credit as a provider returned it. Nothing is trusted.
type RawArtistCredit struct {
	Key            string
	Name           string
	SortName       string
	Type           string
	Area           string
	Disambiguation string
	Role           string
}

// RawReleaseGroup is an album-level grouping before normalization.
type RawReleaseGroup struct {
	Key              string
	Title            string
	PrimaryType      string
	SecondaryTypes   []string
	Status           string
	FirstReleaseDate string
	CoverArtURL      string
	ArtistCredits    []RawArtistCredit
	Source           string
}

// RawRecording is a track-level recording before normalization.
type RawRecording struct {
	Key            string
	Title          string
	LengthMS       int // 0 when unknown
	Disambiguation string
	Position       int // 0 when unknown
	DiscNumber     int // 0 when unknown
}

// RawTrackItem is a recording together with the release group it was listed on.
type RawTrackItem struct {
	Album     RawReleaseGroup
	Recording RawRecording
}

// RawBatch is everything one source strategy fetched.
type RawBatch struct {
	ReleaseGroups []RawReleaseGroup
	Tracks        []RawTrackItem
}

// Len is the number of raw records in the batch.
func (b RawBatch) Len() int {
	return len(b.ReleaseGroups) + len(b.Tracks)
}
