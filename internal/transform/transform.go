// Package transform turns raw provider records into canonical catalog entities.
//
// A raw release group passes the inclusion [Policy] or is skipped silently; skips are
// counted, never returned as errors. Text is normalized with [NormalizeText] and dates
// with [NormalizeDate]. Within one call entities are deduplicated by natural key with the
// last record winning, while a relation row is emitted for every source record and left
// for the writer to collapse.
package transform

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// SkipReason names the inclusion check a raw record failed.
type SkipReason string

const (
	SkipMissingKey    SkipReason = "missing_key"
	SkipMissingTitle  SkipReason = "missing_title"
	SkipNoArtist      SkipReason = "no_artist_credit"
	SkipPrimaryType   SkipReason = "primary_type"
	SkipSecondaryType SkipReason = "secondary_type"
	SkipParentAlbum   SkipReason = "album_excluded"
)

// Policy is the release group inclusion policy. Comparisons ignore case.
type Policy struct {
	AllowPrimary  []string
	DenySecondary []string
}

// PolicyFromConfig converts the [shared.PolicyConfig] section.
func PolicyFromConfig(c shared.PolicyConfig) Policy {
	return Policy{AllowPrimary: c.AllowPrimary, DenySecondary: c.DenySecondary}
}

// Batch is the canonical output of one raw batch.
type Batch struct {
	Albums       []models.Album
	Artists      []models.Artist
	Tracks       []models.Track
	AlbumArtists []models.AlbumArtist
	AlbumTracks  []models.AlbumTrack
	Skipped      map[SkipReason]int
}

// SkippedTotal sums every skip reason.
func (b Batch) SkippedTotal() int {
	total := 0
	for _, n := range b.Skipped {
		total += n
	}
	return total
}

// Engine applies a [Policy] and maps raw records to entities. It holds no per-batch state,
// so a single Engine can serve every strategy of a run.
type Engine struct {
	allow  map[string]struct{}
	deny   map[string]struct{}
	logger *log.Logger

	mu      sync.Mutex
	skipped map[SkipReason]int
}

// NewEngine creates an engine for policy.
func NewEngine(policy Policy, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Engine{
		allow:   lowerSet(policy.AllowPrimary),
		deny:    lowerSet(policy.DenySecondary),
		logger:  logger,
		skipped: map[SkipReason]int{},
	}
}

// Check reports whether rg passes the inclusion policy, and why not when it does not.
func (e *Engine) Check(rg models.RawReleaseGroup) (SkipReason, bool) {
	switch {
	case clean(rg.Key) == "":
		return SkipMissingKey, false
	case clean(rg.Title) == "":
		return SkipMissingTitle, false
	case !slices.ContainsFunc(rg.ArtistCredits, func(c models.RawArtistCredit) bool { return clean(c.Key) != "" }):
		return SkipNoArtist, false
	}

	if _, ok := e.allow[strings.ToLower(clean(rg.PrimaryType))]; !ok {
		return SkipPrimaryType, false
	}
	for _, st := range rg.SecondaryTypes {
		if _, denied := e.deny[strings.ToLower(clean(st))]; denied {
			return SkipSecondaryType, false
		}
	}
	return "", true
}

// Allowed reports whether rg passes the inclusion policy.
func (e *Engine) Allowed(rg models.RawReleaseGroup) bool {
	_, ok := e.Check(rg)
	return ok
}

// TransformAlbums maps the release groups that pass the policy to albums.
func (e *Engine) TransformAlbums(raw []models.RawReleaseGroup) []models.Album {
	albums := map[string]models.Album{}
	for _, rg := range raw {
		if !e.Allowed(rg) {
			continue
		}
		album := toAlbum(rg)
		albums[album.Key] = album
	}
	return sortedValues(albums)
}

// TransformArtists maps the artist credits of release groups that pass the policy.
// Credits without a name are dropped along with their relation.
func (e *Engine) TransformArtists(raw []models.RawReleaseGroup) ([]models.Artist, []models.AlbumArtist) {
	artists := map[string]models.Artist{}
	var relations []models.AlbumArtist
	for _, rg := range raw {
		if !e.Allowed(rg) {
			continue
		}
		albumKey := clean(rg.Key)
		for _, credit := range rg.ArtistCredits {
			artist, ok := toArtist(credit)
			if !ok {
				continue
			}
			artists[artist.Key] = artist
			relations = append(relations, models.AlbumArtist{AlbumKey: albumKey, ArtistKey: artist.Key, Role: role(credit)})
		}
	}

	sortAlbumArtists(relations)
	return sortedValues(artists), relations
}

// TransformTracks maps recordings listed on albumKey.
//
// A track's position comes from positions, then the raw record, then its index in raw.
// Disc numbers default to 1. Recordings without a key or title are dropped.
func (e *Engine) TransformTracks(raw []models.RawRecording, albumKey string, positions map[string]models.Position) ([]models.Track, []models.AlbumTrack) {
	albumKey = clean(albumKey)
	if albumKey == "" {
		return nil, nil
	}

	tracks := map[string]models.Track{}
	var relations []models.AlbumTrack
	for i, rec := range raw {
		track, ok := toTrack(rec)
		if !ok {
			continue
		}
		tracks[track.Key] = track

		pos := models.Position{Number: rec.Position, Disc: rec.DiscNumber}
		if p, ok := positions[track.Key]; ok {
			if p.Number > 0 {
				pos.Number = p.Number
			}
			if p.Disc > 0 {
				pos.Disc = p.Disc
			}
		}
		if pos.Number <= 0 {
			pos.Number = i + 1
		}
		if pos.Disc <= 0 {
			pos.Disc = 1
		}

		relations = append(relations, models.AlbumTrack{
			AlbumKey:   albumKey,
			TrackKey:   track.Key,
			Position:   pos.Number,
			DiscNumber: pos.Disc,
		})
	}

	sortAlbumTracks(relations)
	return sortedValues(tracks), relations
}

// Transform maps a whole raw batch in one pass. Track items whose album fails the policy
// are dropped with it. Skip counts are added to [Engine.Skipped].
func (e *Engine) Transform(raw models.RawBatch) Batch {
	out := Batch{Skipped: map[SkipReason]int{}}

	groups := make([]models.RawReleaseGroup, 0, len(raw.ReleaseGroups)+len(raw.Tracks))
	for _, rg := range raw.ReleaseGroups {
		if reason, ok := e.Check(rg); !ok {
			out.Skipped[reason]++
			e.logger.Debug("skipping release group", "key", rg.Key, "reason", reason)
			continue
		}
		groups = append(groups, rg)
	}

	byAlbum := map[string][]models.RawRecording{}
	var albumOrder []string
	for _, item := range raw.Tracks {
		if reason, ok := e.Check(item.Album); !ok {
			out.Skipped[SkipParentAlbum]++
			e.logger.Debug("skipping track", "key", item.Recording.Key, "album", item.Album.Key, "reason", reason)
			continue
		}
		groups = append(groups, item.Album)

		key := clean(item.Album.Key)
		if _, ok := byAlbum[key]; !ok {
			albumOrder = append(albumOrder, key)
		}
		byAlbum[key] = append(byAlbum[key], item.Recording)
	}

	out.Albums = e.TransformAlbums(groups)
	out.Artists, out.AlbumArtists = e.TransformArtists(groups)

	tracks := map[string]models.Track{}
	for _, albumKey := range albumOrder {
		ts, rels := e.TransformTracks(byAlbum[albumKey], albumKey, nil)
		for _, t := range ts {
			tracks[t.Key] = t
		}
		out.AlbumTracks = append(out.AlbumTracks, rels...)
	}
	out.Tracks = sortedValues(tracks)
	sortAlbumTracks(out.AlbumTracks)

	e.mu.Lock()
	for reason, n := range out.Skipped {
		e.skipped[reason] += n
	}
	e.mu.Unlock()
	return out
}

// Skipped returns the skip counts accumulated by [Engine.Transform].
func (e *Engine) Skipped() map[SkipReason]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[SkipReason]int, len(e.skipped))
	for k, v := range e.skipped {
		out[k] = v
	}
	return out
}

func toAlbum(rg models.RawReleaseGroup) models.Album {
	var secondary []string
	for _, st := range rg.SecondaryTypes {
		if v := clean(st); v != "" && !slices.Contains(secondary, v) {
			secondary = append(secondary, v)
		}
	}

	return models.Album{
		Key:            clean(rg.Key),
		Title:          clean(rg.Title),
		ReleaseDate:    NormalizeDate(&rg.FirstReleaseDate),
		Status:         NormalizeText(rg.Status),
		PrimaryType:    clean(rg.PrimaryType),
		SecondaryTypes: secondary,
		CoverArtURL:    NormalizeText(rg.CoverArtURL),
		Source:         clean(rg.Source),
	}
}

func toArtist(c models.RawArtistCredit) (models.Artist, bool) {
	key, name := clean(c.Key), clean(c.Name)
	if key == "" || name == "" {
		return models.Artist{}, false
	}
	return models.Artist{
		Key:            key,
		Name:           name,
		SortName:       NormalizeText(c.SortName),
		Type:           NormalizeText(c.Type),
		Area:           NormalizeText(c.Area),
		Disambiguation: NormalizeText(c.Disambiguation),
	}, true
}

func toTrack(rec models.RawRecording) (models.Track, bool) {
	key, title := clean(rec.Key), clean(rec.Title)
	if key == "" || title == "" {
		return models.Track{}, false
	}
	track := models.Track{Key: key, Title: title, Disambiguation: NormalizeText(rec.Disambiguation)}
	if rec.LengthMS > 0 {
		track.LengthMS = shared.IntPtr(rec.LengthMS)
	}
	return track, true
}

func role(c models.RawArtistCredit) string {
	if r := clean(c.Role); r != "" {
		return r
	}
	return models.DefaultRole
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.ToLower(clean(v)); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func sortedValues[T models.Entity](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return cmp.Compare(a.NaturalKey(), b.NaturalKey()) })
	return out
}

func sortAlbumArtists(rels []models.AlbumArtist) {
	slices.SortStableFunc(rels, func(a, b models.AlbumArtist) int {
		return cmp.Or(cmp.Compare(a.AlbumKey, b.AlbumKey), cmp.Compare(a.ArtistKey, b.ArtistKey), cmp.Compare(a.Role, b.Role))
	})
}

func sortAlbumTracks(rels []models.AlbumTrack) {
	slices.SortStableFunc(rels, func(a, b models.AlbumTrack) int {
		return cmp.Or(
			cmp.Compare(a.AlbumKey, b.AlbumKey),
			cmp.Compare(a.DiscNumber, b.DiscNumber),
			cmp.Compare(a.Position, b.Position),
			cmp.Compare(a.TrackKey, b.TrackKey),
		)
	})
}
