package transform

import (
	"reflect"
	"testing"

	"github.com/desertthunder/crate/internal/models"
	tu "github.com/desertthunder/crate/internal/testing"
)

var testPolicy = Policy{
	AllowPrimary:  []string{"Album", "EP", "Single"},
	DenySecondary: []string{"Compilation", "Live"},
}

func TestPolicy(t *testing.T) {
	e := NewEngine(testPolicy, nil)

	t.Run("Primary Type Outside Allow List", func(t *testing.T) {
		raw := []models.RawReleaseGroup{
			tu.ReleaseGroup("rg-1", "Kept", "Album", "ar-1"),
			tu.ReleaseGroup("rg-2", "Interview", "Broadcast", "ar-2"),
		}

		albums := e.TransformAlbums(raw)
		artists, relations := e.TransformArtists(raw)

		if len(albums) != 1 || albums[0].Key != "rg-1" {
			t.Fatalf("expected only rg-1, got %+v", albums)
		}
		for _, r := range relations {
			if r.AlbumKey == "rg-2" {
				t.Errorf("expected no relation for excluded album, got %+v", r)
			}
		}
		for _, a := range artists {
			if a.Key == "ar-2" {
				t.Error("expected artist credited only on excluded album to be absent")
			}
		}
	})

	t.Run("Denied Secondary Type", func(t *testing.T) {
		live := tu.ReleaseGroup("rg-3", "Live at Leeds", "Album", "ar-1")
		live.SecondaryTypes = []string{"live"}

		if reason, ok := e.Check(live); ok || reason != SkipSecondaryType {
			t.Errorf("expected secondary type skip, got %q, %v", reason, ok)
		}
		if albums := e.TransformAlbums([]models.RawReleaseGroup{live}); len(albums) != 0 {
			t.Errorf("expected no albums, got %d", len(albums))
		}
		if _, rels := e.TransformArtists([]models.RawReleaseGroup{live}); len(rels) != 0 {
			t.Errorf("expected no relations, got %d", len(rels))
		}
	})

	t.Run("Case Insensitive", func(t *testing.T) {
		rg := tu.ReleaseGroup("rg-4", "Lower", "album", "ar-1")
		if !e.Allowed(rg) {
			t.Error("expected lower-case primary type to be allowed")
		}
	})

	t.Run("Required Fields", func(t *testing.T) {
		noTitle := tu.ReleaseGroup("rg-5", "   ", "Album", "ar-1")
		noArtist := tu.ReleaseGroup("rg-6", "Solo", "Album")
		noKey := tu.ReleaseGroup("", "Keyless", "Album", "ar-1")

		cases := []struct {
			rg   models.RawReleaseGroup
			want SkipReason
		}{
			{noTitle, SkipMissingTitle},
			{noArtist, SkipNoArtist},
			{noKey, SkipMissingKey},
		}
		for _, tc := range cases {
			if reason, ok := e.Check(tc.rg); ok || reason != tc.want {
				t.Errorf("expected %q, got %q", tc.want, reason)
			}
		}
	})
}

func TestTransformAlbums(t *testing.T) {
	e := NewEngine(testPolicy, nil)

	t.Run("Last Record Wins", func(t *testing.T) {
		first := tu.ReleaseGroup("rg-1", "First Title", "Album", "ar-1")
		second := tu.ReleaseGroup("rg-1", "Second Title", "EP", "ar-1")
		second.FirstReleaseDate = "1995-03-02"

		albums := e.TransformAlbums([]models.RawReleaseGroup{first, second})
		if len(albums) != 1 {
			t.Fatalf("expected 1 album, got %d", len(albums))
		}
		if albums[0].Title != "Second Title" || albums[0].PrimaryType != "EP" {
			t.Errorf("expected second record's fields, got %+v", albums[0])
		}
		if got := *albums[0].ReleaseDate; got != "1995-03-02" {
			t.Errorf("expected release date 1995-03-02, got %s", got)
		}
	})

	t.Run("Relations Emitted Per Record", func(t *testing.T) {
		rg := tu.ReleaseGroup("rg-1", "Twice", "Album", "ar-1")
		artists, relations := e.TransformArtists([]models.RawReleaseGroup{rg, rg})
		if len(artists) != 1 {
			t.Errorf("expected 1 artist, got %d", len(artists))
		}
		if len(relations) != 2 {
			t.Errorf("expected 2 relation rows, got %d", len(relations))
		}
	})

	t.Run("Normalizes Text", func(t *testing.T) {
		rg := tu.ReleaseGroup("  rg-1 ", "  The\t  Café   Album ", "Album", "ar-1")
		rg.Status = "   "
		rg.SecondaryTypes = []string{" Soundtrack ", "Soundtrack", ""}

		albums := e.TransformAlbums([]models.RawReleaseGroup{rg})
		if len(albums) != 1 {
			t.Fatalf("expected 1 album, got %d", len(albums))
		}
		album := albums[0]
		if album.Key != "rg-1" {
			t.Errorf("expected trimmed key, got %q", album.Key)
		}
		if album.Title != "The Café Album" {
			t.Errorf("expected NFC collapsed title, got %q", album.Title)
		}
		if album.Status != nil {
			t.Errorf("expected blank status to be nil, got %q", *album.Status)
		}
		if !reflect.DeepEqual(album.SecondaryTypes, []string{"Soundtrack"}) {
			t.Errorf("expected deduplicated secondary types, got %v", album.SecondaryTypes)
		}
	})

	t.Run("No Secondary Types Is Nil", func(t *testing.T) {
		albums := e.TransformAlbums([]models.RawReleaseGroup{tu.ReleaseGroup("rg-1", "Plain", "Album", "ar-1")})
		if albums[0].SecondaryTypes != nil {
			t.Errorf("expected nil secondary types, got %v", albums[0].SecondaryTypes)
		}
	})
}

func TestTransformArtists(t *testing.T) {
	e := NewEngine(testPolicy, nil)

	rg := tu.ReleaseGroup("rg-1", "Split", "Album", "ar-1", "ar-2")
	rg.ArtistCredits[1].Name = "   "
	rg.ArtistCredits[0].Role = "Featured"
	rg.ArtistCredits[0].SortName = "1, Artist"

	artists, relations := e.TransformArtists([]models.RawReleaseGroup{rg})
	if len(artists) != 1 || artists[0].Key != "ar-1" {
		t.Fatalf("expected nameless artist dropped, got %+v", artists)
	}
	if len(relations) != 1 {
		t.Fatalf("expected 1 relation, got %d", len(relations))
	}
	if relations[0].Role != "Featured" {
		t.Errorf("expected role Featured, got %s", relations[0].Role)
	}
	if artists[0].SortName == nil || *artists[0].SortName != "1, Artist" {
		t.Errorf("unexpected sort name %v", artists[0].SortName)
	}
	if artists[0].Type != nil || artists[0].Area != nil {
		t.Error("expected absent attributes to be nil")
	}

	t.Run("Default Role", func(t *testing.T) {
		_, rels := e.TransformArtists([]models.RawReleaseGroup{tu.ReleaseGroup("rg-2", "Solo", "Album", "ar-3")})
		if rels[0].Role != models.DefaultRole {
			t.Errorf("expected default role, got %s", rels[0].Role)
		}
	})
}

func TestTransformTracks(t *testing.T) {
	e := NewEngine(testPolicy, nil)

	raw := []models.RawRecording{
		{Key: "rec-1", Title: "One", LengthMS: 1000},
		{Key: "rec-2", Title: "Two", Position: 7, DiscNumber: 2},
		{Key: "rec-3", Title: "Three"},
		{Key: "", Title: "No Key"},
		{Key: "rec-4", Title: " "},
	}
	positions := map[string]models.Position{"rec-3": {Number: 9}}

	tracks, relations := e.TransformTracks(raw, "rg-1", positions)
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
	if tracks[0].LengthMS == nil || *tracks[0].LengthMS != 1000 {
		t.Errorf("expected length 1000, got %v", tracks[0].LengthMS)
	}
	if tracks[1].LengthMS != nil {
		t.Errorf("expected unknown length to be nil, got %d", *tracks[1].LengthMS)
	}

	want := map[string]models.Position{
		"rec-1": {Number: 1, Disc: 1},
		"rec-2": {Number: 7, Disc: 2},
		"rec-3": {Number: 9, Disc: 1},
	}
	for _, r := range relations {
		if r.AlbumKey != "rg-1" {
			t.Errorf("expected album rg-1, got %s", r.AlbumKey)
		}
		if got := (models.Position{Number: r.Position, Disc: r.DiscNumber}); got != want[r.TrackKey] {
			t.Errorf("%s: expected %+v, got %+v", r.TrackKey, want[r.TrackKey], got)
		}
	}

	t.Run("Empty Album Key", func(t *testing.T) {
		tracks, relations := e.TransformTracks(raw, " ", nil)
		if tracks != nil || relations != nil {
			t.Error("expected nothing without an album key")
		}
	})
}

func TestTransform(t *testing.T) {
	rgs := []models.RawReleaseGroup{
		tu.ReleaseGroup("rg-2", "Second", "Album", "ar-1"),
		tu.ReleaseGroup("rg-1", "First", "Album", "ar-1"),
		tu.ReleaseGroup("rg-x", "Excluded", "Other", "ar-9"),
	}
	items := []models.RawTrackItem{
		{Album: tu.ReleaseGroup("rg-3", "Single", "Single", "ar-2"), Recording: models.RawRecording{Key: "rec-1", Title: "Hit", Position: 1}},
		{Album: tu.ReleaseGroup("rg-y", "Live", "Other", "ar-2"), Recording: models.RawRecording{Key: "rec-2", Title: "Live Hit"}},
	}
	raw := models.RawBatch{ReleaseGroups: rgs, Tracks: items}

	e := NewEngine(testPolicy, nil)
	batch := e.Transform(raw)

	if len(batch.Albums) != 3 {
		t.Errorf("expected 3 albums, got %d", len(batch.Albums))
	}
	if len(batch.Artists) != 2 {
		t.Errorf("expected 2 artists, got %d", len(batch.Artists))
	}
	if len(batch.Tracks) != 1 || batch.Tracks[0].Key != "rec-1" {
		t.Errorf("expected only rec-1, got %+v", batch.Tracks)
	}
	if len(batch.AlbumTracks) != 1 || batch.AlbumTracks[0].AlbumKey != "rg-3" {
		t.Errorf("unexpected album tracks %+v", batch.AlbumTracks)
	}
	if batch.Skipped[SkipPrimaryType] != 1 || batch.Skipped[SkipParentAlbum] != 1 {
		t.Errorf("unexpected skip counts %v", batch.Skipped)
	}
	if batch.SkippedTotal() != 2 {
		t.Errorf("expected 2 skipped, got %d", batch.SkippedTotal())
	}

	t.Run("Deterministic", func(t *testing.T) {
		again := NewEngine(testPolicy, nil).Transform(raw)
		if !reflect.DeepEqual(batch, again) {
			t.Error("expected identical output for identical input")
		}
		if batch.Albums[0].Key != "rg-1" {
			t.Errorf("expected albums sorted by key, got %s first", batch.Albums[0].Key)
		}
	})

	t.Run("Accumulates Skips", func(t *testing.T) {
		e.Transform(raw)
		if got := e.Skipped()[SkipPrimaryType]; got != 2 {
			t.Errorf("expected 2 accumulated primary type skips, got %d", got)
		}
	})
}
