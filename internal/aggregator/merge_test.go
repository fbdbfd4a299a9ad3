package aggregator

import (
	"testing"

	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/services"
)

func fullDetails() map[string]*services.ReleaseDetail {
	return map[string]*services.ReleaseDetail{
		models.SourceSpotify: {
			Source:      models.SourceSpotify,
			ID:          "2Lq2qX3hYhiuPckC8Flj21",
			ArtistID:    "2ye2Wgw4gimLv2eAKyk1NB",
			Title:       "Master of Puppets (Remastered)",
			Artist:      "Metallica",
			ReleaseDate: "1986-03-03",
			Genres:      []string{"Metal"},
			CoverArtURL: "https://i.scdn.co/image/master.jpg",
			Tracks: []models.Track{
				{Title: "Battery", Position: 1, ISRC: "USBL18600001"},
				{Title: "Master of Puppets", Position: 2},
			},
		},
		models.SourceMusicBrainz: {
			Source:      models.SourceMusicBrainz,
			ID:          "fed37cfc-2a6d-4569-9ac0-501a7c7598eb",
			ArtistID:    "65f4f0c5-ef9e-490c-aee3-909e7ae6b2ab",
			Title:       "Master of Puppets",
			Artist:      "Metallica",
			ReleaseDate: "1986-03-03",
			Label:       "Elektra",
			Genres:      []string{"thrash metal", "metal"},
			Tracks:      []models.Track{{Title: "Battery", Position: 1}},
		},
		models.SourceDeezer: {
			Source:      models.SourceDeezer,
			ID:          "119677",
			ArtistID:    "119",
			Title:       "Master Of Puppets",
			Artist:      "Metallica",
			ReleaseDate: "1986-02-24",
			Genres:      []string{"Rock"},
			CoverArtURL: "https://cdn.deezer/master.jpg",
			Tracks:      []models.Track{{Title: "Battery", Position: 1}},
		},
	}
}

func TestMerge(t *testing.T) {
	artist := &services.ArtistDetail{
		Source: models.SourceMusicBrainz,
		ID:     "65f4f0c5-ef9e-490c-aee3-909e7ae6b2ab",
		Name:   "Metallica",
		Genres: []string{"Thrash Metal", "heavy metal"},
		SocialLinks: models.SocialLinks{
			Facebook: "https://www.facebook.com/Metallica",
			Website:  "https://www.metallica.com",
		},
	}

	got := merge(fullDetails(), artist)

	t.Run("Field Precedence", func(t *testing.T) {
		if got.Release != "Master of Puppets" {
			t.Errorf("title should come from musicbrainz, got %q", got.Release)
		}
		if got.Label != "Elektra" {
			t.Errorf("label should come from musicbrainz, got %q", got.Label)
		}
		if got.ReleaseDate != "1986-03-03" {
			t.Errorf("date should come from musicbrainz, got %q", got.ReleaseDate)
		}
	})

	t.Run("Tracks From Single Source", func(t *testing.T) {
		if len(got.Tracks) != 2 {
			t.Fatalf("tracks should come wholly from spotify, got %d", len(got.Tracks))
		}
		if got.Tracks[0].ISRC != "USBL18600001" {
			t.Errorf("unexpected first track %+v", got.Tracks[0])
		}
	})

	t.Run("Genre Union Dedupes Case Insensitively", func(t *testing.T) {
		counts := make(map[string]int)
		for _, g := range got.Genres {
			counts[g]++
			if counts[g] > 1 {
				t.Errorf("duplicate genre %q", g)
			}
		}
		// "Metal" from spotify ducks under musicbrainz's "metal";
		// "Thrash Metal" from the artist ducks under "thrash metal".
		for _, g := range got.Genres {
			if g == "Metal" || g == "Thrash Metal" {
				t.Errorf("later-cased duplicate survived: %q", g)
			}
		}
		if counts["thrash metal"] != 1 || counts["metal"] != 1 || counts["Rock"] != 1 || counts["heavy metal"] != 1 {
			t.Errorf("unexpected genre union %v", got.Genres)
		}
	})

	t.Run("Source IDs Collected", func(t *testing.T) {
		if got.SourceIDs.SpotifyID == "" || got.SourceIDs.MusicBrainzID == "" || got.SourceIDs.DeezerID == "" {
			t.Errorf("all release ids should be kept: %+v", got.SourceIDs)
		}
		if got.Artist.SourceIDs.MusicBrainzArtistID != "65f4f0c5-ef9e-490c-aee3-909e7ae6b2ab" {
			t.Errorf("unexpected artist ids %+v", got.Artist.SourceIDs)
		}
	})

	t.Run("Social Links From Artist Profile", func(t *testing.T) {
		if got.Artist.SocialLinks.Facebook != "https://www.facebook.com/Metallica" {
			t.Errorf("unexpected social links %+v", got.Artist.SocialLinks)
		}
	})

	t.Run("Cover Art Prefers Spotify", func(t *testing.T) {
		if got.CoverArtURL != "https://i.scdn.co/image/master.jpg" {
			t.Errorf("unexpected cover art %q", got.CoverArtURL)
		}
	})
}

func TestMergePartialSources(t *testing.T) {
	t.Run("Deezer Only", func(t *testing.T) {
		details := map[string]*services.ReleaseDetail{
			models.SourceDeezer: fullDetails()[models.SourceDeezer],
		}

		got := merge(details, nil)
		if got.Release != "Master Of Puppets" || got.CoverArtURL != "https://cdn.deezer/master.jpg" {
			t.Errorf("deezer fields should fill in: %+v", got)
		}
		if !got.HasData() {
			t.Error("single-source merge should still carry data")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		got := merge(map[string]*services.ReleaseDetail{}, nil)
		if got.HasData() {
			t.Errorf("empty merge should carry no data: %+v", got)
		}
		if got.Genres == nil || got.Tracks == nil {
			t.Error("slices should be empty, not nil")
		}
	})
}
