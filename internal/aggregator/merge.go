package aggregator

import (
	"strings"

	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/services"
)

// Field precedence when several providers answer. MusicBrainz is the
// canonical catalogue, so its descriptive fields win; Spotify tracks carry
// the richest identifiers, so track listings prefer it.
var (
	fieldOrder = []string{models.SourceMusicBrainz, models.SourceSpotify, models.SourceDeezer}
	trackOrder = []string{models.SourceSpotify, models.SourceMusicBrainz, models.SourceDeezer}
	coverOrder = []string{models.SourceSpotify, models.SourceDeezer}
)

// merge folds per-provider release details and the MusicBrainz artist
// profile into one canonical record.
func merge(details map[string]*services.ReleaseDetail, artist *services.ArtistDetail) *models.CanonicalRelease {
	out := &models.CanonicalRelease{
		Genres: []string{},
		Tracks: []models.Track{},
	}

	pickField := func(get func(*services.ReleaseDetail) string) string {
		for _, source := range fieldOrder {
			if d := details[source]; d != nil {
				if v := get(d); v != "" {
					return v
				}
			}
		}
		return ""
	}

	out.Release = pickField(func(d *services.ReleaseDetail) string { return d.Title })
	out.ReleaseDate = pickField(func(d *services.ReleaseDetail) string { return d.ReleaseDate })
	out.Label = pickField(func(d *services.ReleaseDetail) string { return d.Label })
	out.Artist.Name = pickField(func(d *services.ReleaseDetail) string { return d.Artist })

	// Tracks come wholly from one provider so positions stay coherent.
	for _, source := range trackOrder {
		if d := details[source]; d != nil && len(d.Tracks) > 0 {
			out.Tracks = append(out.Tracks, d.Tracks...)
			break
		}
	}

	for _, source := range coverOrder {
		if d := details[source]; d != nil && d.CoverArtURL != "" {
			out.CoverArtURL = d.CoverArtURL
			break
		}
	}

	seen := make(map[string]bool)
	addGenres := func(genres []string) {
		for _, g := range genres {
			key := strings.ToLower(strings.TrimSpace(g))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out.Genres = append(out.Genres, g)
		}
	}
	for _, source := range fieldOrder {
		if d := details[source]; d != nil {
			addGenres(d.Genres)
		}
	}

	if d := details[models.SourceSpotify]; d != nil {
		out.SourceIDs.SpotifyID = d.ID
		out.Artist.SourceIDs.SpotifyArtistID = d.ArtistID
	}
	if d := details[models.SourceMusicBrainz]; d != nil {
		out.SourceIDs.MusicBrainzID = d.ID
		out.Artist.SourceIDs.MusicBrainzArtistID = d.ArtistID
	}
	if d := details[models.SourceDeezer]; d != nil {
		out.SourceIDs.DeezerID = d.ID
		out.Artist.SourceIDs.DeezerArtistID = d.ArtistID
	}

	if artist != nil {
		out.Artist.SocialLinks = artist.SocialLinks
		addGenres(artist.Genres)
		if out.Artist.Name == "" {
			out.Artist.Name = artist.Name
		}
	}

	return out
}
