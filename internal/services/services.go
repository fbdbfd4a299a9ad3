// package services defines interface Gateway for interacting with music
// metadata HTTP APIs
//
// Spotify, MusicBrainz, Deezer
package services

import (
	"context"

	"github.com/desertthunder/grimwaves/internal/models"
)

// Gateway is the normalized client for one metadata provider.
//
// Provider payload shapes never leave this package: every method returns the
// normalized candidate and detail types below. A gateway instance serves a
// single task; Open acquires whatever the provider needs (tokens, limiter
// state) and Close releases it when the task ends.
type Gateway interface {
	// Name returns the provider source tag ("spotify", "musicbrainz", "deezer").
	Name() string

	// Open prepares the gateway for use. Must be called before any fetch.
	Open(ctx context.Context) error

	// Close releases the gateway. Safe to call after a failed Open.
	Close() error

	// SearchReleases finds candidate releases for an artist and release title.
	// market is an optional 2-letter country filter.
	SearchReleases(ctx context.Context, artist, release, market string) ([]ReleaseCandidate, error)

	// GetReleaseDetail fetches the full detail of one release by provider ID.
	GetReleaseDetail(ctx context.Context, id, market string) (*ReleaseDetail, error)

	// GetArtistDetail fetches artist-level data (genres, social links) by
	// provider artist ID.
	GetArtistDetail(ctx context.Context, artistID string) (*ArtistDetail, error)
}

// ReleaseCandidate is one search hit, normalized for scoring.
type ReleaseCandidate struct {
	Source      string `json:"source"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	ArtistID    string `json:"artist_id,omitempty"`
	ReleaseType string `json:"release_type,omitempty"`
	TrackCount  int    `json:"track_count,omitempty"`
}

// ReleaseDetail is the full normalized payload for one provider's view of a
// release.
type ReleaseDetail struct {
	Source      string         `json:"source"`
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Artist      string         `json:"artist"`
	ArtistID    string         `json:"artist_id,omitempty"`
	ReleaseDate string         `json:"release_date,omitempty"`
	Label       string         `json:"label,omitempty"`
	Genres      []string       `json:"genres,omitempty"`
	Tracks      []models.Track `json:"tracks"`
	CoverArtURL string         `json:"cover_art_url,omitempty"`
}

// ArtistDetail is the normalized artist-level payload.
type ArtistDetail struct {
	Source      string             `json:"source"`
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Genres      []string           `json:"genres,omitempty"`
	SocialLinks models.SocialLinks `json:"social_links"`
}

// Normalize enforces track invariants on a fetched detail in place.
func (d *ReleaseDetail) Normalize() {
	for i := range d.Tracks {
		d.Tracks[i].Normalize()
	}
}
