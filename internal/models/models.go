// package models defines the data model for the release metadata worker
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Provider source tags used across caching, prefetching and merging.
const (
	SourceSpotify     = "spotify"
	SourceMusicBrainz = "musicbrainz"
	SourceDeezer      = "deezer"
)

// UnknownTrackTitle is the placeholder used when a provider returns a track
// without a title.
const UnknownTrackTitle = "Unknown Track"

// TaskStatus represents the lifecycle state of a metadata task.
type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusQueued  TaskStatus = "QUEUED"
	StatusStarted TaskStatus = "STARTED"
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailure TaskStatus = "FAILURE"
	StatusRetry   TaskStatus = "RETRY"
	StatusTimeout TaskStatus = "TIMEOUT"
)

// PrefetchedData carries a provider payload resolved before task submission,
// letting the aggregator skip that provider's search and detail calls.
// Data holds a JSON-encoded normalized release detail for the named source.
type PrefetchedData struct {
	Source string          `json:"source"`
	Data   json.RawMessage `json:"data"`
}

// TaskRequest is the submission payload for a metadata task.
// It is created once at submission and never mutated.
type TaskRequest struct {
	BandName    string           `json:"band_name"`
	ReleaseName string           `json:"release_name"`
	CountryCode string           `json:"country_code,omitempty"`
	Prefetched  []PrefetchedData `json:"prefetched,omitempty"`
}

const maxNameLength = 200

// Validate checks request shape. A validation failure is terminal and is
// never retried.
func (r TaskRequest) Validate() error {
	if r.BandName == "" || len(r.BandName) > maxNameLength {
		return fmt.Errorf("band_name must be 1..%d characters", maxNameLength)
	}
	if r.ReleaseName == "" || len(r.ReleaseName) > maxNameLength {
		return fmt.Errorf("release_name must be 1..%d characters", maxNameLength)
	}
	if r.CountryCode != "" {
		if len(r.CountryCode) != 2 {
			return fmt.Errorf("country_code must be a 2-letter ISO 3166-1 code, got %q", r.CountryCode)
		}
		for _, c := range r.CountryCode {
			if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
				return fmt.Errorf("country_code must be a 2-letter ISO 3166-1 code, got %q", r.CountryCode)
			}
		}
	}
	for i, p := range r.Prefetched {
		if p.Source == "" || len(p.Data) == 0 {
			return fmt.Errorf("prefetched[%d] must carry both source and data", i)
		}
	}
	return nil
}

// Market returns the normalized (upper-case) country code, or "" when unset.
func (r TaskRequest) Market() string {
	return strings.ToUpper(r.CountryCode)
}

// Track represents one track of the canonical release.
type Track struct {
	Title      string            `json:"title"`
	ISRC       string            `json:"isrc,omitempty"`
	Position   int               `json:"position,omitempty"`
	DurationMS int               `json:"duration_ms,omitempty"`
	SourceIDs  map[string]string `json:"source_specific_ids,omitempty"`
}

// Normalize enforces the track invariant: the title is never empty.
func (t *Track) Normalize() {
	if strings.TrimSpace(t.Title) == "" {
		t.Title = UnknownTrackTitle
	}
}

// SocialLinks holds artist links sourced from the MusicBrainz artist profile.
// Only HTTPS links survive ingestion.
type SocialLinks struct {
	Facebook  string `json:"facebook,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	VK        string `json:"vk,omitempty"`
	Website   string `json:"website,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
}

// Empty reports whether no link is set.
func (s SocialLinks) Empty() bool {
	return s == SocialLinks{}
}

// ArtistSourceIDs holds per-provider artist identifiers.
type ArtistSourceIDs struct {
	SpotifyArtistID     string `json:"spotify_artist_id,omitempty"`
	MusicBrainzArtistID string `json:"musicbrainz_artist_id,omitempty"`
	DeezerArtistID      string `json:"deezer_artist_id,omitempty"`
}

// Any reports whether at least one provider identified the artist.
func (a ArtistSourceIDs) Any() bool {
	return a != ArtistSourceIDs{}
}

// ArtistInfo is the merged artist identity of a canonical release.
type ArtistInfo struct {
	Name        string          `json:"name"`
	SourceIDs   ArtistSourceIDs `json:"source_specific_ids"`
	SocialLinks SocialLinks     `json:"social_links"`
}

// ReleaseSourceIDs holds per-provider release identifiers.
type ReleaseSourceIDs struct {
	SpotifyID     string `json:"spotify_id,omitempty"`
	MusicBrainzID string `json:"musicbrainz_id,omitempty"`
	DeezerID      string `json:"deezer_id,omitempty"`
}

// Any reports whether at least one provider identified the release.
func (r ReleaseSourceIDs) Any() bool {
	return r != ReleaseSourceIDs{}
}

// CanonicalRelease is the single merged metadata record returned for one
// artist/release query.
//
// Invariant: a valid CanonicalRelease carries at least one track or at least
// one source identifier; otherwise the aggregation outcome is NotFound.
type CanonicalRelease struct {
	Artist      ArtistInfo       `json:"artist"`
	Release     string           `json:"release"`
	ReleaseDate string           `json:"release_date,omitempty"`
	Label       string           `json:"label,omitempty"`
	Genres      []string         `json:"genre"`
	Tracks      []Track          `json:"tracks"`
	SourceIDs   ReleaseSourceIDs `json:"source_ids"`
	CoverArtURL string           `json:"album_cover_url,omitempty"`
}

// HasData reports whether the release satisfies the canonical invariant.
func (c *CanonicalRelease) HasData() bool {
	return len(c.Tracks) > 0 || c.SourceIDs.Any() || c.Artist.SourceIDs.Any()
}

// TaskResult is the terminal verdict for a task.
type TaskResult struct {
	TaskID    string            `json:"task_id"`
	Status    TaskStatus        `json:"status"`
	Result    *CanonicalRelease `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorType string            `json:"error_type,omitempty"`
}

// Failed reports whether the result carries a terminal failure verdict.
func (r TaskResult) Failed() bool {
	return r.Status == StatusFailure || r.Status == StatusTimeout
}
