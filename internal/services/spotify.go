// Spotify API implementation of [Gateway]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	requestTimeout = 10 * time.Second
	searchLimit    = 10
	tracksPageSize = 50
)

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

type spotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	AlbumType   string          `json:"album_type"`
	Artists     []spotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Label       string          `json:"label"`
	Genres      []string        `json:"genres"`
	Images      []spotifyImage  `json:"images"`
}

type spotifySimpleTrack struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TrackNum   int    `json:"track_number"`
	DurationMS int    `json:"duration_ms"`
}

type spotifyExternalIDs struct {
	ISRC string `json:"isrc"`
}

type spotifyFullTrack struct {
	ID          string             `json:"id"`
	ExternalIDs spotifyExternalIDs `json:"external_ids"`
}

// SpotifyGateway implements [Gateway] against the Spotify Web API using
// client-credentials authentication.
type SpotifyGateway struct {
	creds   shared.SpotifyConfig
	baseURL string
	client  *http.Client
}

// NewSpotifyGateway creates a Spotify gateway. The token is not fetched
// until Open.
func NewSpotifyGateway(creds shared.SpotifyConfig) *SpotifyGateway {
	return &SpotifyGateway{creds: creds, baseURL: spotifyBaseURL}
}

func (s *SpotifyGateway) Name() string { return models.SourceSpotify }

// Open builds the token-refreshing HTTP client from the configured
// client-credentials pair.
func (s *SpotifyGateway) Open(ctx context.Context) error {
	if s.creds.ClientID == "" || s.creds.ClientSecret == "" {
		return fmt.Errorf("spotify: %w", shared.ErrMissingCredentials)
	}

	config := &clientcredentials.Config{
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		TokenURL:     spotifyTokenURL,
	}

	base := &http.Client{Timeout: requestTimeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	s.client = config.Client(ctx)
	s.client.Timeout = requestTimeout
	return nil
}

// Close drops the authenticated client.
func (s *SpotifyGateway) Close() error {
	s.client = nil
	return nil
}

func (s *SpotifyGateway) get(ctx context.Context, endpoint string, result any) error {
	if s.client == nil {
		return fmt.Errorf("spotify: %w", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("spotify request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("spotify %s: %w", endpoint, shared.ErrNoDataFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("spotify status %d: %w", resp.StatusCode, shared.ErrServiceUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("spotify status %d: %w", resp.StatusCode, shared.ErrAPIRequest)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode spotify response: %w", err)
		}
	}

	return nil
}

// SearchReleases queries /search for albums matching the artist and release.
func (s *SpotifyGateway) SearchReleases(ctx context.Context, artist, release, market string) ([]ReleaseCandidate, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("album:%s artist:%s", release, artist))
	q.Set("type", "album")
	q.Set("limit", fmt.Sprintf("%d", searchLimit))
	if market != "" {
		q.Set("market", market)
	}

	var response struct {
		Albums struct {
			Items []spotifyAlbum `json:"items"`
		} `json:"albums"`
	}

	if err := s.get(ctx, "/search?"+q.Encode(), &response); err != nil {
		return nil, err
	}

	candidates := make([]ReleaseCandidate, 0, len(response.Albums.Items))
	for _, album := range response.Albums.Items {
		candidate := ReleaseCandidate{
			Source:      models.SourceSpotify,
			ID:          album.ID,
			Title:       album.Name,
			ReleaseType: album.AlbumType,
			TrackCount:  album.TotalTracks,
		}
		if len(album.Artists) > 0 {
			candidate.Artist = album.Artists[0].Name
			candidate.ArtistID = album.Artists[0].ID
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// GetReleaseDetail fetches an album, its full track listing and the ISRC
// codes of every track.
func (s *SpotifyGateway) GetReleaseDetail(ctx context.Context, id, market string) (*ReleaseDetail, error) {
	endpoint := fmt.Sprintf("/albums/%s", id)
	if market != "" {
		endpoint += "?market=" + url.QueryEscape(market)
	}

	var album spotifyAlbum
	if err := s.get(ctx, endpoint, &album); err != nil {
		return nil, err
	}

	tracks, err := s.albumTracks(ctx, id, market)
	if err != nil {
		return nil, err
	}

	if err := s.enrichISRC(ctx, tracks); err != nil {
		return nil, err
	}

	detail := &ReleaseDetail{
		Source:      models.SourceSpotify,
		ID:          album.ID,
		Title:       album.Name,
		ReleaseDate: album.ReleaseDate,
		Label:       album.Label,
		Genres:      album.Genres,
		Tracks:      tracks,
	}
	if len(album.Artists) > 0 {
		detail.Artist = album.Artists[0].Name
		detail.ArtistID = album.Artists[0].ID
	}
	if len(album.Images) > 0 {
		detail.CoverArtURL = album.Images[0].URL
	}

	detail.Normalize()
	return detail, nil
}

// albumTracks pages through /albums/{id}/tracks.
func (s *SpotifyGateway) albumTracks(ctx context.Context, id, market string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		q := url.Values{}
		q.Set("limit", fmt.Sprintf("%d", tracksPageSize))
		q.Set("offset", fmt.Sprintf("%d", offset))
		if market != "" {
			q.Set("market", market)
		}

		var page struct {
			Items []spotifySimpleTrack `json:"items"`
			Next  *string              `json:"next"`
		}
		if err := s.get(ctx, fmt.Sprintf("/albums/%s/tracks?%s", id, q.Encode()), &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			tracks = append(tracks, models.Track{
				Title:      item.Name,
				Position:   item.TrackNum,
				DurationMS: item.DurationMS,
				SourceIDs:  map[string]string{models.SourceSpotify: item.ID},
			})
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += tracksPageSize
	}

	return tracks, nil
}

// enrichISRC fills track ISRCs via /tracks?ids= in batches of 50. The album
// endpoints omit external IDs.
func (s *SpotifyGateway) enrichISRC(ctx context.Context, tracks []models.Track) error {
	byID := make(map[string]int, len(tracks))
	ids := make([]string, 0, len(tracks))
	for i, track := range tracks {
		if id := track.SourceIDs[models.SourceSpotify]; id != "" {
			byID[id] = i
			ids = append(ids, id)
		}
	}

	for start := 0; start < len(ids); start += tracksPageSize {
		end := start + tracksPageSize
		if end > len(ids) {
			end = len(ids)
		}

		var response struct {
			Tracks []spotifyFullTrack `json:"tracks"`
		}
		endpoint := "/tracks?ids=" + url.QueryEscape(strings.Join(ids[start:end], ","))
		if err := s.get(ctx, endpoint, &response); err != nil {
			return err
		}

		for _, full := range response.Tracks {
			if i, ok := byID[full.ID]; ok {
				tracks[i].ISRC = full.ExternalIDs.ISRC
			}
		}
	}

	return nil
}

// GetArtistDetail fetches artist genres. Spotify carries no social links.
func (s *SpotifyGateway) GetArtistDetail(ctx context.Context, artistID string) (*ArtistDetail, error) {
	var artist spotifyArtist
	if err := s.get(ctx, fmt.Sprintf("/artists/%s", artistID), &artist); err != nil {
		return nil, err
	}

	return &ArtistDetail{
		Source: models.SourceSpotify,
		ID:     artist.ID,
		Name:   artist.Name,
		Genres: artist.Genres,
	}, nil
}
