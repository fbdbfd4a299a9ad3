// Deezer API implementation of [Gateway]
//
// Deezer exposes a keyless public API; types based on https://developers.deezer.com/api
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/shared"
)

const deezerBaseURL = "https://api.deezer.com"

type deezerArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type deezerGenre struct {
	Name string `json:"name"`
}

type deezerTrack struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	ISRC      string `json:"isrc"`
	Position  int    `json:"track_position"`
	DurationS int    `json:"duration"`
}

type deezerAlbum struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	RecordType  string       `json:"record_type"`
	Artist      deezerArtist `json:"artist"`
	ReleaseDate string       `json:"release_date"`
	Label       string       `json:"label"`
	CoverBig    string       `json:"cover_big"`
	Cover       string       `json:"cover"`
	NbTracks    int          `json:"nb_tracks"`
	Genres      struct {
		Data []deezerGenre `json:"data"`
	} `json:"genres"`
	Tracks struct {
		Data []deezerTrack `json:"data"`
	} `json:"tracks"`
}

type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// DeezerGateway implements [Gateway] against the public Deezer API.
type DeezerGateway struct {
	baseURL string
	client  *http.Client
}

// NewDeezerGateway creates a Deezer gateway. An empty base URL uses the
// public API host.
func NewDeezerGateway(cfg shared.DeezerConfig) *DeezerGateway {
	base := cfg.BaseURL
	if base == "" {
		base = deezerBaseURL
	}
	return &DeezerGateway{baseURL: base}
}

func (d *DeezerGateway) Name() string { return models.SourceDeezer }

// Open builds the HTTP client. Deezer needs no credentials.
func (d *DeezerGateway) Open(ctx context.Context) error {
	d.client = &http.Client{Timeout: requestTimeout}
	return nil
}

// Close drops the client.
func (d *DeezerGateway) Close() error {
	d.client = nil
	return nil
}

func (d *DeezerGateway) get(ctx context.Context, endpoint string, result any) error {
	if d.client == nil {
		return fmt.Errorf("deezer: %w", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deezer request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("deezer %s: %w", endpoint, shared.ErrNoDataFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("deezer status %d: %w", resp.StatusCode, shared.ErrServiceUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("deezer status %d: %w", resp.StatusCode, shared.ErrAPIRequest)
	}

	// Deezer reports failures as 200s with an error envelope.
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode deezer response: %w", err)
	}

	var envelope struct {
		Error *deezerError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil && envelope.Error.Code != 0 {
		if envelope.Error.Code == 800 {
			return fmt.Errorf("deezer %s: %s: %w", endpoint, envelope.Error.Message, shared.ErrNoDataFound)
		}
		return fmt.Errorf("deezer error %d: %s: %w", envelope.Error.Code, envelope.Error.Message, shared.ErrAPIRequest)
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("failed to decode deezer response: %w", err)
		}
	}

	return nil
}

// SearchReleases queries /search/album.
func (d *DeezerGateway) SearchReleases(ctx context.Context, artist, release, market string) ([]ReleaseCandidate, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf(`artist:%q album:%q`, artist, release))
	q.Set("limit", fmt.Sprintf("%d", searchLimit))

	var response struct {
		Data []deezerAlbum `json:"data"`
	}
	if err := d.get(ctx, "/search/album?"+q.Encode(), &response); err != nil {
		return nil, err
	}

	candidates := make([]ReleaseCandidate, 0, len(response.Data))
	for _, album := range response.Data {
		candidates = append(candidates, ReleaseCandidate{
			Source:      models.SourceDeezer,
			ID:          strconv.FormatInt(album.ID, 10),
			Title:       album.Title,
			Artist:      album.Artist.Name,
			ArtistID:    strconv.FormatInt(album.Artist.ID, 10),
			ReleaseType: album.RecordType,
			TrackCount:  album.NbTracks,
		})
	}

	return candidates, nil
}

// GetReleaseDetail fetches /album/{id}; tracks and genres come embedded.
func (d *DeezerGateway) GetReleaseDetail(ctx context.Context, id, market string) (*ReleaseDetail, error) {
	var album deezerAlbum
	if err := d.get(ctx, "/album/"+url.PathEscape(id), &album); err != nil {
		return nil, err
	}

	detail := &ReleaseDetail{
		Source:      models.SourceDeezer,
		ID:          strconv.FormatInt(album.ID, 10),
		Title:       album.Title,
		Artist:      album.Artist.Name,
		ArtistID:    strconv.FormatInt(album.Artist.ID, 10),
		ReleaseDate: album.ReleaseDate,
		Label:       album.Label,
		CoverArtURL: album.CoverBig,
	}
	if detail.CoverArtURL == "" {
		detail.CoverArtURL = album.Cover
	}

	for _, g := range album.Genres.Data {
		if g.Name != "" {
			detail.Genres = append(detail.Genres, g.Name)
		}
	}

	for i, track := range album.Tracks.Data {
		position := track.Position
		if position == 0 {
			position = i + 1
		}
		detail.Tracks = append(detail.Tracks, models.Track{
			Title:      track.Title,
			ISRC:       track.ISRC,
			Position:   position,
			DurationMS: track.DurationS * 1000,
			SourceIDs:  map[string]string{models.SourceDeezer: strconv.FormatInt(track.ID, 10)},
		})
	}

	detail.Normalize()
	return detail, nil
}

// GetArtistDetail fetches /artist/{id}. Deezer carries neither genres nor
// social links on the artist object.
func (d *DeezerGateway) GetArtistDetail(ctx context.Context, artistID string) (*ArtistDetail, error) {
	var artist deezerArtist
	if err := d.get(ctx, "/artist/"+url.PathEscape(artistID), &artist); err != nil {
		return nil, err
	}

	return &ArtistDetail{
		Source: models.SourceDeezer,
		ID:     strconv.FormatInt(artist.ID, 10),
		Name:   artist.Name,
	}, nil
}
