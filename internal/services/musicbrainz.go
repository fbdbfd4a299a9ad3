// MusicBrainz API implementation of [Gateway]
//
// MusicBrainz response types based on https://musicbrainz.org/doc/MusicBrainz_API
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
	"golang.org/x/time/rate"
)

const (
	musicbrainzBaseURL = "https://musicbrainz.org/ws/2"

	// MusicBrainz asks anonymous clients to stay under 1 req/s. The extra
	// 100ms keeps clock skew from tripping their throttle.
	musicbrainzMinInterval = 1100 * time.Millisecond

	releaseInc = "recordings+artist-credits+labels+genres+tags+media+release-groups"
	artistInc  = "url-rels+genres+tags"
)

type mbArtistCredit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type mbReleaseGroup struct {
	PrimaryType string `json:"primary-type"`
}

type mbLabelInfo struct {
	Label struct {
		Name string `json:"name"`
	} `json:"label"`
}

type mbGenre struct {
	Name string `json:"name"`
}

type mbTrack struct {
	Position  int `json:"position"`
	Recording struct {
		ID     string   `json:"id"`
		Title  string   `json:"title"`
		Length int      `json:"length"`
		ISRCs  []string `json:"isrcs"`
	} `json:"recording"`
	Title  string `json:"title"`
	Length int    `json:"length"`
}

type mbMedia struct {
	Tracks []mbTrack `json:"tracks"`
}

type mbRelease struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Date         string           `json:"date"`
	TrackCount   int              `json:"track-count"`
	ArtistCredit []mbArtistCredit `json:"artist-credit"`
	ReleaseGroup mbReleaseGroup   `json:"release-group"`
	LabelInfo    []mbLabelInfo    `json:"label-info"`
	Genres       []mbGenre        `json:"genres"`
	Tags         []mbGenre        `json:"tags"`
	Media        []mbMedia        `json:"media"`
}

type mbURLRelation struct {
	Type string `json:"type"`
	URL  struct {
		Resource string `json:"resource"`
	} `json:"url"`
}

type mbArtist struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Genres    []mbGenre       `json:"genres"`
	Tags      []mbGenre       `json:"tags"`
	Relations []mbURLRelation `json:"relations"`
}

// MusicBrainzGateway implements [Gateway] against the MusicBrainz API.
//
// Every instance carries its own limiter so concurrent workers each respect
// the per-client rate independently.
type MusicBrainzGateway struct {
	userAgent string
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewMusicBrainzGateway creates a MusicBrainz gateway identified by the
// configured application name and contact.
func NewMusicBrainzGateway(cfg shared.MusicBrainzConfig) *MusicBrainzGateway {
	name := cfg.AppName
	if name == "" {
		name = "grimwaves"
	}
	version := cfg.AppVersion
	if version == "" {
		version = "0.1.0"
	}

	userAgent := fmt.Sprintf("%s/%s", name, version)
	if cfg.Contact != "" {
		userAgent += fmt.Sprintf(" (%s)", cfg.Contact)
	}

	return &MusicBrainzGateway{
		userAgent: userAgent,
		baseURL:   musicbrainzBaseURL,
		limiter:   rate.NewLimiter(rate.Every(musicbrainzMinInterval), 1),
	}
}

func (m *MusicBrainzGateway) Name() string { return models.SourceMusicBrainz }

// Open builds the HTTP client. MusicBrainz needs no credentials.
func (m *MusicBrainzGateway) Open(ctx context.Context) error {
	m.client = &http.Client{Timeout: requestTimeout}
	return nil
}

// Close drops the client.
func (m *MusicBrainzGateway) Close() error {
	m.client = nil
	return nil
}

func (m *MusicBrainzGateway) get(ctx context.Context, endpoint string, result any) error {
	if m.client == nil {
		return fmt.Errorf("musicbrainz: %w", shared.ErrNotAuthenticated)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("musicbrainz rate wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", m.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("musicbrainz request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("musicbrainz %s: %w", endpoint, shared.ErrNoDataFound)
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("musicbrainz status %d: %w", resp.StatusCode, shared.ErrServiceUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("musicbrainz status %d: %w", resp.StatusCode, shared.ErrAPIRequest)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode musicbrainz response: %w", err)
		}
	}

	return nil
}

// SearchReleases queries the release search endpoint with a Lucene query.
func (m *MusicBrainzGateway) SearchReleases(ctx context.Context, artist, release, market string) ([]ReleaseCandidate, error) {
	query := fmt.Sprintf(`release:%q AND artist:%q`, release, artist)
	if market != "" {
		query += fmt.Sprintf(` AND country:%s`, strings.ToUpper(market))
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("fmt", "json")
	q.Set("limit", fmt.Sprintf("%d", searchLimit))

	var response struct {
		Releases []mbRelease `json:"releases"`
	}
	if err := m.get(ctx, "/release?"+q.Encode(), &response); err != nil {
		return nil, err
	}

	candidates := make([]ReleaseCandidate, 0, len(response.Releases))
	for _, rel := range response.Releases {
		candidate := ReleaseCandidate{
			Source:      models.SourceMusicBrainz,
			ID:          rel.ID,
			Title:       rel.Title,
			ReleaseType: strings.ToLower(rel.ReleaseGroup.PrimaryType),
			TrackCount:  rel.TrackCount,
		}
		if len(rel.ArtistCredit) > 0 {
			candidate.Artist = rel.ArtistCredit[0].Artist.Name
			candidate.ArtistID = rel.ArtistCredit[0].Artist.ID
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// GetReleaseDetail fetches a release with recordings, labels and genres
// included in one call.
func (m *MusicBrainzGateway) GetReleaseDetail(ctx context.Context, id, market string) (*ReleaseDetail, error) {
	endpoint := fmt.Sprintf("/release/%s?inc=%s&fmt=json", id, releaseInc)

	var rel mbRelease
	if err := m.get(ctx, endpoint, &rel); err != nil {
		return nil, err
	}

	detail := &ReleaseDetail{
		Source:      models.SourceMusicBrainz,
		ID:          rel.ID,
		Title:       rel.Title,
		ReleaseDate: rel.Date,
		Genres:      genreNames(rel.Genres, rel.Tags),
	}
	if len(rel.ArtistCredit) > 0 {
		detail.Artist = rel.ArtistCredit[0].Artist.Name
		detail.ArtistID = rel.ArtistCredit[0].Artist.ID
	}
	if len(rel.LabelInfo) > 0 {
		detail.Label = rel.LabelInfo[0].Label.Name
	}

	for _, media := range rel.Media {
		for _, track := range media.Tracks {
			title := track.Title
			if title == "" {
				title = track.Recording.Title
			}
			length := track.Length
			if length == 0 {
				length = track.Recording.Length
			}
			t := models.Track{
				Title:      title,
				Position:   track.Position,
				DurationMS: length,
				SourceIDs:  map[string]string{models.SourceMusicBrainz: track.Recording.ID},
			}
			if len(track.Recording.ISRCs) > 0 {
				t.ISRC = track.Recording.ISRCs[0]
			}
			detail.Tracks = append(detail.Tracks, t)
		}
	}

	detail.Normalize()
	return detail, nil
}

// GetArtistDetail fetches an artist with URL relations and genres, mapping
// relations onto the social link slots.
func (m *MusicBrainzGateway) GetArtistDetail(ctx context.Context, artistID string) (*ArtistDetail, error) {
	endpoint := fmt.Sprintf("/artist/%s?inc=%s&fmt=json", artistID, artistInc)

	var artist mbArtist
	if err := m.get(ctx, endpoint, &artist); err != nil {
		return nil, err
	}

	return &ArtistDetail{
		Source:      models.SourceMusicBrainz,
		ID:          artist.ID,
		Name:        artist.Name,
		Genres:      genreNames(artist.Genres, artist.Tags),
		SocialLinks: extractSocialLinks(artist.Relations),
	}, nil
}

// genreNames merges the genre and tag lists, preferring genres, deduplicated
// case-insensitively with first-seen casing kept.
func genreNames(genres, tags []mbGenre) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range [][]mbGenre{genres, tags} {
		for _, g := range list {
			key := strings.ToLower(g.Name)
			if g.Name == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, g.Name)
		}
	}
	return out
}

// extractSocialLinks maps URL relations onto the known link slots. Only
// HTTPS links are kept; the first match per slot wins.
func extractSocialLinks(relations []mbURLRelation) models.SocialLinks {
	var links models.SocialLinks
	for _, rel := range relations {
		resource := rel.URL.Resource
		if !strings.HasPrefix(resource, "https://") {
			continue
		}

		u, err := url.Parse(resource)
		if err != nil {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")

		switch {
		case host == "facebook.com" && links.Facebook == "":
			links.Facebook = resource
		case (host == "twitter.com" || host == "x.com") && links.Twitter == "":
			links.Twitter = resource
		case host == "instagram.com" && links.Instagram == "":
			links.Instagram = resource
		case host == "vk.com" && links.VK == "":
			links.VK = resource
		case (host == "youtube.com" || host == "m.youtube.com") && links.YouTube == "":
			links.YouTube = resource
		case rel.Type == "official homepage" && links.Website == "":
			links.Website = resource
		}
	}
	return links
}
