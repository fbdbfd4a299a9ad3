package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/shared"
)

func jsonHandler(t *testing.T, routes map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := routes[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}
}

func TestDeezerGateway(t *testing.T) {
	t.Run("SearchReleases", func(t *testing.T) {
		server := httptest.NewServer(jsonHandler(t, map[string]any{
			"/search/album": map[string]any{
				"data": []map[string]any{
					{
						"id":          302127,
						"title":       "Discovery",
						"record_type": "album",
						"nb_tracks":   14,
						"artist":      map[string]any{"id": 27, "name": "Daft Punk"},
					},
				},
			},
		}))
		defer server.Close()

		gw := NewDeezerGateway(shared.DeezerConfig{BaseURL: server.URL})
		if err := gw.Open(context.Background()); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer gw.Close()

		candidates, err := gw.SearchReleases(context.Background(), "Daft Punk", "Discovery", "")
		if err != nil {
			t.Fatalf("SearchReleases failed: %v", err)
		}
		if len(candidates) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(candidates))
		}

		c := candidates[0]
		if c.Source != models.SourceDeezer {
			t.Errorf("expected deezer source tag, got %s", c.Source)
		}
		if c.ID != "302127" || c.ArtistID != "27" {
			t.Errorf("expected stringified ids, got %s / %s", c.ID, c.ArtistID)
		}
		if c.ReleaseType != "album" || c.TrackCount != 14 {
			t.Errorf("unexpected candidate %+v", c)
		}
	})

	t.Run("GetReleaseDetail", func(t *testing.T) {
		server := httptest.NewServer(jsonHandler(t, map[string]any{
			"/album/302127": map[string]any{
				"id":           302127,
				"title":        "Discovery",
				"release_date": "2001-03-07",
				"label":        "Parlophone",
				"cover_big":    "https://cdn.example/discovery-big.jpg",
				"artist":       map[string]any{"id": 27, "name": "Daft Punk"},
				"genres": map[string]any{
					"data": []map[string]any{{"name": "Electronic"}},
				},
				"tracks": map[string]any{
					"data": []map[string]any{
						{"id": 3135553, "title": "One More Time", "isrc": "GBDUW0000059", "duration": 320},
						{"id": 3135554, "title": "", "duration": 230},
					},
				},
			},
		}))
		defer server.Close()

		gw := NewDeezerGateway(shared.DeezerConfig{BaseURL: server.URL})
		gw.Open(context.Background())
		defer gw.Close()

		detail, err := gw.GetReleaseDetail(context.Background(), "302127", "")
		if err != nil {
			t.Fatalf("GetReleaseDetail failed: %v", err)
		}

		if detail.Label != "Parlophone" || detail.ReleaseDate != "2001-03-07" {
			t.Errorf("unexpected detail %+v", detail)
		}
		if detail.CoverArtURL != "https://cdn.example/discovery-big.jpg" {
			t.Errorf("expected big cover, got %s", detail.CoverArtURL)
		}
		if len(detail.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(detail.Tracks))
		}
		if detail.Tracks[0].ISRC != "GBDUW0000059" || detail.Tracks[0].DurationMS != 320000 {
			t.Errorf("unexpected first track %+v", detail.Tracks[0])
		}
		if detail.Tracks[1].Title != models.UnknownTrackTitle {
			t.Errorf("untitled track should normalize, got %q", detail.Tracks[1].Title)
		}
		if detail.Tracks[1].Position != 2 {
			t.Errorf("missing position should fall back to index, got %d", detail.Tracks[1].Position)
		}
	})

	t.Run("Error Envelope", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"error":{"type":"DataException","message":"no data","code":800}}`))
		}))
		defer server.Close()

		gw := NewDeezerGateway(shared.DeezerConfig{BaseURL: server.URL})
		gw.Open(context.Background())
		defer gw.Close()

		_, err := gw.GetReleaseDetail(context.Background(), "999", "")
		if !errors.Is(err, shared.ErrNoDataFound) {
			t.Errorf("expected ErrNoDataFound for code 800, got %v", err)
		}
	})

	t.Run("Unopened", func(t *testing.T) {
		gw := NewDeezerGateway(shared.DeezerConfig{})
		_, err := gw.SearchReleases(context.Background(), "a", "b", "")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated before Open, got %v", err)
		}
	})
}

func TestMusicBrainzGateway(t *testing.T) {
	t.Run("SearchReleases", func(t *testing.T) {
		var gotUA string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"releases": []map[string]any{
					{
						"id":            "fed37cfc-2a6d-4569-9ac0-501a7c7598eb",
						"title":         "Master of Puppets",
						"track-count":   8,
						"release-group": map[string]any{"primary-type": "Album"},
						"artist-credit": []map[string]any{
							{"artist": map[string]any{"id": "65f4f0c5-ef9e-490c-aee3-909e7ae6b2ab", "name": "Metallica"}},
						},
					},
				},
			})
		}))
		defer server.Close()

		gw := NewMusicBrainzGateway(shared.MusicBrainzConfig{AppName: "grimwaves", AppVersion: "0.1.0", Contact: "ops@example.com"})
		gw.baseURL = server.URL
		gw.Open(context.Background())
		defer gw.Close()

		candidates, err := gw.SearchReleases(context.Background(), "Metallica", "Master of Puppets", "US")
		if err != nil {
			t.Fatalf("SearchReleases failed: %v", err)
		}
		if gotUA != "grimwaves/0.1.0 (ops@example.com)" {
			t.Errorf("unexpected User-Agent %q", gotUA)
		}
		if len(candidates) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(candidates))
		}
		if candidates[0].ReleaseType != "album" {
			t.Errorf("primary type should lowercase, got %q", candidates[0].ReleaseType)
		}
		if candidates[0].ArtistID != "65f4f0c5-ef9e-490c-aee3-909e7ae6b2ab" {
			t.Errorf("unexpected artist id %s", candidates[0].ArtistID)
		}
	})

	t.Run("GetArtistDetail", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "65f4f0c5-ef9e-490c-aee3-909e7ae6b2ab",
				"name":   "Metallica",
				"genres": []map[string]any{{"name": "thrash metal"}},
				"tags":   []map[string]any{{"name": "Thrash Metal"}, {"name": "heavy metal"}},
				"relations": []map[string]any{
					{"type": "social network", "url": map[string]any{"resource": "https://www.facebook.com/Metallica"}},
					{"type": "social network", "url": map[string]any{"resource": "http://twitter.com/Metallica"}},
					{"type": "official homepage", "url": map[string]any{"resource": "https://www.metallica.com"}},
					{"type": "youtube", "url": map[string]any{"resource": "https://www.youtube.com/user/MetallicaTV"}},
				},
			})
		}))
		defer server.Close()

		gw := NewMusicBrainzGateway(shared.MusicBrainzConfig{})
		gw.baseURL = server.URL
		gw.Open(context.Background())
		defer gw.Close()

		artist, err := gw.GetArtistDetail(context.Background(), "65f4f0c5-ef9e-490c-aee3-909e7ae6b2ab")
		if err != nil {
			t.Fatalf("GetArtistDetail failed: %v", err)
		}

		if artist.SocialLinks.Facebook != "https://www.facebook.com/Metallica" {
			t.Errorf("unexpected facebook link %q", artist.SocialLinks.Facebook)
		}
		if artist.SocialLinks.Twitter != "" {
			t.Errorf("plain http link must be dropped, got %q", artist.SocialLinks.Twitter)
		}
		if artist.SocialLinks.Website != "https://www.metallica.com" {
			t.Errorf("unexpected website %q", artist.SocialLinks.Website)
		}
		if artist.SocialLinks.YouTube != "https://www.youtube.com/user/MetallicaTV" {
			t.Errorf("unexpected youtube link %q", artist.SocialLinks.YouTube)
		}

		want := []string{"thrash metal", "heavy metal"}
		if len(artist.Genres) != len(want) {
			t.Fatalf("expected genres %v, got %v", want, artist.Genres)
		}
		for i := range want {
			if artist.Genres[i] != want[i] {
				t.Errorf("expected genres %v, got %v", want, artist.Genres)
			}
		}
	})

	t.Run("Service Unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		gw := NewMusicBrainzGateway(shared.MusicBrainzConfig{})
		gw.baseURL = server.URL
		gw.Open(context.Background())
		defer gw.Close()

		_, err := gw.SearchReleases(context.Background(), "a", "b", "")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestSpotifyGateway(t *testing.T) {
	t.Run("Open Without Credentials", func(t *testing.T) {
		gw := NewSpotifyGateway(shared.SpotifyConfig{})
		if err := gw.Open(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("GetReleaseDetail With ISRC Enrichment", func(t *testing.T) {
		server := httptest.NewServer(jsonHandler(t, map[string]any{
			"/albums/2Lq2qX3hYhiuPckC8Flj21": map[string]any{
				"id":           "2Lq2qX3hYhiuPckC8Flj21",
				"name":         "Master of Puppets",
				"album_type":   "album",
				"release_date": "1986-03-03",
				"label":        "Blackened Recordings",
				"artists":      []map[string]any{{"id": "2ye2Wgw4gimLv2eAKyk1NB", "name": "Metallica"}},
				"images":       []map[string]any{{"url": "https://i.scdn.co/image/master.jpg", "height": 640, "width": 640}},
			},
			"/albums/2Lq2qX3hYhiuPckC8Flj21/tracks": map[string]any{
				"items": []map[string]any{
					{"id": "5S9b9LVHNqTTvRDEnnPkRH", "name": "Battery", "track_number": 1, "duration_ms": 312000},
				},
				"next": nil,
			},
			"/tracks": map[string]any{
				"tracks": []map[string]any{
					{"id": "5S9b9LVHNqTTvRDEnnPkRH", "external_ids": map[string]any{"isrc": "USBL18600001"}},
				},
			},
		}))
		defer server.Close()

		gw := NewSpotifyGateway(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"})
		gw.baseURL = server.URL
		gw.client = &http.Client{}

		detail, err := gw.GetReleaseDetail(context.Background(), "2Lq2qX3hYhiuPckC8Flj21", "US")
		if err != nil {
			t.Fatalf("GetReleaseDetail failed: %v", err)
		}

		if detail.Artist != "Metallica" || detail.ArtistID != "2ye2Wgw4gimLv2eAKyk1NB" {
			t.Errorf("unexpected artist %s / %s", detail.Artist, detail.ArtistID)
		}
		if detail.CoverArtURL != "https://i.scdn.co/image/master.jpg" {
			t.Errorf("unexpected cover art %s", detail.CoverArtURL)
		}
		if len(detail.Tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(detail.Tracks))
		}
		if detail.Tracks[0].ISRC != "USBL18600001" {
			t.Errorf("ISRC enrichment missing, got %+v", detail.Tracks[0])
		}
		if detail.Tracks[0].SourceIDs[models.SourceSpotify] != "5S9b9LVHNqTTvRDEnnPkRH" {
			t.Errorf("missing source id on track %+v", detail.Tracks[0])
		}
	})

	t.Run("SearchReleases", func(t *testing.T) {
		server := httptest.NewServer(jsonHandler(t, map[string]any{
			"/search": map[string]any{
				"albums": map[string]any{
					"items": []map[string]any{
						{
							"id":           "2Lq2qX3hYhiuPckC8Flj21",
							"name":         "Master of Puppets",
							"album_type":   "album",
							"total_tracks": 8,
							"artists":      []map[string]any{{"id": "2ye2Wgw4gimLv2eAKyk1NB", "name": "Metallica"}},
						},
					},
				},
			},
		}))
		defer server.Close()

		gw := NewSpotifyGateway(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"})
		gw.baseURL = server.URL
		gw.client = &http.Client{}

		candidates, err := gw.SearchReleases(context.Background(), "Metallica", "Master of Puppets", "US")
		if err != nil {
			t.Fatalf("SearchReleases failed: %v", err)
		}
		if len(candidates) != 1 || candidates[0].TrackCount != 8 {
			t.Fatalf("unexpected candidates %+v", candidates)
		}
	})
}
