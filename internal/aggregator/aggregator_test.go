package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/desertthunder/grimwaves/internal/cache"
	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/services"
	"github.com/desertthunder/grimwaves/internal/shared"
	tu "github.com/desertthunder/grimwaves/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() models.TaskRequest {
	return models.TaskRequest{BandName: "Metallica", ReleaseName: "Master of Puppets", CountryCode: "US"}
}

func happyGateways() (*tu.MockGateway, *tu.MockGateway, *tu.MockGateway) {
	spotify := &tu.MockGateway{
		Source: models.SourceSpotify,
		SearchFn: func(ctx context.Context, artist, release, market string) ([]services.ReleaseCandidate, error) {
			return []services.ReleaseCandidate{
				{Source: models.SourceSpotify, ID: "sp1", Title: release, Artist: artist, ArtistID: "spa1", ReleaseType: "album", TrackCount: 8},
			}, nil
		},
		DetailFn: func(ctx context.Context, id, market string) (*services.ReleaseDetail, error) {
			return &services.ReleaseDetail{
				Source: models.SourceSpotify, ID: id, ArtistID: "spa1",
				Title: "Master of Puppets", Artist: "Metallica",
				CoverArtURL: "https://i.scdn.co/image/master.jpg",
				Tracks:      []models.Track{{Title: "Battery", Position: 1}},
			}, nil
		},
	}

	mb := &tu.MockGateway{
		Source: models.SourceMusicBrainz,
		SearchFn: func(ctx context.Context, artist, release, market string) ([]services.ReleaseCandidate, error) {
			return []services.ReleaseCandidate{
				{Source: models.SourceMusicBrainz, ID: "mb1", Title: release, Artist: artist, ArtistID: "mba1", ReleaseType: "album", TrackCount: 8},
			}, nil
		},
		DetailFn: func(ctx context.Context, id, market string) (*services.ReleaseDetail, error) {
			return &services.ReleaseDetail{
				Source: models.SourceMusicBrainz, ID: id, ArtistID: "mba1",
				Title: "Master of Puppets", Artist: "Metallica", Label: "Elektra",
				Genres: []string{"thrash metal"},
				Tracks: []models.Track{{Title: "Battery", Position: 1}},
			}, nil
		},
		ArtistFn: func(ctx context.Context, artistID string) (*services.ArtistDetail, error) {
			return &services.ArtistDetail{
				Source: models.SourceMusicBrainz, ID: artistID, Name: "Metallica",
				Genres:      []string{"Thrash Metal", "heavy metal"},
				SocialLinks: models.SocialLinks{Website: "https://www.metallica.com"},
			}, nil
		},
	}

	deezer := &tu.MockGateway{
		Source: models.SourceDeezer,
		SearchFn: func(ctx context.Context, artist, release, market string) ([]services.ReleaseCandidate, error) {
			return []services.ReleaseCandidate{
				{Source: models.SourceDeezer, ID: "dz1", Title: release, Artist: artist, ArtistID: "dza1", ReleaseType: "album", TrackCount: 8},
			}, nil
		},
		DetailFn: func(ctx context.Context, id, market string) (*services.ReleaseDetail, error) {
			return &services.ReleaseDetail{
				Source: models.SourceDeezer, ID: id, ArtistID: "dza1",
				Title: "Master Of Puppets", Artist: "Metallica",
				Genres: []string{"Rock"},
				Tracks: []models.Track{{Title: "Battery", Position: 1}},
			}, nil
		},
	}

	return spotify, mb, deezer
}

func newTestAggregator(gws ...services.Gateway) *Aggregator {
	c := cache.New(cache.NewMemoryStore(), shared.NewLogger(io.Discard))
	return New(func() []services.Gateway { return gws }, c, shared.NewLogger(io.Discard))
}

func TestFetchReleaseMetadata(t *testing.T) {
	spotify, mb, deezer := happyGateways()
	agg := newTestAggregator(spotify, mb, deezer)

	got, err := agg.FetchReleaseMetadata(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "Master of Puppets", got.Release)
	assert.Equal(t, "Elektra", got.Label)
	assert.Equal(t, "https://i.scdn.co/image/master.jpg", got.CoverArtURL)
	assert.Equal(t, "https://www.metallica.com", got.Artist.SocialLinks.Website)
	assert.ElementsMatch(t, []string{"thrash metal", "heavy metal", "Rock"}, got.Genres)
	assert.Equal(t, "sp1", got.SourceIDs.SpotifyID)
	assert.Equal(t, "mb1", got.SourceIDs.MusicBrainzID)
	assert.Equal(t, "dz1", got.SourceIDs.DeezerID)

	assert.Equal(t, spotify.Opens, spotify.Closes, "gateway acquisition must be balanced")
	assert.Equal(t, mb.Opens, mb.Closes)
	assert.Empty(t, agg.Stats())
}

func TestFetchReleaseMetadataPrefetched(t *testing.T) {
	spotify, mb, deezer := happyGateways()
	agg := newTestAggregator(spotify, mb, deezer)

	payload, err := json.Marshal(services.ReleaseDetail{
		ID: "mb1", ArtistID: "mba1",
		Title: "Master of Puppets", Artist: "Metallica", Label: "Elektra",
		Tracks: []models.Track{{Title: "Battery", Position: 1}},
	})
	require.NoError(t, err)

	req := testRequest()
	req.Prefetched = []models.PrefetchedData{{Source: models.SourceMusicBrainz, Data: payload}}

	got, err := agg.FetchReleaseMetadata(context.Background(), req)
	require.NoError(t, err)

	assert.Zero(t, mb.Searches, "prefetched source must not be searched")
	assert.Zero(t, mb.Details, "prefetched source must not fetch details")
	assert.Equal(t, "Elektra", got.Label, "prefetched payload must feed the merge")
	assert.Equal(t, 1, mb.Artists, "artist profile still resolves from the prefetched artist id")
}

func TestFetchReleaseMetadataSingleSourceFailure(t *testing.T) {
	spotify, mb, deezer := happyGateways()
	spotify.SearchFn = func(ctx context.Context, artist, release, market string) ([]services.ReleaseCandidate, error) {
		return nil, errors.New("spotify down")
	}

	agg := newTestAggregator(spotify, mb, deezer)
	got, err := agg.FetchReleaseMetadata(context.Background(), testRequest())
	require.NoError(t, err, "one failing provider must not abort aggregation")

	assert.Empty(t, got.SourceIDs.SpotifyID)
	assert.Equal(t, "mb1", got.SourceIDs.MusicBrainzID)
	assert.Equal(t, map[string]int64{models.SourceSpotify: 1}, agg.Stats())
	assert.Equal(t, spotify.Opens, spotify.Closes, "failing gateway must still be released")
}

func TestFetchReleaseMetadataNotFound(t *testing.T) {
	empty := func(source string) *tu.MockGateway {
		return &tu.MockGateway{Source: source}
	}

	agg := newTestAggregator(empty(models.SourceSpotify), empty(models.SourceMusicBrainz), empty(models.SourceDeezer))
	_, err := agg.FetchReleaseMetadata(context.Background(), testRequest())

	require.ErrorIs(t, err, shared.ErrNoDataFound)
	assert.Contains(t, err.Error(), "Metallica")
	assert.Contains(t, err.Error(), "Master of Puppets")
	assert.Empty(t, agg.Stats(), "empty results are not provider errors")
}

func TestFetchReleaseMetadataAllSourcesFailed(t *testing.T) {
	failing := func(source string) *tu.MockGateway {
		return &tu.MockGateway{
			Source: source,
			SearchFn: func(ctx context.Context, artist, release, market string) ([]services.ReleaseCandidate, error) {
				return nil, shared.ErrServiceUnavailable
			},
		}
	}

	agg := newTestAggregator(failing(models.SourceSpotify), failing(models.SourceDeezer))
	_, err := agg.FetchReleaseMetadata(context.Background(), testRequest())

	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrNoDataFound, "total provider outage is not a missing release")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
}

func TestFetchReleaseMetadataInvalidRequest(t *testing.T) {
	agg := newTestAggregator()
	_, err := agg.FetchReleaseMetadata(context.Background(), models.TaskRequest{BandName: "Metallica"})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestFetchReleaseMetadataUsesCache(t *testing.T) {
	spotify, mb, deezer := happyGateways()
	agg := newTestAggregator(spotify, mb, deezer)

	_, err := agg.FetchReleaseMetadata(context.Background(), testRequest())
	require.NoError(t, err)
	_, err = agg.FetchReleaseMetadata(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, spotify.Searches, "second run must hit the search cache")
	assert.Equal(t, 1, spotify.Details, "second run must hit the detail cache")
	assert.Equal(t, 1, mb.Artists, "second run must hit the artist cache")
}
