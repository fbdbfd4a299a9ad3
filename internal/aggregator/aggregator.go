// package aggregator queries the metadata providers and folds their answers
// into one canonical release record
//
// Providers are consulted in a fixed order (Spotify, MusicBrainz, Deezer)
// with cache-first search and detail fetches. A failing provider is treated
// as absent for the request, never as a reason to abort the whole
// aggregation.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/grimwaves/internal/cache"
	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/services"
	"github.com/desertthunder/grimwaves/internal/shared"
)

// GatewayFactory builds a fresh set of provider gateways for one request.
// Gateways are single-task objects, so every aggregation gets its own.
type GatewayFactory func() []services.Gateway

// Aggregator owns the fetch, score, select and merge pipeline.
type Aggregator struct {
	factory GatewayFactory
	cache   *cache.Cache
	logger  *log.Logger

	mu     sync.Mutex
	errors map[string]int64
}

// New creates an Aggregator over the given gateway factory and cache.
func New(factory GatewayFactory, c *cache.Cache, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Aggregator{
		factory: factory,
		cache:   c,
		logger:  logger,
		errors:  make(map[string]int64),
	}
}

// Stats returns a copy of the per-provider error counters.
func (a *Aggregator) Stats() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int64, len(a.errors))
	for source, n := range a.errors {
		out[source] = n
	}
	return out
}

func (a *Aggregator) recordError(source string) {
	a.mu.Lock()
	a.errors[source]++
	a.mu.Unlock()
}

// FetchReleaseMetadata resolves a request into a canonical release.
//
// A prefetched payload for a source replaces that source's fetches entirely.
// When no provider yields a track, release id or artist id the request is
// terminal with [shared.ErrNoDataFound].
func (a *Aggregator) FetchReleaseMetadata(ctx context.Context, req models.TaskRequest) (*models.CanonicalRelease, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	market := req.Market()
	logger := shared.WithLogger(a.logger, "artist", req.BandName, "release", req.ReleaseName)

	prefetched := make(map[string]*services.ReleaseDetail, len(req.Prefetched))
	for _, p := range req.Prefetched {
		var detail services.ReleaseDetail
		if err := json.Unmarshal(p.Data, &detail); err != nil {
			logger.Warn("prefetched payload undecodable, ignoring", "source", p.Source, "error", err)
			continue
		}
		detail.Source = p.Source
		detail.Normalize()
		prefetched[p.Source] = &detail
	}

	details := make(map[string]*services.ReleaseDetail)
	var mbGateway services.Gateway
	var consulted, failed int
	var lastErr error

	for _, gw := range a.factory() {
		source := gw.Name()
		if source == models.SourceMusicBrainz {
			mbGateway = gw
		}

		if detail, ok := prefetched[source]; ok {
			logger.Debug("using prefetched payload", "source", source)
			details[source] = detail
			continue
		}

		consulted++
		detail, err := a.fetchFromSource(ctx, gw, req, market)
		if err != nil {
			failed++
			lastErr = err
			a.recordError(source)
			logger.Warn("provider unavailable for request", "source", source, "error", err)
			continue
		}
		if detail != nil {
			details[source] = detail
		}
	}

	var artist *services.ArtistDetail
	if mbGateway != nil {
		if d := details[models.SourceMusicBrainz]; d != nil && d.ArtistID != "" {
			var err error
			artist, err = a.fetchArtist(ctx, mbGateway, d.ArtistID)
			if err != nil {
				a.recordError(models.SourceMusicBrainz)
				logger.Warn("artist profile unavailable", "artist_id", d.ArtistID, "error", err)
			}
		}
	}

	merged := merge(details, artist)
	if !merged.HasData() {
		// Every provider erroring is an outage, not a missing release.
		if consulted > 0 && failed == consulted && lastErr != nil {
			return nil, fmt.Errorf("all providers failed: %w", lastErr)
		}
		return nil, fmt.Errorf("no metadata for release %q by %q: %w", req.ReleaseName, req.BandName, shared.ErrNoDataFound)
	}
	if merged.Release == "" {
		merged.Release = req.ReleaseName
	}
	if merged.Artist.Name == "" {
		merged.Artist.Name = req.BandName
	}

	return merged, nil
}

// fetchFromSource runs the search, score, select, detail sequence for one
// provider. A nil detail with nil error means no candidate was trusted.
func (a *Aggregator) fetchFromSource(ctx context.Context, gw services.Gateway, req models.TaskRequest, market string) (*services.ReleaseDetail, error) {
	if err := gw.Open(ctx); err != nil {
		return nil, err
	}
	defer gw.Close()

	source := gw.Name()
	candidates, err := a.searchCached(ctx, gw, req, market)
	if err != nil {
		return nil, err
	}

	best, ok := selectBest(candidates, req.BandName, req.ReleaseName)
	if !ok {
		return nil, nil
	}

	detailKey := cache.BuildKey(cache.NamespaceRelease, source, best.ID, marketOrGlobal(market))
	var detail services.ReleaseDetail
	if a.cache.Get(ctx, detailKey, &detail) {
		return &detail, nil
	}

	fetched, err := gw.GetReleaseDetail(ctx, best.ID, market)
	if err != nil {
		return nil, err
	}
	if fetched.ArtistID == "" {
		fetched.ArtistID = best.ArtistID
	}

	a.cache.Set(ctx, detailKey, fetched, cache.ReleaseTTL)
	return fetched, nil
}

func (a *Aggregator) searchCached(ctx context.Context, gw services.Gateway, req models.TaskRequest, market string) ([]services.ReleaseCandidate, error) {
	key := cache.BuildKey(cache.NamespaceSearch, gw.Name(), req.BandName, req.ReleaseName, marketOrGlobal(market))

	var candidates []services.ReleaseCandidate
	if a.cache.Get(ctx, key, &candidates) {
		return candidates, nil
	}

	candidates, err := gw.SearchReleases(ctx, req.BandName, req.ReleaseName, market)
	if err != nil {
		return nil, err
	}

	a.cache.Set(ctx, key, candidates, cache.SearchTTL)
	return candidates, nil
}

// fetchArtist resolves the artist profile, cached independently of any
// release so repeat queries for the same band skip the provider.
func (a *Aggregator) fetchArtist(ctx context.Context, gw services.Gateway, artistID string) (*services.ArtistDetail, error) {
	key := cache.BuildKey(cache.NamespaceArtist, gw.Name(), artistID)

	var artist services.ArtistDetail
	if a.cache.Get(ctx, key, &artist) {
		return &artist, nil
	}

	if err := gw.Open(ctx); err != nil {
		return nil, err
	}
	defer gw.Close()

	fetched, err := gw.GetArtistDetail(ctx, artistID)
	if err != nil {
		return nil, err
	}

	a.cache.Set(ctx, key, fetched, cache.ArtistTTL)
	return fetched, nil
}

func marketOrGlobal(market string) string {
	if market == "" {
		return "global"
	}
	return market
}
