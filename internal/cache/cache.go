package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/shared"
	"lukechampine.com/blake3"
)

// Key namespaces. Every cached value lives under one of these prefixes so a
// shared backend can be inspected and flushed per concern.
const (
	NamespaceResult  = "result"
	NamespaceSearch  = "search"
	NamespaceRelease = "release"
	NamespaceTracks  = "tracks"
	NamespaceArtist  = "artist"
)

var namespacePrefixes = map[string]string{
	NamespaceResult:  "grimwaves:metadata:result",
	NamespaceSearch:  "grimwaves:metadata:search",
	NamespaceRelease: "grimwaves:metadata:release",
	NamespaceTracks:  "grimwaves:metadata:tracks",
	NamespaceArtist:  "grimwaves:metadata:artist",
}

// TTLs per namespace. Failed task results use ErrorTTL so a transient
// failure ages out quickly instead of pinning the key for a day.
const (
	ResultTTL  = 24 * time.Hour
	SearchTTL  = time.Hour
	ReleaseTTL = 12 * time.Hour
	TracksTTL  = 12 * time.Hour
	ArtistTTL  = 24 * time.Hour
	ErrorTTL   = 10 * time.Minute
)

// Long key components are replaced by a hash so keys stay bounded.
const maxKeyComponent = 100

// Cache is the typed JSON layer over a Store.
//
// Read and write failures never propagate to callers: a bad read is a miss
// and a bad write leaves the entry unstored. Both are logged.
type Cache struct {
	store  Store
	logger *log.Logger
}

// New wraps a Store with the typed cache layer.
func New(store Store, logger *log.Logger) *Cache {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Cache{store: store, logger: logger}
}

// BuildKey assembles a namespaced cache key from the given parts.
//
// Empty parts are skipped, non-string parts are stringified, spaces become
// underscores and anything longer than 100 characters is replaced by its
// blake3 hash.
func BuildKey(namespace string, parts ...any) string {
	prefix, ok := namespacePrefixes[namespace]
	if !ok {
		prefix = "grimwaves:metadata:" + namespace
	}

	segments := []string{prefix}
	for _, part := range parts {
		var s string
		switch v := part.(type) {
		case nil:
			continue
		case string:
			s = v
		case fmt.Stringer:
			s = v.String()
		default:
			s = fmt.Sprintf("%v", v)
		}
		if s == "" {
			continue
		}

		s = strings.ToLower(strings.ReplaceAll(s, " ", "_"))
		if len(s) > maxKeyComponent {
			sum := blake3.Sum256([]byte(s))
			s = fmt.Sprintf("%x", sum[:16])
		}
		segments = append(segments, s)
	}

	return strings.Join(segments, "_")
}

// RequestKey derives the deterministic per-request key for a task's final
// result. Two requests for the same artist, release and market always land
// on the same key regardless of casing or spacing.
func RequestKey(artist, release, market string) string {
	if market == "" {
		market = "global"
	}
	triple := shared.NormalizeText(artist) + "|" + shared.NormalizeText(release) + "|" + strings.ToLower(market)
	sum := blake3.Sum256([]byte(triple))
	return BuildKey(NamespaceResult, fmt.Sprintf("%x", sum[:16]))
}

// Get decodes the entry under key into out. A missing entry, a backend
// failure or a decode failure all report (false, logged), never an error.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		return false
	}
	if !found {
		return false
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("cache entry undecodable, treating as miss", "key", key, "error", err)
		return false
	}

	return true
}

// Set encodes value as JSON and stores it under key for ttl. Encode
// failures are caught before the store is touched. Reports whether the
// entry was stored.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache value unserializable, not stored", "key", key, "error", err)
		return false
	}

	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
		return false
	}

	return true
}

// Delete removes the entry under key. Failures are logged and swallowed.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("cache delete failed", "key", key, "error", err)
	}
}

// GetTaskResult retrieves a cached task result by task id.
func (c *Cache) GetTaskResult(ctx context.Context, taskID string) (*models.TaskResult, bool) {
	var result models.TaskResult
	if !c.Get(ctx, BuildKey(NamespaceResult, taskID), &result) {
		return nil, false
	}
	return &result, true
}

// SetTaskResult caches a task result under its task id. Failed results use
// the short error TTL.
func (c *Cache) SetTaskResult(ctx context.Context, taskID string, result *models.TaskResult) bool {
	ttl := ResultTTL
	if result.Failed() {
		ttl = ErrorTTL
	}
	return c.Set(ctx, BuildKey(NamespaceResult, taskID), result, ttl)
}

// GetRequestResult retrieves the success result cached for an
// artist/release/market triple.
func (c *Cache) GetRequestResult(ctx context.Context, artist, release, market string) (*models.CanonicalRelease, bool) {
	var result models.CanonicalRelease
	if !c.Get(ctx, RequestKey(artist, release, market), &result) {
		return nil, false
	}
	return &result, true
}

// SetRequestResult caches a success result under the request triple. Only
// successful aggregations are addressed this way.
func (c *Cache) SetRequestResult(ctx context.Context, artist, release, market string, result *models.CanonicalRelease) bool {
	return c.Set(ctx, RequestKey(artist, release, market), result, ResultTTL)
}
