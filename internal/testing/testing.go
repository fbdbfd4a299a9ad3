// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/desertthunder/grimwaves/internal/services"
)

// MockGateway is a configurable test double for [services.Gateway].
//
// Nil function fields fall through to empty results, so tests only wire the
// calls they care about. Call counters track scoped acquisition.
type MockGateway struct {
	Source string

	OpenErr  error
	SearchFn func(ctx context.Context, artist, release, market string) ([]services.ReleaseCandidate, error)
	DetailFn func(ctx context.Context, id, market string) (*services.ReleaseDetail, error)
	ArtistFn func(ctx context.Context, artistID string) (*services.ArtistDetail, error)

	Opens    int
	Closes   int
	Searches int
	Details  int
	Artists  int
}

func (m *MockGateway) Name() string { return m.Source }

func (m *MockGateway) Open(ctx context.Context) error {
	m.Opens++
	return m.OpenErr
}

func (m *MockGateway) Close() error {
	m.Closes++
	return nil
}

func (m *MockGateway) SearchReleases(ctx context.Context, artist, release, market string) ([]services.ReleaseCandidate, error) {
	m.Searches++
	if m.SearchFn == nil {
		return nil, nil
	}
	return m.SearchFn(ctx, artist, release, market)
}

func (m *MockGateway) GetReleaseDetail(ctx context.Context, id, market string) (*services.ReleaseDetail, error) {
	m.Details++
	if m.DetailFn == nil {
		return nil, errors.New("no detail configured")
	}
	return m.DetailFn(ctx, id, market)
}

func (m *MockGateway) GetArtistDetail(ctx context.Context, artistID string) (*services.ArtistDetail, error) {
	m.Artists++
	if m.ArtistFn == nil {
		return nil, errors.New("no artist configured")
	}
	return m.ArtistFn(ctx, artistID)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
