package aggregator

import (
	"strings"

	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/services"
	"github.com/desertthunder/grimwaves/internal/shared"
)

// Candidates scoring at or below this threshold are not trusted enough to
// fetch details for.
const minCandidateScore = 5

// scoreCandidate grades how well a search hit matches the queried artist and
// release. Comparisons run on normalized text so punctuation and casing
// never decide a match.
func scoreCandidate(candidate services.ReleaseCandidate, artist, release string) int {
	score := 0

	wantTitle := shared.NormalizeText(release)
	gotTitle := shared.NormalizeText(candidate.Title)
	switch {
	case gotTitle == wantTitle:
		score += 10
	case wantTitle != "" && strings.Contains(gotTitle, wantTitle):
		score += 5
	case candidate.Source == models.SourceMusicBrainz && gotTitle != "" && strings.Contains(wantTitle, gotTitle):
		// MusicBrainz titles often carry edition suffixes the query lacks.
		score += 3
	}

	wantArtist := shared.NormalizeText(artist)
	gotArtist := shared.NormalizeText(candidate.Artist)
	switch {
	case gotArtist == wantArtist:
		score += 10
	case wantArtist != "" && gotArtist != "" && (strings.Contains(gotArtist, wantArtist) || strings.Contains(wantArtist, gotArtist)):
		score += 5
	default:
		score -= 10
	}

	switch strings.ToLower(candidate.ReleaseType) {
	case "album":
		score += 3
	case "single":
		score += 1
	}

	switch {
	case candidate.TrackCount > 10:
		score += 3
	case candidate.TrackCount > 5:
		score += 2
	}

	return score
}

// selectBest picks the highest-scoring candidate above the trust threshold.
// Ties keep the earlier hit, preserving provider ranking.
func selectBest(candidates []services.ReleaseCandidate, artist, release string) (services.ReleaseCandidate, bool) {
	best := -1
	var pick services.ReleaseCandidate

	for _, candidate := range candidates {
		if score := scoreCandidate(candidate, artist, release); score > best {
			best = score
			pick = candidate
		}
	}

	if best <= minCandidateScore {
		return services.ReleaseCandidate{}, false
	}
	return pick, true
}
