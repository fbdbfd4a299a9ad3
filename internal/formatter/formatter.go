// package formatter provides functions to export release metadata to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/shared"
)

// ExportToCSV converts a release's track listing to CSV with columns: Position, Title, ISRC, Duration
func ExportToCSV(release *models.CanonicalRelease) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "ISRC", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range release.Tracks {
		record := []string{
			strconv.Itoa(track.Position),
			track.Title,
			track.ISRC,
			shared.FormatDuration(track.DurationMS),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a release to Markdown format with optional cover image
func ExportToMarkdown(release *models.CanonicalRelease, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s - %s\n\n", release.Artist.Name, release.Release))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", imageFilename))
	}

	if release.ReleaseDate != "" {
		buf.WriteString(fmt.Sprintf("**Released**: %s\n", release.ReleaseDate))
	}
	if release.Label != "" {
		buf.WriteString(fmt.Sprintf("**Label**: %s\n", release.Label))
	}
	if len(release.Genres) > 0 {
		buf.WriteString(fmt.Sprintf("**Genres**: %s\n", strings.Join(release.Genres, ", ")))
	}
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(release.Tracks)))

	if len(release.Tracks) > 0 {
		buf.WriteString("## Tracks\n\n")
		for i, track := range release.Tracks {
			position := track.Position
			if position == 0 {
				position = i + 1
			}
			isrcPart := ""
			if track.ISRC != "" {
				isrcPart = fmt.Sprintf(" (%s)", track.ISRC)
			}
			buf.WriteString(fmt.Sprintf("%d. %s%s [%s]\n", position, track.Title, isrcPart, shared.FormatDuration(track.DurationMS)))
		}
	}

	links := release.Artist.SocialLinks
	if !links.Empty() {
		buf.WriteString("\n## Links\n\n")
		for _, link := range []struct{ name, url string }{
			{"Website", links.Website},
			{"Facebook", links.Facebook},
			{"Twitter", links.Twitter},
			{"Instagram", links.Instagram},
			{"VK", links.VK},
			{"YouTube", links.YouTube},
		} {
			if link.url != "" {
				buf.WriteString(fmt.Sprintf("- [%s](%s)\n", link.name, link.url))
			}
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a release to plain text format
func ExportToText(release *models.CanonicalRelease) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Release: %s\n", release.Release))
	buf.WriteString(fmt.Sprintf("Artist: %s\n", release.Artist.Name))
	if release.ReleaseDate != "" {
		buf.WriteString(fmt.Sprintf("Released: %s\n", release.ReleaseDate))
	}
	if release.Label != "" {
		buf.WriteString(fmt.Sprintf("Label: %s\n", release.Label))
	}
	if len(release.Genres) > 0 {
		buf.WriteString(fmt.Sprintf("Genres: %s\n", strings.Join(release.Genres, ", ")))
	}
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(release.Tracks)))

	for i, track := range release.Tracks {
		position := track.Position
		if position == 0 {
			position = i + 1
		}
		buf.WriteString(fmt.Sprintf("%d. %s\n", position, track.Title))
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON representation of release metadata without the track listing
func ToMetadataJSON(release *models.CanonicalRelease) ([]byte, error) {
	metadata := *release
	metadata.Tracks = nil
	return shared.MarshalJSON(metadata, true)
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a release to Markdown format in a dedicated directory.
//
// Directory name defaults to the artist and release. When the release
// carries cover art, attempts to download it next to the README.
func WriteMarkdownExport(release *models.CanonicalRelease, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = shared.NormalizeKey(release.Release, release.Artist.Name)
		outputDir = strings.ReplaceAll(outputDir, "|", "_")
		outputDir = strings.ReplaceAll(outputDir, " ", "_")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if release.CoverArtURL != "" {
		imageData, err := DownloadImage(release.CoverArtURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverPath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverPath, imageData, 0644); err != nil {
				return nil, fmt.Errorf("failed to write cover image: %w", err)
			}
			result.CoverImage = coverPath
			result.Files = append(result.Files, coverPath)
		}
	}

	markdown, err := ExportToMarkdown(release, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	readmePath := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(readmePath, markdown, 0644); err != nil {
		return nil, fmt.Errorf("failed to write README: %w", err)
	}
	result.Files = append(result.Files, readmePath)

	return result, nil
}
