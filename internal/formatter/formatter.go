// package formatter exports song listings to CSV, Markdown, plain text, JSON, YAML and M3U
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatM3U      Format = "m3u"
)

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatMarkdown, FormatText, FormatJSON, FormatYAML, FormatM3U}

// ParseFormat accepts a format name or a common alias such as "markdown" or "m3u8".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "m3u", "m3u8":
		return FormatM3U, nil
	}
	return "", fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, s)
}

// Export renders a listing in the given format.
//
// Markdown is rendered without a cover; use [WriteMarkdownExport] to include one.
func Export(l *models.Listing, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(l)
	case FormatMarkdown:
		return ExportToMarkdown(l, "")
	case FormatText:
		return ExportToText(l)
	case FormatJSON:
		return ExportToJSON(l)
	case FormatYAML:
		return ExportToYAML(l)
	case FormatM3U:
		return ExportToM3U(l)
	}
	return nil, fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidArgument, f)
}

// ExportToCSV converts a Listing to CSV format with columns: ID, Title, Artist, Album, Duration, VideoID
func ExportToCSV(l *models.Listing) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "VideoID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range l.Tracks {
		record := []string{
			track.ID,
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Duration),
			track.VideoID,
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

// ExportToMarkdown converts a Listing to Markdown format with optional cover image
func ExportToMarkdown(l *models.Listing, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", l.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if l.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", l.Description)
	}

	fmt.Fprintf(&buf, "**Songs**: %d\n", len(l.Tracks))
	fmt.Fprintf(&buf, "**Length**: %s\n\n", shared.FormatDuration(l.TotalDuration()))

	buf.WriteString("## Songs\n\n")
	for i, track := range l.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s%s [%s]\n", i+1, displayName(track), albumPart, shared.FormatDuration(track.Duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Listing to plain text format
func ExportToText(l *models.Listing) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Listing: %s\n", l.Name)
	if l.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", l.Description)
	}
	fmt.Fprintf(&buf, "Songs: %d\n\n", len(l.Tracks))

	for i, track := range l.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, displayName(track))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a Listing to indented JSON, tracks included
func ExportToJSON(l *models.Listing) ([]byte, error) {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportToYAML converts a Listing to YAML
func ExportToYAML(l *models.Listing) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToM3U converts a Listing to an extended M3U playlist.
//
// Tracks without a media file are skipped since a player has nothing to open.
func ExportToM3U(l *models.Listing) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("#EXTM3U\n")
	if l.Name != "" {
		fmt.Fprintf(&buf, "#PLAYLIST:%s\n", oneLine(l.Name))
	}

	for _, track := range l.Tracks {
		if track.Path == "" {
			continue
		}
		duration := track.Duration
		if duration <= 0 {
			duration = -1
		}
		fmt.Fprintf(&buf, "#EXTINF:%d,%s\n%s\n", duration, oneLine(displayName(track)), track.Path)
	}

	return buf.Bytes(), nil
}

func displayName(track models.ListingTrack) string {
	if track.Artist == "" {
		return track.Title
	}
	return track.Artist + " - " + track.Title
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DefaultFilename returns {name}.{format} with the name made filesystem safe.
func DefaultFilename(l *models.Listing, f Format) string {
	name := l.Name
	if name == "" {
		name = l.ID
	}
	return shared.SanitizeFilename(name) + "." + string(f)
}

// WriteExport writes a listing to path in the given format and returns the path written.
//
// Defaults to [DefaultFilename] in the working directory. Markdown goes through [WriteMarkdownExport]
// and path then names the directory.
func WriteExport(l *models.Listing, f Format, path string) (string, error) {
	if f == FormatMarkdown {
		result, err := WriteMarkdownExport(l, path)
		if err != nil {
			return "", err
		}
		return result.Directory, nil
	}

	if path == "" {
		path = DefaultFilename(l, f)
	}

	data, err := Export(l, f)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", f, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}

	return path, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a listing to Markdown format in a dedicated directory.
//
// Directory name defaults to the sanitized listing name.
// Creates a directory structure: {dir}/README.md and, when the listing has artwork, {dir}/cover.jpg
func WriteMarkdownExport(l *models.Listing, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = strings.TrimSuffix(DefaultFilename(l, FormatMarkdown), ".md")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if l.Cover != "" {
		coverImagePath := filepath.Join(outputDir, "cover.jpg")
		if err := copyFile(l.Cover, coverImagePath); err != nil {
			return nil, fmt.Errorf("failed to copy cover image: %w", err)
		}
		coverImageFilename = "cover.jpg"
		result.CoverImage = coverImagePath
		result.Files = append(result.Files, coverImagePath)
	}

	mdData, err := ExportToMarkdown(l, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
