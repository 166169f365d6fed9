// Package cli formats recommendations and title matches for the terminal.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/titles"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per recommendation.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat parses a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

// WriteRecommendations writes resp to w in the given format.
func WriteRecommendations(w io.Writer, resp *models.RecommendResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, rec := range resp.Recommendations {
			fmt.Fprintf(w, "%d\t%.4f\t%d\t%s\n", rec.Rank, rec.Score, rec.ID, Truncate(rec.Title, compactTitleWidth))
		}
		return nil
	default:
		writeRecommendationsText(w, resp)
		return nil
	}
}

const compactTitleWidth = 60

func writeRecommendationsText(w io.Writer, resp *models.RecommendResponse) {
	fmt.Fprintf(w, "\nMovies similar to %q (id %d): %d results in %dms\n\n",
		resp.Query.Title, resp.Query.ID, resp.Total, resp.QueryTime)
	for _, rec := range resp.Recommendations {
		writeOneRecommendation(w, rec)
	}
}

func writeOneRecommendation(w io.Writer, rec *models.Recommendation) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "#%d %s | Score: %.4f | ID: %d\n", rec.Rank, rec.Title, rec.Score, rec.ID)
	if d := rec.Details; d != nil {
		if d.ReleaseDate != "" {
			fmt.Fprintf(w, "Release date: %s\n", d.ReleaseDate)
		}
		if genres := d.GenreNames(); len(genres) > 0 {
			fmt.Fprintf(w, "Genres: %s\n", strings.Join(genres, ", "))
		}
		if d.PosterURL != "" {
			fmt.Fprintf(w, "Poster: %s\n", d.PosterURL)
		}
		if d.Overview != "" {
			fmt.Fprintf(w, "\n%s\n\n", TruncateWords(d.Overview, 60))
		}
	} else if rec.Status != models.MetadataSkipped {
		fmt.Fprintf(w, "Metadata: %s\n", rec.Status)
	}
	if rec.TrailerURL != "" {
		fmt.Fprintf(w, "Trailer: %s\n", rec.TrailerURL)
	}
	fmt.Fprintf(w, "Search: %s\n", rec.SearchURL)
	fmt.Fprintln(w)
}

// WriteTitleMatches writes title search results to w in the given format.
func WriteTitleMatches(w io.Writer, query string, matches []titles.Match, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]interface{}{"query": query, "matches": matches})
	case OutputCompact:
		for _, m := range matches {
			fmt.Fprintf(w, "%d\t%d\t%s\n", m.Row, m.ID, Truncate(m.Title, compactTitleWidth))
		}
		return nil
	default:
		if len(matches) == 0 {
			fmt.Fprintf(w, "No titles match %q\n", query)
			return nil
		}
		fmt.Fprintf(w, "Titles matching %q:\n", query)
		for _, m := range matches {
			fmt.Fprintf(w, "  [%d] %s (id %d)\n", m.Row, m.Title, m.ID)
		}
		return nil
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
