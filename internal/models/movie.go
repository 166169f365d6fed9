package models

import (
	"fmt"
	"strings"
)

// Genre is a named genre attached to a movie record.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MovieDetails is the metadata record returned by the metadata collaborator.
type MovieDetails struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	Genres      []Genre `json:"genres"`
	PosterPath  string  `json:"poster_path"`
	// PosterURL is PosterPath joined with the configured image base URL.
	PosterURL string `json:"poster_url,omitempty"`
}

// Validate reports the required fields missing from the record.
func (m *MovieDetails) Validate() error {
	var missing []string
	if m.ID == 0 {
		missing = append(missing, "id")
	}
	if m.Title == "" {
		missing = append(missing, "title")
	}
	if m.PosterPath == "" {
		missing = append(missing, "poster_path")
	}
	if len(missing) > 0 {
		return fmt.Errorf("movie record missing fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GenreNames returns the genre names in record order.
func (m *MovieDetails) GenreNames() []string {
	names := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		names = append(names, g.Name)
	}
	return names
}

// Video is one video reference (trailer, teaser, ...) for a movie.
type Video struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Site string `json:"site"`
	Type string `json:"type"`
}
