// Package metadata fetches movie details and trailers from TMDb for the
// recommended items. It is the only package that talks to the network.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/cinematch/internal/models"
)

var (
	// ErrNotFound means the metadata API has no record for the identifier.
	ErrNotFound = errors.New("metadata not found")
	// ErrUnavailable means the metadata API could not be reached after all
	// attempts, or the circuit breaker is open.
	ErrUnavailable = errors.New("metadata unavailable")
)

// IntegrationError is returned when the metadata API answers with something the
// client cannot use: an unexpected status, a malformed body or a record missing
// required fields. It is never retried.
type IntegrationError struct {
	Op  string
	Err error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("metadata %s: %v", e.Op, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// Provider returns metadata for catalog identifiers.
type Provider interface {
	Movie(ctx context.Context, id int64) (*models.MovieDetails, error)
	Videos(ctx context.Context, id int64) ([]models.Video, error)
}

// StatusOf maps a provider error to the status shown for a recommendation.
func StatusOf(err error) models.MetadataStatus {
	var ie *IntegrationError
	switch {
	case err == nil:
		return models.MetadataOK
	case errors.Is(err, ErrNotFound):
		return models.MetadataNotFound
	case errors.As(err, &ie):
		return models.MetadataInvalid
	default:
		return models.MetadataUnavailable
	}
}

const youtubeWatchURL = "https://www.youtube.com/watch?v="

// FirstTrailer returns the first YouTube video with a key, in response order.
func FirstTrailer(videos []models.Video) (models.Video, bool) {
	for _, v := range videos {
		if v.Key != "" && (v.Site == "" || strings.EqualFold(v.Site, "YouTube")) {
			return v, true
		}
	}
	return models.Video{}, false
}

// TrailerURL returns the watch URL for a YouTube video key.
func TrailerURL(key string) string {
	return youtubeWatchURL + key
}

// PosterURL joins the image base URL and a poster path.
func PosterURL(imageBase, posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return strings.TrimRight(imageBase, "/") + "/" + strings.TrimLeft(posterPath, "/")
}
