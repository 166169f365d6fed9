package metadata

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperjump/cinematch/internal/models"
)

func TestBreakerOpensOnUnavailable(t *testing.T) {
	next := &countingProvider{movieErr: ErrUnavailable}
	b := NewBreakerProvider(next, BreakerConfig{
		Name:         "test-open",
		MinRequests:  3,
		FailureRatio: 0.5,
		Timeout:      time.Minute,
	}, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := b.Movie(ctx, 1); !errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: expected ErrUnavailable, got %v", i, err)
		}
	}
	if b.State() != "open" {
		t.Fatalf("state: got %q, want open", b.State())
	}
	_, err := b.Movie(ctx, 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("open breaker: expected ErrUnavailable, got %v", err)
	}
	if next.movieCalls != 3 {
		t.Errorf("open breaker still calls provider: %d calls", next.movieCalls)
	}
}

func TestBreakerIgnoresNotFoundAndIntegrationErrors(t *testing.T) {
	next := &countingProvider{
		movieErr: ErrNotFound,
		videoErr: &IntegrationError{Op: "decode", Err: errors.New("bad json")},
	}
	b := NewBreakerProvider(next, BreakerConfig{Name: "test-closed", MinRequests: 2, FailureRatio: 0.1}, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := b.Movie(ctx, 1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := b.Videos(ctx, 1); StatusOf(err) != models.MetadataInvalid {
			t.Fatalf("expected integration error, got %v", err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("state: got %q, want closed", b.State())
	}
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	next := &countingProvider{movieErr: fmt.Errorf("%w: %w", ErrUnavailable, context.Canceled)}
	b := NewBreakerProvider(next, BreakerConfig{Name: "test-cancel", MinRequests: 2, FailureRatio: 0.1}, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := b.Movie(ctx, 1); !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: expected context.Canceled, got %v", i, err)
		}
	}
	if b.State() != "closed" {
		t.Errorf("state: got %q, want closed", b.State())
	}
	if next.movieCalls != 5 {
		t.Errorf("provider calls: got %d, want 5", next.movieCalls)
	}
}

func TestBreakerPassesResults(t *testing.T) {
	next := &countingProvider{
		movieResult: &models.MovieDetails{Title: "Up", PosterPath: "/u.jpg"},
		videoResult: []models.Video{{Key: "k"}},
	}
	b := NewBreakerProvider(next, BreakerConfig{}, nil)
	d, err := b.Movie(context.Background(), 14160)
	if err != nil || d.ID != 14160 || d.Title != "Up" {
		t.Fatalf("Movie: got %+v, %v", d, err)
	}
	v, err := b.Videos(context.Background(), 14160)
	if err != nil || len(v) != 1 {
		t.Fatalf("Videos: got %+v, %v", v, err)
	}
}
