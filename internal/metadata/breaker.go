package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/cinematch/internal/metrics"
	"github.com/hyperjump/cinematch/internal/models"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig configures the circuit breaker around a Provider.
type BreakerConfig struct {
	Name string
	// MaxRequests allowed while half-open.
	MaxRequests uint32
	// Interval after which counts reset while closed.
	Interval time.Duration
	// Timeout spent open before probing again.
	Timeout time.Duration
	// MinRequests before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
}

// BreakerProvider wraps a Provider with a circuit breaker. Only availability
// failures count against the breaker; not-found and integration errors do not.
// An open breaker is reported as ErrUnavailable.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerProvider wraps next. Zero config values get defaults.
func NewBreakerProvider(next Provider, cfg BreakerConfig, logger *zap.Logger) *BreakerProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "tmdb-api"
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.6
	}
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// A caller that went away says nothing about the API's health.
		IsSuccessful: func(err error) bool {
			if errors.Is(err, context.Canceled) {
				return true
			}
			return err == nil || StatusOf(err) != models.MetadataUnavailable
		},
	})
	return &BreakerProvider{next: next, cb: cb}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// State returns the breaker state name (closed, half-open, open).
func (b *BreakerProvider) State() string {
	return b.cb.State().String()
}

func (b *BreakerProvider) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return result, err
}

// Movie implements Provider.
func (b *BreakerProvider) Movie(ctx context.Context, id int64) (*models.MovieDetails, error) {
	result, err := b.execute(func() (any, error) { return b.next.Movie(ctx, id) })
	if err != nil {
		return nil, err
	}
	details, ok := result.(*models.MovieDetails)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return details, nil
}

// Videos implements Provider.
func (b *BreakerProvider) Videos(ctx context.Context, id int64) ([]models.Video, error) {
	result, err := b.execute(func() (any, error) { return b.next.Videos(ctx, id) })
	if err != nil {
		return nil, err
	}
	videos, ok := result.([]models.Video)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return videos, nil
}
