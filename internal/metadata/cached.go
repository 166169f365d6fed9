package metadata

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hyperjump/cinematch/internal/metrics"
	"github.com/hyperjump/cinematch/internal/models"
	"go.uber.org/zap"
)

// CachedProvider serves successful lookups from a Cache before calling next.
// Errors are never cached, so a movie that was unavailable is fetched again.
type CachedProvider struct {
	next   Provider
	cache  Cache
	logger *zap.Logger
}

// NewCachedProvider wraps next with cache.
func NewCachedProvider(next Provider, cache Cache, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{next: next, cache: cache, logger: logger}
}

// Movie implements Provider.
func (p *CachedProvider) Movie(ctx context.Context, id int64) (*models.MovieDetails, error) {
	key := fmt.Sprintf("movie:%d", id)
	var details models.MovieDetails
	if p.lookup(ctx, key, &details) {
		return &details, nil
	}
	fetched, err := p.next.Movie(ctx, id)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, fetched)
	return fetched, nil
}

// Videos implements Provider.
func (p *CachedProvider) Videos(ctx context.Context, id int64) ([]models.Video, error) {
	key := fmt.Sprintf("videos:%d", id)
	var videos []models.Video
	if p.lookup(ctx, key, &videos) {
		return videos, nil
	}
	fetched, err := p.next.Videos(ctx, id)
	if err != nil {
		return nil, err
	}
	p.store(ctx, key, fetched)
	return fetched, nil
}

func (p *CachedProvider) lookup(ctx context.Context, key string, out interface{}) bool {
	data, ok := p.cache.Get(ctx, key)
	if !ok {
		metrics.MetadataCacheMisses.Inc()
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		p.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		metrics.MetadataCacheMisses.Inc()
		return false
	}
	metrics.MetadataCacheHits.Inc()
	return true
}

func (p *CachedProvider) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		p.logger.Warn("metadata cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	p.cache.Set(ctx, key, data)
}
