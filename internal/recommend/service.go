// Package recommend answers "movies like this one" queries: it resolves the
// title, ranks the neighbors and enriches them with metadata.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/cinematch/internal/artifact"
	"github.com/hyperjump/cinematch/internal/metadata"
	"github.com/hyperjump/cinematch/internal/metrics"
	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/titles"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const googleSearchURL = "https://www.google.com/search?q="

// Config controls ranking defaults and enrichment fan-out.
type Config struct {
	DefaultK    int
	MaxK        int
	Concurrency int
	Enrich      bool
}

// Service serves recommendations from the snapshot currently held by a
// Holder. It is safe for concurrent use.
type Service struct {
	holder   *artifact.Holder
	provider metadata.Provider
	titles   *titles.Index
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a service. provider may be nil, in which case every
// recommendation is reported with status skipped.
func NewService(holder *artifact.Holder, provider metadata.Provider, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 5
	}
	if cfg.MaxK > 0 && cfg.DefaultK > cfg.MaxK {
		cfg.DefaultK = cfg.MaxK
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	snap := holder.Current()
	idx, err := titles.NewIndex(snap.Catalog.Items(0, 0))
	if err != nil {
		return nil, fmt.Errorf("build title index: %w", err)
	}
	s := &Service{
		holder:   holder,
		provider: provider,
		titles:   idx,
		cfg:      cfg,
		logger:   logger,
	}
	metrics.CatalogItems.Set(float64(snap.Catalog.Len()))
	holder.OnReload(s.onReload)
	return s, nil
}

func (s *Service) onReload(snap *artifact.Snapshot, err error) {
	if err != nil {
		metrics.ArtifactReloadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("artifact reload failed, keeping previous snapshot",
			zap.String("source", s.holder.Source()), zap.Error(err))
		return
	}
	if rErr := s.titles.Rebuild(snap.Catalog.Items(0, 0)); rErr != nil {
		s.logger.Error("title index rebuild failed", zap.Error(rErr))
	}
	metrics.ArtifactReloadsTotal.WithLabelValues("ok").Inc()
	metrics.CatalogItems.Set(float64(snap.Catalog.Len()))
	s.logger.Info("artifact reloaded",
		zap.String("source", snap.Source),
		zap.Int("items", snap.Catalog.Len()))
}

// Snapshot returns the snapshot currently served.
func (s *Service) Snapshot() *artifact.Snapshot {
	return s.holder.Current()
}

// MetadataEnabled reports whether a metadata provider is configured.
func (s *Service) MetadataEnabled() bool {
	return s.provider != nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// Recommend resolves req.Title and returns its nearest neighbors. An unknown
// title yields a *models.NotFoundError. Metadata failures are reported per
// recommendation and never fail the request.
func (s *Service) Recommend(ctx context.Context, req models.RecommendRequest) (*models.RecommendResponse, error) {
	start := time.Now()
	if err := req.Validate(s.cfg.DefaultK, s.cfg.MaxK); err != nil {
		metrics.RecommendationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	snap := s.holder.Current()
	row, err := snap.Catalog.Resolve(req.Title)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	return s.recommend(ctx, snap, row, req.K, req.EnrichOrDefault(s.cfg.Enrich), start)
}

// Similar returns the neighbors of the item at row.
func (s *Service) Similar(ctx context.Context, row, k int, enrich bool) (*models.RecommendResponse, error) {
	start := time.Now()
	if k <= 0 {
		k = s.cfg.DefaultK
	}
	if s.cfg.MaxK > 0 && k > s.cfg.MaxK {
		k = s.cfg.MaxK
	}
	return s.recommend(ctx, s.holder.Current(), row, k, enrich, start)
}

func (s *Service) recommend(ctx context.Context, snap *artifact.Snapshot, row, k int, enrich bool, start time.Time) (*models.RecommendResponse, error) {
	query, err := snap.Catalog.Item(row)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}
	neighbors, err := snap.Ranker.TopKScored(row, k)
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	recs := make([]*models.Recommendation, len(neighbors))
	for i, nb := range neighbors {
		item, err := snap.Catalog.Item(nb.Row)
		if err != nil {
			metrics.RecommendationsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		recs[i] = &models.Recommendation{
			Rank:      i + 1,
			Row:       item.Row,
			ID:        item.ID,
			Title:     item.Title,
			Score:     nb.Score,
			Status:    models.MetadataSkipped,
			SearchURL: SearchURL(item.Title),
		}
	}

	if enrich && s.provider != nil {
		s.enrich(ctx, recs)
	}

	resp := &models.RecommendResponse{
		RequestID:       uuid.NewString(),
		Query:           query,
		Recommendations: recs,
		Total:           len(recs),
		QueryTime:       time.Since(start).Milliseconds(),
	}
	metrics.RecommendationsTotal.WithLabelValues("ok").Inc()
	metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("recommendations served",
		zap.String("request_id", resp.RequestID),
		zap.String("title", query.Title),
		zap.Int("k", k),
		zap.Int("results", len(recs)),
		zap.Bool("enrich", enrich),
	)
	return resp, nil
}

// enrich fills in details and trailer for every recommendation. Each item is
// written by exactly one goroutine.
func (s *Service) enrich(ctx context.Context, recs []*models.Recommendation) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			s.enrichOne(gctx, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) enrichOne(ctx context.Context, rec *models.Recommendation) {
	details, err := s.provider.Movie(ctx, rec.ID)
	if err != nil {
		rec.Status = metadata.StatusOf(err)
		rec.Error = err.Error()
		s.logger.Debug("metadata lookup failed",
			zap.Int64("id", rec.ID), zap.String("status", string(rec.Status)), zap.Error(err))
		return
	}
	rec.Details = details
	rec.Status = models.MetadataOK

	videos, err := s.provider.Videos(ctx, rec.ID)
	if err != nil {
		// Details stay; only the trailer is missing.
		rec.Error = err.Error()
		s.logger.Debug("video lookup failed", zap.Int64("id", rec.ID), zap.Error(err))
		return
	}
	if v, ok := metadata.FirstTrailer(videos); ok {
		rec.TrailerURL = metadata.TrailerURL(v.Key)
	}
}

// SearchTitles searches catalog titles for query.
func (s *Service) SearchTitles(ctx context.Context, query string, limit int, opts *titles.SearchOptions) ([]titles.Match, error) {
	return s.titles.Search(ctx, query, limit, opts)
}

// Close releases the title index.
func (s *Service) Close() error {
	return s.titles.Close()
}

// SearchURL returns a web search link for title.
func SearchURL(title string) string {
	return googleSearchURL + url.QueryEscape(title)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrOutOfRange):
		return "out_of_range"
	default:
		return "error"
	}
}
