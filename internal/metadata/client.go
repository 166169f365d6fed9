package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hyperjump/cinematch/internal/metrics"
	"github.com/hyperjump/cinematch/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Backoff selects how the delay between attempts grows.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffExponential Backoff = "exponential"
)

// ClientConfig configures the TMDb client.
type ClientConfig struct {
	BaseURL       string
	ImageBaseURL  string
	APIKey        string
	Language      string
	MaxAttempts   int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Backoff       Backoff
	Timeout       time.Duration
	// RateLimit is the maximum requests per second; 0 disables limiting.
	RateLimit float64
}

// Client is a TMDb v3 client. Every call is a bounded retry loop: transport
// errors, 429 and 5xx are retried up to MaxAttempts with a delay between
// attempts, then reported as ErrUnavailable.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a TMDb client. Zero config values get defaults.
func NewClient(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("metadata base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid metadata base URL: %w", err)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 30 * time.Second
	}
	if cfg.Backoff == "" {
		cfg.Backoff = BackoffFixed
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type movieResponse struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	ReleaseDate string         `json:"release_date"`
	Overview    string         `json:"overview"`
	Genres      []models.Genre `json:"genres"`
	PosterPath  *string        `json:"poster_path"`
}

type videosResponse struct {
	Results []models.Video `json:"results"`
}

// Movie fetches the details record for id.
func (c *Client) Movie(ctx context.Context, id int64) (*models.MovieDetails, error) {
	var resp movieResponse
	err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", id), &resp)
	if err == nil {
		details := &models.MovieDetails{
			ID:          resp.ID,
			Title:       resp.Title,
			ReleaseDate: resp.ReleaseDate,
			Overview:    resp.Overview,
			Genres:      resp.Genres,
		}
		if resp.PosterPath != nil {
			details.PosterPath = *resp.PosterPath
		}
		if vErr := details.Validate(); vErr != nil {
			err = &IntegrationError{Op: "movie", Err: vErr}
		} else {
			details.PosterURL = PosterURL(c.cfg.ImageBaseURL, details.PosterPath)
			metrics.MetadataRequestsTotal.WithLabelValues("movie", string(models.MetadataOK)).Inc()
			return details, nil
		}
	}
	metrics.MetadataRequestsTotal.WithLabelValues("movie", string(StatusOf(err))).Inc()
	return nil, err
}

// Videos fetches the video references for id. A movie without videos yields an empty slice.
func (c *Client) Videos(ctx context.Context, id int64) ([]models.Video, error) {
	var resp videosResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/videos", id), &resp); err != nil {
		metrics.MetadataRequestsTotal.WithLabelValues("videos", string(StatusOf(err))).Inc()
		return nil, err
	}
	metrics.MetadataRequestsTotal.WithLabelValues("videos", string(models.MetadataOK)).Inc()
	if resp.Results == nil {
		return []models.Video{}, nil
	}
	return resp.Results, nil
}

// retryableError marks a failed attempt worth retrying.
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *Client) buildURL(path string) string {
	params := url.Values{}
	params.Set("api_key", c.cfg.APIKey)
	params.Set("language", c.cfg.Language)
	return strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	reqURL := c.buildURL(path)
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
		}
		metrics.MetadataAttemptsTotal.Inc()
		err := c.doOnce(ctx, reqURL, out)
		if err == nil {
			return nil
		}
		var re *retryableError
		if !errors.As(err, &re) {
			return err
		}
		lastErr = re.err
		if attempt == c.cfg.MaxAttempts {
			break
		}
		delay := c.retryDelay(attempt, re.retryAfter)
		c.logger.Warn("metadata request failed, retrying",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Duration("retry_delay", delay),
			zap.Error(re.err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
	c.logger.Error("metadata request exhausted retries",
		zap.String("path", path),
		zap.Int("attempts", c.cfg.MaxAttempts),
		zap.Error(lastErr),
	)
	return fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, c.cfg.MaxAttempts, lastErr)
}

func (c *Client) retryDelay(attempt int, retryAfter time.Duration) time.Duration {
	delay := c.cfg.RetryDelay
	if c.cfg.Backoff == BackoffExponential {
		// d, 2d, 4d, ... stopping at the cap so the doubling cannot overflow.
		for i := 1; i < attempt && delay > 0 && delay < c.cfg.MaxRetryDelay; i++ {
			delay *= 2
		}
	}
	if retryAfter > 0 {
		delay = retryAfter
	}
	if delay > c.cfg.MaxRetryDelay {
		delay = c.cfg.MaxRetryDelay
	}
	return delay
}

func (c *Client) doOnce(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return &IntegrationError{Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		}
		return &retryableError{err: fmt.Errorf("request failed: %w", redactURLError(err))}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &IntegrationError{Op: "decode", Err: err}
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return &retryableError{
			err:        fmt.Errorf("rate limited (HTTP %d)", resp.StatusCode),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return &retryableError{err: fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, readBodyForError(resp.Body))}
	default:
		return &IntegrationError{Op: "request", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readBodyForError(resp.Body))}
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func readBodyForError(body io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(body, 512))
	return strings.TrimSpace(string(b))
}

// redactURLError strips the query string (which carries the API key) from *url.Error.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, parseErr := url.Parse(ue.URL); parseErr == nil {
			u.RawQuery = ""
			return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
		}
	}
	return err
}
