// Package main is the cinematch CLI entry point.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/hyperjump/cinematch/internal/artifact"
	"github.com/hyperjump/cinematch/internal/cli"
	"github.com/hyperjump/cinematch/internal/config"
	"github.com/hyperjump/cinematch/internal/metadata"
	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/recommend"
	"github.com/hyperjump/cinematch/internal/server"
	"github.com/hyperjump/cinematch/internal/titles"
	"github.com/hyperjump/cinematch/internal/watcher"
	"github.com/hyperjump/cinematch/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/cinematch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		// No config file at all: run on defaults and environment.
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "titles":
		runTitles()
	case "pack":
		runPack()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("cinematch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	artifactPath := fs.String("artifact", "", "artifact path (overrides config)")
	watch := fs.Bool("watch", false, "reload the artifact when its files change (overrides config)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *artifactPath != "" {
		cfg.Artifact.Path = *artifactPath
	}
	if *watch {
		cfg.Artifact.Watch = true
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("artifact", cfg.Artifact.Path),
		zap.Bool("metadata_enabled", cfg.Metadata.Enabled),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Artifact.Watch {
		if err := components.startWatcher(ctx, cfg, logger, debugMode); err != nil {
			logger.Fatal("Failed to start artifact watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Service, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			logger.Info("SIGHUP received, reloading artifact")
			_, _ = components.Holder.Reload()
			continue
		}
		break
	}

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// printRecommendUsage prints recommend subcommand usage.
func printRecommendUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: cinematch recommend [flags] <title>\n\n")
	fmt.Fprintf(fs.Output(), "Title is all remaining arguments joined by spaces and must match a catalog title exactly.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
When the title is not in the catalog, close matches are suggested.
  • Use "cinematch titles <query>" to look up the exact title first.
  • Use -enrich=false to skip the metadata lookups (faster, offline).

Examples:
  cinematch recommend Avatar
  cinematch recommend "The Dark Knight Rises" -k 10
  cinematch recommend -server http://localhost:8080 -output json Spectre
`)
}

// buildTitle joins all positional args with spaces so multi-word titles
// work the same with or without shell quoting.
func buildTitle(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the title
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = load the artifact directly)")
	artifactPath := fs.String("artifact", "", "artifact path (overrides config)")
	k := fs.Int("k", 0, "number of recommendations (0 = configured default)")
	enrich := fs.Bool("enrich", true, "fetch details and trailers from the metadata API")
	outputFormat := fs.String("output", "text", "output format: text, compact (one per line), or json")
	fs.Usage = func() { printRecommendUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	title := buildTitle(fs.Args())
	if title == "" {
		printRecommendUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	req := models.RecommendRequest{Title: title, K: *k, Enrich: enrich}

	if *serverURL != "" {
		resp, err := recommendViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteRecommendations(os.Stdout, resp, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, components := loadLocal(*configPath, *artifactPath)
	defer logger.Sync()
	defer components.Close()

	resp, err := components.Service.Recommend(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		if errors.Is(err, models.ErrNotFound) {
			suggestTitles(components.Service, title)
		}
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// suggestTitles prints close catalog titles to stderr, retrying with fuzzy
// matching when the plain search finds nothing.
func suggestTitles(svc *recommend.Service, title string) {
	ctx := context.Background()
	matches, err := svc.SearchTitles(ctx, title, 5, nil)
	if err == nil && len(matches) == 0 {
		matches, err = svc.SearchTitles(ctx, title, 5, &titles.SearchOptions{FuzzyEnabled: true})
	}
	if err != nil || len(matches) == 0 {
		return
	}
	fmt.Fprintln(os.Stderr, "Did you mean:")
	for _, m := range matches {
		fmt.Fprintf(os.Stderr, "  %s\n", m.Title)
	}
}

func recommendViaHTTP(serverURL string, req models.RecommendRequest) (*models.RecommendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/recommend", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out models.RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runTitles() {
	fs := flag.NewFlagSet("titles", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = load the artifact directly)")
	artifactPath := fs.String("artifact", "", "artifact path (overrides config)")
	limit := fs.Int("limit", 10, "maximum number of titles")
	fuzzy := fs.Bool("fuzzy", false, "enable typo-tolerant matching")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildTitle(fs.Args())
	if query == "" {
		fmt.Println("Usage: cinematch titles [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var matches []titles.Match
	if *serverURL != "" {
		matches, err = titlesViaHTTP(*serverURL, query, *limit, *fuzzy)
	} else {
		logger, components := loadLocal(*configPath, *artifactPath)
		defer logger.Sync()
		defer components.Close()
		ctx := context.Background()
		matches, err = components.Service.SearchTitles(ctx, query, *limit, &titles.SearchOptions{FuzzyEnabled: *fuzzy})
		// Auto-retry with fuzzy if no results and fuzzy not already enabled
		if err == nil && len(matches) == 0 && !*fuzzy {
			matches, err = components.Service.SearchTitles(ctx, query, *limit, &titles.SearchOptions{FuzzyEnabled: true})
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Title search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteTitleMatches(os.Stdout, query, matches, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func titlesViaHTTP(serverURL, query string, limit int, fuzzy bool) ([]titles.Match, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fuzzy", strconv.FormatBool(fuzzy))
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/titles/search?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out struct {
		Matches []titles.Match `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Matches, nil
}

func runPack() {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	in := fs.String("in", "", "source artifact (directory or SQLite file)")
	inFormat := fs.String("format", "auto", "source format: auto, dir or sqlite")
	out := fs.String("out", "", "destination SQLite file (must not exist)")
	_ = fs.Parse(os.Args[2:])

	if *in == "" || *out == "" {
		fmt.Println("Usage: cinematch pack -in <artifact-dir> -out <movies.db>")
		os.Exit(1)
	}
	format, err := artifact.ParseFormat(*inFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	snap, err := artifact.Convert(*in, format, *out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pack failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Packed %d movies from %s into %s\n", snap.Catalog.Len(), *in, *out)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Movies          int    `json:"movies"`
	ArtifactSource  string `json:"artifact_source"`
	ArtifactFormat  string `json:"artifact_format"`
	LoadedAt        string `json:"loaded_at"`
	MetadataEnabled bool   `json:"metadata_enabled"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = load the artifact directly)")
	artifactPath := fs.String("artifact", "", "artifact path (overrides config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		logger, components := loadLocal(*configPath, *artifactPath)
		defer logger.Sync()
		defer components.Close()
		snap := components.Holder.Current()
		status = statusResponse{
			Movies:          snap.Catalog.Len(),
			ArtifactSource:  snap.Source,
			ArtifactFormat:  string(snap.Format),
			LoadedAt:        snap.LoadedAt.Format(time.RFC3339),
			MetadataEnabled: components.Service.MetadataEnabled(),
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("movies:            %d   # items in the catalog\n", status.Movies)
		fmt.Printf("artifact_source:   %s\n", status.ArtifactSource)
		fmt.Printf("artifact_format:   %s\n", status.ArtifactFormat)
		fmt.Printf("loaded_at:         %s\n", status.LoadedAt)
		fmt.Printf("metadata_enabled:  %t\n", status.MetadataEnabled)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// apiError turns a non-200 API response into an error, preferring the JSON
// error message when there is one.
func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

// loadLocal loads config and components for one-shot commands, exiting on failure.
func loadLocal(configPath, artifactPath string) (*zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if artifactPath != "" {
		cfg.Artifact.Path = artifactPath
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return logger, components
}

// Components holds initialized services.
type Components struct {
	Holder   *artifact.Holder
	Service  *recommend.Service
	Provider metadata.Provider
	redis    *metadata.RedisCache
	watcher  *watcher.Watcher
}

func (c *Components) Close() {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	if c.Service != nil {
		_ = c.Service.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	format, err := artifact.ParseFormat(cfg.Artifact.Format)
	if err != nil {
		return nil, err
	}
	holder, err := artifact.NewHolder(cfg.Artifact.Path, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}
	snap := holder.Current()
	logger.Info("artifact loaded",
		zap.String("source", snap.Source),
		zap.String("format", string(snap.Format)),
		zap.Int("movies", snap.Catalog.Len()),
	)

	c := &Components{Holder: holder}
	if cfg.Metadata.Enabled {
		provider, redisCache, err := buildProvider(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		c.Provider = provider
		c.redis = redisCache
	}

	svc, err := recommend.NewService(holder, c.Provider, recommend.Config{
		DefaultK:    cfg.Recommend.DefaultK,
		MaxK:        cfg.Recommend.MaxK,
		Concurrency: cfg.Recommend.Concurrency,
		Enrich:      cfg.Recommend.EnrichOrDefault(),
	}, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Service = svc
	return c, nil
}

// buildProvider assembles client, circuit breaker and cache, innermost first.
func buildProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (metadata.Provider, *metadata.RedisCache, error) {
	mc := cfg.Metadata
	client, err := metadata.NewClient(metadata.ClientConfig{
		BaseURL:       mc.BaseURL,
		ImageBaseURL:  mc.ImageBaseURL,
		APIKey:        mc.APIKey,
		Language:      mc.Language,
		MaxAttempts:   mc.MaxAttempts,
		RetryDelay:    mc.RetryDelay,
		MaxRetryDelay: mc.MaxRetryDelay,
		Backoff:       metadata.Backoff(mc.Backoff),
		Timeout:       mc.Timeout,
		RateLimit:     mc.RateLimit,
	}, metadata.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metadata client: %w", err)
	}
	var provider metadata.Provider = client
	if mc.Breaker.EnabledOrDefault() {
		provider = metadata.NewBreakerProvider(provider, metadata.BreakerConfig{
			Name:         "tmdb-api",
			MaxRequests:  mc.Breaker.MaxRequests,
			Interval:     mc.Breaker.Interval,
			Timeout:      mc.Breaker.Timeout,
			MinRequests:  mc.Breaker.MinRequests,
			FailureRatio: mc.Breaker.FailureRatio,
		}, logger)
	}

	switch mc.Cache.Backend {
	case "memory":
		provider = metadata.NewCachedProvider(provider, metadata.NewMemoryCache(mc.Cache.Size, mc.Cache.TTL), logger)
	case "redis":
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rc, err := metadata.NewRedisCache(pingCtx, mc.Cache.RedisAddr, mc.Cache.RedisDB, mc.Cache.TTL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", mc.Cache.RedisAddr, err)
		}
		return metadata.NewCachedProvider(provider, rc, logger), rc, nil
	}
	return provider, nil, nil
}

func (c *Components) startWatcher(ctx context.Context, cfg *config.Config, logger *zap.Logger, debug bool) error {
	opts := []watcher.WatcherOption{watcher.WithDebounce(cfg.Artifact.WatchDebounce)}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	holder := c.Holder
	w := watcher.NewWatcher(
		holder.Source(),
		[]string{artifact.CatalogJSONLFile, artifact.CatalogCSVFile, artifact.MatrixFile},
		func() { _, _ = holder.Reload() },
		opts...,
	)
	if err := w.Start(ctx); err != nil {
		return err
	}
	c.watcher = w
	logger.Info("watching artifact for changes", zap.String("path", w.Path()))
	return nil
}

func printUsage() {
	fmt.Println(`cinematch - content-based movie recommendations

Usage:
  cinematch <command> [flags]

Commands:
  server      Start the HTTP API server
  recommend   Recommend movies similar to a title
  titles      Search catalog titles
  pack        Convert an artifact directory into a SQLite artifact
  status      Show catalog and artifact status
  version     Show version
  help        Show this help

Configuration:
  Default config path: /usr/local/etc/cinematch/config.yaml (./config.yaml is
  used when present). TMDB_API_KEY, CINEMATCH_ARTIFACT, CINEMATCH_PORT and
  CINEMATCH_REDIS_ADDR override file settings.

Examples:
  cinematch server -artifact ./data/movies.db
  cinematch recommend "The Dark Knight Rises" -k 5
  cinematch titles -fuzzy avatr
  cinematch pack -in ./data/artifact -out ./data/movies.db`)
}
