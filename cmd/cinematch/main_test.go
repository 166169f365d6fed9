package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/cinematch/internal/artifact"
	"github.com/hyperjump/cinematch/internal/config"
	"github.com/hyperjump/cinematch/internal/metadata"
	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/similarity"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after title are moved first",
			args:     []string{"The Dark Knight Rises", "-k", "3"},
			expected: []string{"-k", "3", "The Dark Knight Rises"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "3", "Avatar"},
			expected: []string{"-k", "3", "Avatar"},
		},
		{
			name:     "title only returns unchanged",
			args:     []string{"Avatar"},
			expected: []string{"Avatar"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"The", "Dark", "Knight", "-output", "json"},
			expected: []string{"-output", "json", "The", "Dark", "Knight"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildTitle(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"Avatar"}, "Avatar"},
		{"multiple words", []string{"The", "Dark", "Knight", "Rises"}, "The Dark Knight Rises"},
		{"quoted phrase", []string{"The Dark Knight Rises"}, "The Dark Knight Rises"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildTitle(tt.args); got != tt.expected {
				t.Errorf("buildTitle(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
artifact:
  path: "./data"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_defaultsWithoutAnyFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvArtifact, "/srv/movies.db")
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved path = %q, want empty", resolved)
	}
	if cfg.Artifact.Path != "/srv/movies.db" || cfg.Metadata.Enabled {
		t.Errorf("cfg: %+v", cfg)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "artifact")
	items := []models.CatalogItem{
		{ID: 19995, Title: "Avatar", Row: 0},
		{ID: 206647, Title: "Spectre", Row: 1},
		{ID: 49026, Title: "The Dark Knight Rises", Row: 2},
	}
	m, err := similarity.NewMatrixFromRows([][]float32{
		{1, 0.4, 0.6},
		{0.4, 1, 0.8},
		{0.6, 0.8, 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := artifact.WriteDir(dir, items, m); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestInitializeComponents(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Artifact.Path = writeArtifact(t)

	c, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer c.Close()
	if c.Provider != nil || c.Service.MetadataEnabled() {
		t.Error("metadata should be disabled")
	}
	resp, err := c.Service.Recommend(context.Background(), models.RecommendRequest{Title: "Avatar", K: 1})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Recommendations[0].Title != "The Dark Knight Rises" {
		t.Errorf("got %+v", resp.Recommendations[0])
	}
}

func TestInitializeComponents_missingArtifact(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Artifact.Path = filepath.Join(t.TempDir(), "nope")
	if _, err := initializeComponents(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestBuildProvider(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Metadata.Enabled = true
	cfg.Metadata.APIKey = "k"

	p, rc, err := buildProvider(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if rc != nil {
		t.Error("memory backend should not open redis")
	}
	if _, ok := p.(*metadata.CachedProvider); !ok {
		t.Errorf("memory backend: got %T", p)
	}

	cfg.Metadata.Cache.Backend = "none"
	p, _, err = buildProvider(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*metadata.BreakerProvider); !ok {
		t.Errorf("no cache: got %T", p)
	}

	off := false
	cfg.Metadata.Breaker.Enabled = &off
	p, _, err = buildProvider(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*metadata.Client); !ok {
		t.Errorf("no cache, no breaker: got %T", p)
	}
}

func TestRecommendViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/recommend" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request_id":"r1","query":{"id":1,"title":"Avatar","row":0},"recommendations":[{"rank":1,"row":1,"id":2,"title":"Spectre","score":0.5,"metadata_status":"skipped","search_url":"u"}],"total":1}`))
	}))
	defer srv.Close()

	resp, err := recommendViaHTTP(srv.URL, models.RecommendRequest{Title: "Avatar"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Recommendations[0].Title != "Spectre" {
		t.Errorf("resp: %+v", resp)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"title not found: \"Avatar 2\""}`))
	}))
	defer srv.Close()

	_, err := recommendViaHTTP(srv.URL, models.RecommendRequest{Title: "Avatar 2"})
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "Avatar 2") {
		t.Errorf("err = %v", err)
	}
}
