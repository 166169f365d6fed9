// Package artifact loads the precomputed catalog and similarity matrix that the
// recommender serves from. Two on-disk formats are supported: a directory with
// a catalog file and a raw float32 matrix, and a single SQLite database.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/cinematch/internal/catalog"
	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/similarity"
)

// Format identifies an artifact layout.
type Format string

const (
	// FormatAuto picks FormatSQLite for .db/.sqlite/.sqlite3 files and FormatDir otherwise.
	FormatAuto Format = "auto"
	// FormatDir is a directory with catalog.jsonl (or catalog.csv) and similarity.f32.
	FormatDir Format = "dir"
	// FormatSQLite is a SQLite database with movies and similarity tables.
	FormatSQLite Format = "sqlite"
)

const (
	CatalogJSONLFile = "catalog.jsonl"
	CatalogCSVFile   = "catalog.csv"
	MatrixFile       = "similarity.f32"
)

// Snapshot is one loaded artifact. It is never modified after Load returns and
// may be shared freely between goroutines.
type Snapshot struct {
	Catalog  *catalog.Store
	Matrix   *similarity.Matrix
	Ranker   *similarity.Ranker
	Source   string
	Format   Format
	LoadedAt time.Time
}

// NewSnapshot checks that items and matrix agree in size and builds a Snapshot.
func NewSnapshot(items []models.CatalogItem, matrix *similarity.Matrix) (*Snapshot, error) {
	if matrix.Size() != len(items) {
		return nil, fmt.Errorf("matrix size %d does not match catalog size %d", matrix.Size(), len(items))
	}
	store, err := catalog.New(items)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Catalog:  store,
		Matrix:   matrix,
		Ranker:   similarity.NewRanker(matrix),
		LoadedAt: time.Now(),
	}, nil
}

// ParseFormat converts a config string to a Format. Empty means FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatDir:
		return FormatDir, nil
	case FormatSQLite:
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unknown artifact format: %s (supported: auto, dir, sqlite)", s)
	}
}

// DetectFormat resolves FormatAuto for source.
func DetectFormat(source string) Format {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite
	}
	if info, err := os.Stat(source); err == nil && !info.IsDir() {
		return FormatSQLite
	}
	return FormatDir
}

// Load reads the artifact at source. Every failure is a *models.LoadError.
func Load(source string, format Format) (*Snapshot, error) {
	if source == "" {
		return nil, models.NewLoadError(source, fmt.Errorf("no artifact path configured"))
	}
	if format == "" || format == FormatAuto {
		format = DetectFormat(source)
	}
	var (
		items  []models.CatalogItem
		matrix *similarity.Matrix
		err    error
	)
	switch format {
	case FormatDir:
		items, matrix, err = loadDir(source)
	case FormatSQLite:
		items, matrix, err = loadSQLite(source)
	default:
		err = fmt.Errorf("unknown artifact format: %s", format)
	}
	if err != nil {
		return nil, models.NewLoadError(source, err)
	}
	snap, err := NewSnapshot(items, matrix)
	if err != nil {
		return nil, models.NewLoadError(source, err)
	}
	snap.Source = source
	snap.Format = format
	return snap, nil
}
