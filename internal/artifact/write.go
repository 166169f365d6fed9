package artifact

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/similarity"
)

// WriteDir writes items as catalog.jsonl and matrix as similarity.f32 into dir.
func WriteDir(dir string, items []models.CatalogItem, matrix *similarity.Matrix) error {
	if matrix.Size() != len(items) {
		return fmt.Errorf("matrix size %d does not match catalog size %d", matrix.Size(), len(items))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := writeCatalogJSONL(filepath.Join(dir, CatalogJSONLFile), items); err != nil {
		return err
	}
	return writeMatrix(filepath.Join(dir, MatrixFile), matrix)
}

func writeCatalogJSONL(path string, items []models.CatalogItem) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create catalog file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		}{item.ID, item.Title}); err != nil {
			return fmt.Errorf("write catalog line: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write catalog file: %w", err)
	}
	return f.Close()
}

func writeMatrix(path string, matrix *similarity.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create matrix file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(matrix.Size())); err != nil {
		return fmt.Errorf("write matrix header: %w", err)
	}
	if _, err := f.Write(float32SliceToBytes(matrix.Data())); err != nil {
		return fmt.Errorf("write matrix: %w", err)
	}
	return f.Close()
}

// Convert loads the artifact at src and writes it as a SQLite artifact at dst.
func Convert(src string, format Format, dst string) (*Snapshot, error) {
	snap, err := Load(src, format)
	if err != nil {
		return nil, err
	}
	if err := WriteSQLite(dst, snap.Catalog.Items(0, 0), snap.Matrix); err != nil {
		return nil, err
	}
	return snap, nil
}
