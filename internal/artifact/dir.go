package artifact

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/similarity"
)

type catalogLine struct {
	ID    *int64  `json:"id"`
	Title *string `json:"title"`
}

func loadDir(dir string) ([]models.CatalogItem, *similarity.Matrix, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open artifact directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%s is not a directory", dir)
	}
	items, err := loadCatalog(dir)
	if err != nil {
		return nil, nil, err
	}
	matrix, err := loadMatrix(filepath.Join(dir, MatrixFile), len(items))
	if err != nil {
		return nil, nil, err
	}
	return items, matrix, nil
}

func loadCatalog(dir string) ([]models.CatalogItem, error) {
	jsonlPath := filepath.Join(dir, CatalogJSONLFile)
	if _, err := os.Stat(jsonlPath); err == nil {
		return loadCatalogJSONL(jsonlPath)
	}
	csvPath := filepath.Join(dir, CatalogCSVFile)
	if _, err := os.Stat(csvPath); err == nil {
		return loadCatalogCSV(csvPath)
	}
	return nil, fmt.Errorf("no %s or %s in %s", CatalogJSONLFile, CatalogCSVFile, dir)
}

func loadCatalogJSONL(path string) ([]models.CatalogItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open catalog %s: %w", path, err)
	}
	defer f.Close()

	var items []models.CatalogItem
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e catalogLine
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("invalid catalog JSONL %s line %d: %w", path, lineNo, err)
		}
		if e.ID == nil || e.Title == nil {
			return nil, fmt.Errorf("catalog %s line %d: id and title are required", path, lineNo)
		}
		items = append(items, models.CatalogItem{ID: *e.ID, Title: *e.Title, Row: len(items)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read catalog %s: %w", path, err)
	}
	return items, nil
}

func loadCatalogCSV(path string) ([]models.CatalogItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open catalog %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read catalog header %s: %w", path, err)
	}
	idCol, titleCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "movie_id", "id":
			idCol = i
		case "title":
			titleCol = i
		}
	}
	if idCol < 0 || titleCol < 0 {
		return nil, fmt.Errorf("catalog %s: header must contain movie_id and title", path)
	}

	var items []models.CatalogItem
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid catalog CSV %s: %w", path, err)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rec[idCol]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("catalog %s row %d: invalid movie_id %q", path, len(items), rec[idCol])
		}
		items = append(items, models.CatalogItem{ID: id, Title: rec[titleCol], Row: len(items)})
	}
	return items, nil
}

// loadMatrix reads similarity.f32: uint32 N (little endian) followed by N*N float32 row-major.
func loadMatrix(path string, catalogSize int) (*similarity.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open matrix file %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat matrix file %s: %w", path, err)
	}
	var n uint32
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("read matrix header: %w", err)
	}
	if int(n) != catalogSize {
		return nil, fmt.Errorf("matrix size %d does not match catalog size %d", n, catalogSize)
	}
	expected := 4 + int64(n)*int64(n)*4
	if st.Size() != expected {
		return nil, fmt.Errorf("matrix file size mismatch: got %d want %d (n=%d)", st.Size(), expected, n)
	}
	buf := make([]byte, int64(n)*int64(n)*4)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("cannot read matrix from %s: %w", path, err)
	}
	return similarity.NewMatrix(int(n), bytesToFloat32Slice(buf))
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
