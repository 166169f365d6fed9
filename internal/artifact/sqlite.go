package artifact

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/similarity"
)

const sqliteSchema = `
CREATE TABLE movies (
	row_index INTEGER PRIMARY KEY,
	movie_id INTEGER NOT NULL,
	title TEXT NOT NULL
);

CREATE INDEX idx_movies_title ON movies(title);

CREATE TABLE similarity (
	row_index INTEGER PRIMARY KEY,
	scores BLOB NOT NULL
);
`

func loadSQLite(path string) ([]models.CatalogItem, *similarity.Matrix, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, fmt.Errorf("cannot open artifact database: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	items, err := readMovies(db)
	if err != nil {
		return nil, nil, err
	}
	matrix, err := readSimilarity(db, len(items))
	if err != nil {
		return nil, nil, err
	}
	return items, matrix, nil
}

func readMovies(db *sql.DB) ([]models.CatalogItem, error) {
	rows, err := db.Query(`SELECT row_index, movie_id, title FROM movies ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()

	var items []models.CatalogItem
	for rows.Next() {
		var item models.CatalogItem
		if err := rows.Scan(&item.Row, &item.ID, &item.Title); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		if item.Row != len(items) {
			return nil, fmt.Errorf("movies table rows must be contiguous from 0: found row %d at position %d", item.Row, len(items))
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func readSimilarity(db *sql.DB, n int) (*similarity.Matrix, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM similarity`).Scan(&count); err != nil {
		return nil, fmt.Errorf("count similarity rows: %w", err)
	}
	if count != n {
		return nil, fmt.Errorf("matrix size %d does not match catalog size %d", count, n)
	}

	rows, err := db.Query(`SELECT row_index, scores FROM similarity ORDER BY row_index`)
	if err != nil {
		return nil, fmt.Errorf("query similarity: %w", err)
	}
	defer rows.Close()

	data := make([]float32, 0, n*n)
	i := 0
	for rows.Next() {
		var row int
		var blob []byte
		if err := rows.Scan(&row, &blob); err != nil {
			return nil, fmt.Errorf("scan similarity row: %w", err)
		}
		if row != i {
			return nil, fmt.Errorf("similarity rows must be contiguous from 0: found row %d at position %d", row, i)
		}
		if len(blob) != n*4 {
			return nil, fmt.Errorf("similarity row %d has %d bytes, want %d", row, len(blob), n*4)
		}
		data = append(data, bytesToFloat32Slice(blob)...)
		i++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return similarity.NewMatrix(n, data)
}

// WriteSQLite writes items and matrix to a new SQLite artifact at path.
// It refuses to overwrite an existing file.
func WriteSQLite(path string, items []models.CatalogItem, matrix *similarity.Matrix) error {
	if matrix.Size() != len(items) {
		return fmt.Errorf("matrix size %d does not match catalog size %d", matrix.Size(), len(items))
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("artifact %s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	movieStmt, err := tx.Prepare(`INSERT INTO movies (row_index, movie_id, title) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer movieStmt.Close()
	simStmt, err := tx.Prepare(`INSERT INTO similarity (row_index, scores) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer simStmt.Close()

	for i, item := range items {
		if _, err := movieStmt.Exec(i, item.ID, item.Title); err != nil {
			return fmt.Errorf("insert movie %d: %w", i, err)
		}
		if _, err := simStmt.Exec(i, float32SliceToBytes(matrix.Row(i))); err != nil {
			return fmt.Errorf("insert similarity row %d: %w", i, err)
		}
	}
	return tx.Commit()
}
