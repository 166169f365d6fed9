// Package similarity provides the precomputed item-item similarity matrix and
// the top-K ranker over it.
package similarity

import "fmt"

// Matrix is an immutable N×N similarity matrix stored row-major.
type Matrix struct {
	n      int
	scores []float32
}

// NewMatrix wraps a row-major slice of n*n scores. The slice is copied.
func NewMatrix(n int, scores []float32) (*Matrix, error) {
	if n < 0 {
		return nil, fmt.Errorf("matrix size must not be negative: %d", n)
	}
	if len(scores) != n*n {
		return nil, fmt.Errorf("matrix data length %d does not match %dx%d", len(scores), n, n)
	}
	owned := make([]float32, len(scores))
	copy(owned, scores)
	return &Matrix{n: n, scores: owned}, nil
}

// NewMatrixFromRows builds a Matrix from square rows.
func NewMatrixFromRows(rows [][]float32) (*Matrix, error) {
	n := len(rows)
	scores := make([]float32, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("matrix row %d has %d columns, want %d", i, len(row), n)
		}
		scores = append(scores, row...)
	}
	return &Matrix{n: n, scores: scores}, nil
}

// Size returns N.
func (m *Matrix) Size() int {
	return m.n
}

// Score returns the similarity between rows i and j. Callers must pass valid rows.
func (m *Matrix) Score(i, j int) float32 {
	return m.scores[i*m.n+j]
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float32 {
	out := make([]float32, m.n)
	copy(out, m.scores[i*m.n:(i+1)*m.n])
	return out
}

// Data returns the row-major backing data. Callers must not modify it.
func (m *Matrix) Data() []float32 {
	return m.scores
}
