package similarity

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/hyperjump/cinematch/internal/models"
)

func mustMatrix(t *testing.T, rows [][]float32) *Matrix {
	t.Helper()
	m, err := NewMatrixFromRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func randomMatrix(n int, seed int64, levels int) *Matrix {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float32, n*n)
	for i := range data {
		// few distinct levels so ties are common
		data[i] = float32(rng.Intn(levels)) / float32(levels)
	}
	m, _ := NewMatrix(n, data)
	return m
}

func TestTopK_TieBreakByRow(t *testing.T) {
	m := mustMatrix(t, [][]float32{
		{1.0, 0.5, 0.5},
		{0.5, 1.0, 0.2},
		{0.5, 0.2, 1.0},
	})
	r := NewRanker(m)
	got, err := r.TopK(0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("TopK(0, 2) = %v, want [1 2]", got)
	}
	for i := 0; i < 10; i++ {
		again, _ := r.TopK(0, 2)
		if !reflect.DeepEqual(again, got) {
			t.Fatalf("TopK not deterministic: %v vs %v", again, got)
		}
	}
}

func TestTopK_KLargerThanCatalog(t *testing.T) {
	m := mustMatrix(t, [][]float32{
		{1.0, 0.5, 0.5},
		{0.5, 1.0, 0.2},
		{0.5, 0.2, 1.0},
	})
	got, err := NewRanker(m).TopK(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("TopK(0, 10) = %v, want [1 2]", got)
	}
}

func TestTopK_ExcludesSelfEvenWhenNotMaximal(t *testing.T) {
	m := mustMatrix(t, [][]float32{
		{0.0, 0.3, 0.9},
		{0.3, 0.0, 0.1},
		{0.9, 0.1, 0.0},
	})
	got, _ := NewRanker(m).TopK(1, 5)
	if !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("TopK(1, 5) = %v, want [0 2]", got)
	}
}

func TestTopK_OutOfRange(t *testing.T) {
	m := mustMatrix(t, [][]float32{{1, 0}, {0, 1}})
	r := NewRanker(m)
	for _, row := range []int{-1, 2, 50} {
		_, err := r.TopK(row, 1)
		if !errors.Is(err, models.ErrOutOfRange) {
			t.Errorf("TopK(%d) error = %v, want ErrOutOfRange", row, err)
		}
	}
}

func TestTopK_TinyCatalogs(t *testing.T) {
	one := mustMatrix(t, [][]float32{{1}})
	got, err := NewRanker(one).TopK(0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("single item catalog: got %v", got)
	}
	empty := mustMatrix(t, nil)
	if _, err := NewRanker(empty).TopK(0, 5); !errors.Is(err, models.ErrOutOfRange) {
		t.Errorf("empty catalog: any row is out of range, got %v", err)
	}
}

func TestTopK_NonPositiveK(t *testing.T) {
	m := mustMatrix(t, [][]float32{{1, 0.5}, {0.5, 1}})
	for _, k := range []int{0, -3} {
		got, err := NewRanker(m).TopK(0, k)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("TopK(0, %d) = %v, want empty", k, got)
		}
	}
}

func TestTopK_NaNRanksLast(t *testing.T) {
	nan := float32(math.NaN())
	m := mustMatrix(t, [][]float32{
		{1, nan, 0.1, nan},
		{nan, 1, 0, 0},
		{0.1, 0, 1, 0},
		{nan, 0, 0, 1},
	})
	got, _ := NewRanker(m).TopK(0, 3)
	if !reflect.DeepEqual(got, []int{2, 1, 3}) {
		t.Errorf("TopK with NaN = %v, want [2 1 3]", got)
	}
}

func TestTopK_Properties(t *testing.T) {
	const n = 200
	m := randomMatrix(n, 42, 7)
	r := NewRanker(m)
	for _, k := range []int{1, 3, 10, 49, 50, 120, n - 1, n + 5} {
		for row := 0; row < n; row += 17 {
			got, err := r.TopKScored(row, k)
			if err != nil {
				t.Fatal(err)
			}
			want := k
			if k > n-1 {
				want = n - 1
			}
			if len(got) != want {
				t.Fatalf("k=%d row=%d: len = %d, want %d", k, row, len(got), want)
			}
			seen := make(map[int]bool, len(got))
			for i, nb := range got {
				if nb.Row == row {
					t.Fatalf("k=%d row=%d: result contains query row", k, row)
				}
				if seen[nb.Row] {
					t.Fatalf("k=%d row=%d: duplicate row %d", k, row, nb.Row)
				}
				seen[nb.Row] = true
				if nb.Score != float64(m.Score(row, nb.Row)) {
					t.Fatalf("score mismatch for %d", nb.Row)
				}
				if i > 0 {
					prev := got[i-1]
					if prev.Score < nb.Score {
						t.Fatalf("k=%d row=%d: not descending at %d", k, row, i)
					}
					if prev.Score == nb.Score && prev.Row > nb.Row {
						t.Fatalf("k=%d row=%d: tie not broken by row at %d", k, row, i)
					}
				}
			}
		}
	}
}

func TestSelectBounded_MatchesFullSort(t *testing.T) {
	const n = 300
	m := randomMatrix(n, 7, 5)
	for row := 0; row < n; row += 31 {
		scores := m.Data()[row*n : (row+1)*n]
		for _, k := range []int{1, 2, 5, 20, 74} {
			bounded := selectBounded(scores, row, k)
			sorted := selectSorted(scores, row, k)
			if !reflect.DeepEqual(bounded, sorted) {
				t.Fatalf("row=%d k=%d: bounded %v != sorted %v", row, k, bounded, sorted)
			}
		}
	}
}

func TestNewMatrix_Validation(t *testing.T) {
	if _, err := NewMatrix(2, []float32{1, 2, 3}); err == nil {
		t.Error("expected error for short data")
	}
	if _, err := NewMatrixFromRows([][]float32{{1, 2}, {3}}); err == nil {
		t.Error("expected error for ragged rows")
	}
	m, err := NewMatrix(2, []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	if m.Score(1, 0) != 3 {
		t.Errorf("Score(1,0) = %v", m.Score(1, 0))
	}
	row := m.Row(0)
	row[0] = 99
	if m.Score(0, 0) != 1 {
		t.Error("Row must return a copy")
	}
}
