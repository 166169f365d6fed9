package similarity

import (
	"container/heap"
	"math"
	"sort"

	"github.com/hyperjump/cinematch/internal/models"
)

// Neighbor is a ranked candidate row with its similarity to the query row.
type Neighbor struct {
	Row   int
	Score float64
}

// Ranker selects the most similar rows for a query row. It holds no mutable
// state and is safe for concurrent use.
type Ranker struct {
	matrix *Matrix
}

// NewRanker returns a ranker over m.
func NewRanker(m *Matrix) *Ranker {
	return &Ranker{matrix: m}
}

// Size returns the number of rows the ranker covers.
func (r *Ranker) Size() int {
	return r.matrix.Size()
}

// TopK returns the rows of the k candidates most similar to row, best first.
func (r *Ranker) TopK(row, k int) ([]int, error) {
	neighbors, err := r.TopKScored(row, k)
	if err != nil {
		return nil, err
	}
	rows := make([]int, len(neighbors))
	for i, nb := range neighbors {
		rows[i] = nb.Row
	}
	return rows, nil
}

// TopKScored returns min(k, N-1) neighbors of row ordered by descending score.
// Equal scores are ordered by ascending row and the query row is never included.
// NaN scores rank after every other score.
func (r *Ranker) TopKScored(row, k int) ([]Neighbor, error) {
	n := r.matrix.Size()
	if row < 0 || row >= n {
		return nil, &models.OutOfRangeError{Row: row, Size: n}
	}
	if k <= 0 || n <= 1 {
		return []Neighbor{}, nil
	}
	if k > n-1 {
		k = n - 1
	}
	scores := r.matrix.scores[row*n : (row+1)*n]
	if k*4 < n {
		return selectBounded(scores, row, k), nil
	}
	return selectSorted(scores, row, k), nil
}

// before is the ranking order: higher score first, then lower row.
func before(a, b Neighbor) bool {
	aNaN, bNaN := math.IsNaN(a.Score), math.IsNaN(b.Score)
	switch {
	case aNaN && bNaN:
		return a.Row < b.Row
	case aNaN:
		return false
	case bNaN:
		return true
	case a.Score != b.Score:
		return a.Score > b.Score
	default:
		return a.Row < b.Row
	}
}

func selectSorted(scores []float32, self, k int) []Neighbor {
	candidates := make([]Neighbor, 0, len(scores)-1)
	for j, s := range scores {
		if j == self {
			continue
		}
		candidates = append(candidates, Neighbor{Row: j, Score: float64(s)})
	}
	sort.Slice(candidates, func(i, j int) bool { return before(candidates[i], candidates[j]) })
	return candidates[:k]
}

// worstFirst is a heap whose root is the lowest ranked neighbor kept so far.
type worstFirst []Neighbor

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return before(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *worstFirst) Pop() any {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]
	return last
}

func selectBounded(scores []float32, self, k int) []Neighbor {
	h := make(worstFirst, 0, k)
	for j, s := range scores {
		if j == self {
			continue
		}
		c := Neighbor{Row: j, Score: float64(s)}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if before(c, h[0]) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	out := []Neighbor(h)
	sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out
}
