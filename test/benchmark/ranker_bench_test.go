package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/hyperjump/cinematch/internal/models"
	"github.com/hyperjump/cinematch/internal/similarity"
	"github.com/hyperjump/cinematch/internal/titles"
)

func randomMatrix(b *testing.B, n int) *similarity.Matrix {
	b.Helper()
	rng := rand.New(rand.NewSource(1))
	scores := make([]float32, n*n)
	for i := range scores {
		scores[i] = rng.Float32()
	}
	m, err := similarity.NewMatrix(n, scores)
	if err != nil {
		b.Fatal(err)
	}
	return m
}

func BenchmarkTopK(b *testing.B) {
	// 4803 is the size of the TMDB 5000 catalog after cleaning.
	m := randomMatrix(b, 4803)
	r := similarity.NewRanker(m)
	for _, k := range []int{5, 50, 4802} {
		b.Run(fmt.Sprintf("k=%d", k), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = r.TopK(i%m.Size(), k)
			}
		})
	}
}

func BenchmarkTitleSearch(b *testing.B) {
	items := make([]models.CatalogItem, 5000)
	for i := range items {
		items[i] = models.CatalogItem{ID: int64(i + 1), Title: fmt.Sprintf("Movie number %d part %d", i, i%7), Row: i}
	}
	idx, err := titles.NewIndex(items)
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, "movie numb", 10, nil)
	}
}
