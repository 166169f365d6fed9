// Package titles provides an in-memory Bleve index over catalog titles, used
// to find the exact catalog title for a partial or misspelled user query.
package titles

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/cinematch/internal/models"
)

// Match is one title search hit.
type Match struct {
	Row   int     `json:"row"`
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// SearchOptions optional parameters for title search. Nil means defaults.
type SearchOptions struct {
	// FuzzyEnabled matches terms within Fuzziness edits of the query terms.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance when FuzzyEnabled (default 1).
	Fuzziness int
}

type titleDoc struct {
	Title string `json:"title"`
}

// Index is a title index over one catalog. Rebuild swaps in a new catalog.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
	items []models.CatalogItem
}

// NewIndex indexes the titles of items in memory.
func NewIndex(items []models.CatalogItem) (*Index, error) {
	idx := &Index{}
	if err := idx.Rebuild(items); err != nil {
		return nil, err
	}
	return idx, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	im.AddDocumentMapping("title", docMapping)
	im.DefaultType = "title"
	im.DefaultMapping = docMapping
	return im
}

// Rebuild replaces the indexed catalog with items.
func (x *Index) Rebuild(items []models.CatalogItem) error {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return fmt.Errorf("failed to create title index: %w", err)
	}
	batch := index.NewBatch()
	for _, item := range items {
		if err := batch.Index(strconv.Itoa(item.Row), titleDoc{Title: item.Title}); err != nil {
			_ = index.Close()
			return fmt.Errorf("failed to index title %q: %w", item.Title, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return fmt.Errorf("failed to index titles: %w", err)
	}

	owned := make([]models.CatalogItem, len(items))
	copy(owned, items)

	x.mu.Lock()
	old := x.index
	x.index = index
	x.items = owned
	x.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Search returns up to limit catalog items whose titles match query. All query
// terms must match; the last term also matches as a prefix.
func (x *Index) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}
	fuzziness := 0
	if opts != nil && opts.FuzzyEnabled {
		fuzziness = 1
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	req := bleve.NewSearchRequestOptions(buildQuery(query, fuzziness), limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	x.mu.RLock()
	defer x.mu.RUnlock()
	results, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("title search failed: %w", err)
	}
	out := make([]Match, 0, len(results.Hits))
	for _, hit := range results.Hits {
		row, err := strconv.Atoi(hit.ID)
		if err != nil || row < 0 || row >= len(x.items) {
			continue
		}
		item := x.items[row]
		out = append(out, Match{Row: item.Row, ID: item.ID, Title: item.Title, Score: hit.Score})
	}
	return out, nil
}

// Size returns the number of indexed titles.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.items)
}

// Close releases the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.index == nil {
		return nil
	}
	err := x.index.Close()
	x.index = nil
	return err
}

func buildQuery(query string, fuzziness int) blevequery.Query {
	full := bleve.NewMatchQuery(query)
	full.SetField("title")
	full.SetOperator(blevequery.MatchQueryOperatorAnd)
	if fuzziness > 0 {
		full.SetFuzziness(fuzziness)
	}

	terms := strings.Fields(strings.ToLower(query))
	last := strings.TrimFunc(terms[len(terms)-1], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len([]rune(last)) < 2 {
		return full
	}
	prefix := bleve.NewPrefixQuery(last)
	prefix.SetField("title")
	var partial blevequery.Query = prefix
	if len(terms) > 1 {
		head := bleve.NewMatchQuery(strings.Join(terms[:len(terms)-1], " "))
		head.SetField("title")
		head.SetOperator(blevequery.MatchQueryOperatorAnd)
		if fuzziness > 0 {
			head.SetFuzziness(fuzziness)
		}
		partial = bleve.NewConjunctionQuery(head, prefix)
	}
	return bleve.NewDisjunctionQuery(full, partial)
}
