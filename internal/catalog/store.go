// Package catalog holds the loaded movie catalog and resolves titles to rows.
package catalog

import (
	"fmt"

	"github.com/hyperjump/cinematch/internal/models"
)

// Store is an immutable catalog indexed by row. It is safe for concurrent reads.
type Store struct {
	items   []models.CatalogItem
	byTitle map[string]int
}

// New builds a Store from items. Item i must have Row == i.
// When several items share a title, Resolve returns the smallest row.
func New(items []models.CatalogItem) (*Store, error) {
	owned := make([]models.CatalogItem, len(items))
	byTitle := make(map[string]int, len(items))
	for i, item := range items {
		if item.Row != i {
			return nil, fmt.Errorf("catalog rows must be contiguous: item %d has row %d", i, item.Row)
		}
		owned[i] = item
		if _, ok := byTitle[item.Title]; !ok {
			byTitle[item.Title] = i
		}
	}
	return &Store{items: owned, byTitle: byTitle}, nil
}

// Len returns the number of items.
func (s *Store) Len() int {
	return len(s.items)
}

// Resolve returns the row of the first item whose title equals title exactly.
func (s *Store) Resolve(title string) (int, error) {
	row, ok := s.byTitle[title]
	if !ok {
		return -1, &models.NotFoundError{Title: title}
	}
	return row, nil
}

// IdentifierOf returns the external identifier of the item at row.
func (s *Store) IdentifierOf(row int) (int64, error) {
	item, err := s.Item(row)
	if err != nil {
		return 0, err
	}
	return item.ID, nil
}

// Item returns the item at row.
func (s *Store) Item(row int) (models.CatalogItem, error) {
	if row < 0 || row >= len(s.items) {
		return models.CatalogItem{}, &models.OutOfRangeError{Row: row, Size: len(s.items)}
	}
	return s.items[row], nil
}

// Items returns up to limit items starting at offset, in row order.
func (s *Store) Items(offset, limit int) []models.CatalogItem {
	if offset < 0 {
		offset = 0
	}
	if offset > len(s.items) {
		offset = len(s.items)
	}
	end := len(s.items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]models.CatalogItem, end-offset)
	copy(out, s.items[offset:end])
	return out
}

// Titles returns every title in row order, duplicates included.
func (s *Store) Titles() []string {
	titles := make([]string, len(s.items))
	for i, item := range s.items {
		titles[i] = item.Title
	}
	return titles
}
