package catalog

import (
	"errors"
	"testing"

	"github.com/hyperjump/cinematch/internal/models"
)

func sampleItems() []models.CatalogItem {
	return []models.CatalogItem{
		{ID: 1, Title: "A", Row: 0},
		{ID: 2, Title: "B", Row: 1},
		{ID: 3, Title: "C", Row: 2},
		{ID: 4, Title: "B", Row: 3},
	}
}

func TestNew_RejectsNonContiguousRows(t *testing.T) {
	_, err := New([]models.CatalogItem{{ID: 1, Title: "A", Row: 0}, {ID: 2, Title: "B", Row: 2}})
	if err == nil {
		t.Fatal("expected error for gap in rows")
	}
}

func TestStore_Resolve(t *testing.T) {
	s, err := New(sampleItems())
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		title   string
		want    int
		wantErr bool
	}{
		{"A", 0, false},
		{"C", 2, false},
		{"B", 1, false}, // duplicate title: smallest row wins
		{"a", 0, true},  // exact match only
		{"missing", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, err := s.Resolve(tt.title)
			if tt.wantErr {
				if !errors.Is(err, models.ErrNotFound) {
					t.Fatalf("Resolve(%q) error = %v, want ErrNotFound", tt.title, err)
				}
				var nf *models.NotFoundError
				if !errors.As(err, &nf) || nf.Title != tt.title {
					t.Errorf("expected *NotFoundError for %q, got %v", tt.title, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %d, want %d", tt.title, got, tt.want)
			}
		})
	}
}

func TestStore_IdentifierOf(t *testing.T) {
	s, _ := New(sampleItems())
	id, err := s.IdentifierOf(2)
	if err != nil {
		t.Fatal(err)
	}
	if id != 3 {
		t.Errorf("IdentifierOf(2) = %d, want 3", id)
	}
	for _, row := range []int{-1, 4, 100} {
		_, err := s.IdentifierOf(row)
		if !errors.Is(err, models.ErrOutOfRange) {
			t.Errorf("IdentifierOf(%d) error = %v, want ErrOutOfRange", row, err)
		}
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s, _ := New(sampleItems())
	for _, title := range []string{"A", "B", "C"} {
		row, err := s.Resolve(title)
		if err != nil {
			t.Fatal(err)
		}
		id, err := s.IdentifierOf(row)
		if err != nil {
			t.Fatal(err)
		}
		var want int64
		for _, item := range sampleItems() {
			if item.Title == title {
				want = item.ID
				break
			}
		}
		if id != want {
			t.Errorf("IdentifierOf(Resolve(%q)) = %d, want %d", title, id, want)
		}
	}
}

func TestStore_Items(t *testing.T) {
	s, _ := New(sampleItems())
	if got := s.Items(1, 2); len(got) != 2 || got[0].Row != 1 || got[1].Row != 2 {
		t.Errorf("Items(1, 2) = %+v", got)
	}
	if got := s.Items(3, 10); len(got) != 1 {
		t.Errorf("Items(3, 10): got %d items", len(got))
	}
	if got := s.Items(10, 5); len(got) != 0 {
		t.Errorf("Items past end: got %d items", len(got))
	}
	if got := s.Items(0, 0); len(got) != 4 {
		t.Errorf("Items(0, 0) should return all, got %d", len(got))
	}
}

func TestStore_Empty(t *testing.T) {
	s, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d", s.Len())
	}
	if _, err := s.Resolve("A"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_TitlesKeepsRowOrderAndDuplicates(t *testing.T) {
	s, err := New(sampleItems())
	if err != nil {
		t.Fatal(err)
	}
	got := s.Titles()
	want := []string{"A", "B", "C", "B"}
	if len(got) != len(want) {
		t.Fatalf("Titles() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Titles()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
