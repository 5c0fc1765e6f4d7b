package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func libraryCatalogue(t *testing.T) *Catalogue {
	t.Helper()
	c, err := FromBooks([]Book{
		{ISBN: "123", Title: "The Hobbit", Author: "J.R.R. Tolkien", Genre: "Fantasy", Year: 1937, Quantity: 3},
		{ISBN: "1234", Title: "The Silmarillion", Author: "J.R.R. Tolkien", Genre: "Fantasy", Year: 1977, Quantity: 1},
		{ISBN: "978-0", Title: "Dune", Author: "Frank Herbert", Genre: "SciFi", Year: 1965, Quantity: 0},
	})
	require.NoError(t, err)
	return c
}

func isbnsOf(books []Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.ISBN)
	}
	return out
}

func TestSearch(t *testing.T) {
	c := libraryCatalogue(t)

	testCases := []struct {
		name  string
		field SearchField
		query string
		want  []string
	}{
		{"author case insensitive substring", FieldAuthor, "tolkien", []string{"123", "1234"}},
		{"isbn is exact", FieldISBN, "123", []string{"123"}},
		{"isbn prefix does not match", FieldISBN, "12", []string{}},
		{"title substring", FieldTitle, "HOBB", []string{"123"}},
		{"genre", FieldGenre, "scifi", []string{"978-0"}},
		{"out of stock books are still found", FieldTitle, "dune", []string{"978-0"}},
		{"no match", FieldAuthor, "austen", []string{}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Search(tt.field, tt.query)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, isbnsOf(got))
		})
	}
}

func TestSearchInvalidField(t *testing.T) {
	c := libraryCatalogue(t)

	got, err := c.Search(SearchField("PUBLISHER"), "x")
	assert.ErrorIs(t, err, ErrInvalidField)
	assert.Nil(t, got)
}

func TestSearchDoesNotMutate(t *testing.T) {
	c := libraryCatalogue(t)
	before := c.Books()

	got, err := c.Search(FieldAuthor, "tolkien")
	require.NoError(t, err)
	got[0].Quantity = 100

	assert.Equal(t, before, c.Books())
}

func TestSearchProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		books := booksGen().Draw(t, "books")
		c, err := FromBooks(books)
		if err != nil {
			t.Fatalf("FromBooks: %v", err)
		}
		query := rapid.StringMatching(`[a-zA-Z]{0,3}`).Draw(t, "query")

		got, err := c.Search(FieldTitle, query)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		for _, b := range got {
			if !strings.Contains(strings.ToLower(b.Title), strings.ToLower(query)) {
				t.Fatalf("title %q does not contain %q", b.Title, query)
			}
		}

		want := 0
		for _, b := range books {
			if strings.Contains(strings.ToLower(b.Title), strings.ToLower(query)) {
				want++
			}
		}
		if len(got) != want {
			t.Fatalf("got %d matches, want %d", len(got), want)
		}

		pick := rapid.SampledFrom(books).Draw(t, "pick")
		exact, err := c.Search(FieldISBN, pick.ISBN)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(exact) != 1 || exact[0] != pick {
			t.Fatalf("isbn search for %q returned %v", pick.ISBN, exact)
		}
	})
}

func bookGen() *rapid.Generator[Book] {
	return rapid.Custom(func(t *rapid.T) Book {
		return Book{
			ISBN:     rapid.StringMatching(`978-[0-9]{1,4}`).Draw(t, "isbn"),
			Title:    rapid.StringMatching(`[A-Za-z ]{1,12}`).Draw(t, "title"),
			Author:   rapid.StringMatching(`[A-Za-z. ]{1,12}`).Draw(t, "author"),
			Genre:    rapid.SampledFrom([]string{"Fantasy", "SciFi", "History", "Poetry"}).Draw(t, "genre"),
			Year:     rapid.IntRange(1450, 2026).Draw(t, "year"),
			Quantity: rapid.IntRange(0, 20).Draw(t, "quantity"),
		}
	})
}

func booksGen() *rapid.Generator[[]Book] {
	return rapid.SliceOfNDistinct(bookGen(), 1, 20, func(b Book) string { return b.ISBN })
}
