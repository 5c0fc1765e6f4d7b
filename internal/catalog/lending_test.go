package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIssueReturnScenario(t *testing.T) {
	c := duneCatalogue(t)

	b, err := c.Issue("978-0")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Quantity)

	_, err = c.Issue("978-0")
	assert.ErrorIs(t, err, ErrOutOfStock)

	got, err := c.Get("978-0")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)

	b, err = c.Return("978-0")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Quantity)
}

func TestIssueIsNotIdempotent(t *testing.T) {
	c, err := FromBooks([]Book{{ISBN: "1", Title: "Emma", Quantity: 2}})
	require.NoError(t, err)

	_, err = c.Issue("1")
	require.NoError(t, err)
	b, err := c.Issue("1")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Quantity)
}

func TestUnknownISBN(t *testing.T) {
	c := duneCatalogue(t)
	before := c.Books()

	_, err := c.Issue("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Return("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, before, c.Books())
	assert.Equal(t, 1, c.Len())
}

func TestIssueProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		books := booksGen().Draw(t, "books")
		c, err := FromBooks(books)
		if err != nil {
			t.Fatalf("FromBooks: %v", err)
		}
		target := rapid.SampledFrom(books).Draw(t, "target")
		before := c.Books()

		got, err := c.Issue(target.ISBN)
		if target.Quantity == 0 {
			if !assert.ErrorIs(t, err, ErrOutOfStock) {
				t.FailNow()
			}
			assert.Equal(t, before, c.Books())
			return
		}
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if got.Quantity != target.Quantity-1 || got.Quantity < 0 {
			t.Fatalf("quantity %d after issue of %d", got.Quantity, target.Quantity)
		}

		for i, b := range c.Books() {
			if b.ISBN != target.ISBN && b != before[i] {
				t.Fatalf("issue of %s changed %s", target.ISBN, b.ISBN)
			}
		}
	})
}

func TestIssueReturnSequencesNeverGoNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := rapid.IntRange(0, 5).Draw(t, "start")
		c, err := FromBooks([]Book{{ISBN: "x", Quantity: start}})
		if err != nil {
			t.Fatalf("FromBooks: %v", err)
		}

		want := start
		ops := rapid.SliceOf(rapid.Bool()).Draw(t, "issue")
		for _, issue := range ops {
			if issue {
				_, err := c.Issue("x")
				if want == 0 {
					if err == nil {
						t.Fatalf("issue succeeded with no stock")
					}
					continue
				}
				want--
			} else {
				if _, err := c.Return("x"); err != nil {
					t.Fatalf("Return: %v", err)
				}
				want++
			}
		}

		got, err := c.Get("x")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Quantity != want || got.Quantity < 0 {
			t.Fatalf("quantity %d, want %d", got.Quantity, want)
		}
	})
}
