// internal/dashboard/dashboard.go
package dashboard

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"libralyze/internal/catalog"
	"libralyze/internal/circulation"
	"libralyze/internal/store"
)

// Dashboard is the interactive client menu. It reads one answer per line
// from in and writes everything the user sees to out.
type Dashboard struct {
	in          *bufio.Scanner
	lines       chan inputLine
	out         io.Writer
	catalogue   *catalog.Catalogue
	circulation circulation.Service
	username    string
	logger      *slog.Logger
}

type inputLine struct {
	text string
	err  error
}

func New(in io.Reader, out io.Writer, c *catalog.Catalogue, svc circulation.Service, username string, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		in:          bufio.NewScanner(in),
		out:         out,
		catalogue:   c,
		circulation: svc,
		username:    username,
		logger:      logger,
	}
}

// Run greets the user and serves the menu until Exit is chosen or input ends,
// both of which return nil. Cancelling ctx ends the session with ctx.Err(),
// also while a prompt is waiting for input.
func (d *Dashboard) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	d.lines = make(chan inputLine)
	go d.readLines(done)

	d.printf("Welcome to your dashboard, %s!\n", d.username)

	for {
		d.printMenu()
		choice, err := d.ask(ctx, "\nEnter your choice (1-6): ")
		if err != nil {
			return endOfSession(err)
		}

		switch choice {
		case "1":
			d.showBooks()
		case "2":
			err = d.search(ctx)
		case "3":
			err = d.issue(ctx)
		case "4":
			err = d.returnBook(ctx)
		case "5":
			err = d.register(ctx)
		case "6":
			d.printf("Goodbye, %s!\n", d.username)
			return nil
		default:
			d.printf("Invalid choice, please try again.\n")
		}
		if err != nil {
			return endOfSession(err)
		}
	}
}

func (d *Dashboard) printMenu() {
	d.printf("\nLibralyze - Client Menu\n")
	d.printf("1. Show Available Books\n")
	d.printf("2. Search Book by ISBN, Author, Title, or Genre\n")
	d.printf("3. Issue Book\n")
	d.printf("4. Return Book\n")
	d.printf("5. Register Book\n")
	d.printf("6. Exit\n")
}

func (d *Dashboard) showBooks() {
	d.printf("\nAvailable Books in the Library:\n")
	books := d.catalogue.Books()
	if len(books) == 0 {
		d.printf("No books available at the moment.\n")
		return
	}
	for _, b := range books {
		d.printf("\nTitle: %s\n", b.Title)
		d.printf("Author: %s\n", b.Author)
		d.printf("Genre: %s\n", b.Genre)
		d.printf("Year: %d\n", b.Year)
		d.printf("Quantity: %d\n", b.Quantity)
		d.printf("ISBN: %s\n", b.ISBN)
	}
}

func (d *Dashboard) search(ctx context.Context) error {
	_, err := d.searchAndPrint(ctx)
	return err
}

// searchAndPrint runs the search sub-menu and prints the matches. It reports
// whether anything matched.
func (d *Dashboard) searchAndPrint(ctx context.Context) (bool, error) {
	d.printf("\nSearch by:\n")
	d.printf("1. ISBN\n")
	d.printf("2. Author Name\n")
	d.printf("3. Book Name\n")
	d.printf("4. Genre\n")

	choice, err := d.ask(ctx, "\nEnter your choice (1-4): ")
	if err != nil {
		return false, err
	}
	n, convErr := strconv.Atoi(choice)
	if convErr != nil || n < 1 || n > len(catalog.SearchFields) {
		d.printf("Invalid choice.\n")
		return false, nil
	}
	field := catalog.SearchFields[n-1]

	read := d.ask
	if field == catalog.FieldISBN {
		read = d.askRaw
	}
	query, err := read(ctx, fmt.Sprintf("\nEnter %s to search: ", strings.ToLower(field.String())))
	if err != nil {
		return false, err
	}

	results, err := d.catalogue.Search(field, query)
	if err != nil {
		d.report(ctx, "search", err)
		return false, nil
	}
	if len(results) == 0 {
		d.printf("No matches found.\n")
		return false, nil
	}
	for _, b := range results {
		d.printf("\nBook Found: %s\n", b.Title)
		d.printf("Author: %s\n", b.Author)
		d.printf("Genre: %s\n", b.Genre)
		d.printf("Year: %d\n", b.Year)
		d.printf("Quantity: %d\n", b.Quantity)
		d.printf("ISBN: %s\n", b.ISBN)
	}
	return true, nil
}

func (d *Dashboard) issue(ctx context.Context) error {
	found, err := d.searchAndPrint(ctx)
	if err != nil || !found {
		return err
	}

	isbn, err := d.askRaw(ctx, "\nEnter the ISBN of the book to issue: ")
	if err != nil {
		return err
	}
	b, err := d.circulation.Issue(ctx, isbn)
	if err != nil {
		d.report(ctx, "issue", err)
		return nil
	}
	d.printf("Book issued: %s. Copies left: %d.\n", b.Title, b.Quantity)
	return nil
}

func (d *Dashboard) returnBook(ctx context.Context) error {
	isbn, err := d.askRaw(ctx, "\nEnter the ISBN of the book to return: ")
	if err != nil {
		return err
	}
	b, err := d.circulation.Return(ctx, isbn)
	if err != nil {
		d.report(ctx, "return", err)
		return nil
	}
	d.printf("Book returned: %s. Copies available: %d.\n", b.Title, b.Quantity)
	return nil
}

func (d *Dashboard) register(ctx context.Context) error {
	var book catalog.Book
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"\nEnter ISBN: ", &book.ISBN},
		{"Enter title: ", &book.Title},
		{"Enter author: ", &book.Author},
		{"Enter genre: ", &book.Genre},
	}
	for _, f := range fields {
		v, err := d.ask(ctx, f.prompt)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	var ok bool
	var err error
	if book.Year, ok, err = d.askInt(ctx, "Enter year: ", "Year"); err != nil || !ok {
		return err
	}
	if book.Quantity, ok, err = d.askInt(ctx, "Enter quantity: ", "Quantity"); err != nil || !ok {
		return err
	}

	b, err := d.circulation.Register(ctx, book)
	if err != nil {
		d.report(ctx, "register", err)
		return nil
	}
	d.printf("Book registered: %s (ISBN %s).\n", b.Title, b.ISBN)
	return nil
}

func (d *Dashboard) askInt(ctx context.Context, prompt, name string) (int, bool, error) {
	v, err := d.ask(ctx, prompt)
	if err != nil {
		return 0, false, err
	}
	n, convErr := strconv.Atoi(v)
	if convErr != nil {
		d.printf("%s must be a whole number.\n", name)
		return 0, false, nil
	}
	return n, true, nil
}

// readLines feeds input lines to ask until input ends or done is closed. The
// last value sent carries io.EOF or the read error.
func (d *Dashboard) readLines(done <-chan struct{}) {
	send := func(l inputLine) bool {
		select {
		case d.lines <- l:
			return true
		case <-done:
			return false
		}
	}

	for d.in.Scan() {
		if !send(inputLine{text: d.in.Text()}) {
			return
		}
	}
	err := io.EOF
	if scanErr := d.in.Err(); scanErr != nil {
		err = fmt.Errorf("failed to read input: %w", scanErr)
	}
	send(inputLine{err: err})
}

// ask prints prompt and returns the next trimmed input line. It returns
// io.EOF when input is exhausted and ctx.Err() as soon as ctx is done, even
// while waiting for the user.
func (d *Dashboard) ask(ctx context.Context, prompt string) (string, error) {
	line, err := d.askRaw(ctx, prompt)
	return strings.TrimSpace(line), err
}

// askRaw is ask without trimming, for ISBNs which are matched exactly.
func (d *Dashboard) askRaw(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.printf("%s", prompt)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-d.lines:
		if !ok {
			return "", io.EOF
		}
		if l.err != nil {
			return "", l.err
		}
		return l.text, nil
	}
}

// report prints a user-facing message for err. Nothing reported here ends
// the session.
func (d *Dashboard) report(ctx context.Context, op string, err error) {
	d.logger.InfoContext(ctx, "operation failed", "operation", op, "error", err)

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		d.printf("No book with that ISBN exists in the library.\n")
	case errors.Is(err, catalog.ErrOutOfStock):
		d.printf("Sorry, that book is out of stock.\n")
	case errors.Is(err, catalog.ErrDuplicateISBN):
		d.printf("A book with that ISBN is already registered.\n")
	case errors.Is(err, catalog.ErrInvalidBook):
		d.printf("Invalid book details: %v\n", err)
	case errors.Is(err, store.ErrStorage):
		d.printf("The change could not be saved and was undone: %v\n", err)
	default:
		d.printf("Error: %v\n", err)
	}
}

func (d *Dashboard) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}

func endOfSession(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
