// Package translation loads scripture translations and serves verse text
// from an in-memory cache.
//
// A Translation is immutable once built and may be shared between any
// number of goroutines. Documents are decoded from svjson or Zefania XML,
// optionally xz-compressed, and fetched through a Source: the bundled
// documents, a directory, an HTTP mirror or a SQLite database.
package translation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/FocuswithJustin/versewatch/core/errors"
)

// Translation is one loaded translation.
type Translation struct {
	// ID is the identifier the translation was loaded under.
	ID string `json:"id"`

	// Name is the human-readable name, defaulting to ID.
	Name string `json:"name"`

	// Hash is the BLAKE3 hex digest of the decoded document.
	Hash string `json:"hash"`

	books []*Book
	index map[string]*Book
	count int
}

// Book is one book of a translation.
type Book struct {
	Name string
	// Order is the 1-based position in the document.
	Order int

	chapters map[int]*Chapter
	numbers  []int
}

// Chapter is one chapter of a book.
type Chapter struct {
	Number int

	verses  map[int]string
	numbers []int
}

// Books returns the book names in document order.
func (t *Translation) Books() []string {
	names := make([]string, len(t.books))
	for i, b := range t.books {
		names[i] = b.Name
	}
	return names
}

// HasBook reports whether the translation contains the named book.
// The comparison is case-insensitive.
func (t *Translation) HasBook(name string) bool {
	_, ok := t.index[strings.ToLower(name)]
	return ok
}

// Book returns the named book.
func (t *Translation) Book(name string) (*Book, error) {
	b, ok := t.index[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewNotFound("book", name)
	}
	return b, nil
}

// VerseCount returns the number of verses in the translation.
func (t *Translation) VerseCount() int {
	return t.count
}

// Chapters returns the chapter numbers of a book in ascending order.
func (t *Translation) Chapters(book string) ([]int, error) {
	b, err := t.Book(book)
	if err != nil {
		return nil, err
	}
	return slices.Clone(b.numbers), nil
}

// Chapter returns one chapter of a book.
func (t *Translation) Chapter(book string, chapter int) (*Chapter, error) {
	b, err := t.Book(book)
	if err != nil {
		return nil, err
	}
	return b.Chapter(chapter)
}

// Verses returns the verse numbers of a chapter in ascending order.
func (t *Translation) Verses(book string, chapter int) ([]int, error) {
	c, err := t.Chapter(book, chapter)
	if err != nil {
		return nil, err
	}
	return slices.Clone(c.numbers), nil
}

// Lookup returns the text of one verse.
func (t *Translation) Lookup(book string, chapter, verse int) (string, error) {
	b, err := t.Book(book)
	if err != nil {
		return "", err
	}
	c, err := b.Chapter(chapter)
	if err != nil {
		return "", err
	}
	text, ok := c.verses[verse]
	if !ok {
		return "", errors.NewVerseNotFound(b.Name, chapter, verse)
	}
	return text, nil
}

// Each calls fn for every verse in document order until fn returns false.
func (t *Translation) Each(fn func(book string, chapter, verse int, text string) bool) {
	for _, b := range t.books {
		for _, cn := range b.numbers {
			c := b.chapters[cn]
			for _, vn := range c.numbers {
				if !fn(b.Name, cn, vn, c.verses[vn]) {
					return
				}
			}
		}
	}
}

// Chapter returns the numbered chapter.
func (b *Book) Chapter(number int) (*Chapter, error) {
	c, ok := b.chapters[number]
	if !ok {
		return nil, errors.NewChapterNotFound(b.Name, number)
	}
	return c, nil
}

// Chapters returns the chapter numbers in ascending order.
func (b *Book) Chapters() []int {
	return slices.Clone(b.numbers)
}

// Verses returns the verse numbers in ascending order.
func (c *Chapter) Verses() []int {
	return slices.Clone(c.numbers)
}

// Text returns the text of a verse.
func (c *Chapter) Text(verse int) (string, bool) {
	text, ok := c.verses[verse]
	return text, ok
}

// Builder assembles a Translation verse by verse. Decoders and the SQLite
// source feed it; Build validates the result.
type Builder struct {
	id, name, hash string
	books          []*Book
	index          map[string]*Book
	err            error
	format, origin string
}

// NewBuilder starts a translation with the given identifier and name.
func NewBuilder(id, name string) *Builder {
	return &Builder{
		id:     id,
		name:   name,
		index:  make(map[string]*Book),
		format: "translation",
		origin: id,
	}
}

// SetHash records the content digest.
func (b *Builder) SetHash(hash string) *Builder {
	b.hash = hash
	return b
}

// SetName sets the display name if one was not known at construction.
func (b *Builder) SetName(name string) *Builder {
	if name != "" {
		b.name = name
	}
	return b
}

// describe sets the format and origin used in validation errors.
func (b *Builder) describe(format, origin string) *Builder {
	b.format, b.origin = format, origin
	return b
}

// AddBook declares a book. Books are ordered by first declaration; a book
// declared without verses fails Build.
func (b *Builder) AddBook(name string) *Builder {
	if b.err != nil {
		return b
	}
	name = strings.TrimSpace(name)
	if name == "" {
		b.fail("empty book name")
		return b
	}
	key := strings.ToLower(name)
	if _, ok := b.index[key]; ok {
		return b
	}
	book := &Book{Name: name, Order: len(b.books) + 1, chapters: make(map[int]*Chapter)}
	b.books = append(b.books, book)
	b.index[key] = book
	return b
}

// AddChapter declares a chapter of a book. A chapter declared without
// verses fails Build.
func (b *Builder) AddChapter(book string, chapter int) *Builder {
	if b.err != nil {
		return b
	}
	b.AddBook(book)
	if b.err != nil {
		return b
	}
	if chapter <= 0 {
		b.fail(fmt.Sprintf("%s: chapter %d is not a positive number", book, chapter))
		return b
	}
	bk := b.index[strings.ToLower(strings.TrimSpace(book))]
	if _, ok := bk.chapters[chapter]; !ok {
		bk.chapters[chapter] = &Chapter{Number: chapter, verses: make(map[int]string)}
	}
	return b
}

// AddVerse records one verse. Text is trimmed; empty text fails Build.
func (b *Builder) AddVerse(book string, chapter, verse int, text string) *Builder {
	b.AddChapter(book, chapter)
	if b.err != nil {
		return b
	}
	if verse <= 0 {
		b.fail(fmt.Sprintf("%s %d: verse %d is not a positive number", book, chapter, verse))
		return b
	}
	text = strings.TrimSpace(text)
	if text == "" {
		b.fail(fmt.Sprintf("%s %d:%d: empty verse text", book, chapter, verse))
		return b
	}
	bk := b.index[strings.ToLower(strings.TrimSpace(book))]
	bk.chapters[chapter].verses[verse] = text
	return b
}

// Failf aborts the build with a Malformed error.
func (b *Builder) Failf(format string, args ...any) *Builder {
	if b.err == nil {
		b.fail(fmt.Sprintf(format, args...))
	}
	return b
}

func (b *Builder) fail(msg string) {
	b.err = errors.NewParse(b.format, b.origin, msg)
}

// Build validates and returns the Translation. Every failure wraps
// errors.ErrMalformed.
func (b *Builder) Build() (*Translation, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.books) == 0 {
		return nil, errors.NewParse(b.format, b.origin, "no books")
	}

	count := 0
	for _, bk := range b.books {
		if len(bk.chapters) == 0 {
			return nil, errors.NewParse(b.format, b.origin, fmt.Sprintf("%s: book has no chapters", bk.Name))
		}
		bk.numbers = make([]int, 0, len(bk.chapters))
		for n, c := range bk.chapters {
			if len(c.verses) == 0 {
				return nil, errors.NewParse(b.format, b.origin, fmt.Sprintf("%s %d: chapter has no verses", bk.Name, n))
			}
			c.numbers = make([]int, 0, len(c.verses))
			for v := range c.verses {
				c.numbers = append(c.numbers, v)
			}
			slices.Sort(c.numbers)
			count += len(c.numbers)
			bk.numbers = append(bk.numbers, n)
		}
		slices.Sort(bk.numbers)
	}

	name := b.name
	if name == "" {
		name = b.id
	}
	t := &Translation{
		ID:    b.id,
		Name:  name,
		Hash:  b.hash,
		books: b.books,
		index: b.index,
		count: count,
	}
	// The builder must not mutate a built translation.
	b.books, b.index, b.err = nil, make(map[string]*Book), errors.NewParse(b.format, b.origin, "builder already used")
	return t, nil
}
