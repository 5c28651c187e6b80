package scripture

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// displayGrammar is the participle grammar for display strings.
// Examples: "Psalms 23", "Psalms 23:1", "1 Corinthians 13:4-7", "Song of Solomon 2:1"
//
//nolint:govet // participle grammar tags are not standard struct tags
type displayGrammar struct {
	BookPrefix string        `parser:"@Int?"`
	BookWords  []string      `parser:"@Word+"`
	Chapter    int           `parser:"@Int"`
	VerseRef   *displayVerse `parser:"( ':' @@ )?"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type displayVerse struct {
	Verse int  `parser:"@Int"`
	Range *int `parser:"( '-' @Int )?"`
}

var displayLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `[A-Za-z][A-Za-z']*\.?`},
	{Name: "Punct", Pattern: `[:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var displayParser = participle.MustBuild[displayGrammar](
	participle.Lexer(displayLexer),
	participle.Elide("Whitespace"),
)

// ParseDisplay parses a display string into a Candidate with KindExplicit.
// The book is returned as written; canonicalising it is the caller's job.
// A chapter without a verse selects the whole chapter (EndVerse = ChapterEnd).
func ParseDisplay(s string) (Candidate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Candidate{}, fmt.Errorf("empty reference string")
	}
	normalized := strings.NewReplacer("–", "-", "—", "-").Replace(s)

	parsed, err := displayParser.ParseString("", normalized)
	if err != nil {
		return Candidate{}, fmt.Errorf("invalid reference format: %q: %w", s, err)
	}

	words := make([]string, len(parsed.BookWords))
	for i, w := range parsed.BookWords {
		words[i] = strings.TrimSuffix(w, ".")
	}
	book := strings.Join(words, " ")
	if parsed.BookPrefix != "" {
		book = parsed.BookPrefix + " " + book
	}

	c := Candidate{
		Book:       book,
		Chapter:    parsed.Chapter,
		StartVerse: 1,
		EndVerse:   ChapterEnd,
		Span:       s,
		Kind:       KindExplicit,
	}
	if parsed.VerseRef != nil {
		c.StartVerse = parsed.VerseRef.Verse
		c.EndVerse = parsed.VerseRef.Verse
		if parsed.VerseRef.Range != nil {
			c.EndVerse = *parsed.VerseRef.Range
		}
	}
	if c.Chapter <= 0 || c.StartVerse <= 0 {
		return Candidate{}, fmt.Errorf("invalid reference format: %q: chapter and verse must be positive", s)
	}
	return c, nil
}
