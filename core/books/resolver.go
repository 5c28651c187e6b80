// Package books maps natural-language book tokens to the book names of a
// loaded translation.
package books

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/versewatch/core/errors"
)

// maxBookTokens is the longest token sequence tried by Match
// ("acts of the apostles", "3 john", "songs of solomon").
const maxBookTokens = 5

var canonByLower = func() map[string]string {
	m := make(map[string]string, len(Canon))
	for _, b := range Canon {
		m[strings.ToLower(b.Name)] = b.Name
	}
	return m
}()

// Resolver resolves book tokens against the book names of one translation.
// It is immutable once built and safe for concurrent use.
type Resolver struct {
	// exact maps lower-cased translation names to themselves.
	exact map[string]string
	// canonical maps canon names to the translation's name for that book.
	canonical map[string]string
}

// NewResolver builds a Resolver for the given translation book names.
// Names that match a canon book (directly, by numeral spelling or by alias)
// become reachable through every rule; other names only match exactly.
func NewResolver(bookNames []string) *Resolver {
	r := &Resolver{
		exact:     make(map[string]string, len(bookNames)),
		canonical: make(map[string]string, len(bookNames)),
	}

	byCompact := make(map[string]string, len(Canon))
	for _, b := range Canon {
		byCompact[compact(b.Name)] = b.Name
	}

	for _, name := range bookNames {
		r.exact[strings.ToLower(name)] = name

		if canon, ok := byCompact[compact(name)]; ok {
			r.canonical[canon] = name
			continue
		}
		if names, ok := aliases[strings.ToLower(name)]; ok && len(names) == 1 {
			if _, taken := r.canonical[names[0]]; !taken {
				r.canonical[names[0]] = name
			}
		}
	}
	return r
}

// Books returns the number of books the resolver knows.
func (r *Resolver) Books() int {
	return len(r.exact)
}

// Resolve maps a complete token sequence to a translation book name.
// Precedence: exact name, numeral-prefixed form, then abbreviation or
// misspelling. Returns an error wrapping errors.ErrNotFound when nothing
// matches, or errors.ErrAmbiguous when an alias names several books.
func (r *Resolver) Resolve(tokens []string) (string, error) {
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(t)), ".")
		if t != "" {
			words = append(words, t)
		}
	}
	if len(words) == 0 {
		return "", &errors.NotFoundError{Resource: "book"}
	}
	phrase := strings.Join(words, " ")

	// 1. Exact, case-insensitive.
	if name, ok := r.exact[phrase]; ok {
		return name, nil
	}

	// 2. Numeral prefix plus base name.
	if n, ok := prefixes[words[0]]; ok && len(words) > 1 {
		base, ok := baseAliases[strings.Join(words[1:], " ")]
		if !ok {
			return "", errors.NewNotFound("book", phrase)
		}
		if words[0] == "i" && base == "John" {
			// "I John" is more often the pronoun than the epistle.
			return "", errors.NewNotFound("book", phrase)
		}
		return r.translationName(fmt.Sprintf("%d %s", n, base), phrase)
	}
	if n, rest, ok := splitCompactPrefix(words[0]); ok && len(words) == 1 {
		if base, ok := baseAliases[rest]; ok {
			return r.translationName(fmt.Sprintf("%d %s", n, base), phrase)
		}
	}

	// 3. Abbreviations, short forms, misspellings.
	if names, ok := aliases[phrase]; ok {
		if len(names) > 1 {
			return "", &errors.NotFoundError{Resource: "book", ID: phrase, Err: fmt.Errorf("%q matches %s: %w", phrase, strings.Join(names, ", "), errors.ErrAmbiguous)}
		}
		return r.translationName(names[0], phrase)
	}
	if base, ok := baseAliases[phrase]; ok && base != "John" {
		return "", &errors.NotFoundError{Resource: "book", ID: phrase, Err: fmt.Errorf("%q needs a numeral prefix: %w", phrase, errors.ErrAmbiguous)}
	}

	// Canon names missing from the translation's own spelling.
	if canon, ok := canonByLower[phrase]; ok {
		return r.translationName(canon, phrase)
	}

	return "", errors.NewNotFound("book", phrase)
}

// Match finds the longest book name at the start of tokens. It returns the
// book and the number of tokens consumed. consumed is zero when no book
// matched; err then distinguishes an ambiguous token from plain absence.
func (r *Resolver) Match(tokens []string) (book string, consumed int, err error) {
	limit := min(len(tokens), maxBookTokens)
	var firstErr error
	for n := limit; n >= 1; n-- {
		name, err := r.Resolve(tokens[:n])
		if err == nil {
			return name, n, nil
		}
		if firstErr == nil && errors.Is(err, errors.ErrAmbiguous) {
			firstErr = err
		}
	}
	if firstErr != nil {
		return "", 0, firstErr
	}
	return "", 0, &errors.NotFoundError{Resource: "book"}
}

// translationName maps a canon name to the translation's spelling.
func (r *Resolver) translationName(canon, phrase string) (string, error) {
	if name, ok := r.canonical[canon]; ok {
		return name, nil
	}
	if name, ok := r.exact[strings.ToLower(canon)]; ok {
		return name, nil
	}
	return "", errors.NewNotFound("book", phrase)
}

// compact folds a book name for comparison across spellings:
// "I Corinthians", "1Corinthians" and "first corinthians" all become "1corinthians".
func compact(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) > 1 {
		if n, ok := prefixes[fields[0]]; ok {
			fields[0] = strconv.Itoa(n)
		}
	}
	s := strings.Join(fields, "")
	return strings.ReplaceAll(s, ".", "")
}

// splitCompactPrefix splits "1cor" into 1 and "cor".
func splitCompactPrefix(word string) (int, string, bool) {
	if len(word) < 2 || word[0] < '1' || word[0] > '3' {
		return 0, "", false
	}
	rest := word[1:]
	if rest[0] >= '0' && rest[0] <= '9' {
		return 0, "", false
	}
	return int(word[0] - '0'), rest, true
}
