package detect

import (
	"github.com/FocuswithJustin/versewatch/core/books"
	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/core/scripture"
)

// maxBookWords bounds the words handed to the book resolver.
const maxBookWords = 5

var (
	verseWords   = []string{"verse", "verses"}
	rangeWords   = []string{"through", "thru", "to"}
	chapterWords = []string{"chapter"}
)

// connectives are capitalized words that may start a sentence directly
// before "chapter" without being a failed book name.
var connectives = map[string]bool{
	"and": true, "now": true, "in": true, "so": true, "then": true,
	"the": true, "turn": true, "look": true, "read": true, "go": true,
	"back": true, "also": true, "but": true, "next": true, "same": true,
	"that": true, "this": true, "over": true, "of": true, "on": true,
	"at": true, "to": true, "into": true, "from": true, "let's": true,
	"we": true, "i": true, "you": true, "see": true, "again": true,
	"well": true, "okay": true, "yes": true, "here": true, "there": true,
}

// Scanner yields the citation candidates of one fragment in left-to-right
// order. Like bufio.Scanner, call Scan until it returns false and read each
// result with Candidate.
//
// Scan takes the current session Context so that a contextual candidate
// sees the reference resolved just before it, including one earlier in the
// same fragment. The caller resolves each candidate and passes the updated
// Context to the next Scan.
type Scanner struct {
	resolver *books.Resolver
	text     string
	tokens   []Token
	pos      int

	// hasVerseToken is set when the fragment contains "verse" or a colon
	// joining a cited chapter to a verse, which licenses chapter-only
	// citations.
	hasVerseToken bool

	cand scripture.Candidate
}

// NewScanner prepares text for scanning with the given book resolver.
func NewScanner(text string, resolver *books.Resolver) *Scanner {
	s := &Scanner{
		resolver: resolver,
		text:     text,
		tokens:   Tokenize(text),
	}
	for k, t := range s.tokens {
		if s.citesVerse(k) || t.IsWord(verseWords...) || t.IsWord("v") {
			s.hasVerseToken = true
			break
		}
	}
	return s
}

// Tokens returns the fragment's tokens.
func (s *Scanner) Tokens() []Token {
	return s.tokens
}

// Candidate returns the candidate found by the last successful Scan.
func (s *Scanner) Candidate() scripture.Candidate {
	return s.cand
}

// Scan advances to the next candidate. Contextual patterns are matched
// against ctx and skipped when ctx lacks the book (or chapter) they need.
func (s *Scanner) Scan(ctx Context) bool {
	for s.pos < len(s.tokens) {
		i := s.pos

		if c, next, ok := s.explicit(i); ok {
			s.pos = next
			if c != nil {
				s.cand = *c
				return true
			}
			continue
		}

		if next, ok := s.abandoned(i); ok {
			s.pos = next
			continue
		}

		if s.tokens[i].IsWord(chapterWords...) {
			c, next, ok := s.contextChapterVerse(i, ctx)
			if next > i {
				s.pos = next
				if ok {
					s.cand = c
					return true
				}
				continue
			}
		}

		if s.tokens[i].IsWord(verseWords...) {
			c, next, ok := s.contextVerse(i, ctx)
			if next > i {
				s.pos = next
				if ok {
					s.cand = c
					return true
				}
				continue
			}
		}

		s.pos++
	}
	return false
}

// explicit matches [prefix] Book [","] ["chapter"] Chapter [","]
// [(":" | ["and"] "verse" | "v")] Verse [range] at i. matched reports
// whether a book and chapter were found; c is nil when the match is a
// chapter-only mention that must not be emitted.
func (s *Scanner) explicit(i int) (c *scripture.Candidate, next int, matched bool) {
	if s.resolver == nil {
		return nil, i, false
	}
	words := s.bookWords(i)
	if len(words) == 0 {
		return nil, i, false
	}
	book, consumed, err := s.resolver.Match(words)
	if err != nil || consumed == 0 {
		return nil, i, false
	}

	j := i + consumed
	j = s.skipComma(j)
	if s.word(j, chapterWords...) {
		j++
	}
	chapter, n, ok := ParseNumber(s.tokens, j)
	if !ok {
		return nil, i, false
	}
	j += n
	chapterEnd := j

	verseStart := s.verseClause(j)
	cand := scripture.Candidate{
		Book:    book,
		Chapter: chapter,
		Kind:    scripture.KindExplicit,
	}
	if verseStart >= 0 {
		if start, n, ok := ParseNumber(s.tokens, verseStart); ok {
			end, last := s.parseRange(verseStart+n, start)
			cand.StartVerse, cand.EndVerse = start, end
			s.setSpan(&cand, i, last)
			return &cand, last, true
		}
	}

	if !s.hasVerseToken {
		return nil, chapterEnd, true
	}
	cand.StartVerse, cand.EndVerse = 1, 1
	s.setSpan(&cand, i, chapterEnd)
	return &cand, chapterEnd, true
}

// verseClause returns the index of the verse number introduced after the
// chapter ending at j, or -1 when no verse clause follows.
func (s *Scanner) verseClause(j int) int {
	k := s.skipComma(j)
	switch {
	case k < len(s.tokens) && s.tokens[k].Type == TokenColon:
		return k + 1
	case s.word(k, "and") && s.word(k+1, verseWords...):
		return k + 2
	case s.word(k, verseWords...) || s.word(k, "v"):
		return k + 1
	case k == j && k < len(s.tokens) && s.tokens[k].Type == TokenNumber:
		// "John 3 16"
		return k
	}
	return -1
}

// abandoned matches a citation whose book did not resolve at i: a
// capitalized word that is not a connective, or an ambiguous book token,
// followed by [","] ["chapter"] Chapter and an optional verse clause. It
// returns the index past the citation, which yields no candidate and must
// not be read as a continuation of the previous reference.
func (s *Scanner) abandoned(i int) (next int, ok bool) {
	t := s.tokens[i]
	if t.Type != TokenWord || t.IsWord(verseWords...) || t.IsWord(chapterWords...) || t.IsWord("v", "and") {
		return i, false
	}
	if _, _, num := ParseNumber(s.tokens, i); num {
		return i, false
	}
	if !(t.Capitalized() && !connectives[t.Norm]) && !s.ambiguous(i) {
		return i, false
	}

	j := i + 1
	if j < len(s.tokens) && s.tokens[j].Type == TokenPunct && s.tokens[j].Text == "," {
		j++
	}
	if s.word(j, chapterWords...) {
		j++
	}
	_, n, ok := ParseNumber(s.tokens, j)
	if !ok {
		return i, false
	}
	j += n
	if v := s.verseClause(j); v >= 0 {
		if start, n, ok := ParseNumber(s.tokens, v); ok {
			_, last := s.parseRange(v+n, start)
			return last, true
		}
	}
	return j, true
}

func (s *Scanner) ambiguous(i int) bool {
	if s.resolver == nil {
		return false
	}
	words := s.bookWords(i)
	if len(words) == 0 {
		return false
	}
	_, _, err := s.resolver.Match(words)
	return errors.Is(err, errors.ErrAmbiguous)
}

// citesVerse reports whether the token at k is a colon between two
// numbers whose left number is the chapter of a named book, as in
// "John 3:16" but not "at 10:30".
func (s *Scanner) citesVerse(k int) bool {
	if s.resolver == nil || k < 2 || k+1 >= len(s.tokens) || s.tokens[k].Type != TokenColon ||
		s.tokens[k-1].Type != TokenNumber || s.tokens[k+1].Type != TokenNumber {
		return false
	}
	end := k - 1
	for end > 0 && (s.word(end-1, chapterWords...) || s.tokens[end-1].Text == "," || s.tokens[end-1].Text == ".") {
		end--
	}
	for start := max(0, end-maxBookWords); start < end; start++ {
		words := s.bookWords(start)
		if len(words) == 0 {
			continue
		}
		if _, consumed, err := s.resolver.Match(words); err == nil && start+consumed == end {
			return true
		}
	}
	return false
}

// contextChapterVerse matches "chapter" N [","] ["and"] "verse" N [range]
// at i. next is past the whole pattern when it matched, whether or not a
// candidate is produced; a suppressed span is consumed so its verse clause
// is not read again as a verse-only continuation.
func (s *Scanner) contextChapterVerse(i int, ctx Context) (scripture.Candidate, int, bool) {
	chapter, n, ok := ParseNumber(s.tokens, i+1)
	if !ok {
		return scripture.Candidate{}, i, false
	}
	j := s.skipComma(i + 1 + n)
	if s.word(j, "and") {
		j = s.skipComma(j + 1)
	}
	if !s.word(j, verseWords...) {
		return scripture.Candidate{}, i, false
	}
	start, n, ok := ParseNumber(s.tokens, j+1)
	if !ok {
		return scripture.Candidate{}, i, false
	}
	end, last := s.parseRange(j+1+n, start)

	if s.failedBookBefore(i) || ctx.Book == "" {
		return scripture.Candidate{}, last, false
	}
	cand := scripture.Candidate{
		Book:       ctx.Book,
		Chapter:    chapter,
		StartVerse: start,
		EndVerse:   end,
		Kind:       scripture.KindContextChapterVerse,
	}
	s.setSpan(&cand, i, last)
	return cand, last, true
}

// contextVerse matches "verse" N [range] at i.
func (s *Scanner) contextVerse(i int, ctx Context) (scripture.Candidate, int, bool) {
	start, n, ok := ParseNumber(s.tokens, i+1)
	if !ok {
		return scripture.Candidate{}, i, false
	}
	end, last := s.parseRange(i+1+n, start)
	if ctx.Book == "" || ctx.Chapter == 0 {
		return scripture.Candidate{}, last, false
	}
	cand := scripture.Candidate{
		Book:       ctx.Book,
		Chapter:    ctx.Chapter,
		StartVerse: start,
		EndVerse:   end,
		Kind:       scripture.KindContextVerse,
	}
	s.setSpan(&cand, i, last)
	return cand, last, true
}

// parseRange reads an optional (("-" | "through" | "thru" | "to") ["verse"] N)
// at j. It returns the end verse (start when absent) and the index past it.
func (s *Scanner) parseRange(j, start int) (end, next int) {
	k := j
	switch {
	case k < len(s.tokens) && s.tokens[k].Type == TokenDash:
		k++
	case s.word(k, rangeWords...):
		k++
	default:
		return start, j
	}
	if s.word(k, verseWords...) {
		k++
	}
	end, n, ok := ParseNumber(s.tokens, k)
	if !ok {
		return start, j
	}
	return end, k + n
}

// failedBookBefore reports whether the word before "chapter" at i, ignoring
// punctuation within the sentence, looks like a book name that did not
// resolve: a capitalized word that is not a sentence connective.
func (s *Scanner) failedBookBefore(i int) bool {
	for k := i - 1; k >= 0; k-- {
		t := s.tokens[k]
		if t.Type == TokenPunct && (t.Text == "." || t.Text == "!" || t.Text == "?") {
			return false
		}
		if t.Type == TokenPunct || t.Type == TokenDash {
			continue
		}
		if t.Type != TokenWord {
			return false
		}
		return t.Capitalized() && !connectives[t.Norm]
	}
	return false
}

// bookWords returns the folded words that may form a book name at i:
// consecutive words, numbers and ordinals, at most maxBookWords, with a
// trailing abbreviation period skipped.
func (s *Scanner) bookWords(i int) []string {
	t := s.tokens[i]
	if t.Type != TokenWord && t.Type != TokenNumber && t.Type != TokenOrdinal {
		return nil
	}
	var words []string
	for k := i; k < len(s.tokens) && len(words) < maxBookWords; k++ {
		t := s.tokens[k]
		if t.Type != TokenWord && t.Type != TokenNumber && t.Type != TokenOrdinal {
			break
		}
		words = append(words, t.Norm)
	}
	return words
}

func (s *Scanner) word(k int, norms ...string) bool {
	return k >= 0 && k < len(s.tokens) && s.tokens[k].IsWord(norms...)
}

func (s *Scanner) skipComma(k int) int {
	for k < len(s.tokens) && s.tokens[k].Type == TokenPunct && (s.tokens[k].Text == "," || s.tokens[k].Text == ".") {
		// A period only follows an abbreviated book ("Gen. 1:1") or ends
		// the sentence; in the latter case the next token will not parse.
		k++
	}
	return k
}

func (s *Scanner) setSpan(c *scripture.Candidate, first, next int) {
	c.Offset = s.tokens[first].Offset
	c.Span = s.text[c.Offset:s.tokens[next-1].End]
}

// Detect returns every candidate in text, assuming each one resolves and
// updates the context. Engines that resolve against a translation should
// drive a Scanner instead.
func Detect(text string, resolver *books.Resolver, ctx Context) ([]scripture.Candidate, Context) {
	var out []scripture.Candidate
	s := NewScanner(text, resolver)
	for s.Scan(ctx) {
		c := s.Candidate()
		out = append(out, c)
		ctx = Context{Book: c.Book, Chapter: c.Chapter, StartVerse: c.StartVerse, EndVerse: c.EndVerse}
	}
	return out, ctx
}
