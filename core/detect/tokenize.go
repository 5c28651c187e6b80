// Package detect finds scripture citations in transcript fragments.
//
// A fragment is tokenized, then scanned left to right for three patterns:
// explicit citations naming a book, "chapter N verse M" continuations that
// borrow the book from the session Context, and "verse N" continuations
// that borrow book and chapter. Bare numbers never produce a candidate.
package detect

import (
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2/lexer"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TokenType classifies a token.
type TokenType int

// Token types.
const (
	TokenWord TokenType = iota
	TokenNumber
	TokenOrdinal
	TokenColon
	TokenDash
	TokenPunct
)

func (t TokenType) String() string {
	switch t {
	case TokenWord:
		return "Word"
	case TokenNumber:
		return "Number"
	case TokenOrdinal:
		return "Ordinal"
	case TokenColon:
		return "Colon"
	case TokenDash:
		return "Dash"
	default:
		return "Punct"
	}
}

// Token is one lexeme of a fragment.
type Token struct {
	Type TokenType
	// Text is the token as written.
	Text string
	// Norm is Text lower-cased with diacritics removed.
	Norm string
	// Offset and End delimit Text in the fragment, in bytes.
	Offset, End int
}

// IsWord reports whether the token is a word with the given folded form.
func (t Token) IsWord(norm ...string) bool {
	if t.Type != TokenWord {
		return false
	}
	for _, n := range norm {
		if t.Norm == n {
			return true
		}
	}
	return len(norm) == 0
}

// Capitalized reports whether the token starts with an upper-case letter.
func (t Token) Capitalized() bool {
	for _, r := range t.Text {
		return unicode.IsUpper(r)
	}
	return false
}

var fragmentLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ordinal", Pattern: `[0-9]+(?:st|nd|rd|th)\b`},
	{Name: "Number", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `[\p{L}\p{M}][\p{L}\p{M}'’]*`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Dash", Pattern: `[-–—]`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Punct", Pattern: `[^\s]`},
})

var lexerTypes = func() map[lexer.TokenType]TokenType {
	sym := fragmentLexer.Symbols()
	return map[lexer.TokenType]TokenType{
		sym["Ordinal"]: TokenOrdinal,
		sym["Number"]:  TokenNumber,
		sym["Word"]:    TokenWord,
		sym["Colon"]:   TokenColon,
		sym["Dash"]:    TokenDash,
		sym["Punct"]:   TokenPunct,
	}
}()

var whitespaceType = fragmentLexer.Symbols()["Whitespace"]

// Tokenize splits a fragment into tokens, dropping whitespace.
func Tokenize(text string) []Token {
	lex, err := fragmentLexer.LexString("", text)
	if err != nil {
		return nil
	}
	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		// Punct matches any non-space rune, so the lexer cannot stall.
		return nil
	}

	tokens := make([]Token, 0, len(raw))
	for _, t := range raw {
		if t.EOF() || t.Type == whitespaceType {
			continue
		}
		typ, ok := lexerTypes[t.Type]
		if !ok {
			continue
		}
		tokens = append(tokens, Token{
			Type:   typ,
			Text:   t.Value,
			Norm:   Fold(t.Value),
			Offset: t.Pos.Offset,
			End:    t.Pos.Offset + len(t.Value),
		})
	}
	return tokens
}

// Fold lower-cases s, strips combining marks and normalizes curly
// apostrophes, so "Génesis" and "genesis" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.ReplaceAll(folded, "’", "'"))
}
