package scripture

import (
	"strconv"
	"strings"
)

// Kind records which detection rule produced a Candidate.
type Kind string

// Detection kinds.
const (
	// KindExplicit is a citation naming its book and chapter.
	KindExplicit Kind = "explicit"

	// KindContextChapterVerse is "chapter N verse M" resolved against the session book.
	KindContextChapterVerse Kind = "contextual-chapter-verse"

	// KindContextVerse is "verse N" resolved against the session book and chapter.
	KindContextVerse Kind = "contextual-verse-only"
)

// IsContextual returns true if the kind depends on session context.
func (k Kind) IsContextual() bool {
	return k == KindContextChapterVerse || k == KindContextVerse
}

// Source discriminates how a Reference was found.
type Source string

// Reference sources.
const (
	SourceDirect     Source = "direct"
	SourceParaphrase Source = "paraphrase"
)

// ChapterEnd is an end verse that runs to the last verse of the chapter.
const ChapterEnd = 1 << 30

// Candidate is a citation recognised in a fragment before resolution.
type Candidate struct {
	// Book is the canonical book name.
	Book string `json:"book"`

	// Chapter is the chapter number (1-indexed).
	Chapter int `json:"chapter"`

	// StartVerse is the first verse (1-indexed).
	StartVerse int `json:"startVerse"`

	// EndVerse equals StartVerse for a single verse.
	EndVerse int `json:"endVerse"`

	// Span is the raw matched text.
	Span string `json:"span,omitempty"`

	// Offset is the byte offset of Span within the fragment.
	Offset int `json:"offset"`

	// Kind is the rule that matched.
	Kind Kind `json:"kind"`
}

// IsRange returns true if the candidate spans more than one verse.
func (c Candidate) IsRange() bool {
	return c.EndVerse > c.StartVerse
}

// Verse is one verse of a resolved reference.
type Verse struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Reference is a Candidate resolved against a translation.
// It is a value; callers own it once returned.
type Reference struct {
	Candidate

	// TranslationID identifies the translation the text came from.
	TranslationID string `json:"translationId"`

	// Display is "Book Chapter:Verse" or "Book Chapter:Start-End".
	Display string `json:"displayRef"`

	// Text is the verse texts joined by single spaces, in verse order.
	Text string `json:"verseText"`

	// Verses holds the individual verses of Text.
	Verses []Verse `json:"verses,omitempty"`

	// Source is direct or paraphrase.
	Source Source `json:"source"`

	// TranscriptText is the fragment the reference was derived from.
	TranscriptText string `json:"transcriptText,omitempty"`

	// Score is the paraphrase similarity; zero for direct references.
	Score float64 `json:"score,omitempty"`
}

// Expand returns one single-verse Reference per verse. A single-verse
// reference expands to itself.
func (r Reference) Expand() []Reference {
	if len(r.Verses) <= 1 {
		return []Reference{r}
	}
	out := make([]Reference, 0, len(r.Verses))
	for _, v := range r.Verses {
		single := r
		single.StartVerse = v.Number
		single.EndVerse = v.Number
		single.Text = v.Text
		single.Verses = []Verse{v}
		single.Display = FormatDisplay(r.Book, r.Chapter, v.Number, v.Number)
		out = append(out, single)
	}
	return out
}

// FormatDisplay renders the canonical display string.
func FormatDisplay(book string, chapter, start, end int) string {
	var sb strings.Builder
	sb.WriteString(book)
	sb.WriteString(" ")
	sb.WriteString(strconv.Itoa(chapter))
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(start))
	if end > start {
		sb.WriteString("-")
		sb.WriteString(strconv.Itoa(end))
	}
	return sb.String()
}
