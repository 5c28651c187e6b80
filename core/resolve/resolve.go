// Package resolve turns detected candidates into references carrying verse
// text from a loaded translation.
package resolve

import (
	"strings"

	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/core/scripture"
	"github.com/FocuswithJustin/versewatch/core/translation"
)

// Resolve looks up the verses of c in tr.
//
// An end verse before the start verse is treated as a single verse. Verses
// missing inside the range are skipped; the display range ends at the last
// verse actually included, and scripture.ChapterEnd runs to the end of the
// chapter. The start verse itself must exist.
//
// Resolve does not modify c or tr and returns the same Reference for the
// same inputs.
func Resolve(c scripture.Candidate, tr *translation.Translation) (scripture.Reference, error) {
	if tr == nil {
		return scripture.Reference{}, errors.NewValidation("translation", "nil translation")
	}
	book, err := tr.Book(c.Book)
	if err != nil {
		return scripture.Reference{}, err
	}
	chapter, err := book.Chapter(c.Chapter)
	if err != nil {
		return scripture.Reference{}, err
	}
	if _, ok := chapter.Text(c.StartVerse); !ok {
		return scripture.Reference{}, errors.NewVerseNotFound(book.Name, c.Chapter, c.StartVerse)
	}

	end := c.EndVerse
	if end < c.StartVerse {
		end = c.StartVerse
	}

	var verses []scripture.Verse
	for _, n := range chapter.Verses() {
		if n < c.StartVerse {
			continue
		}
		if n > end {
			break
		}
		text, _ := chapter.Text(n)
		verses = append(verses, scripture.Verse{Number: n, Text: text})
	}

	texts := make([]string, len(verses))
	for i, v := range verses {
		texts[i] = v.Text
	}
	last := verses[len(verses)-1].Number

	ref := scripture.Reference{
		Candidate:     c,
		TranslationID: tr.ID,
		Text:          strings.Join(texts, " "),
		Verses:        verses,
		Source:        scripture.SourceDirect,
	}
	ref.Book = book.Name
	ref.EndVerse = last
	ref.Display = scripture.FormatDisplay(book.Name, c.Chapter, c.StartVerse, last)
	return ref, nil
}
