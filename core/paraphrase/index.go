package paraphrase

import (
	"slices"
	"strings"

	"github.com/FocuswithJustin/versewatch/core/detect"
	"github.com/FocuswithJustin/versewatch/core/translation"
)

// entry is one indexed verse.
type entry struct {
	book    string
	chapter int
	verse   int
	text    string
	// shingles holds the verse's distinct shingle ids, ascending.
	shingles []uint32
}

// index maps word-bigram shingles to the verses containing them.
//
// A shingle whose posting list would exceed the posting limit is marked
// common: it still counts toward scores but no longer selects candidates.
type index struct {
	vocab    map[string]uint32
	postings [][]int32
	common   []bool
	entries  []entry
}

func buildIndex(tr *translation.Translation, maxPostings int) *index {
	idx := &index{vocab: make(map[string]uint32)}
	tr.Each(func(book string, chapter, verse int, text string) bool {
		e := entry{book: book, chapter: chapter, verse: verse, text: text}
		n := int32(len(idx.entries))
		for _, sh := range shingles(text) {
			id, ok := idx.vocab[sh]
			if !ok {
				id = uint32(len(idx.postings))
				idx.vocab[sh] = id
				idx.postings = append(idx.postings, nil)
				idx.common = append(idx.common, false)
			}
			e.shingles = append(e.shingles, id)
			if idx.common[id] {
				continue
			}
			if len(idx.postings[id]) >= maxPostings {
				idx.common[id] = true
				idx.postings[id] = nil
				continue
			}
			idx.postings[id] = append(idx.postings[id], n)
		}
		slices.Sort(e.shingles)
		idx.entries = append(idx.entries, e)
		return true
	})
	return idx
}

// lookup returns the ids of the known shingles of a fragment and the
// number of distinct shingles it has in total.
func (idx *index) lookup(words []string) (ids []uint32, total int) {
	seen := make(map[string]bool)
	for i := 0; i+1 < len(words); i++ {
		sh := words[i] + " " + words[i+1]
		if seen[sh] {
			continue
		}
		seen[sh] = true
		if id, ok := idx.vocab[sh]; ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, len(seen)
}

// shared counts the ids common to two ascending id lists.
func shared(a, b []uint32) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}

// shingles returns the distinct word bigrams of text.
func shingles(text string) []string {
	words := normalize(text)
	seen := make(map[string]bool, len(words))
	var out []string
	for i := 0; i+1 < len(words); i++ {
		sh := words[i] + " " + words[i+1]
		if !seen[sh] {
			seen[sh] = true
			out = append(out, sh)
		}
	}
	return out
}

// normalize returns the folded words of text, apostrophes removed, so that
// transcript spelling and verse spelling compare equal.
func normalize(text string) []string {
	var words []string
	for _, t := range detect.Tokenize(text) {
		if t.Type != detect.TokenWord {
			continue
		}
		w := strings.ReplaceAll(t.Norm, "'", "")
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}
