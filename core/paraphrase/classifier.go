// Package paraphrase flags transcript fragments that quote or closely
// paraphrase a verse without citing it.
//
// Each translation gets a lexical index of word-bigram shingles, built on
// first use. A fragment's shingles select candidate verses from the index;
// candidates are scored by the overlap coefficient of the two shingle sets
// and kept when the score reaches the threshold. The match is lexical only.
package paraphrase

import (
	"cmp"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/versewatch/core/scripture"
	"github.com/FocuswithJustin/versewatch/core/translation"
)

// Default tuning.
const (
	DefaultThreshold     = 0.6
	DefaultMinShared     = 4
	DefaultMaxCandidates = 64
	DefaultMaxResults    = 3
	DefaultMaxPostings   = 512
)

// Options tunes a Classifier. Zero fields take the defaults.
type Options struct {
	// Threshold is the minimum overlap coefficient, in (0, 1].
	Threshold float64 `yaml:"threshold"`

	// MinShared is the minimum number of shingles a verse must share
	// with the fragment.
	MinShared int `yaml:"min_shared"`

	// MaxCandidates caps the verses scored per fragment.
	MaxCandidates int `yaml:"max_candidates"`

	// MaxResults caps the references returned per fragment.
	MaxResults int `yaml:"max_results"`

	// MaxPostings caps the verses a shingle may select. More frequent
	// shingles still count toward scores.
	MaxPostings int `yaml:"max_postings"`
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 || o.Threshold > 1 {
		o.Threshold = DefaultThreshold
	}
	if o.MinShared <= 0 {
		o.MinShared = DefaultMinShared
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = DefaultMaxCandidates
	}
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MaxPostings <= 0 {
		o.MaxPostings = DefaultMaxPostings
	}
	return o
}

// Classifier matches fragments against translation indexes. It is safe for
// concurrent use.
type Classifier struct {
	opts Options

	group   singleflight.Group
	mu      sync.RWMutex
	indexes map[string]*index
}

// NewClassifier returns a Classifier with the given options.
func NewClassifier(opts Options) *Classifier {
	return &Classifier{
		opts:    opts.withDefaults(),
		indexes: make(map[string]*index),
	}
}

// Options returns the effective options.
func (c *Classifier) Options() Options {
	return c.opts
}

// Classify returns the verses of tr that fragment paraphrases, best first.
// Verses covered by any of exclude are skipped.
func (c *Classifier) Classify(fragment string, tr *translation.Translation, exclude ...scripture.Reference) []scripture.Reference {
	if tr == nil {
		return nil
	}
	words := normalize(fragment)
	if len(words) <= c.opts.MinShared {
		return nil
	}

	idx := c.index(tr)
	ids, total := idx.lookup(words)
	if len(ids) < c.opts.MinShared {
		return nil
	}

	hits := make(map[int32]int)
	for _, id := range ids {
		for _, e := range idx.postings[id] {
			hits[e]++
		}
	}

	type scored struct {
		entry  int32
		hits   int
		shared int
		score  float64
	}
	cands := make([]scored, 0, len(hits))
	for e, h := range hits {
		cands = append(cands, scored{entry: e, hits: h})
	}
	slices.SortFunc(cands, func(a, b scored) int {
		if a.hits != b.hits {
			return cmp.Compare(b.hits, a.hits)
		}
		return cmp.Compare(a.entry, b.entry)
	})
	if len(cands) > c.opts.MaxCandidates {
		cands = cands[:c.opts.MaxCandidates]
	}

	kept := cands[:0]
	for _, s := range cands {
		e := &idx.entries[s.entry]
		if excluded(e, exclude) {
			continue
		}
		s.shared = shared(ids, e.shingles)
		if s.shared < c.opts.MinShared {
			continue
		}
		s.score = float64(s.shared) / float64(min(total, len(e.shingles)))
		if s.score >= c.opts.Threshold {
			kept = append(kept, s)
		}
	}
	slices.SortFunc(kept, func(a, b scored) int {
		if a.score != b.score {
			return cmp.Compare(b.score, a.score)
		}
		return cmp.Compare(a.entry, b.entry)
	})
	if len(kept) > c.opts.MaxResults {
		kept = kept[:c.opts.MaxResults]
	}

	refs := make([]scripture.Reference, 0, len(kept))
	for _, s := range kept {
		e := &idx.entries[s.entry]
		refs = append(refs, scripture.Reference{
			Candidate: scripture.Candidate{
				Book:       e.book,
				Chapter:    e.chapter,
				StartVerse: e.verse,
				EndVerse:   e.verse,
			},
			TranslationID: tr.ID,
			Display:       scripture.FormatDisplay(e.book, e.chapter, e.verse, e.verse),
			Text:          e.text,
			Verses:        []scripture.Verse{{Number: e.verse, Text: e.text}},
			Source:        scripture.SourceParaphrase,
			Score:         s.score,
		})
	}
	return refs
}

// Forget drops the index of a translation.
func (c *Classifier) Forget(tr *translation.Translation) {
	c.mu.Lock()
	delete(c.indexes, indexKey(tr))
	c.mu.Unlock()
}

func (c *Classifier) index(tr *translation.Translation) *index {
	key := indexKey(tr)
	c.mu.RLock()
	idx, ok := c.indexes[key]
	c.mu.RUnlock()
	if ok {
		return idx
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		idx, ok := c.indexes[key]
		c.mu.RUnlock()
		if ok {
			return idx, nil
		}
		idx = buildIndex(tr, c.opts.MaxPostings)
		c.mu.Lock()
		c.indexes[key] = idx
		c.mu.Unlock()
		return idx, nil
	})
	return v.(*index)
}

func indexKey(tr *translation.Translation) string {
	return tr.ID + "@" + tr.Hash
}

func excluded(e *entry, refs []scripture.Reference) bool {
	for _, r := range refs {
		if r.Book == e.book && r.Chapter == e.chapter && e.verse >= r.StartVerse && e.verse <= max(r.EndVerse, r.StartVerse) {
			return true
		}
	}
	return false
}
