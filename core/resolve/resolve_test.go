package resolve

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/core/scripture"
	"github.com/FocuswithJustin/versewatch/core/translation"
)

func loadKJV(t *testing.T) *translation.Translation {
	t.Helper()
	tr, err := translation.NewDefaultStore().Load(context.Background(), translation.DefaultID)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", translation.DefaultID, err)
	}
	return tr
}

func explicit(book string, chapter, start, end int) scripture.Candidate {
	return scripture.Candidate{Book: book, Chapter: chapter, StartVerse: start, EndVerse: end, Kind: scripture.KindExplicit}
}

func TestResolveSingleVerse(t *testing.T) {
	tr := loadKJV(t)

	ref, err := Resolve(explicit("Psalms", 23, 1, 1), tr)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if ref.Display != "Psalms 23:1" {
		t.Errorf("Display = %q, want %q", ref.Display, "Psalms 23:1")
	}
	if ref.Text != "The LORD is my shepherd; I shall not want." {
		t.Errorf("Text = %q", ref.Text)
	}
	if ref.TranslationID != "kjv" {
		t.Errorf("TranslationID = %q, want %q", ref.TranslationID, "kjv")
	}
	if ref.Source != scripture.SourceDirect {
		t.Errorf("Source = %q, want %q", ref.Source, scripture.SourceDirect)
	}
	if len(ref.Verses) != 1 {
		t.Errorf("len(Verses) = %d, want 1", len(ref.Verses))
	}
}

func TestResolveRanges(t *testing.T) {
	tr := loadKJV(t)

	tests := []struct {
		name        string
		cand        scripture.Candidate
		wantDisplay string
		wantVerses  []int
	}{
		{"contiguous", explicit("1 Corinthians", 13, 4, 7), "1 Corinthians 13:4-7", []int{4, 5, 6, 7}},
		{"end before start", explicit("Romans", 4, 20, 3), "Romans 4:20", []int{20}},
		{"gap skipped", explicit("Romans", 4, 9, 18), "Romans 4:9-18", []int{9, 10, 17, 18}},
		{"past chapter end", explicit("Romans", 4, 20, 99), "Romans 4:20-22", []int{20, 21, 22}},
		{"whole chapter", explicit("Psalms", 23, 1, scripture.ChapterEnd), "Psalms 23:1-6", []int{1, 2, 3, 4, 5, 6}},
		{"case-insensitive book", explicit("romans", 4, 17, 17), "Romans 4:17", []int{17}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := Resolve(tt.cand, tr)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if ref.Display != tt.wantDisplay {
				t.Errorf("Display = %q, want %q", ref.Display, tt.wantDisplay)
			}
			var got []int
			for _, v := range ref.Verses {
				got = append(got, v.Number)
			}
			if diff := cmp.Diff(tt.wantVerses, got); diff != "" {
				t.Errorf("verses mismatch (-want +got):\n%s", diff)
			}
			if ref.EndVerse != tt.wantVerses[len(tt.wantVerses)-1] {
				t.Errorf("EndVerse = %d, want %d", ref.EndVerse, tt.wantVerses[len(tt.wantVerses)-1])
			}
		})
	}
}

func TestResolveJoinsText(t *testing.T) {
	tr := loadKJV(t)

	ref, err := Resolve(explicit("John", 3, 16, 17), tr)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	v16, _ := tr.Lookup("John", 3, 16)
	v17, _ := tr.Lookup("John", 3, 17)
	if want := v16 + " " + v17; ref.Text != want {
		t.Errorf("Text = %q, want %q", ref.Text, want)
	}
}

func TestResolveErrors(t *testing.T) {
	tr := loadKJV(t)

	tests := []struct {
		name string
		cand scripture.Candidate
		want error
	}{
		{"missing book", explicit("Exodus", 1, 1, 1), errors.ErrNotFound},
		{"missing chapter", explicit("Psalms", 24, 1, 1), errors.ErrChapterNotFound},
		{"missing start verse", explicit("Romans", 4, 11, 17), errors.ErrVerseNotFound},
		{"verse zero", explicit("Romans", 4, 0, 2), errors.ErrVerseNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.cand, tr)
			if !errors.Is(err, tt.want) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Resolve(explicit("Romans", 4, 17, 17), nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Resolve(nil translation) error = %v, want %v", err, errors.ErrInvalidInput)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	tr := loadKJV(t)
	c := scripture.Candidate{
		Book: "Romans", Chapter: 4, StartVerse: 20, EndVerse: 22,
		Span: "verses twenty through twenty-two", Offset: 4, Kind: scripture.KindContextVerse,
	}

	first, err := Resolve(c, tr)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	second, err := Resolve(c, tr)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Resolve() not idempotent (-first +second):\n%s", diff)
	}
	if first.Span != c.Span || first.Kind != c.Kind || first.Offset != c.Offset {
		t.Errorf("candidate fields not carried: %+v", first.Candidate)
	}
}
