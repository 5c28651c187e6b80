package books

import (
	"strings"
	"testing"

	"github.com/FocuswithJustin/versewatch/core/errors"
)

func canonNames() []string {
	names := make([]string, len(Canon))
	for i, b := range Canon {
		names[i] = b.Name
	}
	return names
}

func TestCanonOrder(t *testing.T) {
	if len(Canon) != 66 {
		t.Fatalf("len(Canon) = %d, want 66", len(Canon))
	}
	for i, b := range Canon {
		if b.Order != i+1 {
			t.Errorf("Canon[%d].Order = %d, want %d", i, b.Order, i+1)
		}
		if (b.Number == 0) != (b.Base == "") {
			t.Errorf("Canon[%d] %q has inconsistent Base/Number", i, b.Name)
		}
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver(canonNames())

	tests := []struct {
		input string
		want  string
	}{
		// exact
		{"Romans", "Romans"},
		{"psalms", "Psalms"},
		{"1 corinthians", "1 Corinthians"},
		{"song of solomon", "Song of Solomon"},
		// numeral prefixes
		{"second timothy", "2 Timothy"},
		{"2 Timothy", "2 Timothy"},
		{"first corinthians", "1 Corinthians"},
		{"1st john", "1 John"},
		{"third john", "3 John"},
		{"ii kings", "2 Kings"},
		{"two peter", "2 Peter"},
		{"1 cor", "1 Corinthians"},
		{"1cor", "1 Corinthians"},
		// abbreviations and misspellings
		{"psalm", "Psalms"},
		{"palms", "Psalms"},
		{"revelations", "Revelation"},
		{"gen.", "Genesis"},
		{"phillipians", "Philippians"},
		{"song of songs", "Song of Solomon"},
		{"acts of the apostles", "Acts"},
		{"roman", "Romans"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := r.Resolve(strings.Fields(tt.input))
			if err != nil {
				t.Fatalf("Resolve(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveFailures(t *testing.T) {
	r := NewResolver(canonNames())

	tests := []struct {
		input         string
		wantAmbiguous bool
	}{
		{"abaco", false},
		{"three things", false},
		{"i john", false},
		{"4 kings", false},
		{"phil", true},
		{"jud", true},
		{"corinthians", true},
		{"timothy", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := r.Resolve(strings.Fields(tt.input))
			if err == nil {
				t.Fatalf("Resolve(%q) expected error", tt.input)
			}
			if !errors.Is(err, errors.ErrNotFound) {
				t.Errorf("errors.Is(%v, ErrNotFound) = false", err)
			}
			if got := errors.Is(err, errors.ErrAmbiguous); got != tt.wantAmbiguous {
				t.Errorf("Resolve(%q) ambiguous = %v, want %v", tt.input, got, tt.wantAmbiguous)
			}
		})
	}

	if _, err := r.Resolve(nil); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Resolve(nil) = %v, want ErrNotFound", err)
	}
}

func TestResolveRestrictedToTranslation(t *testing.T) {
	r := NewResolver([]string{"Genesis", "Psalms", "I Corinthians", "Canticles"})

	tests := []struct {
		input string
		want  string
		found bool
	}{
		{"genesis", "Genesis", true},
		{"1 corinthians", "I Corinthians", true},
		{"first corinthians", "I Corinthians", true},
		{"song of solomon", "Canticles", true},
		{"romans", "", false},
		{"2 corinthians", "", false},
	}

	for _, tt := range tests {
		got, err := r.Resolve(strings.Fields(tt.input))
		if tt.found {
			if err != nil || got != tt.want {
				t.Errorf("Resolve(%q) = %q, %v, want %q", tt.input, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, errors.ErrNotFound) {
			t.Errorf("Resolve(%q) = %q, %v, want ErrNotFound", tt.input, got, err)
		}
	}
	if r.Books() != 4 {
		t.Errorf("Books() = %d, want 4", r.Books())
	}
}

func TestMatch(t *testing.T) {
	r := NewResolver(canonNames())

	tests := []struct {
		input        string
		wantBook     string
		wantConsumed int
	}{
		{"2 timothy 4 : 7", "2 Timothy", 2},
		{"romans 4 : 17", "Romans", 1},
		{"song of solomon 2 1", "Song of Solomon", 3},
		{"acts of the apostles 2", "Acts", 4},
		{"acts 5 : 1", "Acts", 1},
		{"three things to note", "", 0},
		{"abaco , chapter two", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			book, n, err := r.Match(strings.Fields(tt.input))
			if book != tt.wantBook || n != tt.wantConsumed {
				t.Errorf("Match(%q) = %q, %d, %v; want %q, %d", tt.input, book, n, err, tt.wantBook, tt.wantConsumed)
			}
			if tt.wantConsumed == 0 && !errors.Is(err, errors.ErrNotFound) {
				t.Errorf("Match(%q) err = %v, want ErrNotFound", tt.input, err)
			}
		})
	}

	_, n, err := r.Match([]string{"phil", "4", "13"})
	if n != 0 || !errors.Is(err, errors.ErrAmbiguous) {
		t.Errorf("Match(phil 4 13) = %d, %v; want ambiguous", n, err)
	}
}
