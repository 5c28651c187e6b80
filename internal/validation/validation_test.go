package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"kjv", false},
		{"web-2020", false},
		{"asv_1901.v2", false},
		{"", true},
		{".hidden", true},
		{"-flag", true},
		{"../etc/passwd", true},
		{"kjv/../../x", true},
		{"kjv web", true},
		{"kjv\x00", true},
		{"ρ", true},
		{strings.Repeat("a", MaxIDLength+1), true},
	}

	for _, tt := range tests {
		err := ValidateID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidID) {
			t.Errorf("ValidateID(%q) error = %v, want ErrInvalidID", tt.id, err)
		}
	}
}

func TestValidateFragment(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"empty", "", nil},
		{"citation", "Romans four verse seventeen", nil},
		{"unicode", "Génesis uno", nil},
		{"too long", strings.Repeat("x", MaxFragmentLength+1), ErrFragmentTooLong},
		{"invalid utf8", "verse \xff", ErrInvalidEncoding},
		{"null byte", "verse\x00two", ErrInvalidCharacter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFragment(tt.text)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateFragment() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFragment() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		path    string
		want    string
		wantErr error
	}{
		{"kjv.svjson", "kjv.svjson", nil},
		{"sub/../kjv.svjson", "kjv.svjson", nil},
		{"./kjv.xml", "kjv.xml", nil},
		{"..kjv.svjson", "..kjv.svjson", nil},
		{"", "", ErrEmptyPath},
		{"../kjv.svjson", "", ErrPathTraversal},
		{"/etc/passwd", "", ErrPathTraversal},
		{strings.Repeat("a/", MaxPathLength), "", ErrPathTooLong},
	}

	for _, tt := range tests {
		got, err := SanitizePath(base, tt.path)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SanitizePath(%q) error = %v, want %v", tt.path, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("SanitizePath(%q) unexpected error: %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestValidatePath(t *testing.T) {
	if err := ValidatePath("/var/lib/versewatch/translations"); err != nil {
		t.Errorf("ValidatePath() unexpected error: %v", err)
	}
	if err := ValidatePath(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("ValidatePath(\"\") error = %v, want ErrEmptyPath", err)
	}
	if err := ValidatePath("dir\nname"); !errors.Is(err, ErrInvalidCharacter) {
		t.Errorf("ValidatePath(newline) error = %v, want ErrInvalidCharacter", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want Format
	}{
		{"xz", []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00}, FormatXZ},
		{"sqlite", []byte("SQLite format 3\x00\x10\x00"), FormatSQLite},
		{"json", []byte(`{"books":{}}`), FormatJSON},
		{"json with bom", append([]byte{0xef, 0xbb, 0xbf}, []byte("\n {")...), FormatJSON},
		{"xml", []byte(`<?xml version="1.0"?><XMLBIBLE>`), FormatXML},
		{"empty", nil, FormatUnknown},
		{"text", []byte("In the beginning"), FormatUnknown},
	}

	for _, tt := range tests {
		if got := DetectFormat(tt.head); got != tt.want {
			t.Errorf("DetectFormat(%s) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
