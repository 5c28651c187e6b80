// Package validation checks identifiers, paths and text that arrive from
// outside the process: API requests, Kafka events, CLI arguments and
// translation directories.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Limits on external input (CWE-400).
const (
	// MaxDocumentSize is the largest translation document accepted (256 MB).
	MaxDocumentSize = 256 << 20
	// MaxIDLength is the longest translation or session identifier.
	MaxIDLength = 64
	// MaxFragmentLength is the longest transcript fragment in bytes.
	MaxFragmentLength = 64 << 10
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrPathTooLong      = errors.New("path too long")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrInvalidID        = errors.New("invalid identifier")
	ErrInvalidCharacter = errors.New("invalid character")
	ErrFragmentTooLong  = errors.New("fragment too long")
	ErrInvalidEncoding  = errors.New("text is not valid UTF-8")
)

// ValidateID checks a translation or session identifier. Identifiers are
// used as file names and URL path segments, so only ASCII letters, digits,
// '-', '_' and '.' are allowed, and they may not start with '.' or '-'.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidID, MaxIDLength)
	}
	if id[0] == '.' || id[0] == '-' {
		return fmt.Errorf("%w: %q cannot start with %q", ErrInvalidID, id, id[0])
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidID, id, r)
		}
	}
	return nil
}

// ValidateFragment checks a transcript fragment before detection.
// An empty fragment is valid and simply yields no references.
func ValidateFragment(text string) error {
	if len(text) > MaxFragmentLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFragmentTooLong, len(text), MaxFragmentLength)
	}
	if !utf8.ValidString(text) {
		return ErrInvalidEncoding
	}
	if strings.Contains(text, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	return nil
}

// SanitizePath validates a user-supplied path and ensures it does not
// escape baseDir. Returns the cleaned relative path.
func SanitizePath(baseDir, userPath string) (string, error) {
	if userPath == "" {
		return "", ErrEmptyPath
	}
	if len(userPath) > MaxPathLength {
		return "", ErrPathTooLong
	}

	cleanPath := filepath.Clean(userPath)
	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: absolute path not allowed", ErrPathTraversal)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleanPath, nil
}

// ValidatePath checks a configured path for length and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	for _, r := range path {
		if r == 0 || unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// Format is the detected encoding of a translation document.
type Format string

// Document formats.
const (
	FormatXZ      Format = "xz"
	FormatSQLite  Format = "sqlite"
	FormatJSON    Format = "json"
	FormatXML     Format = "xml"
	FormatUnknown Format = "unknown"
)

var (
	xzMagic     = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
	sqliteMagic = []byte("SQLite format 3\x00")
	utf8BOM     = []byte{0xef, 0xbb, 0xbf}
)

// DetectFormat identifies a document from its leading bytes. Text formats
// are told apart by their first non-space character.
func DetectFormat(head []byte) Format {
	switch {
	case bytes.HasPrefix(head, xzMagic):
		return FormatXZ
	case bytes.HasPrefix(head, sqliteMagic):
		return FormatSQLite
	}
	text := bytes.TrimLeftFunc(bytes.TrimPrefix(head, utf8BOM), unicode.IsSpace)
	if len(text) == 0 {
		return FormatUnknown
	}
	switch text[0] {
	case '{':
		return FormatJSON
	case '<':
		return FormatXML
	}
	return FormatUnknown
}
