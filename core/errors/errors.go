// Package errors provides the error taxonomy shared by the translation store,
// the reference detector and the verse resolver.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates an unknown translation, book or identifier
	ErrNotFound = errors.New("not found")
	// ErrMalformed indicates a translation document failed structural validation
	ErrMalformed = errors.New("malformed document")
	// ErrSourceUnavailable indicates a backing document could not be fetched
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrChapterNotFound indicates the book exists but the chapter does not
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrVerseNotFound indicates the chapter exists but the verse does not
	ErrVerseNotFound = errors.New("verse not found")
	// ErrAmbiguous indicates a book token matched more than one book
	ErrAmbiguous = errors.New("ambiguous")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "translation", "book", "session")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNotFound, e.Err}
	}
	return []error{ErrNotFound}
}

// Missing names the part of a location that does not exist.
type Missing int

const (
	MissingChapter Missing = iota
	MissingVerse
)

// LocationError reports a chapter or verse missing from an existing book.
type LocationError struct {
	Book    string
	Chapter int
	Verse   int
	Missing Missing
}

func (e *LocationError) Error() string {
	if e.Missing == MissingVerse {
		return fmt.Sprintf("verse not found: %s %d:%d", e.Book, e.Chapter, e.Verse)
	}
	return fmt.Sprintf("chapter not found: %s %d", e.Book, e.Chapter)
}

func (e *LocationError) Unwrap() error {
	if e.Missing == MissingVerse {
		return ErrVerseNotFound
	}
	return ErrChapterNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// SourceError represents a failure to fetch a translation document.
type SourceError struct {
	Source string // Source kind (e.g., "http", "dir", "sqlite")
	ID     string // Translation identifier being fetched
	Err    error  // Underlying error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s source unavailable for %s: %v", e.Source, e.ID, e.Err)
	}
	return fmt.Sprintf("%s source unavailable for %s", e.Source, e.ID)
}

func (e *SourceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSourceUnavailable, e.Err}
	}
	return []error{ErrSourceUnavailable}
}

// ParseError represents a structurally invalid translation document
type ParseError struct {
	Format  string // Format being parsed (e.g., "svjson", "zefania")
	Path    string // Location inside the document, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformed, e.Err}
	}
	return []error{ErrMalformed}
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewSource creates a SourceError
func NewSource(source, id string, err error) *SourceError {
	return &SourceError{
		Source: source,
		ID:     id,
		Err:    err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewChapterNotFound creates a LocationError for a missing chapter.
func NewChapterNotFound(book string, chapter int) *LocationError {
	return &LocationError{Book: book, Chapter: chapter, Missing: MissingChapter}
}

// NewVerseNotFound creates a LocationError for a missing verse.
func NewVerseNotFound(book string, chapter, verse int) *LocationError {
	return &LocationError{Book: book, Chapter: chapter, Verse: verse, Missing: MissingVerse}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// New wraps errors.New so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsNotFound reports whether err means the requested thing does not exist,
// including ambiguous book tokens and missing chapters or verses.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAmbiguous) ||
		errors.Is(err, ErrChapterNotFound) || errors.Is(err, ErrVerseNotFound)
}
