package detect

import "github.com/FocuswithJustin/versewatch/core/scripture"

// Context is the last successfully resolved reference of a session. The
// zero value is the empty context.
type Context struct {
	Book       string `json:"book,omitempty"`
	Chapter    int    `json:"chapter,omitempty"`
	StartVerse int    `json:"startVerse,omitempty"`
	EndVerse   int    `json:"endVerse,omitempty"`
}

// IsZero reports whether no reference has been recorded.
func (c Context) IsZero() bool {
	return c.Book == ""
}

// ContextOf returns the context a resolved reference leaves behind.
func ContextOf(ref scripture.Reference) Context {
	return Context{
		Book:       ref.Book,
		Chapter:    ref.Chapter,
		StartVerse: ref.StartVerse,
		EndVerse:   ref.EndVerse,
	}
}

// Tracker holds the context of one transcription session. It is never
// shared between sessions and is not safe for concurrent use; callers
// serialize fragments of a session.
type Tracker struct {
	ctx Context
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Reset clears the context.
func (t *Tracker) Reset() {
	t.ctx = Context{}
}

// Update records ref as the latest reference.
func (t *Tracker) Update(ref scripture.Reference) {
	t.ctx = ContextOf(ref)
}

// Set replaces the context, as returned by a detection call.
func (t *Tracker) Set(ctx Context) {
	t.ctx = ctx
}

// Current returns the context without consuming it. ok is false when the
// context is empty.
func (t *Tracker) Current() (ctx Context, ok bool) {
	return t.ctx, !t.ctx.IsZero()
}
