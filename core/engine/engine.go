// Package engine turns transcript fragments into resolved scripture
// references.
//
// An Engine is shared by every session: it owns the translation store, a
// book resolver per translation and the paraphrase classifier. Session
// state is the detect.Context the caller passes in and gets back; the
// engine itself keeps none.
package engine

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/FocuswithJustin/versewatch/core/books"
	"github.com/FocuswithJustin/versewatch/core/detect"
	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/core/paraphrase"
	"github.com/FocuswithJustin/versewatch/core/resolve"
	"github.com/FocuswithJustin/versewatch/core/scripture"
	"github.com/FocuswithJustin/versewatch/core/translation"
)

// Options configures an Engine.
type Options struct {
	// Logger receives dropped-candidate events at debug level. Nil
	// discards them.
	Logger *slog.Logger

	// ExpandRanges returns one reference per verse instead of one per
	// citation.
	ExpandRanges bool

	// DisableParaphrase turns the paraphrase classifier off.
	DisableParaphrase bool

	// Paraphrase tunes the classifier.
	Paraphrase paraphrase.Options

	// OnProcessed, if set, is called after every fragment that loaded its
	// translation.
	OnProcessed func(res Result, elapsed time.Duration)
}

// Request is one fragment to process.
type Request struct {
	// TranslationID selects the translation; empty means translation.DefaultID.
	TranslationID string `json:"translation,omitempty"`

	// Text is the transcript fragment.
	Text string `json:"text"`
}

// Result holds the references found in one fragment.
type Result struct {
	TranslationID string `json:"translation"`

	// Direct are the cited references in fragment order.
	Direct []scripture.Reference `json:"direct"`

	// Paraphrase are the paraphrased verses, best match first.
	Paraphrase []scripture.Reference `json:"paraphrase"`

	// Dropped counts candidates that did not resolve.
	Dropped int `json:"dropped"`
}

// All returns the direct references followed by the paraphrases.
func (r Result) All() []scripture.Reference {
	out := make([]scripture.Reference, 0, len(r.Direct)+len(r.Paraphrase))
	out = append(out, r.Direct...)
	return append(out, r.Paraphrase...)
}

// Engine processes fragments against a translation store. It is safe for
// concurrent use across sessions.
type Engine struct {
	store      *translation.Store
	opts       Options
	logger     *slog.Logger
	classifier *paraphrase.Classifier

	mu        sync.RWMutex
	resolvers map[string]*books.Resolver
}

// New creates an Engine over store.
func New(store *translation.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{
		store:     store,
		opts:      opts,
		logger:    logger,
		resolvers: make(map[string]*books.Resolver),
	}
	if !opts.DisableParaphrase {
		e.classifier = paraphrase.NewClassifier(opts.Paraphrase)
	}
	return e
}

// Store returns the engine's translation store.
func (e *Engine) Store() *translation.Store {
	return e.store
}

// Process detects and resolves the references in req.Text.
//
// sctx is the session's context before the fragment; the returned context
// reflects the last reference resolved in it, or sctx unchanged when none
// resolved. Only a failure to load the translation is returned as an
// error; candidates that do not resolve are dropped.
func (e *Engine) Process(ctx context.Context, req Request, sctx detect.Context) (Result, detect.Context, error) {
	start := time.Now()
	id := req.TranslationID
	if id == "" {
		id = translation.DefaultID
	}
	tr, err := e.store.Load(ctx, id)
	if err != nil {
		return Result{}, sctx, err
	}

	res := Result{TranslationID: tr.ID}
	s := detect.NewScanner(req.Text, e.resolver(tr))
	for s.Scan(sctx) {
		c := s.Candidate()
		ref, err := resolve.Resolve(c, tr)
		if err != nil {
			res.Dropped++
			e.logger.Debug("candidate dropped", "translation", tr.ID, "span", c.Span,
				"kind", string(c.Kind), "error", err)
			continue
		}
		ref.TranscriptText = req.Text
		res.Direct = append(res.Direct, ref)
		sctx = detect.ContextOf(ref)
	}

	if e.classifier != nil {
		for _, ref := range e.classifier.Classify(req.Text, tr, res.Direct...) {
			ref.TranscriptText = req.Text
			res.Paraphrase = append(res.Paraphrase, ref)
		}
	}

	if e.opts.ExpandRanges {
		res.Direct = expand(res.Direct)
	}
	if e.opts.OnProcessed != nil {
		e.opts.OnProcessed(res, time.Since(start))
	}
	return res, sctx, nil
}

// Detect returns the candidates of text without resolving them, for
// diagnostics. Candidates chain as if each one resolved.
func (e *Engine) Detect(ctx context.Context, req Request, sctx detect.Context) ([]scripture.Candidate, detect.Context, error) {
	id := req.TranslationID
	if id == "" {
		id = translation.DefaultID
	}
	tr, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, sctx, err
	}
	cands, next := detect.Detect(req.Text, e.resolver(tr), sctx)
	return cands, next, nil
}

// Lookup resolves a display string such as "John 3:16-17" or "1 cor 13".
// The book may be any name or abbreviation the detector accepts.
func (e *Engine) Lookup(ctx context.Context, translationID, ref string) (scripture.Reference, error) {
	c, err := scripture.ParseDisplay(ref)
	if err != nil {
		return scripture.Reference{}, errors.NewValidation("ref", err.Error())
	}
	if translationID == "" {
		translationID = translation.DefaultID
	}
	tr, err := e.store.Load(ctx, translationID)
	if err != nil {
		return scripture.Reference{}, err
	}
	book, err := e.resolver(tr).Resolve(strings.Fields(c.Book))
	if err != nil {
		return scripture.Reference{}, err
	}
	c.Book = book
	return resolve.Resolve(c, tr)
}

func (e *Engine) resolver(tr *translation.Translation) *books.Resolver {
	key := tr.ID + "@" + tr.Hash
	e.mu.RLock()
	r, ok := e.resolvers[key]
	e.mu.RUnlock()
	if ok {
		return r
	}

	r = books.NewResolver(tr.Books())
	e.mu.Lock()
	if existing, ok := e.resolvers[key]; ok {
		r = existing
	} else {
		e.resolvers[key] = r
	}
	e.mu.Unlock()
	return r
}

func expand(refs []scripture.Reference) []scripture.Reference {
	var out []scripture.Reference
	for _, r := range refs {
		out = append(out, r.Expand()...)
	}
	return out
}

// Session couples an Engine with the context of one transcript session.
// It is not safe for concurrent use; fragments of a session must be
// processed in arrival order.
type Session struct {
	engine        *Engine
	tracker       *detect.Tracker
	translationID string
}

// NewSession starts a session with an empty context.
func (e *Engine) NewSession(translationID string) *Session {
	return &Session{
		engine:        e,
		tracker:       detect.NewTracker(),
		translationID: translationID,
	}
}

// Process runs one fragment and carries the context forward.
func (s *Session) Process(ctx context.Context, text string) (Result, error) {
	cur, _ := s.tracker.Current()
	res, next, err := s.engine.Process(ctx, Request{TranslationID: s.translationID, Text: text}, cur)
	if err != nil {
		return res, err
	}
	s.tracker.Set(next)
	return res, nil
}

// Reset clears the session context.
func (s *Session) Reset() {
	s.tracker.Reset()
}

// Context returns the current session context.
func (s *Session) Context() detect.Context {
	ctx, _ := s.tracker.Current()
	return ctx
}

// SetContext replaces the session context, for callers that resume a
// session or seed it with a known passage.
func (s *Session) SetContext(c detect.Context) {
	s.tracker.Set(c)
}

// SetTranslation switches the translation used by later fragments. The
// context is kept.
func (s *Session) SetTranslation(id string) {
	s.translationID = id
}

// TranslationID returns the session's translation.
func (s *Session) TranslationID() string {
	return s.translationID
}
