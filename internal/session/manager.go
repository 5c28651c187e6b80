// Package session keeps the per-session state of live transcripts: the
// reference context, the recent segment history, and the ordering of
// fragments within a session.
package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/versewatch/core/detect"
	"github.com/FocuswithJustin/versewatch/core/engine"
	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/internal/logging"
	"github.com/FocuswithJustin/versewatch/internal/report"
	"github.com/FocuswithJustin/versewatch/internal/validation"
)

// DefaultHistorySize is the number of segments kept per session when
// Options.HistorySize is zero.
const DefaultHistorySize = 50

// Options configures a Manager.
type Options struct {
	// HistorySize bounds the segments kept per session for reports.
	HistorySize int

	// IdleTTL closes sessions unused for longer, when Run is active.
	// Zero disables expiry.
	IdleTTL time.Duration

	// OnCount, if set, receives the number of open sessions after each
	// open or close.
	OnCount func(n int)
}

// Info describes an open session.
type Info struct {
	ID            string         `json:"id"`
	TranslationID string         `json:"translation"`
	Context       detect.Context `json:"context"`
	Segments      int            `json:"segments"`
	Created       time.Time      `json:"created"`
	LastUsed      time.Time      `json:"lastUsed"`
}

// Result is the outcome of one fragment in a session.
type Result struct {
	SessionID string `json:"sessionId"`
	SegmentID string `json:"segmentId"`
	engine.Result
}

// Manager holds the open sessions. Fragments of one session are processed
// one at a time in call order; different sessions proceed in parallel.
type Manager struct {
	engine *engine.Engine
	opts   Options
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	id       string
	session  *engine.Session
	history  []report.Segment
	created  time.Time
	lastUsed time.Time
	closed   bool
}

// NewManager creates a Manager processing fragments with e.
func NewManager(e *engine.Engine, opts Options) *Manager {
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	return &Manager{
		engine:   e,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Open starts a session with a new random ID.
func (m *Manager) Open(translationID string) (Info, error) {
	return m.OpenWithID(uuid.NewString(), translationID)
}

// OpenWithID returns the session with the given ID, starting it if needed.
// External systems that already name their sessions (an interaction ID
// from the transcript stream) use it directly.
func (m *Manager) OpenWithID(id, translationID string) (Info, error) {
	if err := validation.ValidateID(id); err != nil {
		return Info{}, errors.NewValidation("session", err.Error())
	}
	if translationID != "" {
		if err := validation.ValidateID(translationID); err != nil {
			return Info{}, errors.NewValidation("translation", err.Error())
		}
	}

	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		now := m.now()
		e = &entry{
			id:       id,
			session:  m.engine.NewSession(translationID),
			created:  now,
			lastUsed: now,
		}
		m.sessions[id] = e
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		logging.SessionEvent("opened", id, "translation", translationID)
		m.count(n)
	}
	return e.info(), nil
}

// Process runs one fragment through the session.
func (m *Manager) Process(ctx context.Context, id, text string) (Result, error) {
	if err := validation.ValidateFragment(text); err != nil {
		return Result{}, errors.NewValidation("text", err.Error())
	}
	e, err := m.get(id)
	if err != nil {
		return Result{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Result{}, errors.NewNotFound("session", id)
	}

	start := m.now()
	res, err := e.session.Process(logging.WithSessionID(ctx, id), text)
	if err != nil {
		return Result{}, err
	}
	logging.FragmentProcessed(logging.WithSessionID(ctx, id), res.TranslationID,
		len(res.Direct), len(res.Paraphrase), res.Dropped, m.now().Sub(start))

	seg := report.Segment{
		ID:         uuid.NewString(),
		Text:       text,
		Timestamp:  start.UnixMilli(),
		IsFinal:    true,
		References: res.All(),
	}
	e.history = append(e.history, seg)
	if over := len(e.history) - m.opts.HistorySize; over > 0 {
		e.history = slices.Delete(e.history, 0, over)
	}
	e.lastUsed = start

	return Result{SessionID: id, SegmentID: seg.ID, Result: res}, nil
}

// Reset clears the session's reference context. History is kept.
func (m *Manager) Reset(id string) error {
	e, err := m.get(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.session.Reset()
	e.lastUsed = m.now()
	e.mu.Unlock()
	logging.SessionEvent("reset", id)
	return nil
}

// SetTranslation switches the translation for later fragments.
func (m *Manager) SetTranslation(id, translationID string) error {
	if err := validation.ValidateID(translationID); err != nil {
		return errors.NewValidation("translation", err.Error())
	}
	e, err := m.get(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.session.SetTranslation(translationID)
	e.mu.Unlock()
	return nil
}

// Close ends a session and discards its state.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return errors.NewNotFound("session", id)
	}

	e.mu.Lock()
	e.closed = true
	segments := len(e.history)
	e.mu.Unlock()

	logging.SessionEvent("closed", id, "segments", segments)
	m.count(n)
	return nil
}

// Get describes one session.
func (m *Manager) Get(id string) (Info, error) {
	e, err := m.get(id)
	if err != nil {
		return Info{}, err
	}
	return e.info(), nil
}

// List describes every open session, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	infos := make([]Info, len(entries))
	for i, e := range entries {
		infos[i] = e.info()
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return infos
}

// History returns a copy of the session's recent segments, oldest first.
func (m *Manager) History(id string) ([]report.Segment, error) {
	e, err := m.get(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.history), nil
}

// Report builds the missed-reference report for one segment.
func (m *Manager) Report(id, segmentID, interim string) (*report.Payload, error) {
	history, err := m.History(id)
	if err != nil {
		return nil, err
	}
	return report.Build(history, segmentID, interim, m.now())
}

// Export returns the session's transcript export.
func (m *Manager) Export(id string) (*report.Transcript, error) {
	history, err := m.History(id)
	if err != nil {
		return nil, err
	}
	return report.Export(history, m.now()), nil
}

// Sweep closes sessions idle since before now minus IdleTTL and returns
// how many it closed.
func (m *Manager) Sweep(now time.Time) int {
	if m.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.opts.IdleTTL)

	var idle []string
	m.mu.Lock()
	for id, e := range m.sessions {
		e.mu.Lock()
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, id)
		}
		e.mu.Unlock()
	}
	m.mu.Unlock()

	closed := 0
	for _, id := range idle {
		if m.Close(id) == nil {
			closed++
		}
	}
	return closed
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.opts.IdleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				logging.Info("idle sessions closed", "count", n)
			}
		}
	}
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) get(id string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, errors.NewNotFound("session", id)
	}
	return e, nil
}

func (m *Manager) count(n int) {
	if m.opts.OnCount != nil {
		m.opts.OnCount(n)
	}
}

func (e *entry) info() Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Info{
		ID:            e.id,
		TranslationID: e.session.TranslationID(),
		Context:       e.session.Context(),
		Segments:      len(e.history),
		Created:       e.created,
		LastUsed:      e.lastUsed,
	}
}
