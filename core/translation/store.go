package translation

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/versewatch/core/errors"
)

// StoreOptions configures a Store.
type StoreOptions struct {
	// Logger receives load events. Nil discards them.
	Logger *slog.Logger

	// OnLoad, if set, is called after every fetch attempt that had at
	// least one waiter. err is nil on success.
	OnLoad func(id string, elapsed time.Duration, err error)
}

// Store caches translations by identifier for its lifetime.
//
// Concurrent loads of the same uncached identifier share one fetch. Each
// caller may abandon its wait by cancelling its context; the fetch itself
// is cancelled only when every waiter has gone, and its result is then
// discarded so a later Load retries.
type Store struct {
	source Source
	opts   StoreOptions
	logger *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	cache   map[string]*Translation
	flights map[string]*flight
	gen     uint64
}

// flight is one in-progress fetch shared by its waiters.
type flight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int

	// Set once the fetch returns. A waiter that joined just before then
	// may still reach the singleflight group after the call was released.
	finished bool
	t        *Translation
	err      error
}

// NewStore creates a Store reading from source.
func NewStore(source Source, opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		source:  source,
		opts:    opts,
		logger:  logger,
		cache:   make(map[string]*Translation),
		flights: make(map[string]*flight),
	}
}

// NewDefaultStore returns a Store serving only the bundled translations.
func NewDefaultStore() *Store {
	return NewStore(NewEmbeddedSource(), StoreOptions{})
}

// Load returns the translation for id, fetching it on first use.
func (s *Store) Load(ctx context.Context, id string) (*Translation, error) {
	s.mu.RLock()
	t, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if t, ok := s.cache[id]; ok {
		s.mu.Unlock()
		return t, nil
	}
	f, ok := s.flights[id]
	if !ok {
		s.gen++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{
			key:    id + "#" + strconv.FormatUint(s.gen, 10),
			ctx:    fctx,
			cancel: cancel,
		}
		s.flights[id] = f
	}
	f.waiters++
	s.mu.Unlock()

	ch := s.group.DoChan(f.key, func() (any, error) {
		return s.fetch(id, f)
	})

	select {
	case res := <-ch:
		s.leave(id, f)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Translation), nil
	case <-ctx.Done():
		s.leave(id, f)
		return nil, ctx.Err()
	}
}

// leave drops one waiter. The last waiter to leave an unfinished flight
// cancels it.
func (s *Store) leave(id string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if s.flights[id] == f {
		delete(s.flights, id)
	}
}

func (s *Store) fetch(id string, f *flight) (*Translation, error) {
	s.mu.RLock()
	if f.finished {
		s.mu.RUnlock()
		return f.t, f.err
	}
	s.mu.RUnlock()

	start := time.Now()
	t, err := s.source.Fetch(f.ctx, id)
	elapsed := time.Since(start)

	s.mu.Lock()
	abandoned := f.ctx.Err() != nil
	if abandoned {
		t = nil
		if err == nil {
			err = context.Canceled
		}
	}
	if err == nil {
		s.cache[id] = t
	}
	if s.flights[id] == f {
		delete(s.flights, id)
	}
	f.finished, f.t, f.err = true, t, err
	s.mu.Unlock()
	f.cancel()

	switch {
	case abandoned:
		s.logger.Debug("translation load abandoned", "translation", id, "duration_ms", elapsed.Milliseconds())
		return nil, err
	case err != nil:
		s.logger.Warn("translation load failed", "translation", id, "duration_ms", elapsed.Milliseconds(), "error", err)
	default:
		s.logger.Info("translation loaded", "translation", id, "name", t.Name,
			"books", len(t.books), "verses", t.count, "hash", t.Hash, "duration_ms", elapsed.Milliseconds())
	}
	if s.opts.OnLoad != nil {
		s.opts.OnLoad(id, elapsed, err)
	}
	return t, err
}

// Lookup loads a translation and reads one verse.
func (s *Store) Lookup(ctx context.Context, id, book string, chapter, verse int) (string, error) {
	t, err := s.Load(ctx, id)
	if err != nil {
		return "", err
	}
	return t.Lookup(book, chapter, verse)
}

// Cached returns the identifiers of loaded translations, sorted.
func (s *Store) Cached() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Available lists the identifiers the source can serve, if it can list
// them, merged with the cached ones.
func (s *Store) Available(ctx context.Context) ([]string, error) {
	ids := s.Cached()
	l, ok := s.source.(Lister)
	if !ok {
		return ids, nil
	}
	listed, err := l.List(ctx)
	if err != nil {
		return ids, errors.Wrap(err, "list translations")
	}
	for _, id := range listed {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Close releases resources held by the source. Cached translations stay
// readable.
func (s *Store) Close() error {
	if c, ok := s.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
