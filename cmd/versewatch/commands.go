package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FocuswithJustin/versewatch/core/detect"
	"github.com/FocuswithJustin/versewatch/core/engine"
	"github.com/FocuswithJustin/versewatch/core/scripture"
	"github.com/FocuswithJustin/versewatch/core/translation"
	"github.com/FocuswithJustin/versewatch/internal/api"
	"github.com/FocuswithJustin/versewatch/internal/config"
	"github.com/FocuswithJustin/versewatch/internal/ingest"
	"github.com/FocuswithJustin/versewatch/internal/logging"
	"github.com/FocuswithJustin/versewatch/internal/metrics"
	"github.com/FocuswithJustin/versewatch/internal/report"
	"github.com/FocuswithJustin/versewatch/internal/session"
)

// load reads and validates the configuration and initializes logging.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, format, err := cfg.LogSettings()
	if err != nil {
		return nil, err
	}
	logging.InitLogger(level, format)
	return cfg, nil
}

// newEngine builds the translation store and engine described by cfg.
// The caller closes the returned store.
func newEngine(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*engine.Engine, *translation.Store, error) {
	store := translation.NewStore(cfg.Source(), translation.StoreOptions{
		Logger: logging.GetLogger(),
		OnLoad: func(id string, elapsed time.Duration, err error) {
			logging.TranslationLoaded(id, elapsed, err)
			m.RecordTranslationLoad(id, elapsed, err)
		},
	})

	opts := cfg.EngineOptions()
	opts.Logger = logging.GetLogger()
	opts.OnProcessed = m.RecordFragment
	e := engine.New(store, opts)

	for _, id := range cfg.Translations.Preload {
		if _, err := store.Load(ctx, id); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("preload %s: %w", id, err)
		}
	}
	return e, store, nil
}

func newSessions(cfg *config.Config, e *engine.Engine, m *metrics.Metrics) *session.Manager {
	return session.NewManager(e, session.Options{
		HistorySize: cfg.Sessions.HistorySize,
		IdleTTL:     cfg.GetIdleTTL(),
		OnCount:     func(n int) { m.SessionsActive.Set(float64(n)) },
	})
}

// sweepInterval is how often idle sessions are checked for.
func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Second), time.Minute)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// DetectCmd runs fragments through one session, so later fragments may
// continue references cited by earlier ones.
type DetectCmd struct {
	Text        []string `arg:"" optional:"" help:"Fragments to process; stdin lines when empty"`
	Translation string   `short:"t" help:"Translation identifier"`
	JSON        bool     `help:"Print results as JSON"`
	Candidates  bool     `help:"Print unresolved candidates instead of references"`
	Context     string   `help:"Initial context as a reference, e.g. \"Romans 4\""`
}

func (c *DetectCmd) Run(g *Globals, s *streams) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	e, store, err := newEngine(ctx, cfg, metrics.DefaultMetrics)
	if err != nil {
		return err
	}
	defer store.Close()

	tr := c.Translation
	if tr == "" {
		tr = cfg.Translations.Default
	}

	var sctx detect.Context
	if c.Context != "" {
		ref, err := e.Lookup(ctx, tr, c.Context)
		if err != nil {
			return fmt.Errorf("context: %w", err)
		}
		sctx = detect.ContextOf(ref)
	}
	sess := e.NewSession(tr)
	sess.SetContext(sctx)

	return c.each(s.in, func(text string) error {
		if c.Candidates {
			cands, next, err := e.Detect(ctx, engine.Request{TranslationID: tr, Text: text}, sctx)
			if err != nil {
				return err
			}
			sctx = next
			return c.printCandidates(s.out, cands)
		}
		res, err := sess.Process(ctx, text)
		if err != nil {
			return err
		}
		if c.JSON {
			return writeJSON(s.out, res)
		}
		for _, ref := range res.All() {
			fmt.Fprintf(s.out, "%s\t%s\t%s\n", ref.Display, ref.Source, ref.Text)
		}
		return nil
	})
}

func (c *DetectCmd) each(in io.Reader, fn func(string) error) error {
	if len(c.Text) > 0 {
		for _, text := range c.Text {
			if err := fn(text); err != nil {
				return err
			}
		}
		return nil
	}
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (c *DetectCmd) printCandidates(w io.Writer, cands []scripture.Candidate) error {
	if c.JSON {
		return writeJSON(w, cands)
	}
	for _, cand := range cands {
		fmt.Fprintf(w, "%s %d:%d-%d\t%s\t%q\n", cand.Book, cand.Chapter, cand.StartVerse, cand.EndVerse, cand.Kind, cand.Span)
	}
	return nil
}

// LookupCmd prints the text of one reference.
type LookupCmd struct {
	Ref         string `arg:"" help:"Reference, e.g. \"John 3:16\""`
	Translation string `short:"t" help:"Translation identifier"`
	JSON        bool   `help:"Print the reference as JSON"`
}

func (c *LookupCmd) Run(g *Globals, s *streams) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	e, store, err := newEngine(ctx, cfg, metrics.DefaultMetrics)
	if err != nil {
		return err
	}
	defer store.Close()

	tr := c.Translation
	if tr == "" {
		tr = cfg.Translations.Default
	}
	ref, err := e.Lookup(ctx, tr, c.Ref)
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(s.out, ref)
	}
	fmt.Fprintf(s.out, "%s (%s)\n", ref.Display, ref.TranslationID)
	for _, v := range ref.Verses {
		fmt.Fprintf(s.out, "%d %s\n", v.Number, v.Text)
	}
	return nil
}

// TranslationsCmd lists the translations the configured sources offer.
type TranslationsCmd struct {
	Load bool `help:"Load each translation and print its name and size"`
}

func (c *TranslationsCmd) Run(g *Globals, s *streams) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	_, store, err := newEngine(ctx, cfg, metrics.DefaultMetrics)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.Available(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !c.Load {
			fmt.Fprintln(s.out, id)
			continue
		}
		tr, err := store.Load(ctx, id)
		if err != nil {
			fmt.Fprintf(s.out, "%s\terror: %v\n", id, err)
			continue
		}
		fmt.Fprintf(s.out, "%s\t%s\t%d books\t%d verses\n", id, tr.Name, len(tr.Books()), tr.VerseCount())
	}
	return nil
}

// ServeCmd runs the HTTP server, and the Kafka consumer when brokers are
// configured and --ingest is set.
type ServeCmd struct {
	Addr   string `help:"Listen address (overrides server.addr)"`
	Ingest bool   `help:"Also consume transcript events from Kafka"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.DefaultMetrics
	e, store, err := newEngine(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer store.Close()
	sessions := newSessions(cfg, e, m)

	srv, err := api.New(apiConfig(cfg, m), e, sessions)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sessions.Run(ctx, sweepInterval(cfg.GetIdleTTL()))
		return nil
	})
	group.Go(func() error { return srv.Run(ctx) })
	if c.Ingest {
		consumer := newConsumer(cfg, sessions, m)
		defer consumer.Close()
		group.Go(func() error { return consumer.Run(ctx) })
	}
	return group.Wait()
}

func apiConfig(cfg *config.Config, m *metrics.Metrics) api.Config {
	return api.Config{
		Addr:              cfg.Server.Addr,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MaxFragmentBytes:  cfg.Server.MaxFragmentBytes,
		ShutdownTimeout:   cfg.GetShutdownTimeout(),
		RateLimitRequests: cfg.Server.RateLimit,
		RateLimitBurst:    cfg.Server.RateBurst,
		Auth: api.AuthConfig{
			Enabled: cfg.Server.APIKey != "",
			APIKey:  cfg.Server.APIKey,
		},
		Version: version,
		Metrics: m,
	}
}

func newConsumer(cfg *config.Config, sessions *session.Manager, m *metrics.Metrics) *ingest.Consumer {
	return ingest.New(ingest.Config{
		Brokers:       cfg.Ingest.Brokers,
		Topic:         cfg.Ingest.Topic,
		GroupID:       cfg.Ingest.GroupID,
		OutputTopic:   cfg.Ingest.OutputTopic,
		TranslationID: cfg.Translations.Default,
	}, sessions, m)
}

// IngestCmd runs only the Kafka consumer.
type IngestCmd struct {
	Brokers []string `help:"Kafka brokers (overrides ingest.brokers)"`
}

func (c *IngestCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if len(c.Brokers) > 0 {
		cfg.Ingest.Brokers = c.Brokers
	}
	if len(cfg.Ingest.Brokers) == 0 {
		return fmt.Errorf("no Kafka brokers configured (set ingest.brokers or VERSEWATCH_KAFKA_BROKERS)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.DefaultMetrics
	e, store, err := newEngine(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer store.Close()
	sessions := newSessions(cfg, e, m)

	consumer := newConsumer(cfg, sessions, m)
	defer consumer.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sessions.Run(ctx, sweepInterval(cfg.GetIdleTTL()))
		return nil
	})
	group.Go(func() error { return consumer.Run(ctx) })
	return group.Wait()
}

// ReportCmd builds a report payload from a JSON file holding a segment
// history, as exported by GET /sessions/{id}/export.
type ReportCmd struct {
	History string `arg:"" help:"History file: a JSON array of segments or an exported transcript" type:"existingfile"`
	Segment string `help:"Reported segment ID; defaults to the last segment"`
	Interim string `help:"Interim transcript text to include"`
}

func (c *ReportCmd) Run(g *Globals, s *streams) error {
	if _, err := g.load(); err != nil {
		return err
	}
	history, err := readHistory(c.History)
	if err != nil {
		return err
	}
	id := c.Segment
	if id == "" && len(history) > 0 {
		id = history[len(history)-1].ID
	}
	payload, err := report.Build(history, id, c.Interim, time.Now())
	if err != nil {
		return fmt.Errorf("segment %q: %w", id, err)
	}
	return writeJSON(s.out, payload)
}

func readHistory(path string) ([]report.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var history []report.Segment
	if err := json.Unmarshal(data, &history); err == nil {
		return history, nil
	}
	var transcript report.Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return slices.Clone(transcript.Segments), nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(s *streams) error {
	fmt.Fprintf(s.out, "versewatch version %s\n", version)
	return nil
}
