package translation

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/versewatch/core/cas"
	"github.com/FocuswithJustin/versewatch/core/errors"
	"github.com/FocuswithJustin/versewatch/core/sqlite"
	"github.com/FocuswithJustin/versewatch/internal/validation"
)

// DefaultID is the bundled translation, always resolvable without I/O.
// The bundled document is an excerpt (a few chapters of seven books); a
// full kjv from a directory, database or mirror source takes precedence
// when chained ahead of it.
const DefaultID = "kjv"

//go:embed data/*.svjson
var bundled embed.FS

// Source fetches and decodes one translation. Implementations return an
// error wrapping errors.ErrNotFound for unknown identifiers,
// errors.ErrSourceUnavailable when the backing store cannot be reached and
// errors.ErrMalformed when the document is invalid. Fetch must honour ctx.
type Source interface {
	Fetch(ctx context.Context, id string) (*Translation, error)
}

// Lister is implemented by sources that can enumerate their identifiers.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// EmbeddedSource serves the documents compiled into the binary. They are
// excerpts meant for tests and offline fallback.
type EmbeddedSource struct{}

// NewEmbeddedSource returns a source for the bundled translations.
func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{}
}

// Fetch decodes a bundled document.
func (s *EmbeddedSource) Fetch(ctx context.Context, id string) (*Translation, error) {
	if err := validation.ValidateID(id); err != nil {
		return nil, &errors.NotFoundError{Resource: "translation", ID: id, Err: err}
	}
	data, err := bundled.ReadFile("data/" + id + ".svjson")
	if err != nil {
		return nil, errors.NewNotFound("translation", id)
	}
	return Decode(id, data)
}

// List returns the bundled identifiers.
func (s *EmbeddedSource) List(ctx context.Context) ([]string, error) {
	entries, err := fs.ReadDir(bundled, "data")
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		ids = append(ids, strings.TrimSuffix(e.Name(), ".svjson"))
	}
	return ids, nil
}

// dirExtensions are tried in order by DirSource.
var dirExtensions = []string{".svjson", ".svjson.xz", ".json", ".xml", ".xml.xz"}

// DirSource reads <Root>/<id><ext> for each supported extension.
type DirSource struct {
	Root string
}

// NewDirSource returns a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{Root: dir}
}

// Fetch reads and decodes the first matching file.
func (s *DirSource) Fetch(ctx context.Context, id string) (*Translation, error) {
	if err := validation.ValidateID(id); err != nil {
		return nil, &errors.NotFoundError{Resource: "translation", ID: id, Err: err}
	}
	for _, ext := range dirExtensions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := validation.SanitizePath(s.Root, id+ext)
		if err != nil {
			return nil, &errors.NotFoundError{Resource: "translation", ID: id, Err: err}
		}
		path := filepath.Join(s.Root, name)
		info, err := os.Stat(path)
		if stderrors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.NewSource("dir", id, err)
		}
		if info.Size() > validation.MaxDocumentSize {
			return nil, errors.NewParse("document", path, fmt.Sprintf("file exceeds %d bytes", validation.MaxDocumentSize))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewSource("dir", id, err)
		}
		return Decode(id, data)
	}
	return nil, errors.NewNotFound("translation", id)
}

// List returns identifiers of every supported file in Root. A missing
// Root lists nothing.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewSource("dir", s.Root, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, ext := range dirExtensions {
			if id, ok := strings.CutSuffix(e.Name(), ext); ok && validation.ValidateID(id) == nil {
				if !slices.Contains(ids, id) {
					ids = append(ids, id)
				}
				break
			}
		}
	}
	return ids, nil
}

// HTTPSource fetches {BaseURL}/{id}.svjson, falling back to {id}.svjson.xz.
//
// With a Cache, each document that decodes is kept as the ref {id}, and
// served from there while the mirror is unavailable.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
	Cache   *cas.Store
}

// NewHTTPSource returns a source for a translation mirror. A nil client
// uses one with a 30 second timeout.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

// Fetch downloads and decodes the document.
func (s *HTTPSource) Fetch(ctx context.Context, id string) (*Translation, error) {
	if err := validation.ValidateID(id); err != nil {
		return nil, &errors.NotFoundError{Resource: "translation", ID: id, Err: err}
	}
	for _, ext := range []string{".svjson", ".svjson.xz"} {
		data, err := s.get(ctx, id, s.BaseURL+"/"+url.PathEscape(id+ext))
		if errors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			if s.Cache != nil && errors.Is(err, errors.ErrSourceUnavailable) {
				if tr, cerr := s.cached(id); cerr == nil {
					return tr, nil
				}
			}
			return nil, err
		}
		tr, err := Decode(id, data)
		if err != nil {
			return nil, err
		}
		if s.Cache != nil {
			// The mirror copy is authoritative; a failed cache write only
			// loses the offline fallback.
			_, _ = s.Cache.PutRef(id, data)
		}
		return tr, nil
	}
	return nil, errors.NewNotFound("translation", id)
}

func (s *HTTPSource) cached(id string) (*Translation, error) {
	data, err := s.Cache.GetRef(id)
	if err != nil {
		return nil, err
	}
	return Decode(id, data)
}

func (s *HTTPSource) get(ctx context.Context, id, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.NewSource("http", id, err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewSource("http", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NewNotFound("translation", id)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.NewSource("http", id, fmt.Errorf("GET %s: %s", target, resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, validation.MaxDocumentSize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewSource("http", id, err)
	}
	if len(data) > validation.MaxDocumentSize {
		return nil, errors.NewParse("document", target, fmt.Sprintf("response exceeds %d bytes", validation.MaxDocumentSize))
	}
	return data, nil
}

// SQLiteSource reads translations from a database with the tables
//
//	translations(id TEXT PRIMARY KEY, name TEXT)
//	verses(translation_id TEXT, book TEXT, book_order INTEGER, chapter INTEGER, verse INTEGER, text TEXT)
//
// The database is opened read-only on first use.
type SQLiteSource struct {
	Path string

	once sync.Once
	db   *sql.DB
	err  error
}

// NewSQLiteSource returns a source backed by the database at path.
func NewSQLiteSource(path string) *SQLiteSource {
	return &SQLiteSource{Path: path}
}

func (s *SQLiteSource) open() (*sql.DB, error) {
	s.once.Do(func() {
		if _, err := os.Stat(s.Path); err != nil {
			s.err = err
			return
		}
		s.db, s.err = sqlite.OpenReadOnly(s.Path)
	})
	return s.db, s.err
}

// Fetch loads every verse of the translation. Hash is the BLAKE3 digest of
// the rows in canonical order.
func (s *SQLiteSource) Fetch(ctx context.Context, id string) (*Translation, error) {
	db, err := s.open()
	if err != nil {
		return nil, errors.NewSource("sqlite", id, err)
	}

	var name sql.NullString
	err = db.QueryRowContext(ctx, `SELECT name FROM translations WHERE id = ?`, id).Scan(&name)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("translation", id)
	}
	if err != nil {
		return nil, s.queryError(ctx, id, err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT book, chapter, verse, text FROM verses
		WHERE translation_id = ?
		ORDER BY book_order, chapter, verse`, id)
	if err != nil {
		return nil, s.queryError(ctx, id, err)
	}
	defer rows.Close()

	b := NewBuilder(id, name.String).describe("sqlite", s.Path)
	h := blake3.New()
	for rows.Next() {
		var (
			book           string
			chapter, verse int
			text           sql.NullString
		)
		if err := rows.Scan(&book, &chapter, &verse, &text); err != nil {
			return nil, errors.NewParse("sqlite", s.Path, err.Error())
		}
		b.AddVerse(book, chapter, verse, text.String)
		fmt.Fprintf(h, "%s\t%d\t%d\t%s\n", book, chapter, verse, text.String)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryError(ctx, id, err)
	}
	b.SetHash(hex.EncodeToString(h.Sum(nil)))
	return b.Build()
}

func (s *SQLiteSource) queryError(ctx context.Context, id string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.NewSource("sqlite", id, err)
}

// List returns the identifiers in the translations table.
func (s *SQLiteSource) List(ctx context.Context) ([]string, error) {
	db, err := s.open()
	if err != nil {
		return nil, errors.NewSource("sqlite", s.Path, err)
	}
	rows, err := db.QueryContext(ctx, `SELECT id FROM translations ORDER BY id`)
	if err != nil {
		return nil, s.queryError(ctx, s.Path, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database if it was opened.
func (s *SQLiteSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ChainSource tries each source in order. NotFound and SourceUnavailable
// results fall through to the next source; any other error stops the chain.
type ChainSource []Source

// Fetch returns the first translation found. When none is, the first
// unavailability error is returned in preference to NotFound.
func (c ChainSource) Fetch(ctx context.Context, id string) (*Translation, error) {
	var unavailable error
	for _, src := range c {
		t, err := src.Fetch(ctx, id)
		if err == nil {
			return t, nil
		}
		switch {
		case errors.Is(err, errors.ErrNotFound):
		case errors.Is(err, errors.ErrSourceUnavailable):
			if unavailable == nil {
				unavailable = err
			}
		default:
			return nil, err
		}
	}
	if unavailable != nil {
		return nil, unavailable
	}
	return nil, errors.NewNotFound("translation", id)
}

// List merges the identifiers of every listing source.
func (c ChainSource) List(ctx context.Context) ([]string, error) {
	var ids []string
	for _, src := range c {
		l, ok := src.(Lister)
		if !ok {
			continue
		}
		got, err := l.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range got {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Close closes every source that holds resources.
func (c ChainSource) Close() error {
	var errs []error
	for _, src := range c {
		if cl, ok := src.(io.Closer); ok {
			errs = append(errs, cl.Close())
		}
	}
	return stderrors.Join(errs...)
}
