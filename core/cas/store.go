// Package cas stores blobs by their BLAKE3 digest, with named refs
// pointing at the current blob for a name. The translation mirror uses it
// to keep the last good copy of each downloaded document.
package cas

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/versewatch/internal/validation"
)

// ErrBlobNotFound is returned when a blob or ref does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidHash is returned when a hash is not a BLAKE3 hex digest.
var ErrInvalidHash = errors.New("invalid hash format")

var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Store is a content-addressed blob store rooted at a directory.
//
// Layout:
//
//	<root>/blobs/blake3/<first2>/<hash>
//	<root>/refs/<name>
type Store struct {
	root string
}

// NewStore creates the store directories under root if needed.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{filepath.Join(root, "blobs", "blake3"), filepath.Join(root, "refs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Put stores data and returns its hash. Storing existing content is a
// no-op.
func (s *Store) Put(data []byte) (string, error) {
	hash := Hash(data)
	path := s.blobPath(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return hash, nil
}

// Get returns the blob with the given hash.
func (s *Store) Get(hash string) ([]byte, error) {
	if !hashPattern.MatchString(hash) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.blobPath(hash))
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	if Hash(data) != hash {
		return nil, fmt.Errorf("blob %s is corrupt", hash)
	}
	return data, nil
}

// Exists reports whether the blob is stored.
func (s *Store) Exists(hash string) bool {
	if !hashPattern.MatchString(hash) {
		return false
	}
	_, err := os.Stat(s.blobPath(hash))
	return err == nil
}

// SetRef points name at hash. The blob must already be stored.
func (s *Store) SetRef(name, hash string) error {
	if err := validation.ValidateID(name); err != nil {
		return err
	}
	if !s.Exists(hash) {
		return ErrBlobNotFound
	}
	return writeAtomic(filepath.Join(s.root, "refs", name), []byte(hash+"\n"))
}

// Ref returns the hash name points at.
func (s *Store) Ref(name string) (string, error) {
	if err := validation.ValidateID(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(s.root, "refs", name))
	if os.IsNotExist(err) {
		return "", ErrBlobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read ref: %w", err)
	}
	hash := strings.TrimSpace(string(data))
	if !hashPattern.MatchString(hash) {
		return "", ErrInvalidHash
	}
	return hash, nil
}

// GetRef returns the blob name points at.
func (s *Store) GetRef(name string) ([]byte, error) {
	hash, err := s.Ref(name)
	if err != nil {
		return nil, err
	}
	return s.Get(hash)
}

// PutRef stores data and points name at it.
func (s *Store) PutRef(name string, data []byte) (string, error) {
	hash, err := s.Put(data)
	if err != nil {
		return "", err
	}
	return hash, s.SetRef(name, hash)
}

func (s *Store) blobPath(hash string) string {
	return filepath.Join(s.root, "blobs", "blake3", hash[:2], hash)
}

// writeAtomic writes data to a temp file beside path and renames it.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Hash returns the BLAKE3 hex digest of data.
func Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}
