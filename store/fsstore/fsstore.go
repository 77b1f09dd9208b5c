// Package fsstore implements cache.Store as one JSON file per key on a
// billy filesystem.
package fsstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

const (
	ext    = ".json"
	keyExt = ".key"

	// maxName is the common filesystem limit on one path component.
	maxName = 255
	// readable is how much of an escaped key a hashed file name keeps.
	readable = 120
	// hashMark separates the readable part of a hashed name from its
	// digest. QueryEscape always escapes it.
	hashMark = "@"
)

// Store keeps entries as files in the root of fs. File names are the
// query-escaped keys, so any key maps to a single flat file. Keys whose
// escaped form would exceed the file name limit are stored under a
// truncated name plus the key's sha256, with the full key written next to
// the entry in a .key file.
type Store struct {
	fs billy.Filesystem
	mu sync.RWMutex
}

// New returns a store on fs.
func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// NewOS returns a store rooted at dir on the local disk, creating it if
// needed.
func NewOS(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return New(osfs.New(dir)), nil
}

func filename(key string) string {
	name := url.QueryEscape(key)
	if len(name)+len(ext) <= maxName {
		return name + ext
	}
	sum := sha256.Sum256([]byte(key))
	return name[:readable] + hashMark + hex.EncodeToString(sum[:]) + ext
}

func hashed(name string) bool {
	return strings.Contains(name, hashMark)
}

func keyFile(name string) string {
	return strings.TrimSuffix(name, ext) + keyExt
}

// keyOf recovers the key stored in the entry file name.
func (s *Store) keyOf(name string) (string, bool) {
	if !hashed(name) {
		key, err := url.QueryUnescape(strings.TrimSuffix(name, ext))
		return key, err == nil
	}
	data, err := util.ReadFile(s.fs, keyFile(name))
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := util.ReadFile(s.fs, filename(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, true, nil
}

// Set writes data atomically via a temporary file and rename.
func (s *Store) Set(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filename(key)
	if hashed(path) {
		if err := s.write(keyFile(path), []byte(key)); err != nil {
			return err
		}
	}
	return s.write(path, data)
}

func (s *Store) write(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := s.fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("writing temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("closing temporary file: %w", err)
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.remove(filename(key)); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// remove deletes an entry file and its key file, if any. Missing files
// are not an error.
func (s *Store) remove(name string) error {
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if hashed(name) {
		if err := s.fs.Remove(keyFile(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Clear removes every entry whose key starts with prefix. Files that are
// not store entries are left alone.
func (s *Store) Clear(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.fs.ReadDir("/")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("listing store: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		key, ok := s.keyOf(name)
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := s.remove(name); err != nil {
			return fmt.Errorf("removing %s: %w", key, err)
		}
	}
	return nil
}

// Keys lists the stored keys with the given prefix.
func (s *Store) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.fs.ReadDir("/")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing store: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		key, ok := s.keyOf(name)
		if ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
