package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// JSONFile is a Backend holding every key in one JSON object on disk.
// Writes take an exclusive file lock, re-read the document and replace it
// atomically, so several processes may share the file.
type JSONFile struct {
	// mu serialises goroutines; a Flock held by this process does not.
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// OpenJSONFile prepares the document at path. The file itself is created
// on first write.
func OpenJSONFile(path string) (*JSONFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path %q: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &JSONFile{path: abs, lock: flock.New(abs + ".lock")}, nil
}

func (b *JSONFile) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.lock.RLock(); err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", b.lock.Path(), err)
	}
	defer b.lock.Unlock() //nolint:errcheck // best-effort unlock

	doc, err := b.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	return []byte(v), ok, nil
}

func (b *JSONFile) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("jsonfile put %s: value is not JSON", key)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", b.lock.Path(), err)
	}
	defer b.lock.Unlock() //nolint:errcheck // best-effort unlock

	doc, err := b.load()
	if err != nil {
		return err
	}
	doc[key] = json.RawMessage(value)
	return b.persist(doc)
}

func (b *JSONFile) Close() error { return b.lock.Close() }

// load must be called with the file lock held.
func (b *JSONFile) load() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.path, err)
	}
	return doc, nil
}

// persist writes doc atomically: temp file, then rename.
func (b *JSONFile) persist(doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".guardian-*.tmp")
	if err != nil {
		return fmt.Errorf("persist (create temp): %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()        //nolint:errcheck // best-effort cleanup
		os.Remove(tmpName) //nolint:errcheck // #nosec G703 -- tmpName from os.CreateTemp, not user input
		return fmt.Errorf("persist (write): %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck // #nosec G703 -- tmpName from os.CreateTemp, not user input
		return fmt.Errorf("persist (close): %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil { // #nosec G703 -- paths from trusted config
		os.Remove(tmpName) //nolint:errcheck // #nosec G703 -- tmpName from os.CreateTemp, not user input
		return fmt.Errorf("persist (rename): %w", err)
	}
	return nil
}
