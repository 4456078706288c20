// Package store provides the JSON document store backing a single run.
// Each concern persists as one document under a run-scoped directory:
// intervention.json, prd.json, qa-history.json and checkpoints/<id>.json.
//
// Every document is wrapped in a versioned envelope carrying a schema
// number and a monotonically increasing sequence. Writes are atomic
// (write to a temp file, then rename) and fail fast when the on-disk
// sequence has moved past the one the caller read, instead of silently
// overwriting a concurrent writer's changes.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrSeqConflict indicates the on-disk sequence does not match the
	// sequence the caller read, i.e. another writer got there first.
	ErrSeqConflict = errors.New("document sequence conflict")
	// ErrSchemaTooNew indicates the document was written by a newer
	// version of coxswain than this one.
	ErrSchemaTooNew = errors.New("document schema too new")
)

// envelope wraps every persisted document.
type envelope struct {
	Schema int             `json:"schema"`
	Seq    int64           `json:"seq"`
	Data   json.RawMessage `json:"data"`
}

// Meta describes the envelope of a loaded document.
type Meta struct {
	// Schema is the schema version the document was written with.
	Schema int
	// Seq is the sequence number of the document. Pass it back to Save
	// so conflicting writes are detected.
	Seq int64
}

// Store is a document store rooted at one run directory. It is safe for
// concurrent use within a process; cross-process exclusion is handled by
// the advisory run lock (see Lock).
type Store struct {
	root string
	mu   sync.Mutex
}

// New creates a store rooted at dir, creating the directory tree if
// needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store root must not be empty")
	}
	for _, d := range []string{dir, filepath.Join(dir, "checkpoints"), filepath.Join(dir, "signals")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &Store{root: dir}, nil
}

// Root returns the run directory this store is rooted at.
func (s *Store) Root() string {
	return s.root
}

// Load reads the document at name (a path relative to the run directory)
// into out and returns its envelope metadata.
//
// A document that exists but fails to parse is treated as absent: the
// broken file is moved aside to <name>.corrupt and ErrNotFound is
// returned, so callers synthesize a fresh default instead of blocking
// the run.
func (s *Store) Load(name string, maxSchema int, out any) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(name, maxSchema, out)
}

func (s *Store) loadLocked(name string, maxSchema int, out any) (Meta, error) {
	path := filepath.Join(s.root, name)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Meta{}, ErrNotFound
	}
	if err != nil {
		return Meta{}, fmt.Errorf("read %s: %w", name, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Data == nil {
		s.quarantine(name, path)
		return Meta{}, ErrNotFound
	}
	if env.Schema > maxSchema {
		return Meta{}, fmt.Errorf("%s schema v%d: %w", name, env.Schema, ErrSchemaTooNew)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		s.quarantine(name, path)
		return Meta{}, ErrNotFound
	}
	return Meta{Schema: env.Schema, Seq: env.Seq}, nil
}

// quarantine moves a corrupt document aside so it is recoverable by hand
// rather than silently destroyed by the next write.
func (s *Store) quarantine(name, path string) {
	dest := path + ".corrupt"
	if err := os.Rename(path, dest); err != nil {
		log.Printf("[store] could not quarantine corrupt document %s: %v", name, err)
		return
	}
	log.Printf("[store] %s failed to parse, moved to %s", name, filepath.Base(dest))
}

// Save writes v as the document at name. prevSeq must be the sequence
// returned by the Load that produced v (zero for a new document); if the
// on-disk sequence differs, Save returns ErrSeqConflict and writes
// nothing.
func (s *Store) Save(name string, schema int, prevSeq int64, v any) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.root, name)

	// Re-read the current envelope to detect concurrent writers.
	var diskSeq int64
	if raw, err := os.ReadFile(path); err == nil {
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			diskSeq = env.Seq
		}
	}
	if diskSeq != prevSeq {
		return Meta{}, fmt.Errorf("%s: disk seq %d, caller seq %d: %w", name, diskSeq, prevSeq, ErrSeqConflict)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Meta{}, fmt.Errorf("marshal %s: %w", name, err)
	}
	env := envelope{Schema: schema, Seq: prevSeq + 1, Data: data}
	raw, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return Meta{}, fmt.Errorf("marshal envelope %s: %w", name, err)
	}

	if err := s.writeAtomic(path, raw); err != nil {
		return Meta{}, err
	}
	return Meta{Schema: schema, Seq: env.Seq}, nil
}

// writeAtomic writes data to path via a temp file and rename, so readers
// never observe a half-written document.
func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Delete removes the document at name. Deleting a missing document is
// not an error.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(filepath.Join(s.root, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a document is present on disk.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.root, name))
	return err == nil
}

// ListDir returns the document names under a subdirectory of the run
// directory, sorted lexically.
func (s *Store) ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".corrupt") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, filepath.Join(dir, e.Name()))
	}
	sort.Strings(names)
	return names, nil
}
