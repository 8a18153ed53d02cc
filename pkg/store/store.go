package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lyralabs/lyra/pkg/logger"
)

// Store is the keyed JSON document store backing every consciousness state
// file. One document per name, pretty-printed UTF-8, atomic replacement.
// Concurrent writers to the same document are serialized per-file; distinct
// documents never contend.
type Store struct {
	dir string

	mu    sync.Mutex
	files map[string]*sync.Mutex

	warnedOnce sync.Map // name -> struct{}, load-failure logged once per name
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir, files: make(map[string]*sync.Mutex)}, nil
}

// Dir returns the data directory root.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute path for a document name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) fileLock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.files[name]
	if !ok {
		l = &sync.Mutex{}
		s.files[name] = l
	}
	return l
}

// Load reads the named document into v. A missing file is not an error: v is
// left untouched so the caller's typed default survives, and ok=false is
// returned. Parse failures degrade the same way but are logged once.
func (s *Store) Load(name string, v interface{}) (ok bool, err error) {
	lock := s.fileLock(name)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		s.warnOnce(name, "read failed", err)
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.warnOnce(name, "parse failed, using defaults", err)
		return false, nil
	}
	return true, nil
}

// Save writes the named document atomically: marshal pretty, write to a temp
// file in the same directory, fsync, rename over the target. One retry on IO
// failure; the error is returned but callers treat it as non-fatal.
func (s *Store) Save(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	lock := s.fileLock(name)
	lock.Lock()
	defer lock.Unlock()

	if err := s.writeAtomic(name, data); err != nil {
		logger.WarnCF("store", "save failed, retrying once", map[string]interface{}{
			"name":  name,
			"error": err.Error(),
		})
		if err2 := s.writeAtomic(name, data); err2 != nil {
			return fmt.Errorf("save %s: %w", name, err2)
		}
	}
	return nil
}

func (s *Store) writeAtomic(name string, data []byte) error {
	target := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(name)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ModTime returns the document's mtime in epoch seconds, 0 when missing.
func (s *Store) ModTime(name string) int64 {
	fi, err := os.Stat(s.Path(name))
	if err != nil {
		return 0
	}
	return fi.ModTime().Unix()
}

// Reset removes the named document. Used by the host-shell reset_store
// command and by tests.
func (s *Store) Reset(name string) error {
	lock := s.fileLock(name)
	lock.Lock()
	defer lock.Unlock()
	if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) warnOnce(name, msg string, err error) {
	if _, loaded := s.warnedOnce.LoadOrStore(name, struct{}{}); loaded {
		return
	}
	logger.WarnCF("store", msg, map[string]interface{}{
		"name":  name,
		"error": err.Error(),
	})
}
