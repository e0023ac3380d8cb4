// Package clientstore persists the client context's durable records
// (current session, outstanding verification request) as JSON slot files,
// the way the browser app kept them in localStorage.
package clientstore

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrEmptySlot   = errors.New("slot is empty")
	ErrCorruptSlot = errors.New("slot data is corrupt")
)

type Store struct {
	mu  sync.Mutex
	dir string
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating client store dir")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(slot string) string {
	return filepath.Join(s.dir, slot+".json")
}

// Put serializes v into the named slot, replacing any previous record.
// The slot file is written atomically so a partial record never exists.
func (s *Store) Put(slot string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshalling slot "+slot)
	}

	tmp, err := ioutil.TempFile(s.dir, slot+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp slot file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing slot "+slot)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing slot "+slot)
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path(slot)), "committing slot "+slot)
}

// Get deserializes the named slot into v.
// Returns ErrEmptySlot when nothing is stored and ErrCorruptSlot when the
// stored record cannot be parsed.
func (s *Store) Get(slot string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := ioutil.ReadFile(s.path(slot))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrEmptySlot
		}
		return errors.Wrap(err, "reading slot "+slot)
	}
	if err = json.Unmarshal(data, v); err != nil {
		return ErrCorruptSlot
	}
	return nil
}

// Clear removes the named slot. Clearing an empty slot is a no-op.
func (s *Store) Clear(slot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(slot)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "clearing slot "+slot)
	}
	return nil
}
