package clientstore

import (
	"github.com/Evian1k/school12k/core/auth"
)

const sessionSlot = "session"

type sessionStore struct {
	store *Store
}

var _ auth.SessionStore = (*sessionStore)(nil)

func NewSessionStore(store *Store) auth.SessionStore {
	return &sessionStore{store: store}
}

func (s *sessionStore) PutSession(rec auth.SessionRecord) error {
	return s.store.Put(sessionSlot, rec)
}

func (s *sessionStore) GetSession() (auth.SessionRecord, error) {
	var rec auth.SessionRecord
	if err := s.store.Get(sessionSlot, &rec); err != nil {
		if err == ErrCorruptSlot {
			// never resurrect a corrupt session
			_ = s.store.Clear(sessionSlot)
		}
		if err == ErrEmptySlot || err == ErrCorruptSlot {
			return auth.SessionRecord{}, auth.ErrNoSession
		}
		return auth.SessionRecord{}, err
	}
	return rec, nil
}

func (s *sessionStore) ClearSession() error {
	return s.store.Clear(sessionSlot)
}
