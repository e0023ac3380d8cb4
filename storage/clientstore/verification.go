package clientstore

import (
	"github.com/Evian1k/school12k/core/auth"
)

const verificationSlot = "verification_pending"

type requestStore struct {
	store *Store
}

var _ auth.RequestStore = (*requestStore)(nil)

func NewRequestStore(store *Store) auth.RequestStore {
	return &requestStore{store: store}
}

func (s *requestStore) PutRequest(vr auth.VerificationRequest) error {
	return s.store.Put(verificationSlot, vr)
}

func (s *requestStore) GetRequest() (auth.VerificationRequest, error) {
	var vr auth.VerificationRequest
	if err := s.store.Get(verificationSlot, &vr); err != nil {
		if err == ErrCorruptSlot {
			_ = s.store.Clear(verificationSlot)
		}
		if err == ErrEmptySlot || err == ErrCorruptSlot {
			return auth.VerificationRequest{}, auth.ErrNoActiveRequest
		}
		return auth.VerificationRequest{}, err
	}
	return vr, nil
}

func (s *requestStore) ClearRequest() error {
	return s.store.Clear(verificationSlot)
}
