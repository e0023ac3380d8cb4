package dummydb

import (
	"sync"

	"github.com/Evian1k/school12k/core/identity"
)

type (
	DB struct {
		identity *identityTable
	}

	identityTable struct {
		sync.RWMutex
		table map[string]*identity.Identity // keyed by ID
	}
)

func Open() (*DB, error) {
	db := &DB{
		identity: &identityTable{table: make(map[string]*identity.Identity)},
	}
	return db, nil
}
