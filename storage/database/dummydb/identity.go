package dummydb

import (
	"strings"

	"github.com/Evian1k/school12k/core/identity"
)

type identityDirectory struct {
	db *identityTable
}

var _ identity.Directory = (*identityDirectory)(nil) // interface compliance check

func NewIdentityDirectory(db *DB) identity.Directory {
	return &identityDirectory{db: db.identity}
}

func (dir *identityDirectory) query() []identity.Identity {
	idns := make([]identity.Identity, 0, len(dir.db.table))
	for _, idn := range dir.db.table {
		idns = append(idns, *idn)
	}
	return idns
}

func (dir *identityDirectory) CreateIdentity(idn identity.Identity) (identity.Identity, error) {
	dir.db.Lock()
	defer dir.db.Unlock()

	for _, existing := range dir.db.table {
		if strings.EqualFold(existing.Email, idn.Email) {
			return identity.Identity{}, identity.ErrDuplicateIdentity
		}
	}
	dir.db.table[idn.ID] = &idn
	return idn, nil
}

func (dir *identityDirectory) GetIdentityByID(id string) (identity.Identity, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()

	if idn, ok := dir.db.table[id]; ok {
		return *idn, nil
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (dir *identityDirectory) GetIdentityByEmail(email string) (identity.Identity, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()

	for _, idn := range dir.query() {
		if strings.EqualFold(idn.Email, email) {
			return idn, nil
		}
	}
	return identity.Identity{}, identity.ErrNotFound
}

func (dir *identityDirectory) QueryAllIdentities() ([]identity.Identity, error) {
	dir.db.RLock()
	defer dir.db.RUnlock()
	return dir.query(), nil
}

func (dir *identityDirectory) UpdateIdentity(idn identity.Identity) (identity.Identity, error) {
	dir.db.Lock()
	defer dir.db.Unlock()

	orig, ok := dir.db.table[idn.ID]
	if !ok {
		return identity.Identity{}, identity.ErrNotFound
	}

	// only save set fields
	if idn.Name != "" {
		orig.Name = idn.Name
	}
	if idn.Email != "" {
		orig.Email = idn.Email
	}
	if idn.Role != "" {
		orig.Role = idn.Role
	}
	if idn.PasswordHash != nil {
		orig.PasswordHash = idn.PasswordHash
	}
	orig.Verified = idn.Verified

	dir.db.table[idn.ID] = orig
	return *orig, nil
}
