package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Evian1k/school12k/core/identity"
)

type identityRow struct {
	ID           string       `db:"id"`
	Email        string       `db:"email"`
	Name         string       `db:"name"`
	Role         string       `db:"role"`
	Verified     bool         `db:"verified"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    sql.NullTime `db:"created_at"`
}

func (row identityRow) toIdentity() identity.Identity {
	idn := identity.Identity{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		Role:         identity.Role(row.Role),
		Verified:     row.Verified,
		PasswordHash: row.PasswordHash,
	}
	if row.CreatedAt.Valid {
		idn.CreatedAt = row.CreatedAt.Time.UTC()
	}
	return idn
}

type identityDirectory struct {
	db *sqlx.DB
}

var _ identity.Directory = (*identityDirectory)(nil) // interface compliance check

func NewIdentityDirectory(db *sqlx.DB) identity.Directory {
	return &identityDirectory{db: db}
}

func (dir *identityDirectory) CreateIdentity(idn identity.Identity) (identity.Identity, error) {
	_, err := dir.db.Exec(
		`INSERT INTO identity (id, email, name, role, verified, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		idn.ID, strings.ToLower(idn.Email), idn.Name, string(idn.Role), idn.Verified, idn.PasswordHash, idn.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return identity.Identity{}, identity.ErrDuplicateIdentity
		}
		return identity.Identity{}, errors.Wrap(err, "inserting identity")
	}
	return idn, nil
}

func (dir *identityDirectory) GetIdentityByID(id string) (identity.Identity, error) {
	var row identityRow
	err := dir.db.Get(&row, `SELECT * FROM identity WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return identity.Identity{}, identity.ErrNotFound
		}
		return identity.Identity{}, errors.Wrap(err, "getting identity by id")
	}
	return row.toIdentity(), nil
}

func (dir *identityDirectory) GetIdentityByEmail(email string) (identity.Identity, error) {
	var row identityRow
	err := dir.db.Get(&row, `SELECT * FROM identity WHERE lower(email) = lower($1)`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return identity.Identity{}, identity.ErrNotFound
		}
		return identity.Identity{}, errors.Wrap(err, "getting identity by email")
	}
	return row.toIdentity(), nil
}

func (dir *identityDirectory) QueryAllIdentities() ([]identity.Identity, error) {
	var rows []identityRow
	if err := dir.db.Select(&rows, `SELECT * FROM identity ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying identities")
	}
	idns := make([]identity.Identity, 0, len(rows))
	for _, row := range rows {
		idns = append(idns, row.toIdentity())
	}
	return idns, nil
}

func (dir *identityDirectory) UpdateIdentity(idn identity.Identity) (identity.Identity, error) {
	res, err := dir.db.Exec(
		`UPDATE identity SET email = $2, name = $3, role = $4, verified = $5, password_hash = $6 WHERE id = $1`,
		idn.ID, strings.ToLower(idn.Email), idn.Name, string(idn.Role), idn.Verified, idn.PasswordHash,
	)
	if err != nil {
		return identity.Identity{}, errors.Wrap(err, "updating identity")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return identity.Identity{}, identity.ErrNotFound
	}
	return idn, nil
}
