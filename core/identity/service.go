package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Evian1k/school12k/core"
)

var (
	// errors
	ErrNotFound          = errors.New("identity not found")
	ErrDuplicateIdentity = errors.New("an account with this email already exists")
)

type (
	// Directory is the identity lookup/append store.
	// Lookups by email are case-insensitive (emails are stored lowered).
	Directory interface {
		CreateIdentity(idn Identity) (Identity, error)
		GetIdentityByID(id string) (Identity, error)
		GetIdentityByEmail(email string) (Identity, error)
		QueryAllIdentities() ([]Identity, error)
		UpdateIdentity(idn Identity) (Identity, error)
	}

	Service interface {
		FindByEmail(email string) (Identity, error)
		GetByID(id string) (Identity, error)
		QueryAll() ([]Identity, error)
		CheckEmailUniqueness(email string) error
		// Register builds a pending, unverified Identity from a validated
		// profile. The Identity is not durable yet; Materialize makes it so.
		Register(ni NewIdentity) (Identity, error)
		// Materialize flips Verified and makes a pending Identity durable.
		Materialize(idn Identity) (Identity, error)
		// EnsureVerified flips Verified on a durable Identity if needed.
		EnsureVerified(idn Identity) (Identity, error)
		// CreateVerified appends a known account directly (seeding, admin CLI).
		CreateVerified(ni NewIdentity) (Identity, error)
	}

	service struct {
		dir Directory
	}
)

var _ Service = (*service)(nil)

func NewService(dir Directory) Service {
	return &service{dir: dir}
}

func (svc *service) FindByEmail(email string) (Identity, error) {
	return svc.dir.GetIdentityByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) GetByID(id string) (Identity, error) {
	return svc.dir.GetIdentityByID(id)
}

func (svc *service) QueryAll() ([]Identity, error) {
	return svc.dir.QueryAllIdentities()
}

func (svc *service) CheckEmailUniqueness(email string) error {
	_, err := svc.FindByEmail(email)
	if err == nil {
		return core.NewValidationError(
			ErrDuplicateIdentity,
			core.FieldError{Field: "email", Error: ErrDuplicateIdentity.Error()},
		)
	}
	if err != ErrNotFound {
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

func (svc *service) newIdentity(ni NewIdentity) (Identity, error) {
	idn := Identity{
		ID:        uuid.New().String(),
		Email:     core.CleanString(ni.Email, true /* lower */),
		Name:      core.CleanString(ni.Name),
		Role:      ni.Role,
		CreatedAt: time.Now().UTC(),
	}
	if ni.Password != "" {
		if err := idn.SetPassword(ni.Password); err != nil {
			return Identity{}, errors.Wrap(err, "setting password")
		}
	}
	return idn, nil
}

func (svc *service) Register(ni NewIdentity) (Identity, error) {
	if err := svc.CheckEmailUniqueness(ni.Email); err != nil {
		return Identity{}, err
	}
	return svc.newIdentity(ni) // Verified: false; durable on Materialize only
}

func (svc *service) Materialize(idn Identity) (Identity, error) {
	idn.Verified = true
	return svc.dir.CreateIdentity(idn)
}

func (svc *service) EnsureVerified(idn Identity) (Identity, error) {
	if idn.Verified {
		return idn, nil
	}
	idn.Verified = true
	return svc.dir.UpdateIdentity(idn)
}

func (svc *service) CreateVerified(ni NewIdentity) (Identity, error) {
	idn, err := svc.Register(ni)
	if err != nil {
		return Identity{}, err
	}
	return svc.Materialize(idn)
}
