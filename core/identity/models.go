package identity

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/Evian1k/school12k/core"
)

// Role is the closed set of portals an Identity may belong to.
type Role string

const (
	RoleAdmin    Role = "admin"    // -> ADMIN PORTAL
	RoleTeacher  Role = "teacher"  // -> TEACHER PORTAL
	RoleStudent  Role = "student"  // -> STUDENT PORTAL
	RoleGuardian Role = "guardian" // -> PARENT PORTAL
)

var AllRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleGuardian}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// In reports whether r is one of roles. An empty set matches any role.
func (r Role) In(roles []Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"` // unique, lowered
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Verified     bool      `json:"verified"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

func (idn *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	idn.PasswordHash = hash
	return nil
}

func (idn *Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(idn.PasswordHash, []byte(pwd))
}

func (idn *Identity) IsAdmin() bool    { return idn.Role == RoleAdmin }
func (idn *Identity) IsTeacher() bool  { return idn.Role == RoleTeacher }
func (idn *Identity) IsStudent() bool  { return idn.Role == RoleStudent }
func (idn *Identity) IsGuardian() bool { return idn.Role == RoleGuardian }

// NewIdentity contains the self-registration profile. It stays pending
// (not durable) until the email verification flow completes.
type NewIdentity struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required"`
	Role            Role   `json:"role" validate:"required,role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ni *NewIdentity) Validate(validate *validator.Validate, svc Service) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Email = core.CleanString(ni.Email, true /* lower */)

	if err := validate.Struct(ni); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ni.Email)
}
