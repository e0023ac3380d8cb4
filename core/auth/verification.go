package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/Evian1k/school12k/core"
	"github.com/Evian1k/school12k/core/identity"
)

// Purpose says what a verification request is for.
type Purpose string

const (
	PurposeLogin        Purpose = "login"        // existing identity
	PurposeRegistration Purpose = "registration" // new, pending identity
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrUnknownAccount  = errors.New("no account found with this email address")
	ErrAccountExists   = errors.New("an account with this email already exists; try signing in instead")
	ErrNoActiveRequest = errors.New("no verification in progress; request a new code")
	ErrCodeExpired     = errors.New("verification code has expired; request a new one")
	ErrCodeMismatch    = errors.New("invalid verification code; check it and try again")
	// ErrDeliveryFailed is soft: the request was created and the code is
	// still valid, only the outbound delivery could not be confirmed.
	ErrDeliveryFailed = errors.New("verification code could not be delivered")
)

// PendingRegistration is the not-yet-durable registration carried inside a
// verification request. It has its own wire shape because identity.Identity
// never marshals the password hash; the hash must survive the slot round
// trip or the materialized account ends up credential-less.
type PendingRegistration struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Role         identity.Role `json:"role"`
	PasswordHash []byte        `json:"password_hash,omitempty"`
	CreatedAt    time.Time     `json:"created_at"` // UTC
}

func newPendingRegistration(idn *identity.Identity) *PendingRegistration {
	if idn == nil {
		return nil
	}
	return &PendingRegistration{
		ID:           idn.ID,
		Email:        idn.Email,
		Name:         idn.Name,
		Role:         idn.Role,
		PasswordHash: idn.PasswordHash,
		CreatedAt:    idn.CreatedAt,
	}
}

func (p *PendingRegistration) identity() identity.Identity {
	return identity.Identity{
		ID:           p.ID,
		Email:        p.Email,
		Name:         p.Name,
		Role:         p.Role,
		PasswordHash: p.PasswordHash,
		CreatedAt:    p.CreatedAt,
	}
}

// VerificationRequest is the single outstanding one-time code for this
// client context. It is consumable iff now < ExpiresAt, and exactly once.
type VerificationRequest struct {
	Email     string               `json:"email"`
	Code      string               `json:"code"` // 6 ASCII digits
	Purpose   Purpose              `json:"purpose"`
	IssuedAt  time.Time            `json:"issued_at"`  // UTC
	ExpiresAt time.Time            `json:"expires_at"` // UTC
	Pending   *PendingRegistration `json:"pending,omitempty"`
}

func (vr *VerificationRequest) Consumable(now time.Time) bool {
	return now.Before(vr.ExpiresAt)
}

// RequestStore holds the client context's outstanding verification request.
type RequestStore interface {
	PutRequest(vr VerificationRequest) error
	// GetRequest returns ErrNoActiveRequest when nothing is pending.
	GetRequest() (VerificationRequest, error)
	ClearRequest() error
}

// Issuer generates, resends, expires and consumes one-time verification codes.
type Issuer struct {
	conf     *core.Config
	idSvc    identity.Service
	notifier Notifier
	store    RequestStore
}

func NewIssuer(conf *core.Config, idSvc identity.Service, notifier Notifier, store RequestStore) *Issuer {
	return &Issuer{conf: conf, idSvc: idSvc, notifier: notifier, store: store}
}

// RequestCode issues a fresh code for email, superseding any outstanding
// request for this context. pending carries the not-yet-durable registration
// payload and must be set iff purpose is PurposeRegistration.
//
// On ErrDeliveryFailed the returned request is still live and verifiable.
func (iss *Issuer) RequestCode(email string, purpose Purpose, pending *identity.Identity) (VerificationRequest, error) {
	email = core.CleanString(email, true /* lower */)

	switch purpose {
	case PurposeLogin:
		if _, err := iss.idSvc.FindByEmail(email); err != nil {
			if err == identity.ErrNotFound {
				return VerificationRequest{}, ErrUnknownAccount
			}
			return VerificationRequest{}, errors.Wrap(err, "finding identity")
		}
	case PurposeRegistration:
		_, err := iss.idSvc.FindByEmail(email)
		if err == nil {
			return VerificationRequest{}, ErrAccountExists
		}
		if err != identity.ErrNotFound {
			return VerificationRequest{}, errors.Wrap(err, "finding identity")
		}
	default:
		return VerificationRequest{}, errors.Errorf("unknown purpose %q", purpose)
	}

	code, err := generateCode()
	if err != nil {
		return VerificationRequest{}, errors.Wrap(err, "generating code")
	}

	now := nowFunc().UTC()
	vr := VerificationRequest{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(iss.conf.Verification.CodeTimeout),
		Pending:   newPendingRegistration(pending),
	}
	if err = iss.store.PutRequest(vr); err != nil {
		return VerificationRequest{}, errors.Wrap(err, "saving verification request")
	}

	if err = iss.notifier.SendCode(vr.Email, vr.Code, vr.Purpose); err != nil {
		return vr, ErrDeliveryFailed
	}
	return vr, nil
}

// Resend regenerates the code and expiry of the outstanding request,
// preserving its purpose and pending payload. The previous code stops
// validating immediately.
func (iss *Issuer) Resend() (VerificationRequest, error) {
	vr, err := iss.store.GetRequest()
	if err != nil {
		return VerificationRequest{}, err
	}

	code, err := generateCode()
	if err != nil {
		return VerificationRequest{}, errors.Wrap(err, "generating code")
	}

	now := nowFunc().UTC()
	vr.Code = code
	vr.IssuedAt = now
	vr.ExpiresAt = now.Add(iss.conf.Verification.CodeTimeout)
	if err = iss.store.PutRequest(vr); err != nil {
		return VerificationRequest{}, errors.Wrap(err, "saving verification request")
	}

	if err = iss.notifier.SendCode(vr.Email, vr.Code, vr.Purpose); err != nil {
		return vr, ErrDeliveryFailed
	}
	return vr, nil
}

// Verify matches submitted against the outstanding request.
//
// An expired request is invalidated on observation. A mismatch leaves the
// request pending so the caller may retry until expiry. On match the
// resolved Identity is verified (materialized if it was a pending
// registration), the request is consumed and the Identity returned for
// credential minting.
func (iss *Issuer) Verify(submitted string) (identity.Identity, error) {
	vr, err := iss.store.GetRequest()
	if err != nil {
		return identity.Identity{}, err
	}

	if !vr.Consumable(nowFunc()) {
		_ = iss.store.ClearRequest()
		return identity.Identity{}, ErrCodeExpired
	}

	submitted = core.CleanString(submitted)
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(vr.Code)) == 0 {
		return identity.Identity{}, ErrCodeMismatch
	}

	var idn identity.Identity
	if vr.Purpose == PurposeRegistration && vr.Pending != nil {
		if idn, err = iss.idSvc.Materialize(vr.Pending.identity()); err != nil {
			return identity.Identity{}, errors.Wrap(err, "materializing pending identity")
		}
	} else {
		if idn, err = iss.idSvc.FindByEmail(vr.Email); err != nil {
			return identity.Identity{}, errors.Wrap(err, "finding identity")
		}
		if idn, err = iss.idSvc.EnsureVerified(idn); err != nil {
			return identity.Identity{}, errors.Wrap(err, "verifying identity")
		}
	}

	// consume: the same code must never validate twice
	if err = iss.store.ClearRequest(); err != nil {
		return identity.Identity{}, errors.Wrap(err, "consuming verification request")
	}
	return idn, nil
}

// generateCode draws a 6-digit code from crypto/rand.
// Codes span 100000-999999 so they always print as 6 digits.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
