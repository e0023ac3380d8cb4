package auth

import (
	"context"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/Evian1k/school12k/core"
	"github.com/Evian1k/school12k/core/identity"
)

var (
	// errors
	ErrNoSession     = errors.New("no active session")
	errInvalidToken  = errors.New("invalid session token")
	errTokenExpired  = errors.New("session token expired")
	errNotVerified   = errors.New("identity not verified")
	errSigningFailed = errors.New("signing session token")

	jwtSigningMethod = jwt.SigningMethodHS256
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Email      string        `json:"email,omitempty"`
	Name       string        `json:"name,omitempty"`
	Role       identity.Role `json:"role,omitempty"`
	IsStudent  bool          `json:"is_student,omitempty"`  // -> STUDENT PORTAL
	IsTeacher  bool          `json:"is_teacher,omitempty"`  // -> TEACHER PORTAL
	IsAdmin    bool          `json:"is_admin,omitempty"`    // -> ADMIN PORTAL
	IsGuardian bool          `json:"is_guardian,omitempty"` // -> PARENT PORTAL
}

// SessionCredential is the immutable artifact issued after a successful
// verification; a "refresh" is a new credential. It is valid iff the token
// signature checks out and now < ExpiresAt.
type SessionCredential struct {
	Token     string        `json:"token"`
	SubjectID string        `json:"subject_id"`
	Role      identity.Role `json:"role"`
	IssuedAt  time.Time     `json:"issued_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

func (sc *SessionCredential) Valid(now time.Time) bool {
	return now.Before(sc.ExpiresAt)
}

// SessionRecord is the durable "current session" slot: the credential token
// plus a client-visible copy of the Identity.
type SessionRecord struct {
	Token    string            `json:"token"`
	Identity identity.Identity `json:"identity"`
}

// SessionStore holds the client context's current session record.
type SessionStore interface {
	PutSession(rec SessionRecord) error
	// GetSession returns ErrNoSession when nothing is stored; a corrupt
	// record is also reported as ErrNoSession (fail safe to logged-out).
	GetSession() (SessionRecord, error)
	ClearSession() error
}

// Manager exchanges a verified Identity for a session credential, restores
// and monitors the current one, and revokes it on expiry or logout.
type Manager struct {
	conf   *core.Config
	store  SessionStore
	logger core.Logger

	mu       sync.Mutex
	expiredC chan struct{}
}

func NewManager(conf *core.Config, store SessionStore, logger core.Logger) *Manager {
	return &Manager{
		conf:     conf,
		store:    store,
		logger:   logger,
		expiredC: make(chan struct{}, 1),
	}
}

// GetIdentityClaims builds the session claims for an identity.
func GetIdentityClaims(conf *core.Config, idn identity.Identity) *Claims {
	now := nowFunc()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   idn.ID,
			Audience:  "EduManage",
			ExpiresAt: now.Add(conf.Session.ExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:      idn.Email,
		Name:       idn.Name,
		Role:       idn.Role,
		IsStudent:  idn.IsStudent(),
		IsTeacher:  idn.IsTeacher(),
		IsAdmin:    idn.IsAdmin(),
		IsGuardian: idn.IsGuardian(),
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errSigningFailed
	}
	return ss, nil
}

// ParseToken verifies a token's signature and expiry and returns its Claims.
func ParseToken(conf *core.Config, token string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwtSigningMethod {
			return nil, errInvalidToken
		}
		return []byte(conf.SecretKey), nil
	})
	if err != nil {
		if vErr, ok := err.(*jwt.ValidationError); ok && (vErr.Errors&jwt.ValidationErrorExpired != 0) {
			return nil, errTokenExpired
		}
		return nil, errInvalidToken
	}
	return claims, nil
}

func credentialFromClaims(token string, claims *Claims) SessionCredential {
	return SessionCredential{
		Token:     token,
		SubjectID: claims.Subject,
		Role:      claims.Role,
		IssuedAt:  time.Unix(claims.IssuedAt, 0).UTC(),
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}
}

// Issue mints a credential for a freshly verified identity and persists it
// as the current session. Called only right after a successful Verify.
func (m *Manager) Issue(idn identity.Identity) (SessionCredential, error) {
	if !idn.Verified {
		return SessionCredential{}, errNotVerified
	}

	claims := GetIdentityClaims(m.conf, idn)
	token, err := GenerateToken(m.conf, claims)
	if err != nil {
		return SessionCredential{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.store.PutSession(SessionRecord{Token: token, Identity: idn}); err != nil {
		return SessionCredential{}, errors.Wrap(err, "saving session")
	}
	return credentialFromClaims(token, claims), nil
}

// Current reconstructs the active credential from the durable session record.
// A corrupt record, an unparseable or expired token, or an unverified cached
// identity all resolve to ErrNoSession; a broken session is never presented
// as authenticated.
func (m *Manager) Current() (SessionCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current()
}

func (m *Manager) current() (SessionCredential, error) {
	rec, err := m.store.GetSession()
	if err != nil {
		return SessionCredential{}, ErrNoSession
	}

	claims, err := ParseToken(m.conf, rec.Token)
	if err != nil || !rec.Identity.Verified {
		_ = m.store.ClearSession()
		return SessionCredential{}, ErrNoSession
	}
	return credentialFromClaims(rec.Token, claims), nil
}

// CurrentIdentity returns the cached identity of the active session.
func (m *Manager) CurrentIdentity() (identity.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.current(); err != nil {
		return identity.Identity{}, err
	}
	rec, err := m.store.GetSession()
	if err != nil {
		return identity.Identity{}, ErrNoSession
	}
	return rec.Identity, nil
}

// Revoke clears the durable session record. Idempotent.
func (m *Manager) Revoke() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Wrap(m.store.ClearSession(), "clearing session")
}

// Expired signals whenever the monitor revokes an expired session.
func (m *Manager) Expired() <-chan struct{} {
	return m.expiredC
}

// Monitor periodically inspects the held credential's expiry claim and
// revokes the session once it lapses. Runs until ctx is done.
func (m *Manager) Monitor(ctx context.Context) {
	ticker := time.NewTicker(m.conf.Session.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckExpiry()
		}
	}
}

// CheckExpiry runs one monitor tick. State is re-read under the manager
// lock right before revoking, so a session superseded by a concurrent
// Issue or Revoke is never acted on from a stale snapshot.
func (m *Manager) CheckExpiry() {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.GetSession()
	if err != nil {
		return // nothing held
	}

	if _, err = ParseToken(m.conf, rec.Token); err == errTokenExpired {
		if err = m.store.ClearSession(); err != nil {
			if m.logger != nil {
				m.logger.Error("revoking expired session", err)
			}
			return
		}
		if m.logger != nil {
			m.logger.Info("session expired; signed out", map[string]interface{}{"subject": rec.Identity.ID})
		}
		select {
		case m.expiredC <- struct{}{}:
		default:
		}
	}
}
