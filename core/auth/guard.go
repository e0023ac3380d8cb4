package auth

import (
	"sync"

	"github.com/Evian1k/school12k/core/identity"
)

// Decision is the outcome of an access check on a role-restricted resource.
type Decision int

const (
	// DecisionPending means the initial session restore has not completed
	// yet; the caller must show a neutral loading state, not a redirect.
	DecisionPending Decision = iota
	DecisionAllow
	DecisionRedirectToLogin
	DecisionRedirectToUnauthorized
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionAllow:
		return "allow"
	case DecisionRedirectToLogin:
		return "redirect-to-login"
	case DecisionRedirectToUnauthorized:
		return "redirect-to-unauthorized"
	}
	return "unknown"
}

// Guard gates navigation to role-restricted resources based on the
// current session credential. It has no side effects beyond observing
// Manager.Current.
type Guard struct {
	mgr *Manager

	mu       sync.RWMutex
	resolved bool
}

func NewGuard(mgr *Manager) *Guard {
	return &Guard{mgr: mgr}
}

// Resolve performs the initial session restore. Until it has run, Decide
// reports DecisionPending so callers never flash a login redirect while
// the stored session is still being read.
func (g *Guard) Resolve() {
	_, _ = g.mgr.Current()
	g.mu.Lock()
	g.resolved = true
	g.mu.Unlock()
}

func (g *Guard) Resolved() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.resolved
}

// Decide checks the current credential against a resource's allowed roles.
// A nil/empty required set restricts nothing beyond authentication.
func (g *Guard) Decide(required []identity.Role) Decision {
	if !g.Resolved() {
		return DecisionPending
	}

	cred, err := g.mgr.Current()
	if err != nil {
		return DecisionRedirectToLogin
	}
	if !cred.Role.In(required) {
		return DecisionRedirectToUnauthorized
	}
	return DecisionAllow
}
